package frost

import (
	"bytes"
	"encoding/hex"
	"sort"
	"strconv"
)

// Identifier names a participant. It holds the canonical 32-byte encoding
// of a nonzero scalar, which keeps it comparable and usable as a map key.
type Identifier [32]byte

// NewIdentifier wraps a scalar, rejecting zero.
func NewIdentifier(curve Curve, s Scalar) (Identifier, error) {
	var id Identifier
	if s == nil || s.IsZero() {
		return id, ErrInvalidIdentifier.WithDetails("identifier must be a nonzero scalar")
	}
	enc := s.Bytes()
	if len(enc) != len(id) || curve.ScalarSize() != len(id) {
		return id, ErrInvalidIdentifier.WithDetails("unsupported scalar size %d", len(enc))
	}
	copy(id[:], enc)
	return id, nil
}

// IdentifierFromUint maps the conventional 1..n numbering onto scalars.
func IdentifierFromUint(curve Curve, n uint64) (Identifier, error) {
	return NewIdentifier(curve, curve.ScalarFromUint64(n))
}

// MustIdentifier is IdentifierFromUint for constants known to be nonzero.
func MustIdentifier(curve Curve, n uint64) Identifier {
	id, err := IdentifierFromUint(curve, n)
	if err != nil {
		panic(err)
	}
	return id
}

// IdentifierFromBytes decodes a canonical scalar encoding.
func IdentifierFromBytes(curve Curve, data []byte) (Identifier, error) {
	s, err := curve.ScalarFromBytes(data)
	if err != nil {
		return Identifier{}, err
	}
	return NewIdentifier(curve, s)
}

// DeriveIdentifier hashes an arbitrary name (host name, key fingerprint)
// into an identifier.
func DeriveIdentifier(cs Ciphersuite, name []byte) (Identifier, error) {
	return NewIdentifier(cs.Curve(), cs.HID(name))
}

// Scalar decodes the identifier for the given curve.
func (id Identifier) Scalar(curve Curve) (Scalar, error) {
	s, err := curve.ScalarFromBytes(id[:])
	if err != nil {
		return nil, err
	}
	if s.IsZero() {
		return nil, ErrInvalidIdentifier.WithDetails("identifier must be a nonzero scalar")
	}
	return s, nil
}

func (id Identifier) Bytes() []byte {
	out := make([]byte, len(id))
	copy(out, id[:])
	return out
}

func (id Identifier) IsZero() bool {
	return id == Identifier{}
}

// String prints small identifiers in decimal and everything else in hex.
func (id Identifier) String() string {
	if v, ok := id.smallValue(); ok {
		return strconv.FormatUint(v, 10)
	}
	return hex.EncodeToString(id[:])
}

// smallValue recognises identifiers below 2^16 in either byte order.
func (id Identifier) smallValue() (uint64, bool) {
	if isAllZero(id[2:]) {
		return uint64(id[0]) | uint64(id[1])<<8, true
	}
	if isAllZero(id[:30]) {
		return uint64(id[31]) | uint64(id[30])<<8, true
	}
	return 0, false
}

// compareIdentifiers orders identifiers as integers under the curve's
// scalar byte order.
func compareIdentifiers(curve Curve, a, b Identifier) int {
	if !curve.LittleEndian() {
		return bytes.Compare(a[:], b[:])
	}
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// SortIdentifiers sorts ids in place in ascending integer order.
func SortIdentifiers(curve Curve, ids []Identifier) {
	sort.Slice(ids, func(i, j int) bool {
		return compareIdentifiers(curve, ids[i], ids[j]) < 0
	})
}

// SequentialIdentifiers returns the identifiers 1..n.
func SequentialIdentifiers(curve Curve, n int) []Identifier {
	ids := make([]Identifier, n)
	for i := range ids {
		ids[i] = MustIdentifier(curve, uint64(i+1))
	}
	return ids
}
