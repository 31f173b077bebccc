package frost

import (
	"crypto/rand"
	"io"
)

// Curve defines the interface for prime-order group operations
type Curve interface {
	// Metadata
	Name() string
	ScalarSize() int
	PointSize() int
	// LittleEndian reports whether canonical scalar encodings are little-endian.
	LittleEndian() bool

	// Scalar operations
	ScalarFromBytes([]byte) (Scalar, error)
	ScalarFromUniformBytes([]byte) (Scalar, error)
	ScalarFromUint64(uint64) Scalar
	ScalarRandom(io.Reader) (Scalar, error)
	ScalarZero() Scalar
	ScalarOne() Scalar

	// Point operations
	PointFromBytes([]byte) (Point, error)
	BasePoint() Point
	PointIdentity() Point
}

// Scalar represents an element of the curve's scalar field.
// All arithmetic returns new values and never mutates the receiver.
type Scalar interface {
	// Serialization
	Bytes() []byte
	String() string

	// Arithmetic operations
	Add(Scalar) Scalar
	Sub(Scalar) Scalar
	Mul(Scalar) Scalar
	Negate() Scalar
	Invert() (Scalar, error)

	// Comparison
	Equal(Scalar) bool
	IsZero() bool

	// Security
	Zeroize()
}

// Point represents a group element
type Point interface {
	// Serialization
	Bytes() []byte
	String() string

	// Arithmetic operations
	Add(Point) Point
	Sub(Point) Point
	Mul(Scalar) Point
	Negate() Point

	// Comparison
	Equal(Point) bool
	IsIdentity() bool

	// IsValid reports whether the point lies in the prime-order subgroup.
	IsValid() bool
}

// CurveType represents supported curve types
type CurveType string

const (
	Ed25519    CurveType = "ed25519"
	Secp256k1  CurveType = "secp256k1"
	BabyJubjub CurveType = "babyjubjub"
)

// NewCurve creates a new curve instance
func NewCurve(curveType CurveType) (Curve, error) {
	switch curveType {
	case Ed25519:
		return NewEd25519Curve(), nil
	case Secp256k1:
		return NewSecp256k1Curve(), nil
	case BabyJubjub:
		return NewBabyJubjubCurve(), nil
	default:
		return nil, ErrUnsupportedCiphersuite.WithDetails("unsupported curve type: %s", curveType)
	}
}

// SecureRandom generates cryptographically secure random bytes
func SecureRandom(size int) ([]byte, error) {
	return readRandom(nil, size)
}

func readRandom(r io.Reader, size int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	bytes := make([]byte, size)
	if _, err := io.ReadFull(r, bytes); err != nil {
		return nil, ErrRandomnessGeneration.WithCause(err)
	}
	return bytes, nil
}

// checkLength is shared by the curve decoders.
func checkLength(kind string, data []byte, want int) error {
	if len(data) != want {
		return decodingError("%s length %d, want %d", kind, len(data), want)
	}
	return nil
}
