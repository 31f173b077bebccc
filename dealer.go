package frost

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

// TrustedDealerKeygen splits secret (a fresh random key when nil) among ids
// with threshold minSigners. It produces the same KeyShare and
// PublicKeyPackage shapes as the DKG, so dealer output can stand in for a
// DKG run in fixtures and tooling.
func TrustedDealerKeygen(cs Ciphersuite, secret Scalar, minSigners int, ids []Identifier, rand io.Reader) (map[Identifier]*KeyShare, *PublicKeyPackage, error) {
	if err := NewDefaultThresholdValidator().ValidateThresholdParameters(len(ids), minSigners).Err(); err != nil {
		return nil, nil, err
	}
	curve := cs.Curve()
	if secret == nil {
		s, err := curve.ScalarRandom(rand)
		if err != nil {
			return nil, nil, err
		}
		defer s.Zeroize()
		secret = s
	}

	shares, commitment, err := SplitSecret(curve, secret, minSigners, ids, rand)
	if err != nil {
		return nil, nil, err
	}

	participants := append([]Identifier(nil), ids...)
	SortIdentifiers(curve, participants)

	keyShares := make(map[Identifier]*KeyShare, len(shares))
	for _, share := range shares {
		keyShares[share.Identifier] = &KeyShare{
			Ciphersuite:     cs.ID(),
			Identifier:      share.Identifier,
			SecretShare:     share.Value,
			PublicKey:       curve.BasePoint().Mul(share.Value),
			GroupPublicKey:  commitment.ConstantTerm(),
			GroupCommitment: commitment,
			Participants:    participants,
			MinSigners:      minSigners,
		}
	}
	pub, err := newPublicKeyPackage(cs.ID(), commitment, participants, minSigners)
	if err != nil {
		return nil, nil, err
	}
	return keyShares, pub, nil
}

// VerifyKeyShare runs the Feldman check of a key share against its group
// commitment and the public key package.
func VerifyKeyShare(keyShare *KeyShare, pub *PublicKeyPackage) error {
	cs, err := CiphersuiteByID(keyShare.Ciphersuite)
	if err != nil {
		return err
	}
	if !VerifyShare(cs.Curve(), keyShare.Identifier, keyShare.SecretShare, keyShare.GroupCommitment) {
		return ErrInvalidShare.WithCulprit(keyShare.Identifier)
	}
	pk, err := pub.ParticipantPublicKey(keyShare.Identifier)
	if err != nil {
		return err
	}
	if !pk.Equal(keyShare.PublicKey) || !pub.GroupPublicKey.Equal(keyShare.GroupPublicKey) {
		return ErrConfigurationMismatch.WithCulprit(keyShare.Identifier).WithDetails("key share does not match the public key package")
	}
	return nil
}

// seededReader is an HKDF-SHA256 keystream. Each HKDF instance is capped at
// 255 blocks, so the stream re-expands with an incrementing counter.
type seededReader struct {
	seed    []byte
	context []byte
	counter uint32
	current io.Reader
}

// NewSeededReader returns a deterministic randomness source derived from
// seed and context. It makes dealer and DKG runs reproducible and must
// never be used with production secrets.
func NewSeededReader(seed []byte, context string) io.Reader {
	r := &seededReader{
		seed:    append([]byte(nil), seed...),
		context: []byte(context),
	}
	r.rekey()
	return r
}

func (r *seededReader) rekey() {
	info := binary.BigEndian.AppendUint32(append([]byte(nil), r.context...), r.counter)
	r.counter++
	r.current = hkdf.New(sha256.New, r.seed, []byte("FROST_SEEDED_READER_v1"), info)
}

// Read draws at most one hash block per HKDF call; hkdf refuses a request
// larger than what remains of its output limit.
func (r *seededReader) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		end := total + sha256.Size
		if end > len(p) {
			end = len(p)
		}
		n, err := r.current.Read(p[total:end])
		total += n
		if err != nil {
			r.rekey()
		}
	}
	return total, nil
}
