package frost

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	fieldhash "github.com/consensys/gnark-crypto/field/hash"
	"golang.org/x/crypto/blake2b"
)

// Ciphersuite identifiers. The Ed25519 and secp256k1 strings are the
// context strings of RFC 9591.
const (
	CiphersuiteEd25519    = "FROST-ED25519-SHA512-v1"
	CiphersuiteSecp256k1  = "FROST-secp256k1-SHA256-v1"
	CiphersuiteBabyJubjub = "FROST-BJJ-BLAKE2b512-v1"
)

// Ciphersuite binds a prime-order group to the hash functions used for
// binding factors, challenges, nonces and DKG proofs. Every method is a
// pure function of its input.
type Ciphersuite interface {
	ID() string
	Curve() Curve

	// H1 derives binding factors.
	H1(m []byte) Scalar
	// H2 derives the signature challenge.
	H2(m []byte) Scalar
	// H3 derives nonces.
	H3(m []byte) Scalar
	// H4 digests the message for binding factor input.
	H4(m []byte) []byte
	// H5 digests the encoded commitment list.
	H5(m []byte) []byte
	// HDKG derives the DKG proof-of-knowledge challenge.
	HDKG(m []byte) Scalar
	// HID derives identifiers from arbitrary names.
	HID(m []byte) Scalar
}

// NewCiphersuite returns the suite for a curve type.
func NewCiphersuite(curveType CurveType) (Ciphersuite, error) {
	switch curveType {
	case Ed25519:
		return NewEd25519Ciphersuite(), nil
	case Secp256k1:
		return NewSecp256k1Ciphersuite(), nil
	case BabyJubjub:
		return NewBabyJubjubCiphersuite(), nil
	default:
		return nil, ErrUnsupportedCiphersuite.WithDetails("curve %q", curveType)
	}
}

// CiphersuiteByID looks a suite up by its context string.
func CiphersuiteByID(id string) (Ciphersuite, error) {
	switch id {
	case CiphersuiteEd25519:
		return NewEd25519Ciphersuite(), nil
	case CiphersuiteSecp256k1:
		return NewSecp256k1Ciphersuite(), nil
	case CiphersuiteBabyJubjub:
		return NewBabyJubjubCiphersuite(), nil
	default:
		return nil, ErrUnsupportedCiphersuite.WithDetails("ciphersuite %q", id)
	}
}

// mustUniform reduces a digest whose length the suite controls; a failure
// here is a programming error in the suite itself.
func mustUniform(curve Curve, digest []byte) Scalar {
	s, err := curve.ScalarFromUniformBytes(digest)
	if err != nil {
		panic("frost: ciphersuite digest rejected by curve: " + err.Error())
	}
	return s
}

func taggedHash(newHash func() hash.Hash, context, tag string, m []byte) []byte {
	h := newHash()
	h.Write([]byte(context))
	h.Write([]byte(tag))
	h.Write(m)
	return h.Sum(nil)
}

// Ed25519Ciphersuite is FROST(Ed25519, SHA-512). H2 is unprefixed SHA-512
// so that aggregate signatures are plain RFC 8032 signatures.
type Ed25519Ciphersuite struct {
	curve *Ed25519Curve
}

func NewEd25519Ciphersuite() *Ed25519Ciphersuite {
	return &Ed25519Ciphersuite{curve: NewEd25519Curve()}
}

func (s *Ed25519Ciphersuite) ID() string   { return CiphersuiteEd25519 }
func (s *Ed25519Ciphersuite) Curve() Curve { return s.curve }

func (s *Ed25519Ciphersuite) tagged(tag string, m []byte) []byte {
	return taggedHash(sha512.New, CiphersuiteEd25519, tag, m)
}

func (s *Ed25519Ciphersuite) H1(m []byte) Scalar { return mustUniform(s.curve, s.tagged("rho", m)) }

func (s *Ed25519Ciphersuite) H2(m []byte) Scalar {
	digest := sha512.Sum512(m)
	return mustUniform(s.curve, digest[:])
}

func (s *Ed25519Ciphersuite) H3(m []byte) Scalar   { return mustUniform(s.curve, s.tagged("nonce", m)) }
func (s *Ed25519Ciphersuite) H4(m []byte) []byte   { return s.tagged("msg", m) }
func (s *Ed25519Ciphersuite) H5(m []byte) []byte   { return s.tagged("com", m) }
func (s *Ed25519Ciphersuite) HDKG(m []byte) Scalar { return mustUniform(s.curve, s.tagged("dkg", m)) }
func (s *Ed25519Ciphersuite) HID(m []byte) Scalar  { return mustUniform(s.curve, s.tagged("id", m)) }

// Secp256k1Ciphersuite is FROST(secp256k1, SHA-256) with hash_to_field over
// expand_message_xmd.
type Secp256k1Ciphersuite struct {
	curve *Secp256k1Curve
}

func NewSecp256k1Ciphersuite() *Secp256k1Ciphersuite {
	return &Secp256k1Ciphersuite{curve: NewSecp256k1Curve()}
}

func (s *Secp256k1Ciphersuite) ID() string   { return CiphersuiteSecp256k1 }
func (s *Secp256k1Ciphersuite) Curve() Curve { return s.curve }

func (s *Secp256k1Ciphersuite) toField(tag string, m []byte) Scalar {
	uniform, err := fieldhash.ExpandMsgXmd(m, []byte(CiphersuiteSecp256k1+tag), 48)
	if err != nil {
		panic("frost: expand_message_xmd: " + err.Error())
	}
	return mustUniform(s.curve, uniform)
}

func (s *Secp256k1Ciphersuite) H1(m []byte) Scalar   { return s.toField("rho", m) }
func (s *Secp256k1Ciphersuite) H2(m []byte) Scalar   { return s.toField("chal", m) }
func (s *Secp256k1Ciphersuite) H3(m []byte) Scalar   { return s.toField("nonce", m) }
func (s *Secp256k1Ciphersuite) H4(m []byte) []byte   { return taggedHash(sha256.New, CiphersuiteSecp256k1, "msg", m) }
func (s *Secp256k1Ciphersuite) H5(m []byte) []byte   { return taggedHash(sha256.New, CiphersuiteSecp256k1, "com", m) }
func (s *Secp256k1Ciphersuite) HDKG(m []byte) Scalar { return s.toField("dkg", m) }
func (s *Secp256k1Ciphersuite) HID(m []byte) Scalar  { return s.toField("id", m) }

// BabyJubjubCiphersuite hashes with BLAKE2b-512 under a context prefix.
// It is not interoperable with any external verifier; signatures verify
// with Verify in this package.
type BabyJubjubCiphersuite struct {
	curve *BabyJubjubCurve
}

func NewBabyJubjubCiphersuite() *BabyJubjubCiphersuite {
	return &BabyJubjubCiphersuite{curve: NewBabyJubjubCurve()}
}

func (s *BabyJubjubCiphersuite) ID() string   { return CiphersuiteBabyJubjub }
func (s *BabyJubjubCiphersuite) Curve() Curve { return s.curve }

func newBlake2b512() hash.Hash {
	h, err := blake2b.New512(nil)
	if err != nil {
		// Only a key longer than 64 bytes can fail.
		panic(err)
	}
	return h
}

func (s *BabyJubjubCiphersuite) tagged(tag string, m []byte) []byte {
	return taggedHash(newBlake2b512, CiphersuiteBabyJubjub, tag, m)
}

func (s *BabyJubjubCiphersuite) H1(m []byte) Scalar   { return mustUniform(s.curve, s.tagged("rho", m)) }
func (s *BabyJubjubCiphersuite) H2(m []byte) Scalar   { return mustUniform(s.curve, s.tagged("chal", m)) }
func (s *BabyJubjubCiphersuite) H3(m []byte) Scalar   { return mustUniform(s.curve, s.tagged("nonce", m)) }
func (s *BabyJubjubCiphersuite) H4(m []byte) []byte   { return s.tagged("msg", m) }
func (s *BabyJubjubCiphersuite) H5(m []byte) []byte   { return s.tagged("com", m) }
func (s *BabyJubjubCiphersuite) HDKG(m []byte) Scalar { return mustUniform(s.curve, s.tagged("dkg", m)) }
func (s *BabyJubjubCiphersuite) HID(m []byte) Scalar  { return mustUniform(s.curve, s.tagged("id", m)) }

// computeChallenge is c = H2(R || Y || msg).
func computeChallenge(cs Ciphersuite, groupCommitment, groupPublicKey Point, message []byte) Scalar {
	return cs.H2(appendAll(groupCommitment.Bytes(), groupPublicKey.Bytes(), message))
}
