package frost

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"runtime"

	"filippo.io/edwards25519"
)

// Ed25519Curve implements the Curve interface for the prime-order
// subgroup of edwards25519.
type Ed25519Curve struct{}

// NewEd25519Curve creates a new Ed25519 curve instance
func NewEd25519Curve() *Ed25519Curve {
	return &Ed25519Curve{}
}

func (c *Ed25519Curve) Name() string       { return string(Ed25519) }
func (c *Ed25519Curve) ScalarSize() int    { return 32 }
func (c *Ed25519Curve) PointSize() int     { return 32 }
func (c *Ed25519Curve) LittleEndian() bool { return true }

// ScalarFromBytes decodes a canonical 32-byte little-endian scalar.
// Encodings of values >= L are rejected.
func (c *Ed25519Curve) ScalarFromBytes(data []byte) (Scalar, error) {
	if err := checkLength("scalar", data, 32); err != nil {
		return nil, err
	}

	scalar, err := edwards25519.NewScalar().SetCanonicalBytes(data)
	if err != nil {
		return nil, ErrDecoding.WithDetails("non-canonical ed25519 scalar").WithCause(err)
	}

	return NewEd25519Scalar(scalar), nil
}

// ScalarFromUniformBytes reduces a 64-byte little-endian string modulo L.
// Shorter inputs are zero-padded on the high end.
func (c *Ed25519Curve) ScalarFromUniformBytes(data []byte) (Scalar, error) {
	if len(data) < 32 || len(data) > 64 {
		return nil, decodingError("uniform input length %d, want 32..64", len(data))
	}

	uniformBytes := make([]byte, 64)
	copy(uniformBytes, data)
	defer ZeroizeBytes(uniformBytes)

	scalar, err := edwards25519.NewScalar().SetUniformBytes(uniformBytes)
	if err != nil {
		return nil, ErrDecoding.WithCause(err)
	}
	return NewEd25519Scalar(scalar), nil
}

func (c *Ed25519Curve) ScalarFromUint64(v uint64) Scalar {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[:8], v)
	// Any uint64 is far below L, so the canonical check cannot fail.
	scalar, _ := edwards25519.NewScalar().SetCanonicalBytes(buf[:])
	return NewEd25519Scalar(scalar)
}

func (c *Ed25519Curve) ScalarRandom(r io.Reader) (Scalar, error) {
	bytes, err := readRandom(r, 64) // 64 bytes for a uniform reduction
	if err != nil {
		return nil, err
	}
	defer ZeroizeBytes(bytes)

	scalar, err := edwards25519.NewScalar().SetUniformBytes(bytes)
	if err != nil {
		return nil, ErrRandomnessGeneration.WithCause(err)
	}
	return NewEd25519Scalar(scalar), nil
}

// NewEd25519Scalar creates a new Ed25519Scalar with automatic cleanup via finalizer
func NewEd25519Scalar(inner *edwards25519.Scalar) *Ed25519Scalar {
	s := &Ed25519Scalar{inner: inner}
	runtime.SetFinalizer(s, (*Ed25519Scalar).finalize)
	return s
}

// finalize is called by the garbage collector as backup cleanup
func (s *Ed25519Scalar) finalize() {
	if s.inner != nil {
		s.Zeroize()
	}
}

func (c *Ed25519Curve) ScalarZero() Scalar {
	return NewEd25519Scalar(edwards25519.NewScalar())
}

func (c *Ed25519Curve) ScalarOne() Scalar {
	return c.ScalarFromUint64(1)
}

// PointFromBytes decodes a canonical 32-byte point encoding. The identity
// and small-order points decode successfully; protocol boundaries reject
// them separately.
func (c *Ed25519Curve) PointFromBytes(data []byte) (Point, error) {
	if err := checkLength("point", data, 32); err != nil {
		return nil, err
	}

	point, err := new(edwards25519.Point).SetBytes(data)
	if err != nil {
		return nil, ErrDecoding.WithDetails("invalid ed25519 point").WithCause(err)
	}
	// SetBytes accepts non-canonical y coordinates; re-encoding exposes them.
	if !SecureCompare(point.Bytes(), data) {
		return nil, decodingError("non-canonical ed25519 point")
	}

	return &Ed25519Point{inner: point}, nil
}

func (c *Ed25519Curve) BasePoint() Point {
	return &Ed25519Point{inner: edwards25519.NewGeneratorPoint()}
}

func (c *Ed25519Curve) PointIdentity() Point {
	return &Ed25519Point{inner: edwards25519.NewIdentityPoint()}
}

// Ed25519Scalar implements the Scalar interface
type Ed25519Scalar struct {
	inner *edwards25519.Scalar
}

func (s *Ed25519Scalar) Bytes() []byte {
	return s.inner.Bytes()
}

func (s *Ed25519Scalar) String() string {
	return hex.EncodeToString(s.Bytes())
}

func (s *Ed25519Scalar) Add(other Scalar) Scalar {
	result := edwards25519.NewScalar()
	result.Add(s.inner, other.(*Ed25519Scalar).inner)
	return NewEd25519Scalar(result)
}

func (s *Ed25519Scalar) Sub(other Scalar) Scalar {
	result := edwards25519.NewScalar()
	result.Subtract(s.inner, other.(*Ed25519Scalar).inner)
	return NewEd25519Scalar(result)
}

func (s *Ed25519Scalar) Mul(other Scalar) Scalar {
	result := edwards25519.NewScalar()
	result.Multiply(s.inner, other.(*Ed25519Scalar).inner)
	return NewEd25519Scalar(result)
}

func (s *Ed25519Scalar) Negate() Scalar {
	result := edwards25519.NewScalar()
	result.Negate(s.inner)
	return NewEd25519Scalar(result)
}

func (s *Ed25519Scalar) Invert() (Scalar, error) {
	if s.IsZero() {
		return nil, ErrInvalidScalar.WithDetails("cannot invert zero")
	}

	result := edwards25519.NewScalar()
	result.Invert(s.inner)
	return NewEd25519Scalar(result), nil
}

func (s *Ed25519Scalar) Equal(other Scalar) bool {
	o, ok := other.(*Ed25519Scalar)
	return ok && s.inner.Equal(o.inner) == 1
}

func (s *Ed25519Scalar) IsZero() bool {
	return s.inner.Equal(edwards25519.NewScalar()) == 1
}

func (s *Ed25519Scalar) Zeroize() {
	s.inner.Set(edwards25519.NewScalar())
	runtime.SetFinalizer(s, nil)
}

// Ed25519Point implements the Point interface
type Ed25519Point struct {
	inner *edwards25519.Point
}

func (p *Ed25519Point) Bytes() []byte {
	return p.inner.Bytes()
}

func (p *Ed25519Point) String() string {
	return hex.EncodeToString(p.Bytes())
}

func (p *Ed25519Point) Add(other Point) Point {
	result := edwards25519.NewIdentityPoint()
	result.Add(p.inner, other.(*Ed25519Point).inner)
	return &Ed25519Point{inner: result}
}

func (p *Ed25519Point) Sub(other Point) Point {
	result := edwards25519.NewIdentityPoint()
	result.Subtract(p.inner, other.(*Ed25519Point).inner)
	return &Ed25519Point{inner: result}
}

func (p *Ed25519Point) Mul(scalar Scalar) Point {
	result := edwards25519.NewIdentityPoint()
	result.ScalarMult(scalar.(*Ed25519Scalar).inner, p.inner)
	return &Ed25519Point{inner: result}
}

func (p *Ed25519Point) Negate() Point {
	result := edwards25519.NewIdentityPoint()
	result.Negate(p.inner)
	return &Ed25519Point{inner: result}
}

func (p *Ed25519Point) Equal(other Point) bool {
	o, ok := other.(*Ed25519Point)
	return ok && p.inner.Equal(o.inner) == 1
}

func (p *Ed25519Point) IsIdentity() bool {
	return p.inner.Equal(edwards25519.NewIdentityPoint()) == 1
}

// IsValid checks [L]P == O. ScalarMult is an exact integer multiple, so
// [L-1]P + P only vanishes when P carries no torsion component.
func (p *Ed25519Point) IsValid() bool {
	minusOne := edwards25519.NewScalar().Negate(ed25519One())
	q := edwards25519.NewIdentityPoint().ScalarMult(minusOne, p.inner)
	q.Add(q, p.inner)
	return q.Equal(edwards25519.NewIdentityPoint()) == 1
}

func ed25519One() *edwards25519.Scalar {
	one, _ := edwards25519.NewScalar().SetCanonicalBytes([]byte{
		1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	})
	return one
}
