package frost

import (
	"encoding/hex"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
)

// bjjOrder is the order of the Baby Jubjub prime-order subgroup, distinct
// from the BN254 scalar field the coordinates live in.
var bjjOrder *big.Int

func init() {
	params := twistededwards.GetEdwardsCurve()
	bjjOrder = new(big.Int).Set(&params.Order)
}

// BabyJubjubCurve implements Curve over the Baby Jubjub twisted Edwards
// curve embedded in BN254, for circuits that verify signatures in-SNARK.
type BabyJubjubCurve struct{}

// NewBabyJubjubCurve creates a new Baby Jubjub curve instance
func NewBabyJubjubCurve() *BabyJubjubCurve {
	return &BabyJubjubCurve{}
}

func (c *BabyJubjubCurve) Name() string       { return string(BabyJubjub) }
func (c *BabyJubjubCurve) ScalarSize() int    { return 32 }
func (c *BabyJubjubCurve) PointSize() int     { return 32 }
func (c *BabyJubjubCurve) LittleEndian() bool { return false }

func (c *BabyJubjubCurve) ScalarFromBytes(data []byte) (Scalar, error) {
	if err := checkLength("scalar", data, 32); err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(data)
	if v.Cmp(bjjOrder) >= 0 {
		return nil, decodingError("baby jubjub scalar exceeds subgroup order")
	}
	return &BabyJubjubScalar{inner: v}, nil
}

func (c *BabyJubjubCurve) ScalarFromUniformBytes(data []byte) (Scalar, error) {
	if len(data) < 32 {
		return nil, decodingError("uniform input length %d, want >= 32", len(data))
	}
	v := new(big.Int).SetBytes(data)
	return &BabyJubjubScalar{inner: v.Mod(v, bjjOrder)}, nil
}

func (c *BabyJubjubCurve) ScalarFromUint64(v uint64) Scalar {
	s := new(big.Int).SetUint64(v)
	return &BabyJubjubScalar{inner: s.Mod(s, bjjOrder)}
}

func (c *BabyJubjubCurve) ScalarRandom(r io.Reader) (Scalar, error) {
	bytes, err := readRandom(r, 48)
	if err != nil {
		return nil, err
	}
	defer ZeroizeBytes(bytes)
	return c.ScalarFromUniformBytes(bytes)
}

func (c *BabyJubjubCurve) ScalarZero() Scalar {
	return &BabyJubjubScalar{inner: new(big.Int)}
}

func (c *BabyJubjubCurve) ScalarOne() Scalar {
	return &BabyJubjubScalar{inner: big.NewInt(1)}
}

func (c *BabyJubjubCurve) PointFromBytes(data []byte) (Point, error) {
	if err := checkLength("point", data, 32); err != nil {
		return nil, err
	}
	var p twistededwards.PointAffine
	if _, err := p.SetBytes(data); err != nil {
		return nil, ErrDecoding.WithDetails("invalid baby jubjub point").WithCause(err)
	}
	enc := p.Bytes()
	if !SecureCompare(enc[:], data) {
		return nil, decodingError("non-canonical baby jubjub point")
	}
	if !p.IsOnCurve() {
		return nil, decodingError("baby jubjub point not on curve")
	}
	return &BabyJubjubPoint{inner: p}, nil
}

func (c *BabyJubjubCurve) BasePoint() Point {
	return &BabyJubjubPoint{inner: twistededwards.GetEdwardsCurve().Base}
}

func (c *BabyJubjubCurve) PointIdentity() Point {
	var p BabyJubjubPoint
	p.inner.X.SetZero()
	p.inner.Y.SetOne()
	return &p
}

// BabyJubjubScalar is a big.Int kept reduced modulo the subgroup order.
type BabyJubjubScalar struct {
	inner *big.Int
}

func (s *BabyJubjubScalar) Bytes() []byte {
	out := make([]byte, 32)
	s.inner.FillBytes(out)
	return out
}

func (s *BabyJubjubScalar) String() string {
	return hex.EncodeToString(s.Bytes())
}

func (s *BabyJubjubScalar) reduced(v *big.Int) Scalar {
	return &BabyJubjubScalar{inner: v.Mod(v, bjjOrder)}
}

func (s *BabyJubjubScalar) Add(other Scalar) Scalar {
	return s.reduced(new(big.Int).Add(s.inner, other.(*BabyJubjubScalar).inner))
}

func (s *BabyJubjubScalar) Sub(other Scalar) Scalar {
	return s.reduced(new(big.Int).Sub(s.inner, other.(*BabyJubjubScalar).inner))
}

func (s *BabyJubjubScalar) Mul(other Scalar) Scalar {
	return s.reduced(new(big.Int).Mul(s.inner, other.(*BabyJubjubScalar).inner))
}

func (s *BabyJubjubScalar) Negate() Scalar {
	return s.reduced(new(big.Int).Neg(s.inner))
}

func (s *BabyJubjubScalar) Invert() (Scalar, error) {
	if s.IsZero() {
		return nil, ErrInvalidScalar.WithDetails("cannot invert zero")
	}
	return &BabyJubjubScalar{inner: new(big.Int).ModInverse(s.inner, bjjOrder)}, nil
}

func (s *BabyJubjubScalar) Equal(other Scalar) bool {
	o, ok := other.(*BabyJubjubScalar)
	return ok && s.inner.Cmp(o.inner) == 0
}

func (s *BabyJubjubScalar) IsZero() bool {
	return s.inner.Sign() == 0
}

// Zeroize clears the limbs in place; big.Int offers no stronger guarantee.
func (s *BabyJubjubScalar) Zeroize() {
	words := s.inner.Bits()
	for i := range words {
		words[i] = 0
	}
	s.inner.SetInt64(0)
}

// BabyJubjubPoint wraps an affine twisted Edwards point; (0, 1) is the identity.
type BabyJubjubPoint struct {
	inner twistededwards.PointAffine
}

func (p *BabyJubjubPoint) Bytes() []byte {
	b := p.inner.Bytes()
	return b[:]
}

func (p *BabyJubjubPoint) String() string {
	return hex.EncodeToString(p.Bytes())
}

func (p *BabyJubjubPoint) Add(other Point) Point {
	var r BabyJubjubPoint
	r.inner.Add(&p.inner, &other.(*BabyJubjubPoint).inner)
	return &r
}

func (p *BabyJubjubPoint) Sub(other Point) Point {
	var neg twistededwards.PointAffine
	neg.Neg(&other.(*BabyJubjubPoint).inner)
	var r BabyJubjubPoint
	r.inner.Add(&p.inner, &neg)
	return &r
}

func (p *BabyJubjubPoint) Mul(scalar Scalar) Point {
	var r BabyJubjubPoint
	r.inner.ScalarMultiplication(&p.inner, scalar.(*BabyJubjubScalar).inner)
	return &r
}

func (p *BabyJubjubPoint) Negate() Point {
	var r BabyJubjubPoint
	r.inner.Neg(&p.inner)
	return &r
}

func (p *BabyJubjubPoint) Equal(other Point) bool {
	o, ok := other.(*BabyJubjubPoint)
	return ok && p.inner.Equal(&o.inner)
}

func (p *BabyJubjubPoint) IsIdentity() bool {
	return p.inner.IsZero()
}

func (p *BabyJubjubPoint) IsValid() bool {
	if !p.inner.IsOnCurve() {
		return false
	}
	var q twistededwards.PointAffine
	q.ScalarMultiplication(&p.inner, bjjOrder)
	return q.IsZero()
}
