package frost

import (
	"encoding/hex"
	"io"
	"math/big"
	"runtime"

	"github.com/btcsuite/btcd/btcec/v2"
)

// secp256k1Order is n, the order of the secp256k1 group.
var secp256k1Order = new(big.Int).Set(btcec.S256().Params().N)

// Secp256k1Curve implements the Curve interface for secp256k1
type Secp256k1Curve struct{}

// NewSecp256k1Curve creates a new secp256k1 curve instance
func NewSecp256k1Curve() *Secp256k1Curve {
	return &Secp256k1Curve{}
}

func (c *Secp256k1Curve) Name() string       { return string(Secp256k1) }
func (c *Secp256k1Curve) ScalarSize() int    { return 32 }
func (c *Secp256k1Curve) PointSize() int     { return 33 } // SEC1 compressed
func (c *Secp256k1Curve) LittleEndian() bool { return false }

// ScalarFromBytes decodes a canonical 32-byte big-endian scalar; values
// >= n are rejected rather than reduced.
func (c *Secp256k1Curve) ScalarFromBytes(data []byte) (Scalar, error) {
	if err := checkLength("scalar", data, 32); err != nil {
		return nil, err
	}

	scalar := new(btcec.ModNScalar)
	if overflow := scalar.SetByteSlice(data); overflow {
		return nil, decodingError("secp256k1 scalar exceeds group order")
	}

	return newSecp256k1Scalar(scalar), nil
}

// ScalarFromUniformBytes interprets data as a big-endian integer and reduces
// it modulo n. Callers pass at least 48 bytes for a negligible bias.
func (c *Secp256k1Curve) ScalarFromUniformBytes(data []byte) (Scalar, error) {
	if len(data) < 32 {
		return nil, decodingError("uniform input length %d, want >= 32", len(data))
	}

	v := new(big.Int).SetBytes(data)
	v.Mod(v, secp256k1Order)

	var buf [32]byte
	v.FillBytes(buf[:])
	scalar := new(btcec.ModNScalar)
	scalar.SetBytes(&buf)
	ZeroizeBytes(buf[:])
	return newSecp256k1Scalar(scalar), nil
}

func (c *Secp256k1Curve) ScalarFromUint64(v uint64) Scalar {
	var buf [32]byte
	new(big.Int).SetUint64(v).FillBytes(buf[:])
	scalar := new(btcec.ModNScalar)
	scalar.SetBytes(&buf)
	return newSecp256k1Scalar(scalar)
}

func (c *Secp256k1Curve) ScalarRandom(r io.Reader) (Scalar, error) {
	// 48 bytes reduced mod n keeps the bias below 2^-128.
	bytes, err := readRandom(r, 48)
	if err != nil {
		return nil, err
	}
	defer ZeroizeBytes(bytes)
	return c.ScalarFromUniformBytes(bytes)
}

func (c *Secp256k1Curve) ScalarZero() Scalar {
	return newSecp256k1Scalar(new(btcec.ModNScalar))
}

func (c *Secp256k1Curve) ScalarOne() Scalar {
	scalar := new(btcec.ModNScalar)
	scalar.SetInt(1)
	return newSecp256k1Scalar(scalar)
}

// PointFromBytes decodes a 33-byte compressed SEC1 point. The identity has
// no SEC1 form and is encoded as 33 zero bytes.
func (c *Secp256k1Curve) PointFromBytes(data []byte) (Point, error) {
	if err := checkLength("point", data, 33); err != nil {
		return nil, err
	}
	if isAllZero(data) {
		return &Secp256k1Point{}, nil
	}
	if data[0] != 0x02 && data[0] != 0x03 {
		return nil, decodingError("secp256k1 point must be compressed")
	}

	pubKey, err := btcec.ParsePubKey(data)
	if err != nil {
		return nil, ErrDecoding.WithDetails("invalid secp256k1 point").WithCause(err)
	}

	return &Secp256k1Point{inner: pubKey}, nil
}

func (c *Secp256k1Curve) BasePoint() Point {
	return &Secp256k1Point{inner: btcec.Generator()}
}

func (c *Secp256k1Curve) PointIdentity() Point {
	return &Secp256k1Point{inner: nil}
}

// Secp256k1Scalar implements the Scalar interface
type Secp256k1Scalar struct {
	inner *btcec.ModNScalar
}

func newSecp256k1Scalar(inner *btcec.ModNScalar) *Secp256k1Scalar {
	s := &Secp256k1Scalar{inner: inner}
	runtime.SetFinalizer(s, (*Secp256k1Scalar).Zeroize)
	return s
}

func (s *Secp256k1Scalar) Bytes() []byte {
	var bytes [32]byte
	s.inner.PutBytes(&bytes)
	return bytes[:]
}

func (s *Secp256k1Scalar) String() string {
	return hex.EncodeToString(s.Bytes())
}

func (s *Secp256k1Scalar) Add(other Scalar) Scalar {
	result := new(btcec.ModNScalar)
	result.Add2(s.inner, other.(*Secp256k1Scalar).inner)
	return newSecp256k1Scalar(result)
}

func (s *Secp256k1Scalar) Sub(other Scalar) Scalar {
	neg := new(btcec.ModNScalar).Set(other.(*Secp256k1Scalar).inner)
	neg.Negate()
	result := new(btcec.ModNScalar)
	result.Add2(s.inner, neg)
	return newSecp256k1Scalar(result)
}

func (s *Secp256k1Scalar) Mul(other Scalar) Scalar {
	result := new(btcec.ModNScalar)
	result.Mul2(s.inner, other.(*Secp256k1Scalar).inner)
	return newSecp256k1Scalar(result)
}

func (s *Secp256k1Scalar) Negate() Scalar {
	result := new(btcec.ModNScalar).Set(s.inner)
	result.Negate()
	return newSecp256k1Scalar(result)
}

func (s *Secp256k1Scalar) Invert() (Scalar, error) {
	if s.IsZero() {
		return nil, ErrInvalidScalar.WithDetails("cannot invert zero")
	}

	// btcec/v2 only provides a variable-time inverse.
	result := new(btcec.ModNScalar).Set(s.inner)
	result.InverseNonConst()
	return newSecp256k1Scalar(result), nil
}

func (s *Secp256k1Scalar) Equal(other Scalar) bool {
	o, ok := other.(*Secp256k1Scalar)
	return ok && s.inner.Equals(o.inner)
}

func (s *Secp256k1Scalar) IsZero() bool {
	return s.inner.IsZero()
}

func (s *Secp256k1Scalar) Zeroize() {
	s.inner.Zero()
	runtime.SetFinalizer(s, nil)
}

// Secp256k1Point implements the Point interface. A nil inner key is the
// point at infinity.
type Secp256k1Point struct {
	inner *btcec.PublicKey
}

func (p *Secp256k1Point) Bytes() []byte {
	if p.inner == nil {
		return make([]byte, 33)
	}
	return p.inner.SerializeCompressed()
}

func (p *Secp256k1Point) String() string {
	return hex.EncodeToString(p.Bytes())
}

func fromJacobian(j *btcec.JacobianPoint) *Secp256k1Point {
	if (j.X.IsZero() && j.Y.IsZero()) || j.Z.IsZero() {
		return &Secp256k1Point{}
	}
	j.ToAffine()
	return &Secp256k1Point{inner: btcec.NewPublicKey(&j.X, &j.Y)}
}

func (p *Secp256k1Point) Add(other Point) Point {
	o := other.(*Secp256k1Point)
	if p.inner == nil {
		return o
	}
	if o.inner == nil {
		return p
	}

	var a, b, result btcec.JacobianPoint
	p.inner.AsJacobian(&a)
	o.inner.AsJacobian(&b)
	btcec.AddNonConst(&a, &b, &result)
	return fromJacobian(&result)
}

func (p *Secp256k1Point) Sub(other Point) Point {
	return p.Add(other.Negate())
}

func (p *Secp256k1Point) Mul(scalar Scalar) Point {
	if p.inner == nil {
		return p
	}

	var point, result btcec.JacobianPoint
	p.inner.AsJacobian(&point)
	btcec.ScalarMultNonConst(scalar.(*Secp256k1Scalar).inner, &point, &result)
	return fromJacobian(&result)
}

func (p *Secp256k1Point) Negate() Point {
	if p.inner == nil {
		return p
	}

	var jac btcec.JacobianPoint
	p.inner.AsJacobian(&jac)
	jac.Y.Negate(1).Normalize()
	return fromJacobian(&jac)
}

func (p *Secp256k1Point) Equal(other Point) bool {
	o, ok := other.(*Secp256k1Point)
	if !ok {
		return false
	}
	if p.inner == nil || o.inner == nil {
		return p.inner == nil && o.inner == nil
	}
	return p.inner.IsEqual(o.inner)
}

func (p *Secp256k1Point) IsIdentity() bool {
	return p.inner == nil
}

// IsValid always holds: secp256k1 has cofactor 1 and btcec validates the
// curve equation while parsing.
func (p *Secp256k1Point) IsValid() bool {
	return true
}

func isAllZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
