package frost

import (
	"io"
)

// Polynomial represents a polynomial over a scalar field. Coefficient 0 is
// the secret constant term.
type Polynomial struct {
	curve        Curve
	coefficients []Scalar
}

// NewRandomPolynomial creates a polynomial with t uniformly random
// coefficients, i.e. of degree t-1. A nil reader uses crypto/rand.
func NewRandomPolynomial(curve Curve, t int, rand io.Reader) (*Polynomial, error) {
	return newPolynomialWithConstant(curve, nil, t, rand)
}

// newPolynomialWithConstant fixes a_0 (trusted-dealer splitting) and draws
// the remaining coefficients at random.
func newPolynomialWithConstant(curve Curve, constant Scalar, t int, rand io.Reader) (*Polynomial, error) {
	if t < 1 {
		return nil, ErrInvalidThreshold.WithDetails("polynomial needs at least one coefficient, got %d", t)
	}

	coefficients := make([]Scalar, t)
	start := 0
	if constant != nil {
		coefficients[0] = curve.ScalarZero().Add(constant)
		start = 1
	}
	for i := start; i < t; i++ {
		coeff, err := curve.ScalarRandom(rand)
		if err != nil {
			ZeroizeScalarSlice(coefficients)
			return nil, err
		}
		coefficients[i] = coeff
	}

	return &Polynomial{curve: curve, coefficients: coefficients}, nil
}

// Evaluate evaluates the polynomial at x using Horner's method:
// f(x) = a0 + x(a1 + x(a2 + ...))
func (p *Polynomial) Evaluate(x Scalar) Scalar {
	result := p.curve.ScalarZero()
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		result = result.Mul(x).Add(p.coefficients[i])
	}
	return result
}

// EvaluateAt evaluates the polynomial at a participant identifier.
func (p *Polynomial) EvaluateAt(id Identifier) (Scalar, error) {
	x, err := id.Scalar(p.curve)
	if err != nil {
		return nil, err
	}
	return p.Evaluate(x), nil
}

// Commit maps every coefficient through the base point, giving the Feldman
// commitment [a_0·G .. a_{t-1}·G].
func (p *Polynomial) Commit() *VSSCommitment {
	points := make([]Point, len(p.coefficients))
	base := p.curve.BasePoint()
	for i, coeff := range p.coefficients {
		points[i] = base.Mul(coeff)
	}
	return &VSSCommitment{curve: p.curve, points: points}
}

// Constant returns a_0.
func (p *Polynomial) Constant() Scalar {
	return p.coefficients[0]
}

// Zeroize securely clears the polynomial coefficients
func (p *Polynomial) Zeroize() {
	ZeroizeScalarSlice(p.coefficients)
	for i := range p.coefficients {
		p.coefficients[i] = nil
	}
	p.coefficients = nil
}
