package frost

// VSSCommitment is a Feldman commitment to a polynomial: one group element
// per coefficient, lowest degree first.
type VSSCommitment struct {
	curve  Curve
	points []Point
}

// NewVSSCommitment validates and wraps coefficient commitments. Every
// element must lie in the prime-order subgroup.
func NewVSSCommitment(curve Curve, points []Point) (*VSSCommitment, error) {
	if curve == nil {
		return nil, ErrInvalidCommitment.WithDetails("curve cannot be nil")
	}
	if len(points) == 0 {
		return nil, ErrInvalidCommitment.WithDetails("commitment has no coefficients")
	}

	cp := make([]Point, len(points))
	for i, p := range points {
		if p == nil {
			return nil, ErrInvalidCommitment.WithDetails("coefficient commitment %d is nil", i)
		}
		if !p.IsValid() {
			return nil, ErrInvalidCommitment.WithDetails("coefficient commitment %d is outside the prime-order subgroup", i)
		}
		cp[i] = p
	}
	return &VSSCommitment{curve: curve, points: cp}, nil
}

// Len is the number of coefficients, i.e. the threshold t.
func (c *VSSCommitment) Len() int {
	return len(c.points)
}

// Points returns a copy of the coefficient commitments
func (c *VSSCommitment) Points() []Point {
	result := make([]Point, len(c.points))
	copy(result, c.points)
	return result
}

// ConstantTerm is a_0·G, the committer's contribution to the group key.
func (c *VSSCommitment) ConstantTerm() Point {
	return c.points[0]
}

// Evaluate computes Σ_k C_k·x^k with Horner's rule in the exponent.
func (c *VSSCommitment) Evaluate(x Scalar) Point {
	result := c.points[len(c.points)-1]
	for k := len(c.points) - 2; k >= 0; k-- {
		result = result.Mul(x).Add(c.points[k])
	}
	return result
}

// EvaluateAt is Evaluate at a participant identifier; for a summed group
// commitment this is the participant's public verification share.
func (c *VSSCommitment) EvaluateAt(id Identifier) (Point, error) {
	x, err := id.Scalar(c.curve)
	if err != nil {
		return nil, err
	}
	return c.Evaluate(x), nil
}

// Equal compares coefficient by coefficient.
func (c *VSSCommitment) Equal(other *VSSCommitment) bool {
	if c == nil || other == nil || len(c.points) != len(other.points) {
		return false
	}
	for i := range c.points {
		if !c.points[i].Equal(other.points[i]) {
			return false
		}
	}
	return true
}

// VerifyShare is the Feldman check share·G == Σ_k C_k·id^k. Every recipient
// runs it before accepting a share.
func VerifyShare(curve Curve, id Identifier, share Scalar, commitment *VSSCommitment) bool {
	if share == nil || commitment == nil || commitment.Len() == 0 {
		return false
	}
	expected, err := commitment.EvaluateAt(id)
	if err != nil {
		return false
	}
	return curve.BasePoint().Mul(share).Equal(expected)
}

// SumCommitments adds commitments coefficient-wise. The result commits to
// the sum of the underlying polynomials, whose constant term is the group
// public key.
func SumCommitments(commitments []*VSSCommitment) (*VSSCommitment, error) {
	if len(commitments) == 0 {
		return nil, ErrInvalidCommitment.WithDetails("no commitments to sum")
	}

	t := commitments[0].Len()
	curve := commitments[0].curve
	sum := make([]Point, t)
	for k := range sum {
		sum[k] = curve.PointIdentity()
	}

	for i, c := range commitments {
		if c == nil || c.Len() != t {
			return nil, ErrInvalidCommitment.WithDetails("commitment %d has mismatched length", i)
		}
		for k, p := range c.points {
			sum[k] = sum[k].Add(p)
		}
	}
	return &VSSCommitment{curve: curve, points: sum}, nil
}
