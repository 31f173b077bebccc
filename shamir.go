package frost

import (
	"io"
)

// Share is a point (x, f(x)) on a sharing polynomial.
type Share struct {
	Identifier Identifier // x-coordinate
	Value      Scalar     // y-coordinate
}

// SplitSecret shares secret among ids with threshold t and returns the
// Feldman commitment to the sharing polynomial.
func SplitSecret(curve Curve, secret Scalar, t int, ids []Identifier, rand io.Reader) ([]*Share, *VSSCommitment, error) {
	if err := checkIdentifierSet(ids); err != nil {
		return nil, nil, err
	}
	if t < 1 || t > len(ids) {
		return nil, nil, ErrInvalidThreshold.WithDetails("threshold %d with %d shares", t, len(ids))
	}

	polynomial, err := newPolynomialWithConstant(curve, secret, t, rand)
	if err != nil {
		return nil, nil, err
	}
	defer polynomial.Zeroize()

	shares := make([]*Share, len(ids))
	for i, id := range ids {
		value, err := polynomial.EvaluateAt(id)
		if err != nil {
			return nil, nil, err
		}
		shares[i] = &Share{Identifier: id, Value: value}
	}
	return shares, polynomial.Commit(), nil
}

// LagrangeCoefficient returns λ_id = Π_{j≠id} x_j / (x_j - x_id), the weight
// of id's share when interpolating at zero over ids.
func LagrangeCoefficient(curve Curve, ids []Identifier, id Identifier) (Scalar, error) {
	coefficients, err := lagrangeCoefficients(curve, ids)
	if err != nil {
		return nil, err
	}
	lambda, ok := coefficients[id]
	if !ok {
		return nil, ErrUnknownParticipant.WithCulprit(id).WithDetails("not in interpolation set")
	}
	return lambda, nil
}

// lagrangeCoefficients computes every coefficient of the set at once,
// sharing one batched inversion across all denominators.
func lagrangeCoefficients(curve Curve, ids []Identifier) (map[Identifier]Scalar, error) {
	if err := checkIdentifierSet(ids); err != nil {
		return nil, err
	}

	xs := make([]Scalar, len(ids))
	for i, id := range ids {
		x, err := id.Scalar(curve)
		if err != nil {
			return nil, ErrInvalidIdentifier.WithCulprit(id).WithCause(err)
		}
		xs[i] = x
	}

	numerators := make([]Scalar, len(ids))
	denominators := make([]Scalar, len(ids))
	for i := range xs {
		num := curve.ScalarOne()
		den := curve.ScalarOne()
		for j := range xs {
			if i == j {
				continue
			}
			num = num.Mul(xs[j])
			den = den.Mul(xs[j].Sub(xs[i]))
		}
		numerators[i] = num
		denominators[i] = den
	}

	inverses, err := BatchInvert(denominators)
	if err != nil {
		return nil, err
	}

	result := make(map[Identifier]Scalar, len(ids))
	for i, id := range ids {
		result[id] = numerators[i].Mul(inverses[i])
	}
	return result, nil
}

// ReconstructSecret interpolates f(0) from the given shares. It exists for
// trusted-dealer tooling and tests; the signing protocol never calls it.
func ReconstructSecret(curve Curve, shares []*Share) (Scalar, error) {
	if len(shares) == 0 {
		return nil, ErrInsufficientSigners.WithDetails("no shares to reconstruct from")
	}

	ids := make([]Identifier, len(shares))
	for i, s := range shares {
		ids[i] = s.Identifier
	}
	coefficients, err := lagrangeCoefficients(curve, ids)
	if err != nil {
		return nil, err
	}

	secret := curve.ScalarZero()
	for _, s := range shares {
		secret = secret.Add(s.Value.Mul(coefficients[s.Identifier]))
	}
	return secret, nil
}

// checkIdentifierSet rejects empty sets, zero identifiers and duplicates.
func checkIdentifierSet(ids []Identifier) error {
	if len(ids) == 0 {
		return ErrInvalidIdentifier.WithDetails("identifier set is empty")
	}
	seen := make(map[Identifier]struct{}, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			return ErrInvalidIdentifier.WithDetails("identifier must be a nonzero scalar")
		}
		if _, dup := seen[id]; dup {
			return ErrDuplicateParticipant.WithCulprit(id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
