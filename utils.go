package frost

import (
	"crypto/subtle"
)

// SecureCompare performs constant-time comparison of byte slices
func SecureCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// ZeroizeBytes securely clears a byte slice
func ZeroizeBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// ZeroizeScalarSlice securely clears a slice of scalars
func ZeroizeScalarSlice(scalars []Scalar) {
	for _, scalar := range scalars {
		if scalar != nil {
			scalar.Zeroize()
		}
	}
}

// BatchInvert inverts multiple scalars with a single field inversion
// (Montgomery's trick).
func BatchInvert(scalars []Scalar) ([]Scalar, error) {
	n := len(scalars)
	if n == 0 {
		return nil, nil
	}

	for i, scalar := range scalars {
		if scalar.IsZero() {
			return nil, ErrInvalidScalar.WithDetails("scalar at index %d is zero", i)
		}
	}

	partials := make([]Scalar, n)
	partials[0] = scalars[0]
	for i := 1; i < n; i++ {
		partials[i] = partials[i-1].Mul(scalars[i])
	}

	inv, err := partials[n-1].Invert()
	if err != nil {
		return nil, err
	}

	inverses := make([]Scalar, n)
	for i := n - 1; i > 0; i-- {
		inverses[i] = inv.Mul(partials[i-1])
		inv = inv.Mul(scalars[i])
	}
	inverses[0] = inv

	return inverses, nil
}

// appendAll concatenates byte slices into a fresh buffer.
func appendAll(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
