package frost

import (
	"io"
)

// ProofOfKnowledge is a Schnorr proof that the committer knows a_0 for the
// constant-term commitment C[0] = a_0·G. The challenge binds the prover's
// identifier, so a proof cannot be replayed under another participant.
type ProofOfKnowledge struct {
	R Point
	Z Scalar
}

// NewProofOfKnowledge proves knowledge of secret for id:
// R = k·G, c = HDKG(id || C[0] || R), z = k + secret·c.
func NewProofOfKnowledge(cs Ciphersuite, id Identifier, secret Scalar, commitment Point, rand io.Reader) (*ProofOfKnowledge, error) {
	curve := cs.Curve()
	nonce, err := curve.ScalarRandom(rand)
	if err != nil {
		return nil, err
	}
	defer nonce.Zeroize()

	r := curve.BasePoint().Mul(nonce)
	challenge := dkgChallenge(cs, id, commitment, r)

	return &ProofOfKnowledge{
		R: r,
		Z: nonce.Add(secret.Mul(challenge)),
	}, nil
}

// Verify checks R == z·G - c·C[0].
func (p *ProofOfKnowledge) Verify(cs Ciphersuite, id Identifier, commitment Point) bool {
	if p == nil || p.R == nil || p.Z == nil || commitment == nil {
		return false
	}
	curve := cs.Curve()
	challenge := dkgChallenge(cs, id, commitment, p.R)
	expected := curve.BasePoint().Mul(p.Z).Sub(commitment.Mul(challenge))
	return expected.Equal(p.R)
}

func dkgChallenge(cs Ciphersuite, id Identifier, commitment, r Point) Scalar {
	return cs.HDKG(appendAll(id[:], commitment.Bytes(), r.Bytes()))
}
