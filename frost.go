package frost

// Round1Package is broadcast by every participant in DKG round 1.
type Round1Package struct {
	Sender     Identifier
	Commitment *VSSCommitment
	Proof      *ProofOfKnowledge
}

// SecretShare is f_sender(recipient). It is delivered point-to-point and
// confidentially in DKG round 2 and erased once round 3 has consumed it.
type SecretShare struct {
	Sender    Identifier
	Recipient Identifier
	Value     Scalar
}

// Zeroize securely clears the share value
func (s *SecretShare) Zeroize() {
	if s != nil && s.Value != nil {
		s.Value.Zeroize()
	}
}

// KeyShare is a participant's long-term signing material. It is never
// transmitted.
type KeyShare struct {
	Ciphersuite    string
	Identifier     Identifier
	SecretShare    Scalar
	PublicKey      Point // SecretShare·G
	GroupPublicKey Point
	// GroupCommitment is the coefficient-wise sum of every participant's
	// VSS commitment; its constant term is GroupPublicKey.
	GroupCommitment *VSSCommitment
	Participants    []Identifier
	MinSigners      int
}

// Zeroize securely clears the secret share
func (ks *KeyShare) Zeroize() {
	if ks.SecretShare != nil {
		ks.SecretShare.Zeroize()
	}
}

// PublicKeyPackage derives the public material every verifier and
// aggregator needs from the key share.
func (ks *KeyShare) PublicKeyPackage() (*PublicKeyPackage, error) {
	return newPublicKeyPackage(ks.Ciphersuite, ks.GroupCommitment, ks.Participants, ks.MinSigners)
}

// PublicKeyPackage holds the group key and the verification share
// PK_i = Σ_j Σ_k C_j[k]·i^k of every participant.
type PublicKeyPackage struct {
	Ciphersuite           string
	GroupPublicKey        Point
	ParticipantPublicKeys map[Identifier]Point
	MinSigners            int
}

func newPublicKeyPackage(suite string, groupCommitment *VSSCommitment, participants []Identifier, minSigners int) (*PublicKeyPackage, error) {
	if groupCommitment == nil {
		return nil, ErrInvalidCommitment.WithDetails("missing group commitment")
	}
	keys := make(map[Identifier]Point, len(participants))
	for _, id := range participants {
		pk, err := groupCommitment.EvaluateAt(id)
		if err != nil {
			return nil, err
		}
		keys[id] = pk
	}
	return &PublicKeyPackage{
		Ciphersuite:           suite,
		GroupPublicKey:        groupCommitment.ConstantTerm(),
		ParticipantPublicKeys: keys,
		MinSigners:            minSigners,
	}, nil
}

// ParticipantPublicKey returns PK_id.
func (p *PublicKeyPackage) ParticipantPublicKey(id Identifier) (Point, error) {
	pk, ok := p.ParticipantPublicKeys[id]
	if !ok {
		return nil, ErrUnknownParticipant.WithCulprit(id)
	}
	return pk, nil
}

// Identifiers lists the participants in ascending order.
func (p *PublicKeyPackage) Identifiers(curve Curve) []Identifier {
	ids := make([]Identifier, 0, len(p.ParticipantPublicKeys))
	for id := range p.ParticipantPublicKeys {
		ids = append(ids, id)
	}
	SortIdentifiers(curve, ids)
	return ids
}

// SignatureShare is z_i, one signer's additive contribution.
type SignatureShare struct {
	Identifier Identifier
	Z          Scalar
}

// Signature represents a FROST threshold signature
type Signature struct {
	R Point  // Group commitment
	S Scalar // Σ z_i
}

// Bytes returns R || S. For Ed25519 this is the 64-byte RFC 8032 encoding.
func (s *Signature) Bytes() []byte {
	return appendAll(s.R.Bytes(), s.S.Bytes())
}
