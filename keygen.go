package frost

import (
	"io"
	"sync"
)

// DKGState is the position of a KeygenSession in the three-round protocol.
// Transitions only move forward.
type DKGState int

const (
	DKGStart DKGState = iota
	DKGRound1Done
	DKGRound2Done
	DKGFinalized
	DKGAborted
)

func (s DKGState) String() string {
	switch s {
	case DKGStart:
		return "start"
	case DKGRound1Done:
		return "round1_done"
	case DKGRound2Done:
		return "round2_done"
	case DKGFinalized:
		return "finalized"
	case DKGAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// KeygenSession runs the dealerless Feldman-VSS key generation for one
// participant. Each session is an independent context object; concurrent
// sessions never share state.
type KeygenSession struct {
	mu sync.Mutex

	cs           Ciphersuite
	self         Identifier
	participants []Identifier
	threshold    int
	sessionID    string
	rand         io.Reader
	audit        AuditEventHandler

	state DKGState

	// Secret state, erased on finalize or abort.
	polynomial *Polynomial
	ownShare   Scalar

	round1      *Round1Package
	commitments map[Identifier]*VSSCommitment
}

// KeygenOption configures a KeygenSession
type KeygenOption func(*KeygenSession)

// WithKeygenRandom overrides the randomness source (crypto/rand by default).
func WithKeygenRandom(r io.Reader) KeygenOption {
	return func(ks *KeygenSession) { ks.rand = r }
}

// WithKeygenAudit installs an audit handler.
func WithKeygenAudit(h AuditEventHandler) KeygenOption {
	return func(ks *KeygenSession) { ks.audit = h }
}

// WithKeygenSessionID tags audit events with a session id.
func WithKeygenSessionID(id string) KeygenOption {
	return func(ks *KeygenSession) { ks.sessionID = id }
}

// NewKeygenSession creates a DKG session for self among participants with
// signing threshold t. Identifier problems are reported here, at
// construction, rather than when a round runs.
func NewKeygenSession(cs Ciphersuite, self Identifier, participants []Identifier, threshold int, opts ...KeygenOption) (*KeygenSession, error) {
	if cs == nil {
		return nil, ErrUnsupportedCiphersuite.WithDetails("ciphersuite cannot be nil")
	}
	if err := checkIdentifierSet(participants); err != nil {
		return nil, err
	}
	curve := cs.Curve()
	for _, id := range participants {
		if _, err := id.Scalar(curve); err != nil {
			return nil, ErrInvalidIdentifier.WithCulprit(id).WithCause(err)
		}
	}
	if err := NewDefaultThresholdValidator().ValidateThresholdParameters(len(participants), threshold).Err(); err != nil {
		return nil, err
	}

	ids := append([]Identifier(nil), participants...)
	SortIdentifiers(curve, ids)

	ks := &KeygenSession{
		cs:           cs,
		self:         self,
		participants: ids,
		threshold:    threshold,
		audit:        &NullAuditHandler{},
		state:        DKGStart,
		commitments:  make(map[Identifier]*VSSCommitment, len(ids)),
	}
	if !ks.isMember(self) {
		return nil, ErrUnknownParticipant.WithCulprit(self).WithDetails("self is not in the participant list")
	}
	for _, opt := range opts {
		opt(ks)
	}
	return ks, nil
}

// Identifier returns this participant's identifier
func (ks *KeygenSession) Identifier() Identifier { return ks.self }

// Participants returns the sorted participant list
func (ks *KeygenSession) Participants() []Identifier {
	return append([]Identifier(nil), ks.participants...)
}

// Threshold returns t
func (ks *KeygenSession) Threshold() int { return ks.threshold }

// State returns the current protocol state
func (ks *KeygenSession) State() DKGState {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.state
}

// Round1 samples the polynomial, commits to it and proves knowledge of the
// constant term. The returned package is broadcast to every peer.
func (ks *KeygenSession) Round1() (*Round1Package, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if err := ks.expect(DKGStart); err != nil {
		return nil, err
	}

	polynomial, err := NewRandomPolynomial(ks.cs.Curve(), ks.threshold, ks.rand)
	if err != nil {
		return nil, err
	}
	commitment := polynomial.Commit()

	proof, err := NewProofOfKnowledge(ks.cs, ks.self, polynomial.Constant(), commitment.ConstantTerm(), ks.rand)
	if err != nil {
		polynomial.Zeroize()
		return nil, err
	}

	ks.polynomial = polynomial
	ks.round1 = &Round1Package{Sender: ks.self, Commitment: commitment, Proof: proof}
	ks.state = DKGRound1Done
	ks.emitRound(1)
	return ks.round1, nil
}

// Round2 verifies every peer's proof of knowledge and evaluates the local
// polynomial at each peer, returning one share per recipient. The shares
// must travel point-to-point and confidentially.
func (ks *KeygenSession) Round2(packages []*Round1Package) (map[Identifier]*SecretShare, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if err := ks.expect(DKGRound1Done); err != nil {
		return nil, err
	}

	bySender, err := ks.collect(len(packages), func(i int) (Identifier, bool) {
		if packages[i] == nil {
			return Identifier{}, false
		}
		return packages[i].Sender, true
	})
	if err != nil {
		return nil, ks.fail(2, err)
	}

	for _, i := range bySender {
		pkg := packages[i]
		if pkg.Commitment == nil || pkg.Commitment.Len() != ks.threshold {
			return nil, ks.fail(2, ErrInvalidProof.WithCulprit(pkg.Sender).
				WithDetails("commitment must have %d coefficients", ks.threshold))
		}
		if !pkg.Proof.Verify(ks.cs, pkg.Sender, pkg.Commitment.ConstantTerm()) {
			return nil, ks.fail(2, ErrInvalidProof.WithCulprit(pkg.Sender))
		}
	}

	shares := make(map[Identifier]*SecretShare, len(bySender))
	for sender, i := range bySender {
		ks.commitments[sender] = packages[i].Commitment
		value, err := ks.polynomial.EvaluateAt(sender)
		if err != nil {
			return nil, ks.fail(2, err)
		}
		shares[sender] = &SecretShare{Sender: ks.self, Recipient: sender, Value: value}
	}

	// Only f_self(self) is needed from here on; the coefficients go.
	ownShare, err := ks.polynomial.EvaluateAt(ks.self)
	if err != nil {
		return nil, ks.fail(2, err)
	}
	ks.ownShare = ownShare
	ks.polynomial.Zeroize()
	ks.polynomial = nil

	ks.state = DKGRound2Done
	ks.emitRound(2)
	return shares, nil
}

// Round3 runs the Feldman check on every received share, then derives the
// long-term key share, the group public key and all participant public
// keys. All session secrets are erased before returning.
func (ks *KeygenSession) Round3(shares []*SecretShare) (*KeyShare, *PublicKeyPackage, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if err := ks.expect(DKGRound2Done); err != nil {
		return nil, nil, err
	}

	bySender, err := ks.collect(len(shares), func(i int) (Identifier, bool) {
		if shares[i] == nil {
			return Identifier{}, false
		}
		return shares[i].Sender, true
	})
	if err != nil {
		return nil, nil, ks.fail(3, err)
	}

	curve := ks.cs.Curve()
	for sender, i := range bySender {
		share := shares[i]
		if share.Recipient != ks.self {
			return nil, nil, ks.fail(3, ErrInvalidShare.WithCulprit(sender).
				WithDetails("share addressed to %s", share.Recipient))
		}
		if !VerifyShare(curve, ks.self, share.Value, ks.commitments[sender]) {
			return nil, nil, ks.fail(3, ErrInvalidShare.WithCulprit(sender))
		}
	}

	secret := curve.ScalarZero().Add(ks.ownShare)
	for _, i := range bySender {
		secret = secret.Add(shares[i].Value)
	}

	all := make([]*VSSCommitment, 0, len(ks.participants))
	all = append(all, ks.round1.Commitment)
	for _, id := range ks.participants {
		if id != ks.self {
			all = append(all, ks.commitments[id])
		}
	}
	groupCommitment, err := SumCommitments(all)
	if err != nil {
		secret.Zeroize()
		return nil, nil, ks.fail(3, err)
	}

	keyShare := &KeyShare{
		Ciphersuite:     ks.cs.ID(),
		Identifier:      ks.self,
		SecretShare:     secret,
		PublicKey:       curve.BasePoint().Mul(secret),
		GroupPublicKey:  groupCommitment.ConstantTerm(),
		GroupCommitment: groupCommitment,
		Participants:    ks.Participants(),
		MinSigners:      ks.threshold,
	}
	pub, err := keyShare.PublicKeyPackage()
	if err != nil {
		keyShare.Zeroize()
		return nil, nil, ks.fail(3, err)
	}
	if !pub.ParticipantPublicKeys[ks.self].Equal(keyShare.PublicKey) {
		keyShare.Zeroize()
		return nil, nil, ks.fail(3, ErrInvalidShare.WithDetails("derived key share does not match the group commitment"))
	}

	for _, i := range bySender {
		shares[i].Zeroize()
	}
	ks.erase()
	ks.state = DKGFinalized
	ks.audit.OnKeygenEvent(NewAuditEventBuilder(AuditEventKeygenComplete).
		WithSession(ks.sessionID, ks.cs.ID()).
		WithParticipant(ks.self, 3).
		WithThreshold(ks.threshold, len(ks.participants)).
		WithMetadata("group_public_key", keyShare.GroupPublicKey.String()).
		Build())
	return keyShare, pub, nil
}

// Abort discards all secret state. The session cannot be resumed; recovery
// means starting a new session from DKGStart.
func (ks *KeygenSession) Abort() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.state != DKGFinalized {
		ks.erase()
		ks.state = DKGAborted
	}
}

func (ks *KeygenSession) expect(want DKGState) error {
	if ks.state == want {
		return nil
	}
	if ks.state == DKGAborted {
		return ErrSessionAborted
	}
	return ErrWrongState.WithDetails("dkg is in state %s, want %s", ks.state, want)
}

// collect indexes round inputs by sender. Unknown, self-addressed and
// repeated senders are protocol errors; a short input is IncompleteRound.
func (ks *KeygenSession) collect(n int, sender func(int) (Identifier, bool)) (map[Identifier]int, error) {
	want := len(ks.participants) - 1
	bySender := make(map[Identifier]int, n)
	for i := 0; i < n; i++ {
		id, ok := sender(i)
		if !ok {
			continue
		}
		if id.IsZero() {
			return nil, ErrInvalidIdentifier.WithDetails("sender identifier is zero")
		}
		if id == ks.self {
			return nil, ErrDuplicateParticipant.WithCulprit(id).WithDetails("input contains this participant's own identifier")
		}
		if !ks.isMember(id) {
			return nil, ErrUnknownParticipant.WithCulprit(id)
		}
		if _, dup := bySender[id]; dup {
			return nil, ErrDuplicateParticipant.WithCulprit(id)
		}
		bySender[id] = i
	}
	if len(bySender) != want {
		return nil, ErrIncompleteRound.WithDetails("have %d of %d peer inputs", len(bySender), want)
	}
	return bySender, nil
}

// fail aborts the session on protocol errors. State errors such as an
// incomplete round leave the session untouched so the caller can retry.
func (ks *KeygenSession) fail(round int, err error) error {
	if IsErrorCategory(err, ErrorCategoryState) {
		return err
	}
	ks.erase()
	ks.state = DKGAborted
	ks.audit.OnFailure(NewAuditEventBuilder(AuditEventProtocolAbort).
		WithSession(ks.sessionID, ks.cs.ID()).
		WithParticipant(ks.self, round).
		WithError(err).
		Build())
	return err
}

func (ks *KeygenSession) erase() {
	if ks.polynomial != nil {
		ks.polynomial.Zeroize()
		ks.polynomial = nil
	}
	if ks.ownShare != nil {
		ks.ownShare.Zeroize()
		ks.ownShare = nil
	}
}

func (ks *KeygenSession) emitRound(round int) {
	ks.audit.OnKeygenEvent(NewAuditEventBuilder(AuditEventKeygenRound).
		WithSession(ks.sessionID, ks.cs.ID()).
		WithParticipant(ks.self, round).
		WithThreshold(ks.threshold, len(ks.participants)).
		Build())
}

func (ks *KeygenSession) isMember(id Identifier) bool {
	for _, p := range ks.participants {
		if p == id {
			return true
		}
	}
	return false
}
