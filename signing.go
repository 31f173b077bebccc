package frost

import (
	"bytes"
	"errors"
	"sort"
	"sync"
)

// SigningPackage binds the message to the commitments of every signer in
// the session. Commitments are kept sorted by identifier.
type SigningPackage struct {
	Ciphersuite string
	Message     []byte
	Commitments []*SigningCommitment
}

// NewSigningPackage validates and sorts the round-1 commitments. Fewer than
// minSigners commitments fail with InsufficientSigners before any signature
// share can be computed.
func NewSigningPackage(cs Ciphersuite, minSigners int, message []byte, commitments []*SigningCommitment) (*SigningPackage, error) {
	if len(commitments) < minSigners {
		return nil, ErrInsufficientSigners.WithDetails("need %d commitments, got %d", minSigners, len(commitments))
	}

	curve := cs.Curve()
	seen := make(map[Identifier]struct{}, len(commitments))
	sorted := make([]*SigningCommitment, 0, len(commitments))
	for _, c := range commitments {
		if c == nil {
			return nil, ErrInvalidCommitment.WithDetails("nil commitment")
		}
		if c.Identifier.IsZero() {
			return nil, ErrInvalidIdentifier.WithDetails("commitment from zero identifier")
		}
		if _, dup := seen[c.Identifier]; dup {
			return nil, ErrDuplicateParticipant.WithCulprit(c.Identifier)
		}
		seen[c.Identifier] = struct{}{}
		if c.Hiding == nil || c.Binding == nil || c.Hiding.IsIdentity() || c.Binding.IsIdentity() {
			return nil, ErrInvalidCommitment.WithCulprit(c.Identifier).WithDetails("nonce commitment is the identity")
		}
		sorted = append(sorted, c)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return compareIdentifiers(curve, sorted[i].Identifier, sorted[j].Identifier) < 0
	})

	return &SigningPackage{
		Ciphersuite: cs.ID(),
		Message:     append([]byte(nil), message...),
		Commitments: sorted,
	}, nil
}

// Signers returns the identifiers of the package in ascending order.
func (p *SigningPackage) Signers() []Identifier {
	ids := make([]Identifier, len(p.Commitments))
	for i, c := range p.Commitments {
		ids[i] = c.Identifier
	}
	return ids
}

// Commitment returns the commitment published by id.
func (p *SigningPackage) Commitment(id Identifier) (*SigningCommitment, bool) {
	for _, c := range p.Commitments {
		if c.Identifier == id {
			return c, true
		}
	}
	return nil, false
}

func (p *SigningPackage) encodeCommitmentList() []byte {
	var buf bytes.Buffer
	for _, c := range p.Commitments {
		buf.Write(c.Identifier[:])
		buf.Write(c.Hiding.Bytes())
		buf.Write(c.Binding.Bytes())
	}
	return buf.Bytes()
}

// BindingFactors computes ρ_i = H1(Y || H4(msg) || H5(commitment list) || id_i)
// for every signer in the package.
func BindingFactors(cs Ciphersuite, pkg *SigningPackage, groupPublicKey Point) map[Identifier]Scalar {
	prefix := appendAll(
		groupPublicKey.Bytes(),
		cs.H4(pkg.Message),
		cs.H5(pkg.encodeCommitmentList()),
	)
	factors := make(map[Identifier]Scalar, len(pkg.Commitments))
	for _, c := range pkg.Commitments {
		factors[c.Identifier] = cs.H1(appendAll(prefix, c.Identifier[:]))
	}
	return factors
}

// GroupCommitment computes R = Σ (D_i + ρ_i·E_i).
func GroupCommitment(cs Ciphersuite, pkg *SigningPackage, bindingFactors map[Identifier]Scalar) Point {
	R := cs.Curve().PointIdentity()
	for _, c := range pkg.Commitments {
		R = R.Add(c.Hiding).Add(c.Binding.Mul(bindingFactors[c.Identifier]))
	}
	return R
}

// signingContext carries the values every signer and the aggregator derive
// identically from a package.
type signingContext struct {
	factors   map[Identifier]Scalar
	R         Point
	challenge Scalar
	lambdas   map[Identifier]Scalar
}

func newSigningContext(cs Ciphersuite, pkg *SigningPackage, groupPublicKey Point) (*signingContext, error) {
	if pkg.Ciphersuite != cs.ID() {
		return nil, ErrConfigurationMismatch.WithDetails("package is for %s, not %s", pkg.Ciphersuite, cs.ID())
	}
	lambdas, err := lagrangeCoefficients(cs.Curve(), pkg.Signers())
	if err != nil {
		return nil, err
	}
	factors := BindingFactors(cs, pkg, groupPublicKey)
	R := GroupCommitment(cs, pkg, factors)
	return &signingContext{
		factors:   factors,
		R:         R,
		challenge: computeChallenge(cs, R, groupPublicKey, pkg.Message),
		lambdas:   lambdas,
	}, nil
}

// Sign computes z_i = d_i + ρ_i·e_i + λ_i·sk_i·c. The nonces are consumed
// atomically with their use: a second Sign with the same pair fails with
// NonceReuse and produces nothing.
func Sign(cs Ciphersuite, pkg *SigningPackage, nonces *SigningNonces, keyShare *KeyShare) (*SignatureShare, error) {
	if keyShare == nil || keyShare.SecretShare == nil {
		return nil, ErrInvalidScalar.WithDetails("missing key share")
	}
	if keyShare.Ciphersuite != cs.ID() {
		return nil, ErrConfigurationMismatch.WithDetails("key share is for %s, not %s", keyShare.Ciphersuite, cs.ID())
	}
	if nonces == nil || nonces.commitment == nil {
		return nil, ErrInvalidCommitment.WithDetails("missing signing nonces")
	}

	self := keyShare.Identifier
	published, ok := pkg.Commitment(self)
	if !ok {
		return nil, ErrUnknownParticipant.WithCulprit(self).WithDetails("signer is not in the signing package")
	}
	if !published.Hiding.Equal(nonces.commitment.Hiding) || !published.Binding.Equal(nonces.commitment.Binding) {
		return nil, ErrInvalidCommitment.WithCulprit(self).WithDetails("nonces do not match the published commitment")
	}

	ctx, err := newSigningContext(cs, pkg, keyShare.GroupPublicKey)
	if err != nil {
		return nil, err
	}

	if err := nonces.consume(); err != nil {
		return nil, err
	}
	defer nonces.Zeroize()

	z := nonces.Hiding.
		Add(nonces.Binding.Mul(ctx.factors[self])).
		Add(ctx.lambdas[self].Mul(keyShare.SecretShare).Mul(ctx.challenge))
	return &SignatureShare{Identifier: self, Z: z}, nil
}

// VerifySignatureShare checks z_i·G == D_i + ρ_i·E_i + (c·λ_i)·PK_i.
func VerifySignatureShare(cs Ciphersuite, pkg *SigningPackage, share *SignatureShare, pub *PublicKeyPackage) error {
	ctx, err := newSigningContext(cs, pkg, pub.GroupPublicKey)
	if err != nil {
		return err
	}
	return ctx.verifyShare(cs, pkg, share, pub)
}

func (ctx *signingContext) verifyShare(cs Ciphersuite, pkg *SigningPackage, share *SignatureShare, pub *PublicKeyPackage) error {
	if share == nil || share.Z == nil {
		return ErrInvalidSignatureShare.WithDetails("missing share")
	}
	id := share.Identifier
	commitment, ok := pkg.Commitment(id)
	if !ok {
		return ErrUnknownParticipant.WithCulprit(id).WithDetails("share from a non-signer")
	}
	pk, err := pub.ParticipantPublicKey(id)
	if err != nil {
		return err
	}

	lhs := cs.Curve().BasePoint().Mul(share.Z)
	rhs := commitment.Hiding.
		Add(commitment.Binding.Mul(ctx.factors[id])).
		Add(pk.Mul(ctx.challenge.Mul(ctx.lambdas[id])))
	if !lhs.Equal(rhs) {
		return ErrInvalidSignatureShare.WithCulprit(id)
	}
	return nil
}

// Aggregate verifies every share against its signer's public key and sums
// them into the final signature (R, Σ z_i). A bad share names its signer.
func Aggregate(cs Ciphersuite, pkg *SigningPackage, shares []*SignatureShare, pub *PublicKeyPackage) (*Signature, error) {
	if pub == nil {
		return nil, ErrConfigurationMismatch.WithDetails("missing public key package")
	}
	if pub.Ciphersuite != cs.ID() {
		return nil, ErrConfigurationMismatch.WithDetails("public keys are for %s, not %s", pub.Ciphersuite, cs.ID())
	}
	ctx, err := newSigningContext(cs, pkg, pub.GroupPublicKey)
	if err != nil {
		return nil, err
	}

	seen := make(map[Identifier]struct{}, len(shares))
	for _, share := range shares {
		if share == nil {
			continue
		}
		if _, dup := seen[share.Identifier]; dup {
			return nil, ErrDuplicateParticipant.WithCulprit(share.Identifier)
		}
		seen[share.Identifier] = struct{}{}
	}
	if len(seen) != len(pkg.Commitments) {
		return nil, ErrIncompleteRound.WithDetails("have %d of %d signature shares", len(seen), len(pkg.Commitments))
	}

	S := cs.Curve().ScalarZero()
	for _, share := range shares {
		if share == nil {
			continue
		}
		if err := ctx.verifyShare(cs, pkg, share, pub); err != nil {
			return nil, err
		}
		S = S.Add(share.Z)
	}
	return &Signature{R: ctx.R, S: S}, nil
}

// Verify is the single-signer Schnorr check S·G == R + c·Y. It needs no
// knowledge of the threshold setup.
func Verify(cs Ciphersuite, groupPublicKey Point, message []byte, sig *Signature) error {
	if sig == nil || sig.R == nil || sig.S == nil || groupPublicKey == nil {
		return ErrInvalidSignature.WithDetails("missing signature component")
	}
	c := computeChallenge(cs, sig.R, groupPublicKey, message)
	lhs := cs.Curve().BasePoint().Mul(sig.S)
	rhs := sig.R.Add(groupPublicKey.Mul(c))
	if !lhs.Equal(rhs) {
		return ErrInvalidSignature
	}
	return nil
}

// SigningState is the position of a SigningSession.
type SigningState int

const (
	SigningIdle SigningState = iota
	SigningNoncesCommitted
	SigningSharesCollected
	SigningAggregated
	SigningAborted
)

func (s SigningState) String() string {
	switch s {
	case SigningIdle:
		return "idle"
	case SigningNoncesCommitted:
		return "nonces_committed"
	case SigningSharesCollected:
		return "shares_collected"
	case SigningAggregated:
		return "aggregated"
	case SigningAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// SigningSession is the coordinator's view of one signing session: it binds
// the collected commitments, gathers and checks signature shares and
// produces the final signature.
type SigningSession struct {
	mu sync.Mutex

	cs        Ciphersuite
	pub       *PublicKeyPackage
	message   []byte
	sessionID string
	audit     AuditEventHandler

	state  SigningState
	pkg    *SigningPackage
	ctx    *signingContext
	shares map[Identifier]*SignatureShare
	sig    *Signature
}

// SigningOption configures a SigningSession
type SigningOption func(*SigningSession)

// WithSigningAudit installs an audit handler.
func WithSigningAudit(h AuditEventHandler) SigningOption {
	return func(s *SigningSession) { s.audit = h }
}

// WithSigningSessionID tags audit events with a session id.
func WithSigningSessionID(id string) SigningOption {
	return func(s *SigningSession) { s.sessionID = id }
}

// NewSigningSession starts a session for message under pub.
func NewSigningSession(cs Ciphersuite, pub *PublicKeyPackage, message []byte, opts ...SigningOption) (*SigningSession, error) {
	if pub == nil || pub.GroupPublicKey == nil {
		return nil, ErrConfigurationMismatch.WithDetails("missing public key package")
	}
	if pub.Ciphersuite != cs.ID() {
		return nil, ErrConfigurationMismatch.WithDetails("public keys are for %s, not %s", pub.Ciphersuite, cs.ID())
	}
	s := &SigningSession{
		cs:      cs,
		pub:     pub,
		message: append([]byte(nil), message...),
		audit:   &NullAuditHandler{},
		state:   SigningIdle,
		shares:  make(map[Identifier]*SignatureShare),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current session state
func (s *SigningSession) State() SigningState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Package returns the bound signing package, nil before Commit.
func (s *SigningSession) Package() *SigningPackage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pkg
}

// Commit binds the collected round-1 commitments into the signing package
// that is sent to every signer. Too few commitments leave the session idle
// so more can be gathered.
func (s *SigningSession) Commit(commitments []*SigningCommitment) (*SigningPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(SigningIdle); err != nil {
		return nil, err
	}
	for _, c := range commitments {
		if c == nil {
			continue
		}
		if _, ok := s.pub.ParticipantPublicKeys[c.Identifier]; !ok {
			return nil, s.fail(ErrUnknownParticipant.WithCulprit(c.Identifier))
		}
	}
	pkg, err := NewSigningPackage(s.cs, s.pub.MinSigners, s.message, commitments)
	if err != nil {
		if IsErrorCategory(err, ErrorCategoryProtocol) && !errors.Is(err, ErrInsufficientSigners) {
			return nil, s.fail(err)
		}
		return nil, err
	}
	ctx, err := newSigningContext(s.cs, pkg, s.pub.GroupPublicKey)
	if err != nil {
		return nil, s.fail(err)
	}

	s.pkg = pkg
	s.ctx = ctx
	s.state = SigningNoncesCommitted
	s.audit.OnSigningEvent(NewAuditEventBuilder(AuditEventSigningCommit).
		WithSession(s.sessionID, s.cs.ID()).
		WithThreshold(s.pub.MinSigners, len(pkg.Commitments)).
		Build())
	return pkg, nil
}

// Sign produces this process's own share inside the session. NonceReuse
// aborts the whole session.
func (s *SigningSession) Sign(nonces *SigningNonces, keyShare *KeyShare) (*SignatureShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(SigningNoncesCommitted); err != nil {
		return nil, err
	}
	share, err := Sign(s.cs, s.pkg, nonces, keyShare)
	if err != nil {
		if errors.Is(err, ErrNonceReuse) {
			s.audit.OnFailure(NewAuditEventBuilder(AuditEventNonceReuse).
				WithSession(s.sessionID, s.cs.ID()).
				WithError(err).
				Build())
			s.abort()
		}
		return nil, err
	}
	return share, nil
}

// AddShare verifies one signature share. An invalid share aborts the
// session and names its signer; once every signer has contributed the
// session moves to SigningSharesCollected.
func (s *SigningSession) AddShare(share *SignatureShare) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(SigningNoncesCommitted); err != nil {
		return err
	}
	if share == nil {
		return ErrInvalidSignatureShare.WithDetails("missing share")
	}
	if _, dup := s.shares[share.Identifier]; dup {
		return s.fail(ErrDuplicateParticipant.WithCulprit(share.Identifier))
	}
	if err := s.ctx.verifyShare(s.cs, s.pkg, share, s.pub); err != nil {
		return s.fail(err)
	}
	s.shares[share.Identifier] = share
	s.audit.OnSigningEvent(NewAuditEventBuilder(AuditEventSignatureShare).
		WithSession(s.sessionID, s.cs.ID()).
		WithParticipant(share.Identifier, 2).
		Build())
	if len(s.shares) == len(s.pkg.Commitments) {
		s.state = SigningSharesCollected
	}
	return nil
}

// Aggregate sums the collected shares into the final signature.
func (s *SigningSession) Aggregate() (*Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(SigningSharesCollected); err != nil {
		return nil, err
	}
	S := s.cs.Curve().ScalarZero()
	for _, share := range s.shares {
		S = S.Add(share.Z)
	}
	sig := &Signature{R: s.ctx.R, S: S}
	if err := Verify(s.cs, s.pub.GroupPublicKey, s.message, sig); err != nil {
		return nil, s.fail(err)
	}

	s.sig = sig
	s.state = SigningAggregated
	s.audit.OnSigningEvent(NewAuditEventBuilder(AuditEventSignatureCreated).
		WithSession(s.sessionID, s.cs.ID()).
		WithThreshold(s.pub.MinSigners, len(s.pkg.Commitments)).
		Build())
	return sig, nil
}

// Abort discards all collected state. Recovery means a new session from
// SigningIdle with fresh nonces.
func (s *SigningSession) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SigningAggregated {
		s.abort()
	}
}

func (s *SigningSession) abort() {
	s.pkg = nil
	s.ctx = nil
	s.shares = make(map[Identifier]*SignatureShare)
	s.state = SigningAborted
}

func (s *SigningSession) fail(err error) error {
	s.abort()
	s.audit.OnFailure(NewAuditEventBuilder(AuditEventProtocolAbort).
		WithSession(s.sessionID, s.cs.ID()).
		WithError(err).
		Build())
	return err
}

func (s *SigningSession) expect(want SigningState) error {
	if s.state == want {
		return nil
	}
	if s.state == SigningAborted {
		return ErrSessionAborted
	}
	return ErrWrongState.WithDetails("signing session is in state %s, want %s", s.state, want)
}
