package frost

import (
	"io"
	"sync"
	"sync/atomic"
)

// SigningNonces is the secret (hiding, binding) nonce pair of one signer for
// one signing session. A pair may be used in at most one Sign call.
type SigningNonces struct {
	Hiding  Scalar
	Binding Scalar

	commitment *SigningCommitment
	consumed   atomic.Bool
}

// SigningCommitment is the public half of a nonce pair, (D, E) = (d·G, e·G).
type SigningCommitment struct {
	Identifier Identifier
	Hiding     Point
	Binding    Point
}

// NewSigningNonces draws a fresh nonce pair for keyShare. Each nonce is
// H3(random_bytes(32) || sk) so that a weak randomness source alone does not
// expose the nonce.
func NewSigningNonces(cs Ciphersuite, keyShare *KeyShare, rand io.Reader) (*SigningNonces, error) {
	if keyShare == nil || keyShare.SecretShare == nil {
		return nil, ErrInvalidScalar.WithDetails("missing key share")
	}
	hiding, err := generateNonce(cs, keyShare.SecretShare, rand)
	if err != nil {
		return nil, err
	}
	binding, err := generateNonce(cs, keyShare.SecretShare, rand)
	if err != nil {
		hiding.Zeroize()
		return nil, err
	}

	base := cs.Curve().BasePoint()
	return &SigningNonces{
		Hiding:  hiding,
		Binding: binding,
		commitment: &SigningCommitment{
			Identifier: keyShare.Identifier,
			Hiding:     base.Mul(hiding),
			Binding:    base.Mul(binding),
		},
	}, nil
}

func generateNonce(cs Ciphersuite, secret Scalar, rand io.Reader) (Scalar, error) {
	random, err := readRandom(rand, 32)
	if err != nil {
		return nil, err
	}
	defer ZeroizeBytes(random)
	return cs.H3(appendAll(random, secret.Bytes())), nil
}

// Commitment returns the public commitment to publish in signing round 1.
func (n *SigningNonces) Commitment() *SigningCommitment {
	return n.commitment
}

// Consumed reports whether the pair has been used.
func (n *SigningNonces) Consumed() bool {
	return n.consumed.Load()
}

// consume marks the pair as used. Exactly one caller ever wins.
func (n *SigningNonces) consume() error {
	if !n.consumed.CompareAndSwap(false, true) {
		return ErrNonceReuse.WithCulprit(n.commitment.Identifier)
	}
	return nil
}

// Zeroize securely clears both nonces and marks the pair consumed.
func (n *SigningNonces) Zeroize() {
	n.consumed.Store(true)
	if n.Hiding != nil {
		n.Hiding.Zeroize()
	}
	if n.Binding != nil {
		n.Binding.Zeroize()
	}
}

func (c *SigningCommitment) key() string {
	return string(appendAll(c.Hiding.Bytes(), c.Binding.Bytes()))
}

// NonceStore holds pre-generated nonce pairs for one key share and hands
// each out at most once. It is safe for use by concurrent signing sessions.
type NonceStore struct {
	mu       sync.Mutex
	cs       Ciphersuite
	keyShare *KeyShare
	rand     io.Reader
	pending  map[string]*SigningNonces
	spent    map[string]struct{}
	audit    AuditEventHandler
}

// NewNonceStore creates a store for keyShare. A nil rand uses crypto/rand.
func NewNonceStore(cs Ciphersuite, keyShare *KeyShare, rand io.Reader) *NonceStore {
	return &NonceStore{
		cs:       cs,
		keyShare: keyShare,
		rand:     rand,
		pending:  make(map[string]*SigningNonces),
		spent:    make(map[string]struct{}),
		audit:    &NullAuditHandler{},
	}
}

// SetAuditHandler installs h for nonce reuse reports.
func (s *NonceStore) SetAuditHandler(h AuditEventHandler) {
	s.mu.Lock()
	s.audit = h
	s.mu.Unlock()
}

// Generate creates batch nonce pairs and returns their public commitments,
// ready to be published ahead of any signing request.
func (s *NonceStore) Generate(batch int) ([]*SigningCommitment, error) {
	if batch < 1 {
		return nil, ErrInvalidThreshold.WithDetails("batch size must be positive, got %d", batch)
	}
	generated := make([]*SigningNonces, 0, batch)
	for i := 0; i < batch; i++ {
		nonces, err := NewSigningNonces(s.cs, s.keyShare, s.rand)
		if err != nil {
			for _, n := range generated {
				n.Zeroize()
			}
			return nil, err
		}
		generated = append(generated, nonces)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	commitments := make([]*SigningCommitment, len(generated))
	for i, n := range generated {
		s.pending[n.commitment.key()] = n
		commitments[i] = n.commitment
	}
	return commitments, nil
}

// Consume removes and returns the nonce pair behind commitment. A
// commitment that was already consumed yields NonceReuse.
func (s *NonceStore) Consume(commitment *SigningCommitment) (*SigningNonces, error) {
	if commitment == nil || commitment.Hiding == nil || commitment.Binding == nil {
		return nil, ErrInvalidCommitment.WithDetails("missing commitment")
	}
	key := commitment.key()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, spent := s.spent[key]; spent {
		err := ErrNonceReuse.WithCulprit(commitment.Identifier)
		s.audit.OnFailure(NewAuditEventBuilder(AuditEventNonceReuse).
			WithSession("", s.cs.ID()).
			WithError(err).
			Build())
		return nil, err
	}
	nonces, ok := s.pending[key]
	if !ok {
		return nil, ErrInvalidCommitment.WithCulprit(commitment.Identifier).WithDetails("commitment was not issued by this store")
	}
	delete(s.pending, key)
	s.spent[key] = struct{}{}
	return nonces, nil
}

// Pending returns the number of unused nonce pairs.
func (s *NonceStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close erases every unused nonce pair.
func (s *NonceStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, n := range s.pending {
		n.Zeroize()
		s.spent[key] = struct{}{}
		delete(s.pending, key)
	}
}
