package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/moatus/frost"
)

// Router delivers envelopes between participants. Delivery is
// at-least-once with no ordering between independent senders; a broadcast
// reaches every registered participant except the sender.
type Router interface {
	// Register creates the inbox of id.
	Register(id frost.Identifier) error

	// Send delivers env to its recipient, or to everyone for a broadcast.
	Send(ctx context.Context, env *Envelope) error

	// Receive blocks until an envelope for id arrives or ctx is done.
	Receive(ctx context.Context, id frost.Identifier) (*Envelope, error)

	// Close shuts the router down; pending receives return ErrRouterClosed.
	Close() error
}

// MaxPending bounds the envelopes an Endpoint holds back for later rounds.
const MaxPending = 1024

// Endpoint is one participant's authenticated view of a Router. Outgoing
// envelopes are signed with the participant's identity; incoming envelopes
// are verified against the directory and dropped when they fail.
type Endpoint struct {
	mu      sync.Mutex
	pending []pendingEnvelope

	identity  *Identity
	directory *Directory
	router    Router
	logger    zerolog.Logger
	rand      io.Reader
	now       func() time.Time
}

// EndpointOption configures an Endpoint
type EndpointOption func(*Endpoint)

// WithLogger sets the endpoint logger
func WithLogger(logger zerolog.Logger) EndpointOption {
	return func(e *Endpoint) { e.logger = logger }
}

// WithRandom sets the randomness source used for sealing
func WithRandom(r io.Reader) EndpointOption {
	return func(e *Endpoint) { e.rand = r }
}

// NewEndpoint registers identity with router.
func NewEndpoint(identity *Identity, directory *Directory, router Router, opts ...EndpointOption) (*Endpoint, error) {
	if err := router.Register(identity.ID); err != nil {
		return nil, errors.Wrapf(err, "register %s", identity.ID)
	}
	e := &Endpoint{
		identity:  identity,
		directory: directory,
		router:    router,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Stringer("participant", identity.ID).Logger()
	return e, nil
}

// ID returns the participant identifier of the endpoint
func (e *Endpoint) ID() frost.Identifier {
	return e.identity.ID
}

// Broadcast sends payload to every other participant.
func (e *Endpoint) Broadcast(ctx context.Context, sessionID string, msgType MessageType, payload []byte) error {
	return e.send(ctx, &Envelope{SessionID: sessionID, Type: msgType, Payload: payload})
}

// SendTo sends payload to one participant.
func (e *Endpoint) SendTo(ctx context.Context, sessionID string, recipient frost.Identifier, msgType MessageType, payload []byte) error {
	return e.send(ctx, &Envelope{SessionID: sessionID, Type: msgType, Recipient: recipient.Bytes(), Payload: payload})
}

// SendSealed encrypts payload to recipient's box key and sends it. The
// session id and both identifiers are bound as associated data.
func (e *Endpoint) SendSealed(ctx context.Context, sessionID string, recipient frost.Identifier, msgType MessageType, payload []byte) error {
	sealed, err := e.directory.Seal(recipient, payload, sealAAD(sessionID, e.identity.ID, recipient), e.rand)
	if err != nil {
		return errors.Wrapf(err, "seal for %s", recipient)
	}
	return e.SendTo(ctx, sessionID, recipient, msgType, sealed)
}

// OpenSealed decrypts a payload received through SendSealed.
func (e *Endpoint) OpenSealed(env *Envelope) ([]byte, error) {
	sender, err := env.SenderID()
	if err != nil {
		return nil, err
	}
	return e.identity.Open(env.Payload, sealAAD(env.SessionID, sender, e.identity.ID))
}

func (e *Endpoint) send(ctx context.Context, env *Envelope) error {
	env.Timestamp = e.now().UnixNano()
	e.identity.SignEnvelope(env)
	if err := e.router.Send(ctx, env); err != nil {
		return errors.Wrapf(err, "send %s", env.Type)
	}
	e.logger.Debug().Str("session_id", env.SessionID).Stringer("type", env.Type).Bool("broadcast", env.IsBroadcast()).Msg("sent")
	return nil
}

// Receive returns the next authentic envelope of the given session and
// type. Authentic envelopes for another session or type are held back for
// a later Receive; envelopes whose signature does not verify are dropped.
func (e *Endpoint) Receive(ctx context.Context, sessionID string, msgType MessageType) (*Envelope, frost.Identifier, error) {
	if env, sender, ok := e.takePending(sessionID, msgType); ok {
		return env, sender, nil
	}
	for {
		env, err := e.router.Receive(ctx, e.identity.ID)
		if err != nil {
			return nil, frost.Identifier{}, err
		}
		sender, err := e.directory.Verify(env)
		if err != nil {
			e.logger.Warn().Err(err).Msg("discarding unauthenticated envelope")
			continue
		}
		if !env.IsBroadcast() {
			if recipient, err := env.RecipientID(); err != nil || recipient != e.identity.ID {
				e.logger.Warn().Stringer("sender", sender).Msg("discarding misaddressed envelope")
				continue
			}
		}
		if env.SessionID != sessionID || env.Type != msgType {
			e.hold(pendingEnvelope{env: env, sender: sender})
			continue
		}
		return env, sender, nil
	}
}

type pendingEnvelope struct {
	env    *Envelope
	sender frost.Identifier
}

func (e *Endpoint) hold(p pendingEnvelope) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) >= MaxPending {
		e.logger.Warn().Str("session_id", e.pending[0].env.SessionID).Msg("pending buffer full, dropping oldest envelope")
		e.pending = e.pending[1:]
	}
	e.pending = append(e.pending, p)
}

func (e *Endpoint) takePending(sessionID string, msgType MessageType) (*Envelope, frost.Identifier, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, p := range e.pending {
		if p.env.SessionID == sessionID && p.env.Type == msgType {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return p.env, p.sender, true
		}
	}
	return nil, frost.Identifier{}, false
}

// Collect receives one envelope from each of the expected senders. A
// second envelope from the same sender is ignored.
func (e *Endpoint) Collect(ctx context.Context, sessionID string, msgType MessageType, from []frost.Identifier) (map[frost.Identifier]*Envelope, error) {
	want := make(map[frost.Identifier]bool, len(from))
	for _, id := range from {
		if id != e.identity.ID {
			want[id] = true
		}
	}
	got := make(map[frost.Identifier]*Envelope, len(want))
	for len(got) < len(want) {
		env, sender, err := e.Receive(ctx, sessionID, msgType)
		if err != nil {
			return got, errors.Wrapf(err, "collect %s: have %d of %d", msgType, len(got), len(want))
		}
		if !want[sender] {
			continue
		}
		if _, dup := got[sender]; dup {
			continue
		}
		got[sender] = env
	}
	return got, nil
}

func sealAAD(sessionID string, sender, recipient frost.Identifier) []byte {
	out := append([]byte(sessionID), sender[:]...)
	return append(out, recipient[:]...)
}
