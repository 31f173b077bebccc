// Package memory provides an in-process Router for tests, simulations and
// single-host deployments.
//
// Key features:
//   - Channel-based inboxes, one per participant
//   - Envelopes pass through the configured codec, so no memory is shared
//     between sender and receiver
//   - Duplicate suppression by envelope digest at each inbox
//   - Optional per-sender rate limit and forced redelivery
package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/moatus/frost"
	"github.com/moatus/frost/transport"
)

// DefaultInboxSize is the buffer length of each inbox.
const DefaultInboxSize = 256

type inbox struct {
	ch   chan []byte
	mu   sync.Mutex
	seen map[[32]byte]struct{}
}

// accept records digest and reports whether it is new.
func (in *inbox) accept(digest [32]byte) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, dup := in.seen[digest]; dup {
		return false
	}
	in.seen[digest] = struct{}{}
	return true
}

// Router is an in-memory transport.Router.
type Router struct {
	mu       sync.RWMutex
	inboxes  map[frost.Identifier]*inbox
	limiters map[frost.Identifier]*rate.Limiter
	closed   bool
	done     chan struct{}

	serializer *transport.Serializer
	inboxSize  int
	limit      rate.Limit
	burst      int
	redeliver  int
	metrics    *transport.Metrics
	logger     zerolog.Logger
}

// Option configures a Router
type Option func(*Router) error

// WithCodec selects the envelope codec (JSON by default).
func WithCodec(codec string) Option {
	return func(r *Router) error {
		s, err := transport.NewSerializer(codec)
		if err != nil {
			return err
		}
		r.serializer = s
		return nil
	}
}

// WithRateLimit limits each sender to perSecond envelopes with the given
// burst. Sends over the limit wait.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *Router) error {
		r.limit = rate.Limit(perSecond)
		r.burst = burst
		return nil
	}
}

// WithInboxSize sets the inbox buffer length
func WithInboxSize(n int) Option {
	return func(r *Router) error {
		if n < 1 {
			return errors.Errorf("inbox size must be positive, got %d", n)
		}
		r.inboxSize = n
		return nil
	}
}

// WithRedelivery delivers every envelope n extra times, exercising the
// at-least-once contract.
func WithRedelivery(n int) Option {
	return func(r *Router) error {
		r.redeliver = n
		return nil
	}
}

// WithMetrics attaches Prometheus metrics
func WithMetrics(m *transport.Metrics) Option {
	return func(r *Router) error {
		r.metrics = m
		return nil
	}
}

// WithLogger sets the router logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Router) error {
		r.logger = logger
		return nil
	}
}

// NewRouter creates an in-memory router.
func NewRouter(opts ...Option) (*Router, error) {
	serializer, err := transport.NewSerializer(transport.CodecJSON)
	if err != nil {
		return nil, err
	}
	r := &Router{
		inboxes:    make(map[frost.Identifier]*inbox),
		limiters:   make(map[frost.Identifier]*rate.Limiter),
		done:       make(chan struct{}),
		serializer: serializer,
		inboxSize:  DefaultInboxSize,
		limit:      rate.Inf,
		metrics:    transport.NewMetrics(nil),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With().Str("component", "memory-router").Str("codec", r.serializer.Codec()).Logger()
	return r, nil
}

// Register creates the inbox of id.
func (r *Router) Register(id frost.Identifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return transport.ErrRouterClosed
	}
	if _, exists := r.inboxes[id]; exists {
		return errors.Wrapf(transport.ErrAlreadyRegistered, "participant %s", id)
	}
	r.inboxes[id] = &inbox{
		ch:   make(chan []byte, r.inboxSize),
		seen: make(map[[32]byte]struct{}),
	}
	r.limiters[id] = rate.NewLimiter(r.limit, r.burst)
	return nil
}

// Send routes env. The sender must be registered.
func (r *Router) Send(ctx context.Context, env *transport.Envelope) error {
	sender, err := env.SenderID()
	if err != nil {
		r.metrics.RecordError("invalid_sender")
		return err
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return transport.ErrRouterClosed
	}
	limiter, ok := r.limiters[sender]
	if !ok {
		r.mu.RUnlock()
		r.metrics.RecordError("unknown_sender")
		return errors.Wrapf(transport.ErrUnknownSender, "participant %s", sender)
	}
	targets, err := r.targets(env, sender)
	r.mu.RUnlock()
	if err != nil {
		r.metrics.RecordError("unknown_recipient")
		return err
	}

	if !limiter.Allow() {
		r.metrics.RecordThrottled()
		if err := limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limit")
		}
	}

	data, err := r.serializer.MarshalEnvelope(env)
	if err != nil {
		r.metrics.RecordError("encode")
		return err
	}
	r.metrics.RecordMessage(env.Type, "sent")

	for id, in := range targets {
		for i := 0; i <= r.redeliver; i++ {
			select {
			case in.ch <- data:
			case <-ctx.Done():
				return ctx.Err()
			case <-r.done:
				return transport.ErrRouterClosed
			}
		}
		r.metrics.SetInboxDepth(id.String(), len(in.ch))
	}
	return nil
}

func (r *Router) targets(env *transport.Envelope, sender frost.Identifier) (map[frost.Identifier]*inbox, error) {
	if env.IsBroadcast() {
		targets := make(map[frost.Identifier]*inbox, len(r.inboxes))
		for id, in := range r.inboxes {
			if id != sender {
				targets[id] = in
			}
		}
		return targets, nil
	}
	recipient, err := env.RecipientID()
	if err != nil {
		return nil, err
	}
	in, ok := r.inboxes[recipient]
	if !ok {
		return nil, errors.Wrapf(transport.ErrUnknownRecipient, "participant %s", recipient)
	}
	return map[frost.Identifier]*inbox{recipient: in}, nil
}

// Receive returns the next envelope for id that the inbox has not already
// delivered.
func (r *Router) Receive(ctx context.Context, id frost.Identifier) (*transport.Envelope, error) {
	r.mu.RLock()
	in, ok := r.inboxes[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(transport.ErrUnknownRecipient, "participant %s", id)
	}

	for {
		select {
		case data := <-in.ch:
			env, err := r.serializer.UnmarshalEnvelope(data)
			if err != nil {
				r.metrics.RecordError("decode")
				r.logger.Warn().Err(err).Msg("dropping undecodable envelope")
				continue
			}
			if !in.accept(env.Digest()) {
				r.metrics.RecordDuplicate()
				continue
			}
			r.metrics.RecordMessage(env.Type, "delivered")
			return env, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.done:
			return nil, transport.ErrRouterClosed
		}
	}
}

// Close shuts the router down
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.done)
	}
	return nil
}

var _ transport.Router = (*Router)(nil)
