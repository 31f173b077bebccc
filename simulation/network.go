// Package simulation runs FROST participants as goroutines that talk only
// through a transport.Router. Each participant holds its own session and
// sees nothing of its peers except the envelopes it receives.
package simulation

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/moatus/frost"
	"github.com/moatus/frost/transport"
)

// Network is a set of participants sharing one router and one identity
// directory.
type Network struct {
	cs        frost.Ciphersuite
	ids       []frost.Identifier
	router    transport.Router
	directory *transport.Directory
	endpoints map[frost.Identifier]*transport.Endpoint
	logger    zerolog.Logger
	rand      io.Reader
	audit     frost.AuditEventHandler
}

// Option configures a Network
type Option func(*Network)

// WithLogger sets the logger for the network and its endpoints
func WithLogger(logger zerolog.Logger) Option {
	return func(n *Network) { n.logger = logger }
}

// WithRandom sets the randomness source for key generation, nonces and
// sealing. Tests use a seeded reader; production leaves it nil.
func WithRandom(r io.Reader) Option {
	return func(n *Network) { n.rand = r }
}

// WithAudit sets the audit handler of every session the network runs. The
// default writes audit events to the network logger.
func WithAudit(h frost.AuditEventHandler) Option {
	return func(n *Network) { n.audit = h }
}

// NewNetwork creates an identity and an endpoint for every id and registers
// them with router.
func NewNetwork(cs frost.Ciphersuite, ids []frost.Identifier, router transport.Router, opts ...Option) (*Network, error) {
	if len(ids) == 0 {
		return nil, errors.New("no participants")
	}
	n := &Network{
		cs:        cs,
		ids:       append([]frost.Identifier(nil), ids...),
		router:    router,
		directory: transport.NewDirectory(),
		endpoints: make(map[frost.Identifier]*transport.Endpoint, len(ids)),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.rand != nil {
		n.rand = &lockedReader{r: n.rand}
	}
	if n.audit == nil {
		n.audit = frost.NewLogAuditHandler(n.logger)
	}
	frost.SortIdentifiers(cs.Curve(), n.ids)

	identities := make([]*transport.Identity, 0, len(n.ids))
	for _, id := range n.ids {
		identity, err := transport.NewIdentity(id, n.rand)
		if err != nil {
			return nil, errors.Wrapf(err, "identity for %s", id)
		}
		n.directory.Add(id, identity.Peer())
		identities = append(identities, identity)
	}
	for _, identity := range identities {
		ep, err := transport.NewEndpoint(identity, n.directory, router,
			transport.WithLogger(n.logger), transport.WithRandom(n.rand))
		if err != nil {
			return nil, err
		}
		n.endpoints[identity.ID] = ep
	}
	return n, nil
}

// Participants returns the participant identifiers in ascending order
func (n *Network) Participants() []frost.Identifier {
	return append([]frost.Identifier(nil), n.ids...)
}

// Ciphersuite returns the suite every session of the network uses
func (n *Network) Ciphersuite() frost.Ciphersuite {
	return n.cs
}

// Endpoint returns the endpoint of id.
func (n *Network) Endpoint(id frost.Identifier) (*transport.Endpoint, error) {
	ep, ok := n.endpoints[id]
	if !ok {
		return nil, errors.Wrapf(frost.ErrUnknownParticipant, "participant %s", id)
	}
	return ep, nil
}

// Close closes the underlying router
func (n *Network) Close() error {
	return n.router.Close()
}

// lockedReader serializes reads so one deterministic source can feed every
// participant goroutine.
type lockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Read(p)
}
