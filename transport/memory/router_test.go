package memory

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moatus/frost"
	"github.com/moatus/frost/transport"
)

type testNet struct {
	ids       []frost.Identifier
	router    *Router
	endpoints []*transport.Endpoint
	identity  []*transport.Identity
	directory *transport.Directory
}

func newTestNet(t *testing.T, n int, opts ...Option) *testNet {
	t.Helper()
	router, err := NewRouter(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { router.Close() })

	net := &testNet{
		ids:       frost.SequentialIdentifiers(frost.NewEd25519Curve(), n),
		router:    router,
		directory: transport.NewDirectory(),
	}
	for _, id := range net.ids {
		identity, err := transport.NewIdentity(id, nil)
		require.NoError(t, err)
		net.directory.Add(id, identity.Peer())
		net.identity = append(net.identity, identity)
	}
	for _, identity := range net.identity {
		ep, err := transport.NewEndpoint(identity, net.directory, router)
		require.NoError(t, err)
		net.endpoints = append(net.endpoints, ep)
	}
	return net
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestBroadcastAndDirect(t *testing.T) {
	for _, codec := range []string{transport.CodecJSON, transport.CodecMsgpack, transport.CodecCBOR, transport.CodecYAML, transport.CodecBSON} {
		t.Run(codec, func(t *testing.T) {
			net := newTestNet(t, 3, WithCodec(codec))
			ctx := testContext(t)

			require.NoError(t, net.endpoints[0].Broadcast(ctx, "s1", transport.MsgTypeRound1, []byte("hello")))
			for _, ep := range net.endpoints[1:] {
				env, sender, err := ep.Receive(ctx, "s1", transport.MsgTypeRound1)
				require.NoError(t, err)
				assert.Equal(t, net.ids[0], sender)
				assert.Equal(t, []byte("hello"), env.Payload)
				assert.True(t, env.IsBroadcast())
			}

			require.NoError(t, net.endpoints[1].SendTo(ctx, "s1", net.ids[2], transport.MsgTypeSignatureShare, []byte{0xff, 0x00}))
			env, sender, err := net.endpoints[2].Receive(ctx, "s1", transport.MsgTypeSignatureShare)
			require.NoError(t, err)
			assert.Equal(t, net.ids[1], sender)
			assert.Equal(t, []byte{0xff, 0x00}, env.Payload)
		})
	}
}

func TestBroadcastSkipsSender(t *testing.T) {
	net := newTestNet(t, 2)
	ctx := testContext(t)

	require.NoError(t, net.endpoints[0].Broadcast(ctx, "s", transport.MsgTypeRound1, []byte("x")))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err := net.router.Receive(short, net.ids[0])
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEndpointHoldsOtherRounds(t *testing.T) {
	net := newTestNet(t, 2)
	ctx := testContext(t)

	require.NoError(t, net.endpoints[0].SendTo(ctx, "s", net.ids[1], transport.MsgTypeRound2, []byte("round2")))
	require.NoError(t, net.endpoints[0].Broadcast(ctx, "other", transport.MsgTypeRound1, []byte("other session")))
	require.NoError(t, net.endpoints[0].Broadcast(ctx, "s", transport.MsgTypeRound1, []byte("round1")))

	env, _, err := net.endpoints[1].Receive(ctx, "s", transport.MsgTypeRound1)
	require.NoError(t, err)
	assert.Equal(t, []byte("round1"), env.Payload)

	env, _, err = net.endpoints[1].Receive(ctx, "s", transport.MsgTypeRound2)
	require.NoError(t, err)
	assert.Equal(t, []byte("round2"), env.Payload)

	env, _, err = net.endpoints[1].Receive(ctx, "other", transport.MsgTypeRound1)
	require.NoError(t, err)
	assert.Equal(t, []byte("other session"), env.Payload)
}

func TestEndpointDropsForgeries(t *testing.T) {
	net := newTestNet(t, 3)
	ctx := testContext(t)

	// Participant 2 claims to be participant 0.
	forged := &transport.Envelope{SessionID: "s", Type: transport.MsgTypeRound1, Payload: []byte("forged")}
	net.identity[2].SignEnvelope(forged)
	forged.Sender = net.ids[0].Bytes()
	require.NoError(t, net.router.Send(ctx, forged))

	require.NoError(t, net.endpoints[0].Broadcast(ctx, "s", transport.MsgTypeRound1, []byte("genuine")))

	env, sender, err := net.endpoints[1].Receive(ctx, "s", transport.MsgTypeRound1)
	require.NoError(t, err)
	assert.Equal(t, net.ids[0], sender)
	assert.Equal(t, []byte("genuine"), env.Payload)
}

func TestSealedDelivery(t *testing.T) {
	net := newTestNet(t, 3)
	ctx := testContext(t)

	require.NoError(t, net.endpoints[0].SendSealed(ctx, "dkg", net.ids[1], transport.MsgTypeRound2, []byte("share for 1")))
	env, _, err := net.endpoints[1].Receive(ctx, "dkg", transport.MsgTypeRound2)
	require.NoError(t, err)
	assert.NotEqual(t, []byte("share for 1"), env.Payload)

	plaintext, err := net.endpoints[1].OpenSealed(env)
	require.NoError(t, err)
	assert.Equal(t, []byte("share for 1"), plaintext)

	t.Run("OtherParticipantCannotOpen", func(t *testing.T) {
		_, err := net.endpoints[2].OpenSealed(env)
		assert.ErrorIs(t, err, transport.ErrSealedBox)
	})

	t.Run("BoundToSession", func(t *testing.T) {
		moved := *env
		moved.SessionID = "replayed"
		_, err := net.endpoints[1].OpenSealed(&moved)
		assert.ErrorIs(t, err, transport.ErrSealedBox)
	})
}

func TestCollect(t *testing.T) {
	net := newTestNet(t, 4)
	ctx := testContext(t)

	require.NoError(t, net.endpoints[1].Broadcast(ctx, "s", transport.MsgTypeRound1, []byte("first")))
	require.NoError(t, net.endpoints[1].Broadcast(ctx, "s", transport.MsgTypeRound1, []byte("second")))
	require.NoError(t, net.endpoints[2].Broadcast(ctx, "s", transport.MsgTypeRound1, []byte("two")))
	require.NoError(t, net.endpoints[3].Broadcast(ctx, "s", transport.MsgTypeRound1, []byte("three")))

	got, err := net.endpoints[0].Collect(ctx, "s", transport.MsgTypeRound1, net.ids)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []byte("first"), got[net.ids[1]].Payload)
	assert.Equal(t, []byte("two"), got[net.ids[2]].Payload)
	assert.Equal(t, []byte("three"), got[net.ids[3]].Payload)

	t.Run("Incomplete", func(t *testing.T) {
		require.NoError(t, net.endpoints[1].Broadcast(ctx, "s2", transport.MsgTypeRound1, []byte("only one")))
		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		got, err := net.endpoints[0].Collect(short, "s2", transport.MsgTypeRound1, net.ids)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Len(t, got, 1)
	})
}

func TestRedeliveryIsDeduplicated(t *testing.T) {
	reg := prometheus.NewRegistry()
	net := newTestNet(t, 2, WithRedelivery(2), WithMetrics(transport.NewMetrics(reg)))
	ctx := testContext(t)

	require.NoError(t, net.endpoints[0].SendTo(ctx, "s", net.ids[1], transport.MsgTypeRound2, []byte("once")))

	env, err := net.router.Receive(ctx, net.ids[1])
	require.NoError(t, err)
	assert.Equal(t, []byte("once"), env.Payload)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = net.router.Receive(short, net.ids[1])
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 2.0, counterValue(t, reg, "frost_router_duplicates_total"))
	assert.Equal(t, 2.0, counterValue(t, reg, "frost_router_messages_total"))
}

func TestRateLimit(t *testing.T) {
	reg := prometheus.NewRegistry()
	net := newTestNet(t, 2, WithRateLimit(1, 1), WithMetrics(transport.NewMetrics(reg)))
	ctx := testContext(t)

	require.NoError(t, net.endpoints[0].Broadcast(ctx, "s", transport.MsgTypeRound1, []byte("a")))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := net.endpoints[0].Broadcast(short, "s", transport.MsgTypeRound1, []byte("b"))
	assert.Error(t, err)
	assert.Equal(t, 1.0, counterValue(t, reg, "frost_router_throttled_total"))

	// Other senders have their own budget.
	require.NoError(t, net.endpoints[1].Broadcast(ctx, "s", transport.MsgTypeRound1, []byte("c")))
}

func TestRouterErrors(t *testing.T) {
	net := newTestNet(t, 2)
	ctx := testContext(t)
	stranger := frost.SequentialIdentifiers(frost.NewEd25519Curve(), 3)[2]

	t.Run("AlreadyRegistered", func(t *testing.T) {
		assert.ErrorIs(t, net.router.Register(net.ids[0]), transport.ErrAlreadyRegistered)
	})

	t.Run("UnknownRecipient", func(t *testing.T) {
		err := net.endpoints[0].SendTo(ctx, "s", stranger, transport.MsgTypeRound2, []byte("x"))
		assert.ErrorIs(t, err, transport.ErrUnknownRecipient)
		_, err = net.router.Receive(ctx, stranger)
		assert.ErrorIs(t, err, transport.ErrUnknownRecipient)
	})

	t.Run("UnknownSender", func(t *testing.T) {
		identity, err := transport.NewIdentity(stranger, nil)
		require.NoError(t, err)
		env := &transport.Envelope{SessionID: "s", Type: transport.MsgTypeRound1}
		identity.SignEnvelope(env)
		assert.ErrorIs(t, net.router.Send(ctx, env), transport.ErrUnknownSender)
	})

	t.Run("InvalidSender", func(t *testing.T) {
		err := net.router.Send(ctx, &transport.Envelope{Sender: []byte{1}})
		assert.ErrorIs(t, err, transport.ErrInvalidMessage)
	})

	t.Run("InvalidOptions", func(t *testing.T) {
		_, err := NewRouter(WithInboxSize(0))
		assert.Error(t, err)
		_, err = NewRouter(WithCodec("xml"))
		assert.ErrorIs(t, err, transport.ErrUnsupportedCodec)
	})

	t.Run("Closed", func(t *testing.T) {
		done := make(chan error, 1)
		go func() {
			_, err := net.router.Receive(ctx, net.ids[1])
			done <- err
		}()
		require.NoError(t, net.router.Close())
		require.NoError(t, net.router.Close())

		select {
		case err := <-done:
			assert.ErrorIs(t, err, transport.ErrRouterClosed)
		case <-time.After(time.Second):
			t.Fatal("Receive did not return after Close")
		}
		assert.ErrorIs(t, net.router.Register(stranger), transport.ErrRouterClosed)
		assert.ErrorIs(t, net.endpoints[0].Broadcast(ctx, "s", transport.MsgTypeRound1, nil), transport.ErrRouterClosed)
	})
}
