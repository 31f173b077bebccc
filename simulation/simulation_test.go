package simulation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moatus/frost"
	"github.com/moatus/frost/transport"
	"github.com/moatus/frost/transport/memory"
)

type countingAudit struct {
	mu       sync.Mutex
	keygen   int
	signing  int
	failures int
}

func (c *countingAudit) OnKeygenEvent(*frost.AuditEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keygen++
}

func (c *countingAudit) OnSigningEvent(*frost.AuditEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signing++
}

func (c *countingAudit) OnFailure(*frost.AuditEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
}

func newTestNetwork(t *testing.T, cs frost.Ciphersuite, n int, opts ...Option) *Network {
	t.Helper()
	router, err := memory.NewRouter(memory.WithRedelivery(1))
	require.NoError(t, err)
	net, err := NewNetwork(cs, frost.SequentialIdentifiers(cs.Curve(), n), router, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { net.Close() })
	return net
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRunDKG(t *testing.T) {
	audit := &countingAudit{}
	net := newTestNetwork(t, frost.NewEd25519Ciphersuite(), 5, WithAudit(audit))
	ctx := testContext(t)

	result, err := net.RunDKG(ctx, "dkg-1", 3)
	require.NoError(t, err)
	require.Len(t, result.KeyShares, 5)
	assert.Equal(t, 3, result.PublicKeys.MinSigners)

	for id, ks := range result.KeyShares {
		assert.Equal(t, id, ks.Identifier)
		assert.True(t, ks.GroupPublicKey.Equal(result.PublicKeys.GroupPublicKey))
		require.NoError(t, frost.VerifyKeyShare(ks, result.PublicKeys))
	}
	assert.Zero(t, audit.failures)
	assert.NotZero(t, audit.keygen)
}

func TestRunSigning(t *testing.T) {
	for _, cs := range []frost.Ciphersuite{frost.NewEd25519Ciphersuite(), frost.NewSecp256k1Ciphersuite(), frost.NewBabyJubjubCiphersuite()} {
		t.Run(cs.ID(), func(t *testing.T) {
			net := newTestNetwork(t, cs, 4)
			ctx := testContext(t)

			result, err := net.RunDKG(ctx, "dkg", 3)
			require.NoError(t, err)

			ids := net.Participants()
			message := []byte("simulated signing")
			sig, err := net.RunSigning(ctx, "sign-1", []frost.Identifier{ids[3], ids[0], ids[2]}, result.KeyShares, result.PublicKeys, message)
			require.NoError(t, err)
			require.NoError(t, frost.Verify(cs, result.PublicKeys.GroupPublicKey, message, sig))

			// Every quorum signs under the same key.
			sig, err = net.RunSigning(ctx, "sign-2", ids[1:], result.KeyShares, result.PublicKeys, message)
			require.NoError(t, err)
			require.NoError(t, frost.Verify(cs, result.PublicKeys.GroupPublicKey, message, sig))
		})
	}
}

func TestRunSigningErrors(t *testing.T) {
	net := newTestNetwork(t, frost.NewEd25519Ciphersuite(), 3)
	ctx := testContext(t)
	result, err := net.RunDKG(ctx, "dkg", 2)
	require.NoError(t, err)
	ids := net.Participants()

	t.Run("NoSigners", func(t *testing.T) {
		_, err := net.RunSigning(ctx, "s", nil, result.KeyShares, result.PublicKeys, []byte("m"))
		assert.True(t, errors.Is(err, frost.ErrInsufficientSigners))
	})

	t.Run("BelowThreshold", func(t *testing.T) {
		_, err := net.RunSigning(ctx, "s-below", ids[:1], result.KeyShares, result.PublicKeys, []byte("m"))
		assert.True(t, errors.Is(err, frost.ErrInsufficientSigners), "got %v", err)
	})

	t.Run("MissingKeyShare", func(t *testing.T) {
		shares := map[frost.Identifier]*frost.KeyShare{ids[0]: result.KeyShares[ids[0]]}
		_, err := net.RunSigning(ctx, "s", ids[:2], shares, result.PublicKeys, []byte("m"))
		assert.True(t, errors.Is(err, frost.ErrUnknownParticipant))
	})

	t.Run("Cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := net.RunSigning(cancelled, "s-cancel", ids[:2], result.KeyShares, result.PublicKeys, []byte("m"))
		assert.Error(t, err)
	})
}

func TestRunDKGCancelled(t *testing.T) {
	net := newTestNetwork(t, frost.NewEd25519Ciphersuite(), 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := net.RunDKG(ctx, "dkg", 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDKGInvalidThreshold(t *testing.T) {
	net := newTestNetwork(t, frost.NewEd25519Ciphersuite(), 3)
	_, err := net.RunDKG(testContext(t), "dkg", 4)
	assert.True(t, errors.Is(err, frost.ErrInvalidThreshold), "got %v", err)
}

func TestSeededNetwork(t *testing.T) {
	run := func() *DKGResult {
		net := newTestNetwork(t, frost.NewEd25519Ciphersuite(), 3, WithRandom(frost.NewSeededReader([]byte("net seed"), "simulation")))
		result, err := net.RunDKG(testContext(t), "dkg", 2)
		require.NoError(t, err)
		return result
	}
	// Goroutine scheduling decides which participant draws first from the
	// shared reader, so only the validity of the output is stable.
	for _, result := range []*DKGResult{run(), run()} {
		for _, ks := range result.KeyShares {
			require.NoError(t, frost.VerifyKeyShare(ks, result.PublicKeys))
		}
	}
}

func TestQuorumSigner(t *testing.T) {
	net := newTestNetwork(t, frost.NewEd25519Ciphersuite(), 3)
	ctx := testContext(t)
	result, err := net.RunDKG(ctx, "dkg", 2)
	require.NoError(t, err)
	ids := net.Participants()

	_, err = net.NewQuorumSigner(result, ids[:1])
	assert.True(t, errors.Is(err, frost.ErrInsufficientSigners))
	_, err = net.NewQuorumSigner(nil, ids)
	assert.Error(t, err)

	signer, err := net.NewQuorumSigner(result, ids[1:])
	require.NoError(t, err)
	assert.Same(t, result.PublicKeys, signer.PublicKeys())

	for _, message := range [][]byte{[]byte("first"), []byte("second")} {
		sig, err := signer.Sign(ctx, message)
		require.NoError(t, err)
		require.NoError(t, frost.Verify(net.Ciphersuite(), result.PublicKeys.GroupPublicKey, message, sig))
	}
}

func TestNetworkEndpoints(t *testing.T) {
	net := newTestNetwork(t, frost.NewEd25519Ciphersuite(), 2)
	ids := net.Participants()

	ep, err := net.Endpoint(ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], ep.ID())

	_, err = net.Endpoint(frost.SequentialIdentifiers(frost.NewEd25519Curve(), 3)[2])
	assert.True(t, errors.Is(err, frost.ErrUnknownParticipant))

	_, err = NewNetwork(frost.NewEd25519Ciphersuite(), nil, nil)
	assert.Error(t, err)
}

func TestMalformedPayloadsNameSender(t *testing.T) {
	cs := frost.NewEd25519Ciphersuite()
	net := newTestNetwork(t, cs, 3)
	ctx := testContext(t)
	ids := net.Participants()
	sender, recipient := ids[1], ids[0]
	from, err := net.Endpoint(sender)
	require.NoError(t, err)
	to, err := net.Endpoint(recipient)
	require.NoError(t, err)

	receive := func(t *testing.T, sessionID string, msgType transport.MessageType) *transport.Envelope {
		t.Helper()
		env, got, err := to.Receive(ctx, sessionID, msgType)
		require.NoError(t, err)
		require.Equal(t, sender, got)
		return env
	}
	assertBlamed := func(t *testing.T, err error, want error) {
		t.Helper()
		assert.True(t, errors.Is(err, want), "got %v", err)
		culprit, ok := frost.Culprit(err)
		require.True(t, ok, "no culprit in %v", err)
		assert.Equal(t, sender, culprit)
	}
	share := &frost.SecretShare{Sender: sender, Recipient: recipient, Value: cs.Curve().ScalarFromUint64(7)}

	t.Run("ShareValueOutOfRange", func(t *testing.T) {
		payload := share.Bytes()
		// top bit of the little-endian value pushes it past the group order
		payload[len(payload)-1] ^= 0x80
		require.NoError(t, from.SendSealed(ctx, "range", recipient, transport.MsgTypeRound2, payload))

		_, err := net.openSecretShare(to, sender, receive(t, "range", transport.MsgTypeRound2))
		assertBlamed(t, err, frost.ErrInvalidShare)
	})

	t.Run("SealedShareCorrupted", func(t *testing.T) {
		require.NoError(t, from.SendSealed(ctx, "sealed", recipient, transport.MsgTypeRound2, share.Bytes()))
		sealed := append([]byte(nil), receive(t, "sealed", transport.MsgTypeRound2).Payload...)
		sealed[len(sealed)/2] ^= 0x01
		require.NoError(t, from.SendTo(ctx, "sealed", recipient, transport.MsgTypeRound2, sealed))

		_, err := net.openSecretShare(to, sender, receive(t, "sealed", transport.MsgTypeRound2))
		assertBlamed(t, err, frost.ErrInvalidShare)
	})

	t.Run("ShareForAnotherRecipient", func(t *testing.T) {
		misaddressed := &frost.SecretShare{Sender: sender, Recipient: ids[2], Value: cs.Curve().ScalarFromUint64(7)}
		require.NoError(t, from.SendSealed(ctx, "addr", recipient, transport.MsgTypeRound2, misaddressed.Bytes()))

		_, err := net.openSecretShare(to, sender, receive(t, "addr", transport.MsgTypeRound2))
		assertBlamed(t, err, frost.ErrInvalidShare)
	})

	t.Run("ValidShare", func(t *testing.T) {
		require.NoError(t, from.SendSealed(ctx, "ok", recipient, transport.MsgTypeRound2, share.Bytes()))

		got, err := net.openSecretShare(to, sender, receive(t, "ok", transport.MsgTypeRound2))
		require.NoError(t, err)
		assert.True(t, got.Value.Equal(share.Value))
	})

	garbage := []byte{0x01, 0x02, 0x03}
	t.Run("Round1Package", func(t *testing.T) {
		require.NoError(t, from.Broadcast(ctx, "r1", transport.MsgTypeRound1, garbage))
		_, err := net.decodeRound1(sender, receive(t, "r1", transport.MsgTypeRound1))
		assertBlamed(t, err, frost.ErrInvalidProof)
	})

	t.Run("SigningCommitment", func(t *testing.T) {
		require.NoError(t, from.SendTo(ctx, "c", recipient, transport.MsgTypeSigningCommitment, garbage))
		_, err := net.decodeCommitment(sender, receive(t, "c", transport.MsgTypeSigningCommitment))
		assertBlamed(t, err, frost.ErrInvalidCommitment)
	})

	t.Run("SignatureShare", func(t *testing.T) {
		require.NoError(t, from.SendTo(ctx, "z", recipient, transport.MsgTypeSignatureShare, garbage))
		_, err := net.decodeSignatureShare(sender, receive(t, "z", transport.MsgTypeSignatureShare))
		assertBlamed(t, err, frost.ErrInvalidSignatureShare)
	})

	t.Run("SigningPackage", func(t *testing.T) {
		require.NoError(t, from.SendTo(ctx, "p", recipient, transport.MsgTypeSigningPackage, garbage))
		_, err := decodeSigningPackage(sender, receive(t, "p", transport.MsgTypeSigningPackage))
		assertBlamed(t, err, frost.ErrDecoding)
	})
}
