package transport

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moatus/frost"
)

func testIDs(n int) []frost.Identifier {
	return frost.SequentialIdentifiers(frost.NewEd25519Curve(), n)
}

func newTestIdentities(t *testing.T, ids []frost.Identifier) ([]*Identity, *Directory) {
	t.Helper()
	dir := NewDirectory()
	out := make([]*Identity, len(ids))
	for i, id := range ids {
		identity, err := NewIdentity(id, nil)
		require.NoError(t, err)
		dir.Add(id, identity.Peer())
		out[i] = identity
	}
	return out, dir
}

func TestSealOpen(t *testing.T) {
	alice, err := NewBoxKeyPair(nil)
	require.NoError(t, err)
	mallory, err := NewBoxKeyPair(nil)
	require.NoError(t, err)

	plaintext := []byte("secret share for alice")
	aad := []byte("session-1")
	sealed, err := Seal(alice.Public, plaintext, aad, nil)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(sealed, plaintext), "sealed box leaks plaintext")

	t.Run("RoundTrip", func(t *testing.T) {
		got, err := Open(alice, sealed, aad)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	})

	t.Run("WrongRecipient", func(t *testing.T) {
		_, err := Open(mallory, sealed, aad)
		assert.ErrorIs(t, err, ErrSealedBox)
	})

	t.Run("WrongAAD", func(t *testing.T) {
		_, err := Open(alice, sealed, []byte("session-2"))
		assert.ErrorIs(t, err, ErrSealedBox)
	})

	t.Run("Tampered", func(t *testing.T) {
		tampered := append([]byte(nil), sealed...)
		tampered[len(tampered)-1] ^= 0x01
		_, err := Open(alice, tampered, aad)
		assert.ErrorIs(t, err, ErrSealedBox)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := Open(alice, sealed[:16], aad)
		assert.ErrorIs(t, err, ErrSealedBox)
	})

	t.Run("FreshEphemeralKeys", func(t *testing.T) {
		again, err := Seal(alice.Public, plaintext, aad, nil)
		require.NoError(t, err)
		assert.NotEqual(t, sealed, again)
	})
}

func TestDirectoryVerify(t *testing.T) {
	ids := testIDs(3)
	identities, dir := newTestIdentities(t, ids)

	env := &Envelope{SessionID: "s", Type: MsgTypeRound1, Payload: []byte("commitment"), Timestamp: 42}
	identities[0].SignEnvelope(env)

	t.Run("Authentic", func(t *testing.T) {
		sender, err := dir.Verify(env)
		require.NoError(t, err)
		assert.Equal(t, ids[0], sender)
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		forged := *env
		forged.Payload = []byte("other commitment")
		_, err := dir.Verify(&forged)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("SpoofedSender", func(t *testing.T) {
		forged := *env
		forged.Sender = ids[1].Bytes()
		_, err := dir.Verify(&forged)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("MissingSignature", func(t *testing.T) {
		forged := *env
		forged.Signature = nil
		_, err := dir.Verify(&forged)
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("UnknownSender", func(t *testing.T) {
		stranger, err := NewIdentity(testIDs(4)[3], nil)
		require.NoError(t, err)
		other := &Envelope{SessionID: "s", Type: MsgTypeRound1}
		stranger.SignEnvelope(other)
		_, err = dir.Verify(other)
		assert.ErrorIs(t, err, ErrUnknownSender)
	})

	t.Run("SealToUnknown", func(t *testing.T) {
		_, err := dir.Seal(testIDs(4)[3], []byte("x"), nil, nil)
		assert.ErrorIs(t, err, ErrUnknownSender)
	})

	t.Run("SealToPeer", func(t *testing.T) {
		sealed, err := dir.Seal(ids[2], []byte("share"), []byte("aad"), nil)
		require.NoError(t, err)
		got, err := identities[2].Open(sealed, []byte("aad"))
		require.NoError(t, err)
		assert.Equal(t, []byte("share"), got)
	})
}

func TestEnvelope(t *testing.T) {
	ids := testIDs(2)

	t.Run("Identifiers", func(t *testing.T) {
		env := &Envelope{Sender: ids[0].Bytes(), Recipient: ids[1].Bytes()}
		sender, err := env.SenderID()
		require.NoError(t, err)
		assert.Equal(t, ids[0], sender)
		recipient, err := env.RecipientID()
		require.NoError(t, err)
		assert.Equal(t, ids[1], recipient)
		assert.False(t, env.IsBroadcast())
	})

	t.Run("InvalidSender", func(t *testing.T) {
		for name, sender := range map[string][]byte{
			"empty": nil,
			"short": {1, 2, 3},
			"zero":  make([]byte, 32),
		} {
			_, err := (&Envelope{Sender: sender}).SenderID()
			assert.ErrorIs(t, err, ErrInvalidMessage, name)
		}
	})

	t.Run("SigningBytesCoverEveryField", func(t *testing.T) {
		base := Envelope{SessionID: "s", Type: MsgTypeRound1, Sender: ids[0].Bytes(), Payload: []byte("p"), Timestamp: 1}
		variants := []Envelope{base, base, base, base, base}
		variants[0].SessionID = "t"
		variants[1].Type = MsgTypeRound2
		variants[2].Recipient = ids[1].Bytes()
		variants[3].Payload = []byte("q")
		variants[4].Timestamp = 2
		for i := range variants {
			assert.NotEqual(t, base.SigningBytes(), variants[i].SigningBytes(), "variant %d", i)
		}
	})

	t.Run("FieldBoundaries", func(t *testing.T) {
		a := Envelope{SessionID: "ab", Payload: []byte("c")}
		b := Envelope{SessionID: "a", Payload: []byte("bc")}
		assert.NotEqual(t, a.SigningBytes(), b.SigningBytes())
	})

	t.Run("DigestCoversSignature", func(t *testing.T) {
		a := Envelope{SessionID: "s", Signature: []byte{1}}
		b := Envelope{SessionID: "s", Signature: []byte{2}}
		assert.NotEqual(t, a.Digest(), b.Digest())
	})

	t.Run("MessageTypeNames", func(t *testing.T) {
		assert.Equal(t, "round1", MsgTypeRound1.String())
		assert.Equal(t, "round2", MsgTypeRound2.String())
		assert.Equal(t, "signing_commitment", MsgTypeSigningCommitment.String())
		assert.Equal(t, "signing_package", MsgTypeSigningPackage.String())
		assert.Equal(t, "signature_share", MsgTypeSignatureShare.String())
		assert.Equal(t, "abort", MsgTypeAbort.String())
		assert.Equal(t, "unknown", MessageType(99).String())
	})
}

func TestSerializer(t *testing.T) {
	ids := testIDs(2)
	identities, _ := newTestIdentities(t, ids)

	env := &Envelope{
		SessionID: "session-7",
		Type:      MsgTypeRound2,
		Recipient: ids[1].Bytes(),
		Payload:   []byte{0x00, 0xff, 0x10, 0x80},
		Timestamp: 1700000000123456789,
	}
	identities[0].SignEnvelope(env)

	// TOML is covered by the key-file document below.
	for _, codec := range []string{CodecJSON, CodecMsgpack, CodecCBOR, CodecYAML, CodecBSON} {
		t.Run(codec, func(t *testing.T) {
			s, err := NewSerializer(codec)
			require.NoError(t, err)
			assert.Equal(t, codec, s.Codec())

			data, err := s.MarshalEnvelope(env)
			require.NoError(t, err)
			got, err := s.UnmarshalEnvelope(data)
			require.NoError(t, err)

			assert.Equal(t, env.SessionID, got.SessionID)
			assert.Equal(t, env.Type, got.Type)
			assert.Equal(t, env.Sender, got.Sender)
			assert.Equal(t, env.Recipient, got.Recipient)
			assert.Equal(t, env.Payload, got.Payload)
			assert.Equal(t, env.Timestamp, got.Timestamp)
			assert.Equal(t, env.Digest(), got.Digest())
		})
	}

	t.Run("TOMLDocument", func(t *testing.T) {
		type keyFile struct {
			Suite     string `toml:"suite"`
			Threshold int    `toml:"threshold"`
			Share     string `toml:"share"`
		}
		s, err := NewSerializer(CodecTOML)
		require.NoError(t, err)
		in := keyFile{Suite: frost.CiphersuiteEd25519, Threshold: 2, Share: "00ff"}
		data, err := s.Marshal(in)
		require.NoError(t, err)
		var out keyFile
		require.NoError(t, s.Unmarshal(data, &out))
		assert.Equal(t, in, out)
	})

	t.Run("DefaultIsJSON", func(t *testing.T) {
		s, err := NewSerializer("")
		require.NoError(t, err)
		assert.Equal(t, CodecJSON, s.Codec())
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := NewSerializer("xml")
		assert.True(t, errors.Is(err, ErrUnsupportedCodec))
	})

	t.Run("NilEnvelope", func(t *testing.T) {
		s, err := NewSerializer(CodecJSON)
		require.NoError(t, err)
		_, err = s.MarshalEnvelope(nil)
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})

	t.Run("Garbage", func(t *testing.T) {
		s, err := NewSerializer(CodecCBOR)
		require.NoError(t, err)
		_, err = s.UnmarshalEnvelope([]byte{0xff, 0xff})
		assert.Error(t, err)
	})
}
