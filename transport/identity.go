package transport

import (
	"io"
	"sync"

	"github.com/canopy-network/canopy/lib/crypto"
	"github.com/pkg/errors"

	"github.com/moatus/frost"
)

// Identity is a participant's long-term transport key pair: a signing key
// that authenticates envelopes and an X25519 key that receives sealed DKG
// shares. It is unrelated to the participant's FROST key share.
type Identity struct {
	ID      frost.Identifier
	signing crypto.PrivateKeyI
	box     *BoxKeyPair
}

// NewIdentity creates a fresh identity for id. A nil rand uses crypto/rand
// for the box key.
func NewIdentity(id frost.Identifier, rand io.Reader) (*Identity, error) {
	signing, err := crypto.NewBLS12381PrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate identity signing key")
	}
	box, err := NewBoxKeyPair(rand)
	if err != nil {
		return nil, err
	}
	return &Identity{ID: id, signing: signing, box: box}, nil
}

// Peer returns the public half registered in a Directory.
func (i *Identity) Peer() Peer {
	return Peer{SigningKey: i.signing.PublicKey(), BoxKey: i.box.Public}
}

// SignEnvelope fills in the sender and signature of env.
func (i *Identity) SignEnvelope(env *Envelope) {
	env.Sender = i.ID.Bytes()
	env.Signature = i.signing.Sign(env.SigningBytes())
}

// Open decrypts a payload sealed to this identity.
func (i *Identity) Open(sealed, aad []byte) ([]byte, error) {
	return Open(i.box, sealed, aad)
}

// Peer is the public identity of a participant
type Peer struct {
	SigningKey crypto.PublicKeyI
	BoxKey     [32]byte
}

// Directory maps participant identifiers to their public identities. It is
// the trust root for envelope authentication.
type Directory struct {
	mu    sync.RWMutex
	peers map[frost.Identifier]Peer
}

// NewDirectory creates an empty directory
func NewDirectory() *Directory {
	return &Directory{peers: make(map[frost.Identifier]Peer)}
}

// Add registers a participant's public identity
func (d *Directory) Add(id frost.Identifier, peer Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers[id] = peer
}

// Lookup returns a participant's public identity
func (d *Directory) Lookup(id frost.Identifier) (Peer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	peer, ok := d.peers[id]
	if !ok {
		return Peer{}, errors.Wrapf(ErrUnknownSender, "participant %s", id)
	}
	return peer, nil
}

// Verify checks env's signature against the sender's registered key.
func (d *Directory) Verify(env *Envelope) (frost.Identifier, error) {
	sender, err := env.SenderID()
	if err != nil {
		return sender, errors.Wrap(err, "envelope sender")
	}
	peer, err := d.Lookup(sender)
	if err != nil {
		return sender, err
	}
	if len(env.Signature) == 0 || !peer.SigningKey.VerifyBytes(env.SigningBytes(), env.Signature) {
		return sender, errors.Wrapf(ErrBadSignature, "sender %s", sender)
	}
	return sender, nil
}

// Seal encrypts plaintext to a registered participant.
func (d *Directory) Seal(recipient frost.Identifier, plaintext, aad []byte, rand io.Reader) ([]byte, error) {
	peer, err := d.Lookup(recipient)
	if err != nil {
		return nil, err
	}
	return Seal(peer.BoxKey, plaintext, aad, rand)
}
