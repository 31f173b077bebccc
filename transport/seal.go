package transport

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const sealInfo = "frost-sealed-share-v1"

// BoxKeyPair is an X25519 key pair for receiving sealed payloads
type BoxKeyPair struct {
	Public  [32]byte
	private [32]byte
}

// NewBoxKeyPair generates a key pair. A nil rand uses crypto/rand.
func NewBoxKeyPair(r io.Reader) (*BoxKeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	kp := new(BoxKeyPair)
	if _, err := io.ReadFull(r, kp.private[:]); err != nil {
		return nil, errors.Wrap(err, "generate box key")
	}
	pub, err := curve25519.X25519(kp.private[:], curve25519.Basepoint)
	if err != nil {
		return nil, errors.Wrap(err, "derive box public key")
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// Seal encrypts plaintext to recipient with an ephemeral X25519 key. The
// output is ephemeral_public || ChaCha20-Poly1305 ciphertext; aad is
// authenticated but not encrypted.
func Seal(recipient [32]byte, plaintext, aad []byte, r io.Reader) ([]byte, error) {
	ephemeral, err := NewBoxKeyPair(r)
	if err != nil {
		return nil, err
	}
	defer zero(ephemeral.private[:])

	aead, err := sealingAEAD(ephemeral.private[:], ephemeral.Public, recipient, recipient)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	out := append([]byte(nil), ephemeral.Public[:]...)
	return aead.Seal(out, nonce, plaintext, aad), nil
}

// Open decrypts a payload produced by Seal for kp.
func Open(kp *BoxKeyPair, sealed, aad []byte) ([]byte, error) {
	if len(sealed) < 32+chacha20poly1305.Overhead {
		return nil, errors.Wrap(ErrSealedBox, "payload too short")
	}
	var ephemeral [32]byte
	copy(ephemeral[:], sealed[:32])

	aead, err := sealingAEAD(kp.private[:], ephemeral, kp.Public, ephemeral)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	plaintext, err := aead.Open(nil, nonce, sealed[32:], aad)
	if err != nil {
		return nil, errors.Wrap(ErrSealedBox, err.Error())
	}
	return plaintext, nil
}

// sealingAEAD derives the per-message key from the X25519 secret. Each
// message uses a fresh ephemeral key, so the all-zero nonce never repeats
// under one key.
func sealingAEAD(private []byte, ephemeralPub, recipientPub, peer [32]byte) (cipher.AEAD, error) {
	shared, err := curve25519.X25519(private, peer[:])
	if err != nil {
		return nil, errors.Wrap(ErrSealedBox, err.Error())
	}
	defer zero(shared)

	salt := append(append([]byte(nil), ephemeralPub[:]...), recipientPub[:]...)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, []byte(sealInfo)), key); err != nil {
		return nil, errors.Wrap(err, "derive sealing key")
	}
	defer zero(key)
	return chacha20poly1305.New(key)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
