// Package transport carries FROST protocol messages between participants.
//
// The protocol only requires at-least-once delivery of uncorrupted
// payloads. This package adds what a deployment needs on top of that:
//   - Envelopes signed with a per-participant identity key
//   - Duplicate suppression by envelope digest
//   - Confidential point-to-point delivery of DKG shares (Seal/Open)
//   - Pluggable codecs (JSON, MessagePack, CBOR, YAML, BSON, TOML)
package transport

import (
	"encoding/binary"
	"hash"

	"github.com/moatus/frost"
	"golang.org/x/crypto/blake2b"
)

// MessageType identifies protocol messages
type MessageType uint8

const (
	MsgTypeRound1            MessageType = 1 // DKG round 1 broadcast
	MsgTypeRound2            MessageType = 2 // DKG round 2 sealed share
	MsgTypeSigningCommitment MessageType = 3 // Signing round 1 commitment
	MsgTypeSigningPackage    MessageType = 4 // Signing package from coordinator
	MsgTypeSignatureShare    MessageType = 5 // Signing round 2 share
	MsgTypeAbort             MessageType = 6 // Session abort notice
)

func (t MessageType) String() string {
	switch t {
	case MsgTypeRound1:
		return "round1"
	case MsgTypeRound2:
		return "round2"
	case MsgTypeSigningCommitment:
		return "signing_commitment"
	case MsgTypeSigningPackage:
		return "signing_package"
	case MsgTypeSignatureShare:
		return "signature_share"
	case MsgTypeAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Envelope wraps all messages for transport. An empty Recipient means
// broadcast.
type Envelope struct {
	SessionID string      `json:"session_id" msgpack:"session_id" cbor:"1,keyasint" yaml:"session_id" bson:"session_id" toml:"session_id"`
	Type      MessageType `json:"type" msgpack:"type" cbor:"2,keyasint" yaml:"type" bson:"type" toml:"type"`
	Sender    []byte      `json:"sender" msgpack:"sender" cbor:"3,keyasint" yaml:"sender" bson:"sender" toml:"sender"`
	Recipient []byte      `json:"recipient,omitempty" msgpack:"recipient,omitempty" cbor:"4,keyasint,omitempty" yaml:"recipient,omitempty" bson:"recipient,omitempty" toml:"recipient,omitempty"`
	Payload   []byte      `json:"payload" msgpack:"payload" cbor:"5,keyasint" yaml:"payload" bson:"payload" toml:"payload"`
	Timestamp int64       `json:"timestamp" msgpack:"timestamp" cbor:"6,keyasint" yaml:"timestamp" bson:"timestamp" toml:"timestamp"`
	Signature []byte      `json:"signature,omitempty" msgpack:"signature,omitempty" cbor:"7,keyasint,omitempty" yaml:"signature,omitempty" bson:"signature,omitempty" toml:"signature,omitempty"`
}

// IsBroadcast reports whether the envelope is addressed to every participant
func (e *Envelope) IsBroadcast() bool {
	return len(e.Recipient) == 0
}

// SenderID decodes the sender identifier
func (e *Envelope) SenderID() (frost.Identifier, error) {
	return toIdentifier(e.Sender)
}

// RecipientID decodes the recipient identifier of a direct message
func (e *Envelope) RecipientID() (frost.Identifier, error) {
	return toIdentifier(e.Recipient)
}

// SigningBytes is the BLAKE2b-256 digest of every field except the
// signature. Each field is length-prefixed so no two envelopes collide.
func (e *Envelope) SigningBytes() []byte {
	h, _ := blake2b.New256([]byte("frost-envelope-v1"))
	writeField(h, []byte(e.SessionID))
	writeField(h, []byte{byte(e.Type)})
	writeField(h, e.Sender)
	writeField(h, e.Recipient)
	writeField(h, e.Payload)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(e.Timestamp))
	writeField(h, ts[:])
	return h.Sum(nil)
}

// Digest identifies the signed envelope for duplicate suppression.
func (e *Envelope) Digest() [32]byte {
	return blake2b.Sum256(append(e.SigningBytes(), e.Signature...))
}

func writeField(h hash.Hash, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	h.Write(n[:])
	h.Write(b)
}

func toIdentifier(b []byte) (frost.Identifier, error) {
	var id frost.Identifier
	if len(b) != len(id) {
		return id, ErrInvalidMessage
	}
	copy(id[:], b)
	if id.IsZero() {
		return id, ErrInvalidMessage
	}
	return id, nil
}
