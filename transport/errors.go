package transport

import (
	"github.com/pkg/errors"
)

// Routing errors.
var (
	// ErrUnknownRecipient indicates the addressed participant has no inbox.
	ErrUnknownRecipient = errors.New("transport: unknown recipient")

	// ErrAlreadyRegistered indicates an inbox already exists for the participant.
	ErrAlreadyRegistered = errors.New("transport: participant already registered")

	// ErrRouterClosed indicates the router has been shut down.
	ErrRouterClosed = errors.New("transport: router closed")

	// ErrInboxFull indicates the recipient inbox cannot accept more messages.
	ErrInboxFull = errors.New("transport: inbox full")
)

// Message errors.
var (
	// ErrInvalidMessage indicates the message format is invalid.
	ErrInvalidMessage = errors.New("transport: invalid message")

	// ErrBadSignature indicates the envelope signature does not verify
	// under the sender's registered identity key.
	ErrBadSignature = errors.New("transport: envelope signature invalid")

	// ErrUnknownSender indicates the sender is not in the directory.
	ErrUnknownSender = errors.New("transport: unknown sender")

	// ErrSealedBox indicates a sealed payload could not be opened.
	ErrSealedBox = errors.New("transport: cannot open sealed payload")
)

// Codec errors.
var (
	// ErrUnsupportedCodec indicates the codec name is not recognised.
	ErrUnsupportedCodec = errors.New("transport: unsupported codec")
)
