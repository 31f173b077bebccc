package frost

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of FROST error
type ErrorCategory string

const (
	// ErrorCategoryProtocol aborts the current round; the culprit is reported when known.
	ErrorCategoryProtocol ErrorCategory = "protocol"
	// ErrorCategoryState reports caller misuse such as invoking a round out of order.
	ErrorCategoryState ErrorCategory = "state"
	// ErrorCategoryResource is fatal for the whole session and must not be retried.
	ErrorCategoryResource      ErrorCategory = "resource"
	ErrorCategoryEncoding      ErrorCategory = "encoding"
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryCryptographic ErrorCategory = "cryptographic"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	ErrorSeverityLow      ErrorSeverity = "low"      // Non-critical, operation can continue
	ErrorSeverityMedium   ErrorSeverity = "medium"   // Important, may affect functionality
	ErrorSeverityHigh     ErrorSeverity = "high"     // Critical, operation should stop
	ErrorSeverityCritical ErrorSeverity = "critical" // Session-level failure
)

// FROSTError represents a structured error in the FROST library
type FROSTError struct {
	Category    ErrorCategory          `json:"category"`
	Severity    ErrorSeverity          `json:"severity"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Culprit     *Identifier            `json:"culprit,omitempty"`
	Cause       error                  `json:"-"` // Original error, not serialized
	Context     map[string]interface{} `json:"context,omitempty"`
	Recoverable bool                   `json:"recoverable"`
}

// Error implements the error interface
func (e *FROSTError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
	if e.Culprit != nil {
		msg += fmt.Sprintf(" (participant %s)", e.Culprit.String())
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *FROSTError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so that errors.Is(err, ErrInvalidShare) holds for
// any InvalidShare error regardless of culprit, details or cause.
func (e *FROSTError) Is(target error) bool {
	t, ok := target.(*FROSTError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *FROSTError) clone() *FROSTError {
	newError := &FROSTError{
		Category:    e.Category,
		Severity:    e.Severity,
		Code:        e.Code,
		Message:     e.Message,
		Details:     e.Details,
		Culprit:     e.Culprit,
		Cause:       e.Cause,
		Recoverable: e.Recoverable,
		Context:     make(map[string]interface{}, len(e.Context)),
	}
	for k, v := range e.Context {
		newError.Context[k] = v
	}
	return newError
}

// WithContext adds context information to the error
func (e *FROSTError) WithContext(key string, value interface{}) *FROSTError {
	newError := e.clone()
	newError.Context[key] = value
	return newError
}

// WithCause sets the underlying cause of the error
func (e *FROSTError) WithCause(cause error) *FROSTError {
	newError := e.clone()
	newError.Cause = cause
	return newError
}

// WithCulprit names the participant responsible for the failure
func (e *FROSTError) WithCulprit(id Identifier) *FROSTError {
	newError := e.clone()
	culprit := id
	newError.Culprit = &culprit
	return newError
}

// WithDetails attaches a formatted detail string
func (e *FROSTError) WithDetails(format string, args ...interface{}) *FROSTError {
	newError := e.clone()
	newError.Details = fmt.Sprintf(format, args...)
	return newError
}

// IsRecoverable returns whether the error is recoverable
func (e *FROSTError) IsRecoverable() bool {
	return e.Recoverable
}

// NewFROSTError creates a new FROST error
func NewFROSTError(category ErrorCategory, severity ErrorSeverity, code, message string) *FROSTError {
	return &FROSTError{
		Category:    category,
		Severity:    severity,
		Code:        code,
		Message:     message,
		Context:     make(map[string]interface{}),
		Recoverable: severity != ErrorSeverityCritical,
	}
}

// Protocol Errors
var (
	ErrInvalidProof = NewFROSTError(
		ErrorCategoryProtocol, ErrorSeverityHigh, "INVALID_PROOF",
		"proof of knowledge failed verification")

	ErrInvalidShare = NewFROSTError(
		ErrorCategoryProtocol, ErrorSeverityHigh, "INVALID_SHARE",
		"secret share failed the Feldman check")

	ErrInvalidSignatureShare = NewFROSTError(
		ErrorCategoryProtocol, ErrorSeverityHigh, "INVALID_SIGNATURE_SHARE",
		"signature share failed verification")

	ErrDuplicateParticipant = NewFROSTError(
		ErrorCategoryProtocol, ErrorSeverityMedium, "DUPLICATE_PARTICIPANT",
		"duplicate participant identifier")

	ErrInvalidIdentifier = NewFROSTError(
		ErrorCategoryProtocol, ErrorSeverityMedium, "INVALID_IDENTIFIER",
		"participant identifier is invalid")

	ErrUnknownParticipant = NewFROSTError(
		ErrorCategoryProtocol, ErrorSeverityMedium, "UNKNOWN_PARTICIPANT",
		"participant is not a member of this session")

	ErrInvalidCommitment = NewFROSTError(
		ErrorCategoryProtocol, ErrorSeverityHigh, "INVALID_COMMITMENT",
		"commitment is malformed")

	ErrInsufficientSigners = NewFROSTError(
		ErrorCategoryProtocol, ErrorSeverityMedium, "INSUFFICIENT_SIGNERS",
		"insufficient signers for threshold signature")
)

// State Errors
var (
	ErrIncompleteRound = NewFROSTError(
		ErrorCategoryState, ErrorSeverityMedium, "INCOMPLETE_ROUND",
		"round input is incomplete")

	ErrWrongState = NewFROSTError(
		ErrorCategoryState, ErrorSeverityMedium, "WRONG_STATE",
		"operation invoked in the wrong state")

	ErrSessionAborted = NewFROSTError(
		ErrorCategoryState, ErrorSeverityHigh, "SESSION_ABORTED",
		"session was aborted")
)

// Resource Errors
var (
	ErrNonceReuse = NewFROSTError(
		ErrorCategoryResource, ErrorSeverityCritical, "NONCE_REUSE",
		"signing nonces were already consumed")

	ErrRandomnessGeneration = NewFROSTError(
		ErrorCategoryResource, ErrorSeverityCritical, "RANDOMNESS_GENERATION_FAILED",
		"failed to generate secure randomness")
)

// Encoding Errors
var (
	ErrDecoding = NewFROSTError(
		ErrorCategoryEncoding, ErrorSeverityMedium, "DECODING_ERROR",
		"malformed or non-canonical encoding")

	ErrEncoding = NewFROSTError(
		ErrorCategoryEncoding, ErrorSeverityMedium, "ENCODING_ERROR",
		"value cannot be encoded")
)

// Cryptographic Errors
var (
	ErrInvalidScalar = NewFROSTError(
		ErrorCategoryCryptographic, ErrorSeverityHigh, "INVALID_SCALAR",
		"scalar is invalid for this operation")

	ErrInvalidSignature = NewFROSTError(
		ErrorCategoryCryptographic, ErrorSeverityHigh, "INVALID_SIGNATURE",
		"signature is invalid")
)

// Configuration Errors
var (
	ErrInvalidThreshold = NewFROSTError(
		ErrorCategoryConfiguration, ErrorSeverityHigh, "INVALID_THRESHOLD",
		"threshold value is invalid")

	ErrUnsupportedCiphersuite = NewFROSTError(
		ErrorCategoryConfiguration, ErrorSeverityHigh, "UNSUPPORTED_CIPHERSUITE",
		"ciphersuite is not supported")

	ErrConfigurationMismatch = NewFROSTError(
		ErrorCategoryConfiguration, ErrorSeverityHigh, "CONFIGURATION_MISMATCH",
		"configuration parameters are inconsistent")
)

// Error helper functions

// WrapError wraps an existing error with FROST error context
func WrapError(err error, category ErrorCategory, severity ErrorSeverity, code, message string) *FROSTError {
	return NewFROSTError(category, severity, code, message).WithCause(err)
}

func decodingError(format string, args ...interface{}) *FROSTError {
	return ErrDecoding.WithDetails(format, args...)
}

// IsErrorCategory checks if an error belongs to a specific category
func IsErrorCategory(err error, category ErrorCategory) bool {
	var frostErr *FROSTError
	if errors.As(err, &frostErr) {
		return frostErr.Category == category
	}
	return false
}

// IsErrorSeverity checks if an error has a specific severity
func IsErrorSeverity(err error, severity ErrorSeverity) bool {
	var frostErr *FROSTError
	if errors.As(err, &frostErr) {
		return frostErr.Severity == severity
	}
	return false
}

// IsRecoverableError checks if an error is recoverable
func IsRecoverableError(err error) bool {
	var frostErr *FROSTError
	if errors.As(err, &frostErr) {
		return frostErr.IsRecoverable()
	}
	return true // Non-FROST errors are assumed recoverable
}

// Culprit returns the participant blamed by err, if any.
func Culprit(err error) (Identifier, bool) {
	var frostErr *FROSTError
	if errors.As(err, &frostErr) && frostErr.Culprit != nil {
		return *frostErr.Culprit, true
	}
	return Identifier{}, false
}

// GetErrorContext extracts context from a FROST error
func GetErrorContext(err error) map[string]interface{} {
	var frostErr *FROSTError
	if errors.As(err, &frostErr) {
		return frostErr.Context
	}
	return nil
}
