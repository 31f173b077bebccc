package frost

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// Key generation events
	AuditEventKeygenRound    AuditEventType = "keygen_round"
	AuditEventKeygenComplete AuditEventType = "keygen_complete"

	// Signing events
	AuditEventSigningCommit    AuditEventType = "signing_commit"
	AuditEventSignatureShare   AuditEventType = "signature_share"
	AuditEventSignatureCreated AuditEventType = "signature_created"

	// Failure events
	AuditEventProtocolAbort AuditEventType = "protocol_abort"
	AuditEventNonceReuse    AuditEventType = "nonce_reuse"
)

// AuditEvent represents a single audit event in the FROST library
type AuditEvent struct {
	// Event metadata
	EventID   string         `json:"event_id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType AuditEventType `json:"event_type"`
	SessionID string         `json:"session_id,omitempty"`

	// Context information
	Ciphersuite string      `json:"ciphersuite,omitempty"`
	Participant *Identifier `json:"participant,omitempty"`
	Round       int         `json:"round,omitempty"`

	// Threshold information
	Threshold        int `json:"threshold,omitempty"`
	ParticipantCount int `json:"participant_count,omitempty"`

	// Success/failure information
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Culprit *Identifier `json:"culprit,omitempty"`

	// Additional context
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AuditEventHandler receives protocol events. Applications implement it to
// record events according to their needs; the core never logs directly.
type AuditEventHandler interface {
	// OnKeygenEvent is called when a DKG round completes
	OnKeygenEvent(event *AuditEvent)

	// OnSigningEvent is called for signing progress
	OnSigningEvent(event *AuditEvent)

	// OnFailure is called when a session aborts
	OnFailure(event *AuditEvent)
}

// NullAuditHandler is a no-op implementation of AuditEventHandler
type NullAuditHandler struct{}

func (n *NullAuditHandler) OnKeygenEvent(event *AuditEvent)  {}
func (n *NullAuditHandler) OnSigningEvent(event *AuditEvent) {}
func (n *NullAuditHandler) OnFailure(event *AuditEvent)      {}

// LogAuditHandler writes audit events as structured zerolog records.
type LogAuditHandler struct {
	logger zerolog.Logger
}

// NewLogAuditHandler creates a handler logging to logger.
func NewLogAuditHandler(logger zerolog.Logger) *LogAuditHandler {
	return &LogAuditHandler{logger: logger.With().Str("component", "frost").Logger()}
}

func (h *LogAuditHandler) OnKeygenEvent(event *AuditEvent) {
	h.write(h.logger.Info(), event).Msg("keygen")
}

func (h *LogAuditHandler) OnSigningEvent(event *AuditEvent) {
	h.write(h.logger.Debug(), event).Msg("signing")
}

func (h *LogAuditHandler) OnFailure(event *AuditEvent) {
	lvl := h.logger.Warn()
	if event.EventType == AuditEventNonceReuse {
		lvl = h.logger.Error()
	}
	h.write(lvl, event).Msg("protocol failure")
}

func (h *LogAuditHandler) write(e *zerolog.Event, event *AuditEvent) *zerolog.Event {
	e = e.Str("event_id", event.EventID).
		Str("event_type", string(event.EventType)).
		Str("session_id", event.SessionID).
		Str("ciphersuite", event.Ciphersuite).
		Bool("success", event.Success)
	if event.Participant != nil {
		e = e.Stringer("participant", event.Participant)
	}
	if event.Round > 0 {
		e = e.Int("round", event.Round)
	}
	if event.Threshold > 0 {
		e = e.Int("threshold", event.Threshold).Int("participants", event.ParticipantCount)
	}
	if event.Culprit != nil {
		e = e.Stringer("culprit", event.Culprit)
	}
	if event.Error != "" {
		e = e.Str("error", event.Error)
	}
	if len(event.Metadata) > 0 {
		e = e.Fields(event.Metadata)
	}
	return e
}

// AuditEventBuilder helps construct audit events with proper defaults
type AuditEventBuilder struct {
	event *AuditEvent
}

// NewAuditEventBuilder creates a new audit event builder
func NewAuditEventBuilder(eventType AuditEventType) *AuditEventBuilder {
	return &AuditEventBuilder{
		event: &AuditEvent{
			EventID:   uuid.NewString(),
			Timestamp: time.Now(),
			EventType: eventType,
			Success:   true, // Default to success, can be overridden
			Metadata:  make(map[string]interface{}),
		},
	}
}

// WithSession sets the session id and ciphersuite
func (b *AuditEventBuilder) WithSession(sessionID, ciphersuite string) *AuditEventBuilder {
	b.event.SessionID = sessionID
	b.event.Ciphersuite = ciphersuite
	return b
}

// WithParticipant sets the reporting participant and round
func (b *AuditEventBuilder) WithParticipant(id Identifier, round int) *AuditEventBuilder {
	b.event.Participant = &id
	b.event.Round = round
	return b
}

// WithThreshold sets threshold information
func (b *AuditEventBuilder) WithThreshold(threshold, participantCount int) *AuditEventBuilder {
	b.event.Threshold = threshold
	b.event.ParticipantCount = participantCount
	return b
}

// WithError marks the event as failed and records the culprit if the error
// names one.
func (b *AuditEventBuilder) WithError(err error) *AuditEventBuilder {
	b.event.Success = false
	if err != nil {
		b.event.Error = err.Error()
		if culprit, ok := Culprit(err); ok {
			b.event.Culprit = &culprit
		}
	}
	return b
}

// WithMetadata adds metadata to the event
func (b *AuditEventBuilder) WithMetadata(key string, value interface{}) *AuditEventBuilder {
	b.event.Metadata[key] = value
	return b
}

// Build returns the constructed audit event
func (b *AuditEventBuilder) Build() *AuditEvent {
	return b.event
}
