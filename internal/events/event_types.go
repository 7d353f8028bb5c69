package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated     EventType = "ticket.created"
	EventTicketUpdated     EventType = "ticket.updated"
	EventTicketCommented   EventType = "ticket.commented"
	EventTicketSLABreached EventType = "ticket.sla_breached"
)

// Event represents a domain event emitted by services after a write commits.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority    domain.TicketPriority `json:"priority"`
	Title       string                `json:"title"`
	SLADeadline time.Time             `json:"sla_deadline"`
}

// FieldChange is one watched field that changed in an update.
type FieldChange struct {
	Action   domain.HistoryAction `json:"action"`
	OldValue string               `json:"old_value"`
	NewValue string               `json:"new_value"`
}

// TicketUpdatedPayload payload. Changes is empty for no-op updates.
type TicketUpdatedPayload struct {
	Version int64         `json:"version"`
	Changes []FieldChange `json:"changes"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	CommentID string `json:"comment_id"`
	Preview   string `json:"preview"`
}

// TicketSLABreachedPayload payload.
type TicketSLABreachedPayload struct {
	Priority    domain.TicketPriority `json:"priority"`
	SLADeadline time.Time             `json:"sla_deadline"`
}
