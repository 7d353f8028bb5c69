package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload. The creator is the caller.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// OptionalString tells an absent JSON field apart from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// UpdateTicketRequest payload. assigned_to may be null or "" to unassign.
// Version, when sent, must match the stored version; otherwise the reply is
// 409 with the stored version at error.details.currentVersion (see
// ErrorResponse).
type UpdateTicketRequest struct {
	Status     *domain.TicketStatus   `json:"status"`
	Priority   *domain.TicketPriority `json:"priority"`
	AssignedTo OptionalString         `json:"assigned_to"`
	Version    *int64                 `json:"version"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// TicketResponse is the stored ticket.
type TicketResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	CreatedBy   string                `json:"created_by"`
	AssignedTo  *string               `json:"assigned_to"`
	SLADeadline time.Time             `json:"sla_deadline"`
	IsBreached  bool                  `json:"is_breached"`
	Version     int64                 `json:"version"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// SLARemaining describes time left until, or past, the deadline.
type SLARemaining struct {
	Overdue bool   `json:"overdue"`
	Hours   int64  `json:"hours"`
	Minutes int64  `json:"minutes"`
	Label   string `json:"label"`
}

// TicketDetailResponse adds related users and the SLA countdown.
type TicketDetailResponse struct {
	TicketResponse
	Creator      *UserSummary `json:"creator"`
	Assignee     *UserSummary `json:"assignee"`
	SLARemaining SLARemaining `json:"sla_remaining"`
}

// TicketListResponse is one page of tickets.
type TicketListResponse struct {
	Data   []TicketResponse `json:"data"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// CommentResponse represents a ticket comment.
type CommentResponse struct {
	ID        string       `json:"id"`
	TicketID  string       `json:"ticket_id"`
	UserID    string       `json:"user_id"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
	User      *UserSummary `json:"user,omitempty"`
}

// TicketHistoryResponse represents an audit entry.
type TicketHistoryResponse struct {
	ID        string               `json:"id"`
	TicketID  string               `json:"ticket_id"`
	UserID    string               `json:"user_id"`
	Action    domain.HistoryAction `json:"action"`
	OldValue  *string              `json:"old_value"`
	NewValue  *string              `json:"new_value"`
	CreatedAt time.Time            `json:"created_at"`
	User      *UserSummary         `json:"user,omitempty"`
}

// BreachUpdateResponse is one flag change made by a sweep.
type BreachUpdateResponse struct {
	ID            string `json:"id"`
	WasBreached   bool   `json:"wasBreached"`
	IsNowBreached bool   `json:"isNowBreached"`
}

// SweepResponse summarizes a breach check.
type SweepResponse struct {
	Checked int                    `json:"checked"`
	Updated int                    `json:"updated"`
	Updates []BreachUpdateResponse `json:"updates"`
}

// StatsResponse is the SLA dashboard summary.
type StatsResponse struct {
	Total      int            `json:"total"`
	Breached   int            `json:"breached"`
	AtRisk     int            `json:"atRisk"`
	ByStatus   map[string]int `json:"byStatus"`
	ByPriority map[string]int `json:"byPriority"`
}
