package domain

import "time"

// HistoryAction tags what a history entry records.
type HistoryAction string

const (
	ActionCreated           HistoryAction = "created"
	ActionStatusChanged     HistoryAction = "status_changed"
	ActionPriorityChanged   HistoryAction = "priority_changed"
	ActionAssignedToChanged HistoryAction = "assigned_to_changed"
	ActionCommented         HistoryAction = "commented"
	ActionSLABreached       HistoryAction = "sla_breached"
)

// UnassignedValue is how an empty assignee is rendered in the audit trail.
const UnassignedValue = "unassigned"

// HistoryEntry is an immutable audit trail entry.
type HistoryEntry struct {
	ID        string
	TicketID  string
	UserID    string
	Action    HistoryAction
	OldValue  *string
	NewValue  *string
	CreatedAt time.Time
}
