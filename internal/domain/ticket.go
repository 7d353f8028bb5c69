package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every known status.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// ActiveStatuses are the statuses whose SLA is still being tracked.
var ActiveStatuses = []TicketStatus{TicketStatusOpen, TicketStatusInProgress}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Active reports whether the ticket still counts against its SLA.
func (s TicketStatus) Active() bool {
	return s == TicketStatusOpen || s == TicketStatusInProgress
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// TicketPriorities lists every known priority.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	for _, candidate := range TicketPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// InitialTicketVersion is the version assigned on creation.
const InitialTicketVersion int64 = 1

// Ticket is the aggregate for support requests.
//
// SLADeadline is fixed at creation from the priority at that moment and is
// not recalculated when the priority changes later. IsBreached is a cached
// snapshot refreshed by the breach sweep.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	CreatedBy   string
	AssignedTo  *string
	SLADeadline time.Time
	IsBreached  bool
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
