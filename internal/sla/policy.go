// Package sla holds the priority based deadline policy.
package sla

import (
	"fmt"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// DefaultWindow applies to priorities without an explicit window.
const DefaultWindow = 24 * time.Hour

// AtRiskWindow is how close to its deadline an active ticket must be to count as at risk.
const AtRiskWindow = time.Hour

var windows = map[domain.TicketPriority]time.Duration{
	domain.TicketPriorityUrgent: 4 * time.Hour,
	domain.TicketPriorityHigh:   8 * time.Hour,
	domain.TicketPriorityMedium: 24 * time.Hour,
	domain.TicketPriorityLow:    72 * time.Hour,
}

// Window returns the resolution window for a priority.
func Window(priority domain.TicketPriority) time.Duration {
	if w, ok := windows[priority]; ok {
		return w
	}
	return DefaultWindow
}

// DeadlineFor computes the SLA deadline of a ticket created at createdAt.
func DeadlineFor(priority domain.TicketPriority, createdAt time.Time) time.Time {
	return createdAt.Add(Window(priority))
}

// IsBreached reports whether now is strictly past the deadline.
func IsBreached(deadline, now time.Time) bool {
	return now.After(deadline)
}

// TimeLeft describes the distance between now and a deadline in whole
// hours and minutes, both floored.
type TimeLeft struct {
	Overdue bool
	Hours   int64
	Minutes int64
}

// Remaining returns the time left until deadline, or how long it has been
// overdue when now is past it.
func Remaining(deadline, now time.Time) TimeLeft {
	diff := deadline.Sub(now)
	overdue := now.After(deadline)
	if overdue {
		diff = -diff
	}
	return TimeLeft{
		Overdue: overdue,
		Hours:   int64(diff / time.Hour),
		Minutes: int64((diff % time.Hour) / time.Minute),
	}
}

// String renders "Overdue by 1h 5m", "3h 0m remaining" or "42m remaining".
func (t TimeLeft) String() string {
	if t.Overdue {
		return fmt.Sprintf("Overdue by %dh %dm", t.Hours, t.Minutes)
	}
	if t.Hours == 0 {
		return fmt.Sprintf("%dm remaining", t.Minutes)
	}
	return fmt.Sprintf("%dh %dm remaining", t.Hours, t.Minutes)
}
