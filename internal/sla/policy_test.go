package sla

import (
	"testing"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestDeadlineFor(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	cases := []struct {
		priority domain.TicketPriority
		want     time.Duration
	}{
		{domain.TicketPriorityUrgent, 4 * time.Hour},
		{domain.TicketPriorityHigh, 8 * time.Hour},
		{domain.TicketPriorityMedium, 24 * time.Hour},
		{domain.TicketPriorityLow, 72 * time.Hour},
		{domain.TicketPriority("critical"), 24 * time.Hour},
		{domain.TicketPriority(""), 24 * time.Hour},
	}
	for _, tc := range cases {
		got := DeadlineFor(tc.priority, created).Sub(created)
		if got != tc.want {
			t.Fatalf("DeadlineFor(%q) window = %v, want %v", tc.priority, got, tc.want)
		}
	}
}

func TestIsBreachedIsStrict(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if IsBreached(deadline, deadline) {
		t.Fatalf("IsBreached() at the deadline = true, want false")
	}
	if !IsBreached(deadline, deadline.Add(time.Nanosecond)) {
		t.Fatalf("IsBreached() one nanosecond past = false, want true")
	}
	if IsBreached(deadline, deadline.Add(-time.Hour)) {
		t.Fatalf("IsBreached() before deadline = true, want false")
	}
}

func TestRemaining(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		now  time.Time
		want string
	}{
		{"just past", deadline.Add(time.Second), "Overdue by 0h 0m"},
		{"59 minutes past", deadline.Add(59*time.Minute + 59*time.Second), "Overdue by 0h 59m"},
		{"one hour past", deadline.Add(time.Hour), "Overdue by 1h 0m"},
		{"days past", deadline.Add(50*time.Hour + 7*time.Minute), "Overdue by 50h 7m"},
		{"at deadline", deadline, "0m remaining"},
		{"under an hour", deadline.Add(-42*time.Minute - 30*time.Second), "42m remaining"},
		{"exactly an hour", deadline.Add(-time.Hour), "1h 0m remaining"},
		{"hours left", deadline.Add(-(3*time.Hour + 15*time.Minute + 59*time.Second)), "3h 15m remaining"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Remaining(deadline, tc.now).String(); got != tc.want {
				t.Fatalf("Remaining() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRemainingOverdueFlag(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	left := Remaining(deadline, deadline.Add(90*time.Minute))
	if !left.Overdue || left.Hours != 1 || left.Minutes != 30 {
		t.Fatalf("Remaining() = %+v, want overdue 1h 30m", left)
	}
}
