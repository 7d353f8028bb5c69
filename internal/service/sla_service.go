package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/sla"
)

const slaBreachedHistoryValue = "SLA deadline exceeded"

// BreachUpdate records one ticket whose breach flag a sweep changed.
type BreachUpdate struct {
	TicketID      string
	WasBreached   bool
	IsNowBreached bool
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Checked int
	Updates []BreachUpdate
}

// SweepDependencies bundles collaborators for the sweeper.
type SweepDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// BreachSweeper refreshes the cached breach flag of every active ticket.
// It never touches version or updated_at, so it can run alongside edits.
type BreachSweeper struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewBreachSweeper constructs the sweeper.
func NewBreachSweeper(deps SweepDependencies) *BreachSweeper {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreachSweeper{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Sweep recomputes breach state against now. Flag writes are conditioned on
// the stored value, so only tickets that actually flip are reported, and
// only a false to true flip writes an sla_breached history entry. Running
// it again with the same now changes nothing.
func (s *BreachSweeper) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	started := time.Now()
	now = now.UTC()

	active, _, err := s.tickets.List(ctx, repository.TicketFilter{Statuses: domain.ActiveStatuses})
	if err != nil {
		return nil, storeFailure(s.logger, "list active tickets", "", err)
	}

	byID := make(map[string]domain.Ticket, len(active))
	var toBreach, toClear []string
	for _, ticket := range active {
		breached := sla.IsBreached(ticket.SLADeadline, now)
		if breached == ticket.IsBreached {
			continue
		}
		byID[ticket.ID] = ticket
		if breached {
			toBreach = append(toBreach, ticket.ID)
		} else {
			toClear = append(toClear, ticket.ID)
		}
	}

	breachedIDs, err := s.tickets.SetBreachFlags(ctx, toBreach, true)
	if err != nil {
		return nil, storeFailure(s.logger, "flag breached tickets", "", err)
	}
	clearedIDs, err := s.tickets.SetBreachFlags(ctx, toClear, false)
	if err != nil {
		return nil, storeFailure(s.logger, "clear breach flags", "", err)
	}

	flipped := make(map[string]bool, len(breachedIDs)+len(clearedIDs))
	for _, id := range breachedIDs {
		flipped[id] = true
	}
	for _, id := range clearedIDs {
		flipped[id] = false
	}

	result := &SweepResult{Checked: len(active), Updates: []BreachUpdate{}}
	for _, ticket := range active {
		isNow, ok := flipped[ticket.ID]
		if !ok {
			continue
		}
		result.Updates = append(result.Updates, BreachUpdate{
			TicketID:      ticket.ID,
			WasBreached:   !isNow,
			IsNowBreached: isNow,
		})
	}

	for _, id := range breachedIDs {
		value := slaBreachedHistoryValue
		if err := appendHistory(ctx, s.history, s.logger, id, domain.SystemUserID, domain.ActionSLABreached, nil, &value, now); err != nil {
			return nil, err
		}
		ticket := byID[id]
		publish(ctx, s.dispatcher, s.logger, events.Event{
			Type:     events.EventTicketSLABreached,
			TicketID: id,
			UserID:   domain.SystemUserID,
			Payload: events.TicketSLABreachedPayload{
				Priority:    ticket.Priority,
				SLADeadline: ticket.SLADeadline,
			},
		})
	}

	elapsed := time.Since(started)
	s.metrics.RecordSweep(elapsed, result.Checked, len(breachedIDs), len(clearedIDs))
	s.logger.Info("sla sweep finished",
		zap.Int("checked", result.Checked),
		zap.Int("updated", len(result.Updates)),
		zap.Int("newly_breached", len(breachedIDs)),
		zap.Duration("duration", elapsed))
	return result, nil
}
