package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/sla"
)

// SLAStats is the dashboard summary.
type SLAStats struct {
	Total      int
	Breached   int
	AtRisk     int
	ByStatus   map[string]int
	ByPriority map[string]int
}

// StatsService computes read-only ticket aggregates.
type StatsService struct {
	tickets repository.TicketRepository
	logger  *zap.Logger
}

// NewStatsService constructs the service.
func NewStatsService(tickets repository.TicketRepository, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{tickets: tickets, logger: logger}
}

// Stats counts tickets as of now. Breached and at-risk only consider active
// tickets; the grouped counts cover every ticket.
func (s *StatsService) Stats(ctx context.Context, now time.Time) (*SLAStats, error) {
	total, err := s.tickets.Count(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, storeFailure(s.logger, "count tickets", "", err)
	}

	breached := true
	breachedCount, err := s.tickets.Count(ctx, repository.TicketFilter{
		Statuses: domain.ActiveStatuses,
		Breached: &breached,
	})
	if err != nil {
		return nil, storeFailure(s.logger, "count breached", "", err)
	}

	notBreached := false
	riskHorizon := now.UTC().Add(sla.AtRiskWindow)
	atRisk, err := s.tickets.Count(ctx, repository.TicketFilter{
		Statuses:       domain.ActiveStatuses,
		Breached:       &notBreached,
		DeadlineBefore: &riskHorizon,
	})
	if err != nil {
		return nil, storeFailure(s.logger, "count at risk", "", err)
	}

	byStatus, err := s.tickets.CountBy(ctx, repository.GroupByStatus)
	if err != nil {
		return nil, storeFailure(s.logger, "count by status", "", err)
	}
	byPriority, err := s.tickets.CountBy(ctx, repository.GroupByPriority)
	if err != nil {
		return nil, storeFailure(s.logger, "count by priority", "", err)
	}
	if byStatus == nil {
		byStatus = map[string]int{}
	}
	if byPriority == nil {
		byPriority = map[string]int{}
	}

	return &SLAStats{
		Total:      total,
		Breached:   breachedCount,
		AtRisk:     atRisk,
		ByStatus:   byStatus,
		ByPriority: byPriority,
	}, nil
}
