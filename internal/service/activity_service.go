package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
)

// ActivityService reacts to ticket events by logging them and counting
// them in metrics.
type ActivityService struct {
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketCreated, a.handleTicketCreated)
	a.dispatcher.Subscribe(events.EventTicketUpdated, a.handleTicketUpdated)
	a.dispatcher.Subscribe(events.EventTicketCommented, a.handleTicketCommented)
	a.dispatcher.Subscribe(events.EventTicketSLABreached, a.handleTicketSLABreached)
}

func (a *ActivityService) handleTicketCreated(ctx context.Context, event events.Event) error {
	a.record(event)
	payload, _ := event.Payload.(events.TicketCreatedPayload)
	a.logger.Info("ticket created",
		zap.String("ticket_id", event.TicketID),
		zap.String("user_id", event.UserID),
		zap.String("priority", string(payload.Priority)),
		zap.Time("sla_deadline", payload.SLADeadline))
	return nil
}

func (a *ActivityService) handleTicketUpdated(ctx context.Context, event events.Event) error {
	a.record(event)
	payload, _ := event.Payload.(events.TicketUpdatedPayload)
	fields := []zap.Field{
		zap.String("ticket_id", event.TicketID),
		zap.String("user_id", event.UserID),
		zap.Int64("version", payload.Version),
	}
	for _, change := range payload.Changes {
		fields = append(fields, zap.String(string(change.Action), change.OldValue+" -> "+change.NewValue))
	}
	a.logger.Info("ticket updated", fields...)
	return nil
}

func (a *ActivityService) handleTicketCommented(ctx context.Context, event events.Event) error {
	a.record(event)
	payload, _ := event.Payload.(events.TicketCommentedPayload)
	a.logger.Info("ticket commented",
		zap.String("ticket_id", event.TicketID),
		zap.String("user_id", event.UserID),
		zap.String("comment_id", payload.CommentID))
	a.logger.Debug("comment preview", zap.String("ticket_id", event.TicketID), zap.String("preview", payload.Preview))
	return nil
}

func (a *ActivityService) handleTicketSLABreached(ctx context.Context, event events.Event) error {
	a.record(event)
	payload, _ := event.Payload.(events.TicketSLABreachedPayload)
	a.logger.Warn("ticket breached sla",
		zap.String("ticket_id", event.TicketID),
		zap.String("priority", string(payload.Priority)),
		zap.Time("sla_deadline", payload.SLADeadline))
	return nil
}

func (a *ActivityService) record(event events.Event) {
	a.metrics.RecordTicketEvent(string(event.Type))
}
