package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/sla"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const (
	createdHistoryValue   = "Ticket created"
	commentHistoryMaxLen  = 100
	defaultListLimit      = 10
	defaultMaxListLimit   = 100
	eventPreviewMaxLength = 120
)

// TicketService coordinates ticket workflows: creation, versioned updates,
// comments and listing. Every write it accepts leaves an audit trail.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	history    repository.TicketHistoryRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	listLimit  int
	maxLimit   int
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	HistoryRepo repository.TicketHistoryRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	// Clock defaults to time.Now.
	Clock        func() time.Time
	DefaultLimit int
	MaxLimit     int
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	CreatedBy   string
}

// AssigneePatch sets or clears the assignee. A nil or empty UserID unassigns.
type AssigneePatch struct {
	UserID *string
}

// TicketPatch lists the fields an update may change. Nil fields are left as is.
type TicketPatch struct {
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	AssignedTo *AssigneePatch
}

// TicketListFilter describes listing filters. Zero values do not filter.
type TicketListFilter struct {
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	AssignedTo *string
	Breached   *bool
	Search     string
	Limit      int
	Offset     int
}

// TicketPage is one page of tickets plus the total matching count.
type TicketPage struct {
	Tickets []domain.Ticket
	Total   int
	Limit   int
	Offset  int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
		listLimit:  deps.DefaultLimit,
		maxLimit:   deps.MaxLimit,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxLimit <= 0 {
		s.maxLimit = defaultMaxListLimit
	}
	if s.listLimit <= 0 || s.listLimit > s.maxLimit {
		s.listLimit = min(defaultListLimit, s.maxLimit)
	}
	return s
}

// CreateTicket opens a ticket with a deadline derived from its priority.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	createdBy := strings.TrimSpace(input.CreatedBy)

	missing := []string{}
	if title == "" {
		missing = append(missing, "title")
	}
	if description == "" {
		missing = append(missing, "description")
	}
	if createdBy == "" {
		missing = append(missing, "created_by")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, invalidValue("priority", string(priority))
	}
	if err := s.requireUser(ctx, "created_by", createdBy); err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	now := s.clock()
	ticket := &domain.Ticket{
		ID:          id,
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		CreatedBy:   createdBy,
		SLADeadline: sla.DeadlineFor(priority, now),
		IsBreached:  false,
		Version:     domain.InitialTicketVersion,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, s.storeFailure("create ticket", ticket.ID, err)
	}

	created := createdHistoryValue
	if err := s.appendHistory(ctx, ticket.ID, createdBy, domain.ActionCreated, nil, &created, now); err != nil {
		return nil, err
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		UserID:   createdBy,
		Payload: events.TicketCreatedPayload{
			Priority:    ticket.Priority,
			Title:       ticket.Title,
			SLADeadline: ticket.SLADeadline,
		},
	})
	return ticket, nil
}

// UpdateTicket applies patch under optimistic concurrency. When
// expectedVersion is nil the version just read is used as the condition, so
// the write is never unconditioned. Every accepted call bumps the version,
// but history is only written for fields whose value actually changed.
func (s *TicketService) UpdateTicket(ctx context.Context, id string, patch TicketPatch, expectedVersion *int64, actingUser string) (*domain.Ticket, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, invalidValue("status", string(*patch.Status))
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, invalidValue("priority", string(*patch.Priority))
	}
	actingUser = strings.TrimSpace(actingUser)
	if actingUser == "" {
		return nil, apperrors.NewValidationError("acting user is required", nil)
	}

	current, err := s.loadTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != current.Version {
		s.metrics.RecordVersionConflict()
		return nil, apperrors.NewVersionConflict(current.Version)
	}

	update := repository.TicketUpdate{
		Status:     current.Status,
		Priority:   current.Priority,
		AssignedTo: current.AssignedTo,
	}
	var changes []events.FieldChange
	if patch.Status != nil && *patch.Status != current.Status {
		update.Status = *patch.Status
		changes = append(changes, events.FieldChange{
			Action:   domain.ActionStatusChanged,
			OldValue: string(current.Status),
			NewValue: string(*patch.Status),
		})
	}
	if patch.Priority != nil && *patch.Priority != current.Priority {
		update.Priority = *patch.Priority
		changes = append(changes, events.FieldChange{
			Action:   domain.ActionPriorityChanged,
			OldValue: string(current.Priority),
			NewValue: string(*patch.Priority),
		})
	}
	if patch.AssignedTo != nil {
		next := normalizeAssignee(patch.AssignedTo.UserID)
		if next != nil {
			if err := s.requireUser(ctx, "assigned_to", *next); err != nil {
				return nil, err
			}
		}
		if assigneeLabel(next) != assigneeLabel(current.AssignedTo) {
			update.AssignedTo = next
			changes = append(changes, events.FieldChange{
				Action:   domain.ActionAssignedToChanged,
				OldValue: assigneeLabel(current.AssignedTo),
				NewValue: assigneeLabel(next),
			})
		}
	}
	if err := s.requireUser(ctx, "acting_user", actingUser); err != nil {
		return nil, err
	}

	now := s.clock()
	update.UpdatedAt = now
	updated, err := s.tickets.UpdateIfVersion(ctx, current.ID, update, current.Version)
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		return nil, s.conflict(ctx, current.ID)
	case errors.Is(err, repository.ErrNotFound):
		return nil, ticketNotFound(id)
	case err != nil:
		return nil, s.storeFailure("update ticket", current.ID, err)
	}

	for _, change := range changes {
		oldValue, newValue := change.OldValue, change.NewValue
		if err := s.appendHistory(ctx, updated.ID, actingUser, change.Action, &oldValue, &newValue, now); err != nil {
			return nil, err
		}
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: updated.ID,
		UserID:   actingUser,
		Payload: events.TicketUpdatedPayload{
			Version: updated.Version,
			Changes: changes,
		},
	})
	return updated, nil
}

// AddComment attaches a note to a ticket and records it in the history.
func (s *TicketService) AddComment(ctx context.Context, ticketID, content, userID string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	userID = strings.TrimSpace(userID)
	if content == "" {
		return nil, apperrors.NewValidationError("content is required", nil)
	}
	if userID == "" {
		return nil, apperrors.NewValidationError("user is required", nil)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, "user_id", userID); err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	now := s.clock()
	comment := &domain.Comment{
		ID:        id,
		TicketID:  ticket.ID,
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, s.storeFailure("create comment", ticket.ID, err)
	}

	excerpt := truncate(content, commentHistoryMaxLen)
	if err := s.appendHistory(ctx, ticket.ID, userID, domain.ActionCommented, nil, &excerpt, now); err != nil {
		return nil, err
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketCommented,
		TicketID: ticket.ID,
		UserID:   userID,
		Payload: events.TicketCommentedPayload{
			CommentID: comment.ID,
			Preview:   truncate(content, eventPreviewMaxLength),
		},
	})
	return comment, nil
}

// GetTicket returns the stored ticket.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.loadTicket(ctx, id)
}

// ListComments returns the ticket's comments oldest first.
func (s *TicketService) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, s.storeFailure("list comments", ticket.ID, err)
	}
	return comments, nil
}

// ListHistory returns the ticket's audit trail newest first.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, s.storeFailure("list history", ticket.ID, err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// ListTickets filters, searches and paginates tickets, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) (*TicketPage, error) {
	repoFilter := repository.TicketFilter{
		AssignedTo: filter.AssignedTo,
		Breached:   filter.Breached,
		Limit:      s.normalizeLimit(filter.Limit),
		Offset:     max(filter.Offset, 0),
	}
	page := &TicketPage{Tickets: []domain.Ticket{}, Limit: repoFilter.Limit, Offset: repoFilter.Offset}

	if filter.Status != nil {
		if !filter.Status.Valid() {
			return nil, invalidValue("status", string(*filter.Status))
		}
		repoFilter.Statuses = []domain.TicketStatus{*filter.Status}
	}
	if filter.Priority != nil {
		if !filter.Priority.Valid() {
			return nil, invalidValue("priority", string(*filter.Priority))
		}
		repoFilter.Priorities = []domain.TicketPriority{*filter.Priority}
	}

	if term := strings.TrimSpace(filter.Search); term != "" {
		ids, err := s.searchTicketIDs(ctx, term)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return page, nil
		}
		repoFilter.IDs = ids
	}

	tickets, total, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, s.storeFailure("list tickets", "", err)
	}
	page.Tickets = tickets
	page.Total = total
	return page, nil
}

func (s *TicketService) searchTicketIDs(ctx context.Context, term string) ([]string, error) {
	direct, err := s.tickets.SearchIDs(ctx, term)
	if err != nil {
		return nil, s.storeFailure("search tickets", "", err)
	}
	viaComments, err := s.comments.SearchTicketIDs(ctx, term)
	if err != nil {
		return nil, s.storeFailure("search comments", "", err)
	}

	seen := make(map[string]struct{}, len(direct)+len(viaComments))
	ids := make([]string, 0, len(direct)+len(viaComments))
	for _, id := range append(direct, viaComments...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *TicketService) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.listLimit
	}
	return min(limit, s.maxLimit)
}

func (s *TicketService) loadTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	id = strings.TrimSpace(id)
	if !validID(id) {
		return nil, ticketNotFound(id)
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ticketNotFound(id)
	}
	if err != nil {
		return nil, s.storeFailure("get ticket", id, err)
	}
	return ticket, nil
}

// conflict reports the version that won the race, or NotFound if the ticket
// disappeared in between.
func (s *TicketService) conflict(ctx context.Context, id string) error {
	s.metrics.RecordVersionConflict()
	latest, err := s.loadTicket(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.NewVersionConflict(latest.Version)
}

func (s *TicketService) requireUser(ctx context.Context, field, userID string) error {
	if !validID(userID) {
		return invalidValue(field, userID)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError("unknown user", map[string]any{"field": field, "user_id": userID})
		}
		return s.storeFailure("get user", "", err)
	}
	return nil
}

func (s *TicketService) appendHistory(ctx context.Context, ticketID, userID string, action domain.HistoryAction, oldValue, newValue *string, at time.Time) error {
	return appendHistory(ctx, s.history, s.logger, ticketID, userID, action, oldValue, newValue, at)
}

func (s *TicketService) storeFailure(op, ticketID string, err error) error {
	return storeFailure(s.logger, op, ticketID, err)
}

func (s *TicketService) clock() time.Time {
	return s.now().UTC()
}

func appendHistory(ctx context.Context, repo repository.TicketHistoryRepository, logger *zap.Logger, ticketID, userID string, action domain.HistoryAction, oldValue, newValue *string, at time.Time) error {
	id, err := newID()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	entry := &domain.HistoryEntry{
		ID:        id,
		TicketID:  ticketID,
		UserID:    userID,
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		CreatedAt: at,
	}
	if err := repo.Append(ctx, entry); err != nil {
		return storeFailure(logger, "append history", ticketID, err)
	}
	return nil
}

func storeFailure(logger *zap.Logger, op, ticketID string, err error) error {
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	if ticketID != "" {
		fields = append(fields, zap.String("ticket_id", ticketID))
	}
	logger.Error("store failure", fields...)
	return apperrors.NewStoreError(err)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// newID returns a time-ordered UUID so ids of rows written in the same
// instant still sort in insertion order.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func validID(id string) bool {
	return uuid.Validate(id) == nil
}

func normalizeAssignee(userID *string) *string {
	if userID == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*userID)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func assigneeLabel(userID *string) string {
	if userID == nil {
		return domain.UnassignedValue
	}
	return *userID
}

func ticketNotFound(id string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
}

func invalidValue(field, value string) error {
	return apperrors.NewValidationError("invalid "+field, map[string]any{"field": field, "value": value})
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}
