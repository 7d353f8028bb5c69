package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type fakeTicketRepo struct {
	mu        sync.Mutex
	tickets   map[string]domain.Ticket
	createErr error
	listErr   error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]domain.Ticket{}}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := cloneTicket(ticket)
	return &clone, nil
}

func (r *fakeTicketRepo) UpdateIfVersion(_ context.Context, id string, update repository.TicketUpdate, expectedVersion int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if ticket.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}
	ticket.Status = update.Status
	ticket.Priority = update.Priority
	ticket.AssignedTo = cloneString(update.AssignedTo)
	ticket.UpdatedAt = update.UpdatedAt
	ticket.Version++
	r.tickets[id] = ticket
	clone := cloneTicket(ticket)
	return &clone, nil
}

func (r *fakeTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	matched := r.filter(filter)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (r *fakeTicketRepo) SearchIDs(_ context.Context, term string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	term = strings.ToLower(term)
	var ids []string
	for id, ticket := range r.tickets {
		if strings.Contains(strings.ToLower(ticket.Title), term) || strings.Contains(strings.ToLower(ticket.Description), term) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *fakeTicketRepo) SetBreachFlags(_ context.Context, ids []string, breached bool) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var flipped []string
	for _, id := range ids {
		ticket, ok := r.tickets[id]
		if !ok || ticket.IsBreached == breached {
			continue
		}
		ticket.IsBreached = breached
		r.tickets[id] = ticket
		flipped = append(flipped, id)
	}
	return flipped, nil
}

func (r *fakeTicketRepo) Count(_ context.Context, filter repository.TicketFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.filter(filter)), nil
}

func (r *fakeTicketRepo) CountBy(_ context.Context, field repository.GroupField) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, ticket := range r.tickets {
		switch field {
		case repository.GroupByStatus:
			counts[string(ticket.Status)]++
		case repository.GroupByPriority:
			counts[string(ticket.Priority)]++
		}
	}
	return counts, nil
}

func (r *fakeTicketRepo) filter(filter repository.TicketFilter) []domain.Ticket {
	var ids map[string]bool
	if filter.IDs != nil {
		ids = map[string]bool{}
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}
	result := []domain.Ticket{}
	for _, ticket := range r.tickets {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
			continue
		}
		if filter.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.Breached != nil && ticket.IsBreached != *filter.Breached {
			continue
		}
		if filter.DeadlineBefore != nil && !ticket.SLADeadline.Before(*filter.DeadlineBefore) {
			continue
		}
		if ids != nil && !ids[ticket.ID] {
			continue
		}
		result = append(result, cloneTicket(ticket))
	}
	return result
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	comments []domain.Comment
}

func (r *fakeCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments = append(r.comments, *comment)
	return nil
}

func (r *fakeCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []domain.Comment{}
	for _, comment := range r.comments {
		if comment.TicketID == ticketID {
			result = append(result, comment)
		}
	}
	return result, nil
}

func (r *fakeCommentRepo) SearchTicketIDs(_ context.Context, term string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	term = strings.ToLower(term)
	var ids []string
	for _, comment := range r.comments {
		if strings.Contains(strings.ToLower(comment.Content), term) {
			ids = append(ids, comment.TicketID)
		}
	}
	return ids, nil
}

type fakeHistoryRepo struct {
	mu        sync.Mutex
	entries   []domain.HistoryEntry
	appendErr error
}

func (r *fakeHistoryRepo) Append(_ context.Context, entry *domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []domain.HistoryEntry{}
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *fakeHistoryRepo) byAction(action domain.HistoryAction) []domain.HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.HistoryEntry
	for _, entry := range r.entries {
		if entry.Action == action {
			result = append(result, entry)
		}
	}
	return result
}

type fakeUserRepo struct {
	users map[string]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	repo := &fakeUserRepo{users: map[string]domain.User{}}
	for _, user := range []domain.User{
		{ID: domain.SystemUserID, Name: "System", Email: "system@helpdesk.local", Role: domain.UserRoleAdmin},
		{ID: domain.DemoAgentUserID, Name: "Demo Agent", Email: "agent@helpdesk.local", Role: domain.UserRoleAgent},
		{ID: domain.DemoUserID, Name: "Demo User", Email: "user@helpdesk.local", Role: domain.UserRoleUser},
	} {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *fakeUserRepo) ListByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	result := []domain.User{}
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			result = append(result, user)
		}
	}
	return result, nil
}

func (r *fakeUserRepo) List(_ context.Context) ([]domain.User, error) {
	result := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func cloneTicket(ticket domain.Ticket) domain.Ticket {
	ticket.AssignedTo = cloneString(ticket.AssignedTo)
	return ticket
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func containsStatus(values []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func containsPriority(values []domain.TicketPriority, v domain.TicketPriority) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
