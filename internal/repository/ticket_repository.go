package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketFilter narrows ticket queries. Empty fields do not filter.
type TicketFilter struct {
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	AssignedTo     *string
	Breached       *bool
	DeadlineBefore *time.Time
	// IDs restricts results to the given ids when non-nil; an empty non-nil
	// slice matches nothing.
	IDs    []string
	Limit  int
	Offset int
}

// TicketUpdate carries the full set of user editable fields for a
// conditional write. Version is always bumped by one.
type TicketUpdate struct {
	Status     domain.TicketStatus
	Priority   domain.TicketPriority
	AssignedTo *string
	UpdatedAt  time.Time
}

// GroupField names a column tickets can be counted by.
type GroupField string

const (
	GroupByStatus   GroupField = "status"
	GroupByPriority GroupField = "priority"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// UpdateIfVersion applies update only if the stored version still equals
	// expectedVersion, as one atomic statement. It returns ErrVersionConflict
	// when the row exists with another version and ErrNotFound when it is gone.
	UpdateIfVersion(ctx context.Context, id string, update TicketUpdate, expectedVersion int64) (*domain.Ticket, error)
	// List returns one page ordered newest first, plus the unpaginated total.
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	// SearchIDs returns ids of tickets whose title or description contains term.
	SearchIDs(ctx context.Context, term string) ([]string, error)
	// SetBreachFlags writes is_breached for ids whose flag differs and returns
	// the ids it changed. Version and updated_at are left alone. The id list
	// is bound as a single argument, so its length is not capped by the
	// driver's parameter limit.
	SetBreachFlags(ctx context.Context, ids []string, breached bool) ([]string, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	CountBy(ctx context.Context, field GroupField) (map[string]int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, title, description, status, priority, created_by, assigned_to,
                             sla_deadline, is_breached, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.SLADeadline,
		ticket.IsBreached,
		ticket.Version,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ticket, err
}

func (r *ticketRepository) UpdateIfVersion(ctx context.Context, id string, update TicketUpdate, expectedVersion int64) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET status=$1, priority=$2, assigned_to=$3, updated_at=$4, version=version+1
        WHERE id=$5 AND version=$6
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query,
		update.Status,
		update.Priority,
		update.AssignedTo,
		update.UpdatedAt,
		id,
		expectedVersion,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrVersionConflict
	}
	return ticket, err
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	q := &queryArgs{d: postgresDialect}
	where := ticketWhere(filter, q)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, q.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id DESC%s`,
		ticketColumns, where, pageClause(filter, postgresDialect))
	rows, err := r.pool.Query(ctx, query, q.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) SearchIDs(ctx context.Context, term string) ([]string, error) {
	const query = `
        SELECT id FROM tickets
        WHERE LOWER(title) LIKE $1 ESCAPE '\' OR LOWER(description) LIKE $1 ESCAPE '\'`
	rows, err := r.pool.Query(ctx, query, likePattern(term))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *ticketRepository) SetBreachFlags(ctx context.Context, ids []string, breached bool) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := &queryArgs{d: postgresDialect}
	flag := q.add(breached)
	query := fmt.Sprintf(`UPDATE tickets SET is_breached=%s WHERE %s AND is_breached <> %s RETURNING id`,
		flag, q.addIDSet(ids), flag)
	rows, err := r.pool.Query(ctx, query, q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	q := &queryArgs{d: postgresDialect}
	where := ticketWhere(filter, q)
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, q.args...).Scan(&total)
	return total, err
}

func (r *ticketRepository) CountBy(ctx context.Context, field GroupField) (map[string]int, error) {
	column, err := groupColumn(field)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s, COUNT(*) FROM tickets GROUP BY %s`, column, column))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.SLADeadline,
		&ticket.IsBreached,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
