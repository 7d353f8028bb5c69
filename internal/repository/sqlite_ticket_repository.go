package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spec-kit/helpdesk/internal/domain"
)

type sqliteTicketRepository struct {
	db *sql.DB
}

// NewSQLiteTicketRepository returns the embedded store implementation.
func NewSQLiteTicketRepository(db *sql.DB) TicketRepository {
	return &sqliteTicketRepository{db: db}
}

func (r *sqliteTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, title, description, status, priority, created_by, assigned_to,
                             sla_deadline, is_breached, version, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		string(ticket.Status),
		string(ticket.Priority),
		ticket.CreatedBy,
		nullString(ticket.AssignedTo),
		formatSQLiteTime(ticket.SLADeadline),
		ticket.IsBreached,
		ticket.Version,
		formatSQLiteTime(ticket.CreatedAt),
		formatSQLiteTime(ticket.UpdatedAt),
	)
	return err
}

func (r *sqliteTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=?`
	ticket, err := scanSQLiteTicket(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ticket, err
}

func (r *sqliteTicketRepository) UpdateIfVersion(ctx context.Context, id string, update TicketUpdate, expectedVersion int64) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET status=?, priority=?, assigned_to=?, updated_at=?, version=version+1
        WHERE id=? AND version=?
        RETURNING ` + ticketColumns
	ticket, err := scanSQLiteTicket(r.db.QueryRowContext(ctx, query,
		string(update.Status),
		string(update.Priority),
		nullString(update.AssignedTo),
		formatSQLiteTime(update.UpdatedAt),
		id,
		expectedVersion,
	))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=?)`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrVersionConflict
	}
	return ticket, err
}

func (r *sqliteTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	q := &queryArgs{d: sqliteDialect}
	where := ticketWhere(filter, q)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, q.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id DESC%s`,
		ticketColumns, where, pageClause(filter, sqliteDialect))
	rows, err := r.db.QueryContext(ctx, query, q.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanSQLiteTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *sqliteTicketRepository) SearchIDs(ctx context.Context, term string) ([]string, error) {
	const query = `
        SELECT id FROM tickets
        WHERE unicode_lower(title) LIKE ? ESCAPE '\' OR unicode_lower(description) LIKE ? ESCAPE '\'`
	pattern := likePattern(term)
	rows, err := r.db.QueryContext(ctx, query, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteIDs(rows)
}

func (r *sqliteTicketRepository) SetBreachFlags(ctx context.Context, ids []string, breached bool) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := &queryArgs{d: sqliteDialect}
	set := q.add(breached)
	in := q.addIDSet(ids)
	differs := q.add(breached)
	query := fmt.Sprintf(`UPDATE tickets SET is_breached=%s WHERE %s AND is_breached <> %s RETURNING id`,
		set, in, differs)
	rows, err := r.db.QueryContext(ctx, query, q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteIDs(rows)
}

func (r *sqliteTicketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	q := &queryArgs{d: sqliteDialect}
	where := ticketWhere(filter, q)
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, q.args...).Scan(&total)
	return total, err
}

func (r *sqliteTicketRepository) CountBy(ctx context.Context, field GroupField) (map[string]int, error) {
	column, err := groupColumn(field)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s, COUNT(*) FROM tickets GROUP BY %s`, column, column))
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket                         domain.Ticket
		assignedTo                     sql.NullString
		deadline, createdAt, updatedAt string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedBy,
		&assignedTo,
		&deadline,
		&ticket.IsBreached,
		&ticket.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	if assignedTo.Valid {
		ticket.AssignedTo = &assignedTo.String
	}
	var err error
	if ticket.SLADeadline, err = parseSQLiteTime(deadline); err != nil {
		return nil, err
	}
	if ticket.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	if ticket.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanSQLiteIDs(rows *sql.Rows) ([]string, error) {
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

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
