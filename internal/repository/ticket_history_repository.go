package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketHistoryRepository stores audit entries. Entries are append only.
type TicketHistoryRepository interface {
	Append(ctx context.Context, entry *domain.HistoryEntry) error
	// ListByTicket returns entries oldest first.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	const query = `
        INSERT INTO ticket_history (id, ticket_id, user_id, action, old_value, new_value, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.UserID,
		entry.Action,
		entry.OldValue,
		entry.NewValue,
		entry.CreatedAt,
	)
	return err
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, user_id, action, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.HistoryEntry{}
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.UserID,
			&entry.Action,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
