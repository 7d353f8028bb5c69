package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CommentRepository manages ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	// ListByTicket returns comments oldest first.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
	// SearchTicketIDs returns distinct ids of tickets with a comment containing term.
	SearchTicketIDs(ctx context.Context, term string) ([]string, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (id, ticket_id, user_id, content, created_at)
        VALUES ($1,$2,$3,$4,$5)`
	_, err := r.pool.Exec(ctx, query,
		comment.ID,
		comment.TicketID,
		comment.UserID,
		comment.Content,
		comment.CreatedAt,
	)
	return err
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, user_id, content, created_at
        FROM comments WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.UserID,
			&comment.Content,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}

func (r *commentRepository) SearchTicketIDs(ctx context.Context, term string) ([]string, error) {
	const query = `SELECT DISTINCT ticket_id FROM comments WHERE LOWER(content) LIKE $1 ESCAPE '\'`
	rows, err := r.pool.Query(ctx, query, likePattern(term))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}
