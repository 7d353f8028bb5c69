package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spec-kit/helpdesk/internal/domain"
)

type sqliteCommentRepository struct {
	db *sql.DB
}

// NewSQLiteCommentRepository returns the embedded store implementation.
func NewSQLiteCommentRepository(db *sql.DB) CommentRepository {
	return &sqliteCommentRepository{db: db}
}

func (r *sqliteCommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `INSERT INTO comments (id, ticket_id, user_id, content, created_at) VALUES (?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, query,
		comment.ID,
		comment.TicketID,
		comment.UserID,
		comment.Content,
		formatSQLiteTime(comment.CreatedAt),
	)
	return err
}

func (r *sqliteCommentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, ticket_id, user_id, content, created_at
        FROM comments WHERE ticket_id=? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		var (
			comment   domain.Comment
			createdAt string
		)
		if err := rows.Scan(&comment.ID, &comment.TicketID, &comment.UserID, &comment.Content, &createdAt); err != nil {
			return nil, err
		}
		if comment.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}

func (r *sqliteCommentRepository) SearchTicketIDs(ctx context.Context, term string) ([]string, error) {
	const query = `SELECT DISTINCT ticket_id FROM comments WHERE unicode_lower(content) LIKE ? ESCAPE '\'`
	rows, err := r.db.QueryContext(ctx, query, likePattern(term))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteIDs(rows)
}

type sqliteTicketHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteTicketHistoryRepository returns the embedded store implementation.
func NewSQLiteTicketHistoryRepository(db *sql.DB) TicketHistoryRepository {
	return &sqliteTicketHistoryRepository{db: db}
}

func (r *sqliteTicketHistoryRepository) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	const query = `
        INSERT INTO ticket_history (id, ticket_id, user_id, action, old_value, new_value, created_at)
        VALUES (?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.UserID,
		string(entry.Action),
		nullString(entry.OldValue),
		nullString(entry.NewValue),
		formatSQLiteTime(entry.CreatedAt),
	)
	return err
}

func (r *sqliteTicketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, user_id, action, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.HistoryEntry{}
	for rows.Next() {
		var (
			entry              domain.HistoryEntry
			oldValue, newValue sql.NullString
			createdAt          string
		)
		if err := rows.Scan(&entry.ID, &entry.TicketID, &entry.UserID, &entry.Action, &oldValue, &newValue, &createdAt); err != nil {
			return nil, err
		}
		if oldValue.Valid {
			entry.OldValue = &oldValue.String
		}
		if newValue.Valid {
			entry.NewValue = &newValue.String
		}
		if entry.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

type sqliteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository returns the embedded store implementation.
func NewSQLiteUserRepository(db *sql.DB) UserRepository {
	return &sqliteUserRepository{db: db}
}

func (r *sqliteUserRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, name, role, created_at, updated_at) VALUES (?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		string(user.Role),
		formatSQLiteTime(user.CreatedAt),
		formatSQLiteTime(user.UpdatedAt),
	)
	return err
}

func (r *sqliteUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	users, err := r.query(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

func (r *sqliteUserRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	q := &queryArgs{d: sqliteDialect}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id IN (%s) ORDER BY name ASC`, userColumns, q.addList(ids))
	return r.query(ctx, query, q.args...)
}

func (r *sqliteUserRepository) List(ctx context.Context) ([]domain.User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name ASC`)
}

func (r *sqliteUserRepository) query(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.User{}
	for rows.Next() {
		var (
			user                 domain.User
			createdAt, updatedAt string
		)
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if user.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
			return nil, err
		}
		if user.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}
