package repository

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Set groups the repositories backed by one store.
type Set struct {
	Tickets  TicketRepository
	Comments CommentRepository
	History  TicketHistoryRepository
	Users    UserRepository
}

// NewPostgresSet wires every repository to pool.
func NewPostgresSet(pool *pgxpool.Pool) Set {
	return Set{
		Tickets:  NewTicketRepository(pool),
		Comments: NewCommentRepository(pool),
		History:  NewTicketHistoryRepository(pool),
		Users:    NewUserRepository(pool),
	}
}

// NewSQLiteSet wires every repository to db.
func NewSQLiteSet(db *sql.DB) Set {
	return Set{
		Tickets:  NewSQLiteTicketRepository(db),
		Comments: NewSQLiteCommentRepository(db),
		History:  NewSQLiteTicketHistoryRepository(db),
		Users:    NewSQLiteUserRepository(db),
	}
}
