package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// UnicodeLowerFunc is a scalar function available on every sqlite
// connection. It lowercases text with full Unicode case mapping; the
// builtin LOWER only folds ASCII letters.
const UnicodeLowerFunc = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(UnicodeLowerFunc, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// SQLite wraps an embedded database handle.
type SQLite struct {
	DB *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)

	store := &SQLite{DB: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("opened sqlite", zap.String("path", path))
	}
	return store, nil
}

// Close releases the handle.
func (s *SQLite) Close() {
	if s != nil && s.DB != nil {
		_ = s.DB.Close()
	}
}

// Ping verifies the handle is usable.
func (s *SQLite) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("sqlite not configured")
	}
	return s.DB.PingContext(ctx)
}

// Timestamps are stored as fixed width UTC text so lexical order matches time order.
func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'agent', 'admin')),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL CHECK (title <> ''),
			description TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'in_progress', 'resolved', 'closed')),
			priority TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high', 'urgent')),
			created_by TEXT NOT NULL REFERENCES users(id),
			assigned_to TEXT REFERENCES users(id),
			sla_deadline TEXT NOT NULL,
			is_breached INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS tickets_created_at_idx ON tickets (created_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS tickets_sla_idx ON tickets (status, is_breached, sla_deadline);`,
		`CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			ticket_id TEXT NOT NULL REFERENCES tickets(id),
			user_id TEXT NOT NULL REFERENCES users(id),
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS comments_ticket_idx ON comments (ticket_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS ticket_history (
			id TEXT PRIMARY KEY,
			ticket_id TEXT NOT NULL REFERENCES tickets(id),
			user_id TEXT NOT NULL REFERENCES users(id),
			action TEXT NOT NULL,
			old_value TEXT,
			new_value TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS ticket_history_ticket_idx ON ticket_history (ticket_id, created_at);`,
		`INSERT OR IGNORE INTO users (id, email, name, role, created_at, updated_at) VALUES
			('00000000-0000-0000-0000-000000000001', 'system@helpdesk.local', 'System', 'admin', '1970-01-01T00:00:00.000000000Z', '1970-01-01T00:00:00.000000000Z'),
			('00000000-0000-0000-0000-000000000002', 'agent@helpdesk.local', 'Demo Agent', 'agent', '1970-01-01T00:00:00.000000000Z', '1970-01-01T00:00:00.000000000Z'),
			('00000000-0000-0000-0000-000000000003', 'user@helpdesk.local', 'Demo User', 'user', '1970-01-01T00:00:00.000000000Z', '1970-01-01T00:00:00.000000000Z');`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}
