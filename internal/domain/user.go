package domain

import "time"

// UserRole is stored for display; it is not enforced.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAgent UserRole = "agent"
	UserRoleAdmin UserRole = "admin"
)

// Reserved users seeded by the migrations.
const (
	SystemUserID    = "00000000-0000-0000-0000-000000000001"
	DemoAgentUserID = "00000000-0000-0000-0000-000000000002"
	DemoUserID      = "00000000-0000-0000-0000-000000000003"
)

// User is someone who files, works on, or comments on tickets.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      UserRole
	CreatedAt time.Time
	UpdatedAt time.Time
}
