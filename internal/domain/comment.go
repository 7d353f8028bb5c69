package domain

import "time"

// Comment is a note left on a ticket. Comments are never edited.
type Comment struct {
	ID        string
	TicketID  string
	UserID    string
	Content   string
	CreatedAt time.Time
}
