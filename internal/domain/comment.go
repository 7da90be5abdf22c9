package domain

import "time"

// Comment is a note in a ticket's discussion thread. Internal comments are
// hidden from everyone who cannot manage escalations.
type Comment struct {
	ID        int64
	TicketID  int64
	UserID    int64
	Content   string
	Internal  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
