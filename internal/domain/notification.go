package domain

import "time"

// NotificationSeverity tags how urgent a notification is.
type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "INFO"
	SeverityWarning NotificationSeverity = "WARNING"
	SeverityAlert   NotificationSeverity = "ALERT"
)

// Notification is addressed to one user; only the read flag ever changes.
type Notification struct {
	ID        int64
	UserID    int64
	Message   string
	Severity  NotificationSeverity
	TicketID  *int64
	Read      bool
	CreatedAt time.Time
}
