package models

import "time"

// NotificationType categorises an inbox entry.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
	NotificationFinding NotificationType = "finding"
	NotificationPentest NotificationType = "pentest"
	NotificationReport  NotificationType = "report"
	NotificationComment NotificationType = "comment"
)

// Notification is one persisted inbox row. A tenant-wide event produces one
// row per recipient, each read independently.
type Notification struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"userId" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	Link      *string          `json:"link,omitempty" db:"link"`
	Metadata  Metadata         `json:"metadata,omitempty" db:"metadata"`
	Read      bool             `json:"read" db:"read"`
	ReadAt    *time.Time       `json:"readAt,omitempty" db:"read_at"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
}
