package entity

import "time"

const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

type OutboxNotification struct {
	ID            uint64
	UserID        string
	Kind          string
	Payload       []byte
	Status        string
	Attempts      int
	LastError     *string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type User struct {
	ID          string
	DisplayName string
	Email       string
}
