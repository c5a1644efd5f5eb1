package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no message exists for the given id.
	ErrNotFound = errors.New("message not found")
	// ErrConflict is returned by MarkDelivered when the message was already
	// delivered by another writer.
	ErrConflict = errors.New("message already delivered")
	// ErrDuplicateID is returned by Insert when the id is already taken.
	ErrDuplicateID = errors.New("duplicate message id")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "memory": in-process map (not durable)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// TimeMessage is a content payload bound to a recipient and a future delivery
// instant. All fields except the delivered transition are immutable after
// creation; there is no edit operation.
type TimeMessage struct {
	ID          string
	OwnerID     string
	Recipient   string
	Content     string
	DeliveryAt  time.Time
	CreatedAt   time.Time
	Delivered   bool
	DeliveredAt *time.Time
}

// Due reports whether the message is eligible for delivery at now.
func (m *TimeMessage) Due(now time.Time) bool {
	return !m.Delivered && !m.DeliveryAt.After(now)
}
