package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "chronovault/pkg/logx"
)

// Store is the message persistence API consumed by the delivery engine and
// the authoring service.
type Store interface {
	Insert(ctx context.Context, m *TimeMessage) error
	Get(ctx context.Context, id string) (*TimeMessage, error)
	ListByOwner(ctx context.Context, ownerID string) ([]TimeMessage, error)

	// DueUndelivered returns all messages with delivered == false and
	// delivery_at <= now, ordered by ascending delivery_at (stable for tests).
	DueUndelivered(ctx context.Context, now time.Time) ([]TimeMessage, error)

	// MarkDelivered flips delivered false -> true and records deliveredAt.
	// It returns ErrConflict if another writer already delivered the message
	// and ErrNotFound if the id is absent. The update is conditional: it never
	// overwrites an existing delivered state.
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
