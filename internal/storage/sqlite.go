package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "chronovault/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Insert(ctx context.Context, m *TimeMessage) error {
	if m == nil || strings.TrimSpace(m.ID) == "" {
		return errors.New("message id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(id, owner_id, recipient, content, delivery_at, created_at, delivered, delivered_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		m.ID, m.OwnerID, m.Recipient, m.Content,
		m.DeliveryAt.UnixMilli(), m.CreatedAt.UnixMilli(), boolInt(m.Delivered), nullMilli(m.DeliveredAt),
	)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "unique") {
		return fmt.Errorf("%w: %s", ErrDuplicateID, m.ID)
	}
	return err
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*TimeMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, recipient, content, delivery_at, created_at, delivered, delivered_at
		 FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *sqliteStore) ListByOwner(ctx context.Context, ownerID string) ([]TimeMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, recipient, content, delivery_at, created_at, delivered, delivered_at
		 FROM messages WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *sqliteStore) DueUndelivered(ctx context.Context, now time.Time) ([]TimeMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, recipient, content, delivery_at, created_at, delivered, delivered_at
		 FROM messages WHERE delivered = 0 AND delivery_at <= ? ORDER BY delivery_at, id`,
		now.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (s *sqliteStore) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET delivered = 1, delivered_at = ? WHERE id = ? AND delivered = 0`,
		deliveredAt.UnixMilli(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// Distinguish "already delivered" from "no such message".
	var delivered int
	err = s.db.QueryRowContext(ctx, `SELECT delivered FROM messages WHERE id = ?`, id).Scan(&delivered)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(r rowScanner) (*TimeMessage, error) {
	var (
		m           TimeMessage
		deliveryAt  int64
		createdAt   int64
		delivered   int
		deliveredAt sql.NullInt64
	)
	if err := r.Scan(&m.ID, &m.OwnerID, &m.Recipient, &m.Content, &deliveryAt, &createdAt, &delivered, &deliveredAt); err != nil {
		return nil, err
	}
	m.DeliveryAt = time.UnixMilli(deliveryAt)
	m.CreatedAt = time.UnixMilli(createdAt)
	m.Delivered = delivered != 0
	if deliveredAt.Valid {
		t := time.UnixMilli(deliveredAt.Int64)
		m.DeliveredAt = &t
	}
	return &m, nil
}

func collectMessages(rows *sql.Rows) ([]TimeMessage, error) {
	var out []TimeMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullMilli(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
