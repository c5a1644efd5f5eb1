package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	logx "chronovault/pkg/logx"
)

// Both backends must implement the same contract, so every test runs against
// each of them.
func testStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "messages.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"sqlite": sq,
		"memory": NewMemory(),
	}
}

func mustInsert(t *testing.T, st Store, m TimeMessage) {
	t.Helper()
	if err := st.Insert(context.Background(), &m); err != nil {
		t.Fatalf("insert %s: %v", m.ID, err)
	}
}

var testBase = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func msg(id string, deliveryAt time.Time) TimeMessage {
	return TimeMessage{
		ID:         id,
		OwnerID:    "owner-1",
		Recipient:  "someone@example.com",
		Content:    "content of " + id,
		DeliveryAt: deliveryAt,
		CreatedAt:  testBase.Add(-time.Hour),
	}
}

func TestInsertAndGet(t *testing.T) {
	t.Parallel()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			in := msg("m1", testBase.Add(time.Hour))
			mustInsert(t, st, in)

			got, err := st.Get(ctx, "m1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.OwnerID != in.OwnerID || got.Recipient != in.Recipient || got.Content != in.Content {
				t.Fatalf("roundtrip mismatch: %+v", got)
			}
			if !got.DeliveryAt.Equal(in.DeliveryAt) || !got.CreatedAt.Equal(in.CreatedAt) {
				t.Fatalf("time roundtrip mismatch: got %v/%v", got.DeliveryAt, got.CreatedAt)
			}
			if got.Delivered || got.DeliveredAt != nil {
				t.Fatalf("new message must be undelivered: %+v", got)
			}

			if _, err := st.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("get missing = %v, want ErrNotFound", err)
			}
			if err := st.Insert(ctx, &in); !errors.Is(err, ErrDuplicateID) {
				t.Fatalf("duplicate insert = %v, want ErrDuplicateID", err)
			}
		})
	}
}

func TestDueUndeliveredSelectionAndOrder(t *testing.T) {
	t.Parallel()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := testBase

			mustInsert(t, st, msg("late", now.Add(-2*time.Hour)))
			mustInsert(t, st, msg("boundary", now)) // delivery_at == now is due
			mustInsert(t, st, msg("earliest", now.Add(-3*time.Hour)))
			mustInsert(t, st, msg("future", now.Add(time.Minute)))

			due, err := st.DueUndelivered(ctx, now)
			if err != nil {
				t.Fatalf("due: %v", err)
			}
			var ids []string
			for _, m := range due {
				ids = append(ids, m.ID)
			}
			want := []string{"earliest", "late", "boundary"}
			if len(ids) != len(want) {
				t.Fatalf("due ids = %v, want %v", ids, want)
			}
			for i := range want {
				if ids[i] != want[i] {
					t.Fatalf("due ids = %v, want %v", ids, want)
				}
			}

			// A delivered message disappears from the scan.
			if err := st.MarkDelivered(ctx, "late", now); err != nil {
				t.Fatalf("mark: %v", err)
			}
			due, err = st.DueUndelivered(ctx, now)
			if err != nil {
				t.Fatalf("due after mark: %v", err)
			}
			for _, m := range due {
				if m.ID == "late" {
					t.Fatal("delivered message still reported due")
				}
			}
		})
	}
}

func TestMarkDeliveredConditional(t *testing.T) {
	t.Parallel()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			mustInsert(t, st, msg("m1", testBase))
			at := testBase.Add(time.Second)

			if err := st.MarkDelivered(ctx, "m1", at); err != nil {
				t.Fatalf("first mark: %v", err)
			}
			got, err := st.Get(ctx, "m1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !got.Delivered || got.DeliveredAt == nil || !got.DeliveredAt.Equal(at) {
				t.Fatalf("delivered state not recorded: %+v", got)
			}

			if err := st.MarkDelivered(ctx, "m1", at.Add(time.Minute)); !errors.Is(err, ErrConflict) {
				t.Fatalf("second mark = %v, want ErrConflict", err)
			}
			// The original timestamp must survive the conflicting attempt.
			got, _ = st.Get(ctx, "m1")
			if !got.DeliveredAt.Equal(at) {
				t.Fatalf("delivered_at overwritten: %v", got.DeliveredAt)
			}

			if err := st.MarkDelivered(ctx, "missing", at); !errors.Is(err, ErrNotFound) {
				t.Fatalf("mark missing = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestMarkDeliveredConcurrentExactlyOne(t *testing.T) {
	t.Parallel()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			mustInsert(t, st, msg("race", testBase))

			const attempts = 16
			var wg sync.WaitGroup
			results := make([]error, attempts)
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = st.MarkDelivered(ctx, "race", testBase.Add(time.Duration(i)*time.Millisecond))
				}(i)
			}
			wg.Wait()

			wins := 0
			for _, err := range results {
				switch {
				case err == nil:
					wins++
				case errors.Is(err, ErrConflict):
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if wins != 1 {
				t.Fatalf("winners = %d, want exactly 1", wins)
			}
		})
	}
}

func TestListByOwner(t *testing.T) {
	t.Parallel()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			old := msg("old", testBase)
			old.CreatedAt = testBase.Add(-2 * time.Hour)
			recent := msg("recent", testBase)
			recent.CreatedAt = testBase.Add(-time.Minute)
			other := msg("other", testBase)
			other.OwnerID = "owner-2"
			mustInsert(t, st, old)
			mustInsert(t, st, recent)
			mustInsert(t, st, other)

			got, err := st.ListByOwner(ctx, "owner-1")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 2 || got[0].ID != "recent" || got[1].ID != "old" {
				t.Fatalf("list order = %+v, want recent,old", got)
			}

			empty, err := st.ListByOwner(ctx, "nobody")
			if err != nil {
				t.Fatalf("list empty: %v", err)
			}
			if len(empty) != 0 {
				t.Fatalf("expected empty list, got %d", len(empty))
			}
		})
	}
}
