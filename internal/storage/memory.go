package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a mutex-guarded in-process store.
//
// It implements the same conditional-update semantics as the SQLite backend so
// tests exercise the real contract, and it doubles as a dry-run driver.
type Memory struct {
	mu   sync.Mutex
	msgs map[string]TimeMessage
}

func NewMemory() *Memory {
	return &Memory{msgs: map[string]TimeMessage{}}
}

func (s *Memory) Insert(_ context.Context, m *TimeMessage) error {
	if m == nil || strings.TrimSpace(m.ID) == "" {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[m.ID]; ok {
		return ErrDuplicateID
	}
	s.msgs[m.ID] = cloneMessage(*m)
	return nil
}

func (s *Memory) Get(_ context.Context, id string) (*TimeMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneMessage(m)
	return &cp, nil
}

func (s *Memory) ListByOwner(_ context.Context, ownerID string) ([]TimeMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TimeMessage
	for _, m := range s.msgs {
		if m.OwnerID == ownerID {
			out = append(out, cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Memory) DueUndelivered(_ context.Context, now time.Time) ([]TimeMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TimeMessage
	for _, m := range s.msgs {
		if m.Due(now) {
			out = append(out, cloneMessage(m))
		}
	}
	// Stable order: ascending delivery_at, then id.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeliveryAt.Equal(out[j].DeliveryAt) {
			return out[i].DeliveryAt.Before(out[j].DeliveryAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Memory) MarkDelivered(_ context.Context, id string, deliveredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return ErrNotFound
	}
	if m.Delivered {
		return ErrConflict
	}
	m.Delivered = true
	at := deliveredAt
	m.DeliveredAt = &at
	s.msgs[id] = m
	return nil
}

func (s *Memory) Close() error { return nil }

func cloneMessage(m TimeMessage) TimeMessage {
	if m.DeliveredAt != nil {
		at := *m.DeliveredAt
		m.DeliveredAt = &at
	}
	return m
}
