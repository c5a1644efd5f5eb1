// Package vault is the authoring surface: creating time-locked messages,
// listing an owner's messages, and sending one-off test notifications.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chronovault/internal/notifier"
	"chronovault/internal/storage"
	logx "chronovault/pkg/logx"
)

var (
	// ErrPastDelivery rejects schedules at or before the current instant.
	ErrPastDelivery = errors.New("delivery time must be in the future")
	ErrNoRecipient  = errors.New("recipient is required")
	ErrNoContent    = errors.New("message content is required")
)

// CreateRequest carries the authoring input for one message.
type CreateRequest struct {
	OwnerID    string
	Recipient  string
	Content    string
	DeliveryAt time.Time
}

// Service validates and persists authored messages. The delivery engine
// picks them up independently through the shared store.
type Service struct {
	store storage.Store
	notif notifier.Notifier
	log   logx.Logger
	now   func() time.Time
}

func New(store storage.Store, notif notifier.Notifier, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store: store,
		notif: notif,
		log:   log,
		now:   time.Now,
	}
}

// Create validates the request and persists a new undelivered message.
//
// The future-time check uses the clock at call time; a message scheduled one
// second out is accepted and simply becomes due almost immediately.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*storage.TimeMessage, error) {
	if strings.TrimSpace(req.Recipient) == "" {
		return nil, ErrNoRecipient
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrNoContent
	}
	now := s.now()
	if !req.DeliveryAt.After(now) {
		return nil, ErrPastDelivery
	}

	m := &storage.TimeMessage{
		ID:         uuid.NewString(),
		OwnerID:    req.OwnerID,
		Recipient:  req.Recipient,
		Content:    req.Content,
		DeliveryAt: req.DeliveryAt,
		CreatedAt:  now,
	}
	if err := s.store.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	s.log.Info("message scheduled",
		logx.String("id", m.ID),
		logx.String("owner", m.OwnerID),
		logx.Time("delivery_at", m.DeliveryAt),
	)
	return m, nil
}

// Get loads one message by id.
func (s *Service) Get(ctx context.Context, id string) (*storage.TimeMessage, error) {
	return s.store.Get(ctx, id)
}

// List returns an owner's messages, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]storage.TimeMessage, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// TestNotification sends an immediate probe through the configured channel
// so operators can verify transport settings without scheduling a message.
func (s *Service) TestNotification(ctx context.Context, recipient string) error {
	if s.notif == nil {
		return errors.New("no notifier configured")
	}
	body := fmt.Sprintf("This is a test notification from ChronoVault sent at %s.",
		s.now().Format("2006-01-02 15:04:05"))
	if err := s.notif.Send(ctx, recipient, "ChronoVault: Test Notification", body); err != nil {
		return fmt.Errorf("send test notification: %w", err)
	}
	s.log.Info("test notification sent", logx.String("recipient", recipient))
	return nil
}
