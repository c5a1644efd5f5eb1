package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chronovault/internal/eventbus"
	"chronovault/internal/notifier"
	"chronovault/internal/storage"
	logx "chronovault/pkg/logx"
)

// Attempter performs one delivery attempt for a message id.
type Attempter interface {
	Attempt(ctx context.Context, id string) Result
}

// Worker is the per-message delivery unit. It is safe for concurrent use;
// the shared rate limiter spans all callers.
type Worker struct {
	store storage.Store
	notif notifier.Notifier
	log   logx.Logger
	bus   eventbus.Bus
	now   func() time.Time

	mu          sync.Mutex
	limiter     *rate.Limiter
	sendTimeout time.Duration
}

// NewWorker builds a Worker. ratePerSec <= 0 disables rate limiting.
func NewWorker(store storage.Store, notif notifier.Notifier, ratePerSec int, sendTimeout time.Duration, log logx.Logger, bus eventbus.Bus) *Worker {
	if log.IsZero() {
		log = logx.Nop()
	}
	w := &Worker{
		store: store,
		notif: notif,
		log:   log,
		bus:   bus,
		now:   time.Now,
	}
	w.Apply(ratePerSec, sendTimeout)
	return w
}

// Apply swaps the send rate and timeout at runtime.
func (w *Worker) Apply(ratePerSec int, sendTimeout time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ratePerSec > 0 {
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		w.limiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
	} else {
		w.limiter = nil
	}
	w.sendTimeout = sendTimeout
}

// Attempt tries to deliver one message and reports the outcome.
//
// The sequence is fetch, guard, send, commit. The commit is a conditional
// update in the store; losing the race to another attempt is reported as
// ResultSkipped, not a failure, because the message did reach the recipient
// through whichever attempt won. A send failure leaves the message untouched
// so the next tick picks it up again.
func (w *Worker) Attempt(ctx context.Context, id string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("delivery attempt panicked", logx.String("id", id), logx.Any("panic", r))
			res = ResultFailed
		}
	}()

	m, err := w.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ResultSkipped
	}
	if err != nil {
		w.log.Warn("load message", logx.String("id", id), logx.Err(err))
		return ResultFailed
	}
	if m.Delivered {
		w.publish("delivery.skipped", MessageEvent{ID: id, Recipient: m.Recipient, At: w.now()})
		return ResultSkipped
	}

	w.mu.Lock()
	lim := w.limiter
	sendTimeout := w.sendTimeout
	w.mu.Unlock()

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return ResultFailed
		}
	}

	sctx := ctx
	if sendTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, sendTimeout)
		defer cancel()
	}
	if err := w.notif.Send(sctx, m.Recipient, Subject, Render(m)); err != nil {
		w.log.Warn("send failed",
			logx.String("id", id),
			logx.String("recipient", m.Recipient),
			logx.Err(err),
		)
		w.publish("delivery.failed", MessageEvent{ID: id, Recipient: m.Recipient, At: w.now(), Error: err.Error()})
		return ResultFailed
	}

	deliveredAt := w.now()
	switch err := w.store.MarkDelivered(ctx, id, deliveredAt); {
	case errors.Is(err, storage.ErrConflict):
		// Another attempt recorded the delivery first.
		w.log.Debug("delivery already recorded", logx.String("id", id))
		w.publish("delivery.skipped", MessageEvent{ID: id, Recipient: m.Recipient, At: w.now()})
		return ResultSkipped
	case errors.Is(err, storage.ErrNotFound):
		return ResultSkipped
	case err != nil:
		w.log.Warn("mark delivered", logx.String("id", id), logx.Err(err))
		return ResultFailed
	}

	w.log.Info("message delivered",
		logx.String("id", id),
		logx.String("recipient", m.Recipient),
		logx.Time("scheduled", m.DeliveryAt),
		logx.Duration("lateness", deliveredAt.Sub(m.DeliveryAt)),
	)
	w.publish("delivery.sent", MessageEvent{ID: id, Recipient: m.Recipient, At: deliveredAt})
	return ResultDelivered
}

func (w *Worker) publish(typ string, data any) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(eventbus.Event{Type: typ, Time: w.now(), Data: data})
}

var _ Attempter = (*Worker)(nil)

// errString is a nil-safe error formatter for event payloads.
func errString(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}
