package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"chronovault/internal/eventbus"
	rtsup "chronovault/internal/runtime/supervisor"
	"chronovault/internal/storage"
	logx "chronovault/pkg/logx"
)

// Service drives the polling loop: a constant-delay cron schedule scans the
// store for due messages and feeds ids to a bounded worker pool.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	cfg    Config
	store  storage.Store
	worker Attempter
	log    logx.Logger
	bus    eventbus.Bus
	now    func() time.Time

	c        *cron.Cron
	queue    chan string
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping
}

func New(cfg Config, store storage.Store, worker Attempter, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		store:  store,
		worker: worker,
		log:    log,
		bus:    bus,
		now:    time.Now,
	}
}

// Enabled reports the current config flag. (Thread-safe; Apply() may run concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Supervisor returns the engine's internal supervisor (nil if not started).
func (s *Service) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	return sup
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldInterval := s.cfg.Interval
	s.cfg = cfg.withDefaults()

	if s.c == nil {
		return
	}
	if s.cfg.Interval != oldInterval {
		// Reschedule the scan with the new interval. Worker pool sizing is
		// fixed for the lifetime of a Start; a full restart picks it up.
		s.restartCronLocked()
	}
}

// Start begins ticking and launches the worker pool. Idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	// If stopping, wait for it to finish before restarting.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.c != nil {
		s.mu.Unlock()
		return
	}
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan string, s.cfg.QueueSize)
	workers := s.cfg.Workers

	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "delivery"))),
		// A failed attempt keeps the message due; engine failures must not
		// take down the whole app.
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	q := s.queue

	for i := 0; i < workers; i++ {
		name := fmt.Sprintf("worker.%d", i)
		sup.GoRestart(name, func(c context.Context) error {
			s.workerLoop(c, q)
			// Clean exits happen on shutdown (queue close).
			s.mu.Lock()
			stopping := s.stopDone != nil
			s.mu.Unlock()
			if stopping {
				return context.Canceled
			}
			if c.Err() != nil {
				return c.Err()
			}
			return errors.New("delivery worker exited unexpectedly")
		}, rtsup.WithPublishFirstError(true))
	}

	s.startCronLocked()
	interval := s.cfg.Interval
	s.mu.Unlock()

	s.log.Info("service started",
		logx.Duration("interval", interval),
		logx.Int("workers", workers),
		logx.Int("queue", cap(q)),
	)
}

// startCronLocked builds and starts the cron trigger. Caller holds s.mu.
func (s *Service) startCronLocked() {
	sup := s.sup
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
		// Slow scans must not stack; a skipped scan is retried on the next slot.
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	c.Schedule(cron.Every(s.cfg.Interval), cron.FuncJob(func() {
		ctx := context.Background()
		if sup != nil {
			ctx = sup.Context()
		}
		s.tick(ctx)
	}))
	c.Start()
	s.c = c
}

// restartCronLocked swaps the trigger for a new interval. Caller holds s.mu.
func (s *Service) restartCronLocked() {
	if s.c != nil {
		s.c.Stop()
		s.c = nil
	}
	s.startCronLocked()
	s.log.Info("scan rescheduled", logx.Duration("interval", s.cfg.Interval))
}

// Stop halts ticking and waits for in-flight attempts best-effort until ctx deadline.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	s.mu.Lock()
	c := s.c
	q := s.queue
	sup := s.sup
	if c == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.c = nil
	s.mu.Unlock()

	// Shutdown happens asynchronously so callers can time out without leaking state.
	go func() {
		defer close(done)
		// Stop the trigger and wait for an in-flight scan to finish.
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
		// Close the queue so workers drain what is already dispatched and
		// exit. Anything not yet attempted stays due in the store.
		func() {
			defer func() { _ = recover() }()
			close(q)
		}()
		if sup != nil {
			_ = sup.Wait(context.Background())
		}

		s.mu.Lock()
		s.queue = nil
		s.sup = nil
		s.stopDone = nil
		s.mu.Unlock()

		s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Force-stop internal loops.
		if sup != nil {
			sup.Cancel()
		}
	}
}

// tick runs one due-message scan. Time is captured once so every message
// compared in this scan sees the same "now".
func (s *Service) tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return
	}

	due, err := s.store.DueUndelivered(ctx, now)
	if err != nil {
		// Store unavailable: nothing is lost, the next tick rescans.
		s.log.Warn("due scan failed", logx.Err(err))
		s.publish("delivery.tick", TickEvent{At: now, Error: errString(err)})
		return
	}

	s.publish("delivery.tick", TickEvent{At: now, Due: len(due)})
	if len(due) == 0 {
		return
	}
	s.log.Debug("due messages found", logx.Int("count", len(due)), logx.Time("now", now))

	for i := range due {
		select {
		case <-ctx.Done():
			return
		case q <- due[i].ID:
		default:
			// Queue full. The remainder is rediscovered on the next tick;
			// blocking here would stall the scan behind slow sends.
			s.log.Debug("delivery queue full", logx.Int("deferred", len(due)-i))
			return
		}
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if q == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-q:
			if !ok {
				return
			}
			s.worker.Attempt(ctx, id)
		}
	}
}

func (s *Service) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
}
