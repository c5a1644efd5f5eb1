// Package app composes the configured components into one runnable process:
// config manager, store, notifier channel, delivery engine, session service,
// and the vault authoring surface.
package app

import (
	"context"
	"fmt"
	"time"

	"chronovault/internal/config"
	"chronovault/internal/delivery"
	"chronovault/internal/eventbus"
	"chronovault/internal/notifier"
	rtsup "chronovault/internal/runtime/supervisor"
	"chronovault/internal/session"
	"chronovault/internal/storage"
	"chronovault/internal/vault"
	logx "chronovault/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store storage.Store
	notif notifier.Notifier

	worker   *delivery.Worker
	engine   *delivery.Service
	sessions *session.Service
	vault    *vault.Service
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif, err := notifier.Open(ncfg, log.With(logx.String("comp", "notifier")))
	if err != nil {
		return nil, err
	}

	dcfg, err := mapDeliveryConfig(cfg)
	if err != nil {
		return nil, err
	}
	worker := delivery.NewWorker(store, notif, dcfg.RatePerSec, dcfg.SendTimeout,
		log.With(logx.String("comp", "delivery")), bus)
	engine := delivery.New(dcfg, store, worker, log.With(logx.String("comp", "delivery")), bus)

	scfg, err := mapSessionConfig(cfg)
	if err != nil {
		return nil, err
	}
	sessions := session.New(scfg)

	vaultSvc := vault.New(store, notif, log.With(logx.String("comp", "vault")))

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		notif:    notif,
		worker:   worker,
		engine:   engine,
		sessions: sessions,
		vault:    vaultSvc,
	}, nil
}

// Vault exposes the authoring service.
func (a *App) Vault() *vault.Service { return a.vault }

// Sessions exposes the session service.
func (a *App) Sessions() *session.Service { return a.sessions }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapDeliveryConfig(cfg); err != nil {
			return err
		}
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		if _, err := mapSessionConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if a.engine.Enabled() {
		a.engine.Start(a.sup.Context())
	}

	// Debug-level event tap for observability.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// Hot reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(c, newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyReload pushes a validated config update into the live components.
// Storage and session settings need a restart; everything else applies live.
func (a *App) applyReload(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	dcfg, err := mapDeliveryConfig(cfg)
	if err != nil {
		a.log.Warn("invalid delivery config; keeping previous", logx.Err(err))
		return
	}
	prevEnabled := a.engine.Enabled()
	a.worker.Apply(dcfg.RatePerSec, dcfg.SendTimeout)
	a.engine.Apply(dcfg)
	switch {
	case prevEnabled && !dcfg.Enabled:
		a.log.Info("delivery disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.engine.Stop(stopCtx)
		cancel()
	case !prevEnabled && dcfg.Enabled:
		a.log.Info("delivery enabled via config")
		a.engine.Start(ctx)
	}

	a.log.Info("config reloaded")
}

type StopReason string

const (
	StopReasonSignal   StopReason = "signal"
	StopReasonFatal    StopReason = "fatal"
	StopReasonShutdown StopReason = "shutdown"
)

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Run a shutdown step with an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// Respect the caller's deadline; never extend it.
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("delivery", 3*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
