package app

import (
	"fmt"
	"strings"
	"time"

	"chronovault/internal/config"
	"chronovault/internal/delivery"
	"chronovault/internal/notifier"
	"chronovault/internal/session"
	"chronovault/internal/storage"
)

// Mapping helpers translate the raw config file surface (duration strings,
// omitted fields) into typed component configs. They double as validators:
// the config watcher calls them before committing a reload.

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapDeliveryConfig(cfg *config.Config) (delivery.Config, error) {
	if cfg == nil {
		return delivery.Config{}, nil
	}
	d := cfg.Delivery
	if d.Workers < 0 {
		return delivery.Config{}, fmt.Errorf("delivery.workers must be >= 0")
	}
	if d.QueueSize < 0 {
		return delivery.Config{}, fmt.Errorf("delivery.queue_size must be >= 0")
	}
	if d.RatePerSec < 0 {
		return delivery.Config{}, fmt.Errorf("delivery.rate_per_sec must be >= 0")
	}
	interval, err := config.ParseDurationOrDefault("delivery.interval", d.Interval, time.Minute)
	if err != nil {
		return delivery.Config{}, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("delivery.send_timeout", d.SendTimeout, 10*time.Second)
	if err != nil {
		return delivery.Config{}, err
	}
	out := delivery.Config{
		Enabled:     d.Enabled,
		Interval:    interval,
		Workers:     d.Workers,
		QueueSize:   d.QueueSize,
		RatePerSec:  d.RatePerSec,
		SendTimeout: sendTimeout,
	}
	// Fill defaults here so the worker and the engine see the same values.
	if out.Workers == 0 {
		out.Workers = 4
	}
	if out.QueueSize == 0 {
		out.QueueSize = 256
	}
	if out.RatePerSec == 0 {
		out.RatePerSec = 5
	}
	return out, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	if cfg == nil {
		return notifier.Config{}, nil
	}
	n := cfg.Notifier
	channel := strings.ToLower(strings.TrimSpace(n.Channel))
	switch channel {
	case "", "log", "smtp", "mail", "email", "telegram":
	default:
		return notifier.Config{}, fmt.Errorf("notifier.channel: unknown %q", n.Channel)
	}
	if channel == "smtp" || channel == "mail" || channel == "email" {
		if strings.TrimSpace(n.SMTP.Host) == "" {
			return notifier.Config{}, fmt.Errorf("notifier.smtp.host is required for channel %q", channel)
		}
	}
	if channel == "telegram" && strings.TrimSpace(n.Telegram.Token) == "" {
		return notifier.Config{}, fmt.Errorf("notifier.telegram.token is required for channel telegram")
	}
	return notifier.Config{
		Channel: channel,
		SMTP: notifier.SMTPConfig{
			Host:     n.SMTP.Host,
			Port:     n.SMTP.Port,
			Username: n.SMTP.Username,
			Password: n.SMTP.Password,
			From:     n.SMTP.From,
			StartTLS: n.SMTP.StartTLS,
		},
		Telegram: notifier.TelegramConfig{Token: n.Telegram.Token},
	}, nil
}

func mapSessionConfig(cfg *config.Config) (session.Config, error) {
	if cfg == nil {
		return session.Config{}, nil
	}
	lifetime, err := config.ParseDurationOrDefault("session.lifetime", cfg.Session.Lifetime, 30*time.Minute)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Lifetime: lifetime,
		Secret:   cfg.Session.Secret,
	}, nil
}
