package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
logging:
  level: DEBUG
  console: true
storage:
  driver: sqlite
  path: ./chronovault.db
delivery:
  enabled: true
  interval: 30s
  workers: 2
notifier:
  channel: smtp
  smtp:
    host: mail.example.com
    port: 587
    from: vault@example.com
    starttls: true
session:
  lifetime: 30m
  secret: hush
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "./chronovault.db" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if !cfg.Delivery.Enabled || cfg.Delivery.Interval != "30s" || cfg.Delivery.Workers != 2 {
		t.Fatalf("delivery = %+v", cfg.Delivery)
	}
	if cfg.Notifier.Channel != "smtp" || cfg.Notifier.SMTP.Port != 587 || !cfg.Notifier.SMTP.StartTLS {
		t.Fatalf("notifier = %+v", cfg.Notifier)
	}
	if cfg.Session.Lifetime != "30m" || cfg.Session.Secret != "hush" {
		t.Fatalf("session = %+v", cfg.Session)
	}
	if m.Get() != cfg {
		t.Fatal("Load must commit the parsed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"delivery":{"enabled":true,"interval":"1m"}}`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Delivery.Enabled || cfg.Delivery.Interval != "1m" {
		t.Fatalf("delivery = %+v", cfg.Delivery)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", "delivery:\n  enabled: true\n  typo_field: 1\n")
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"delivery":{}}{"extra":1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestSubscribePublishAndUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("wrong config received")
		}
	case <-time.After(time.Second):
		t.Fatal("publish did not reach subscriber")
	}

	// Full buffer: the newest update replaces the oldest.
	stale := &Config{}
	fresh := &Config{}
	m.publish(stale)
	m.publish(fresh)
	select {
	case got := <-ch:
		if got != fresh {
			t.Fatal("expected newest config after overflow")
		}
	case <-time.After(time.Second):
		t.Fatal("no config received")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel must be closed after Unsubscribe")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "  ", want: 0},
		{raw: "45s", want: 45 * time.Second},
		{raw: "1m30s", want: 90 * time.Second},
		{raw: "-5s", wantErr: true},
		{raw: "five", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("test.field", tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseDurationField(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDurationField(%q): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	if d, err := ParseDurationOrDefault("test.field", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("ParseDurationOrDefault empty = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("test.field", "5s", time.Minute); err != nil || d != 5*time.Second {
		t.Fatalf("ParseDurationOrDefault set = %v, %v", d, err)
	}
}
