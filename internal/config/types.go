package config

type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Delivery DeliveryConfig `json:"delivery"`
	Notifier NotifierConfig `json:"notifier"`
	Session  SessionConfig  `json:"session"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the message store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./chronovault.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// DeliveryConfig controls the delivery engine.
//
// All durations are Go duration strings (e.g. "30s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - interval: "1m"
//   - workers: 4
//   - queue_size: 256
//   - rate_per_sec: 5
//   - send_timeout: "10s"
type DeliveryConfig struct {
	Enabled     bool   `json:"enabled"`
	Interval    string `json:"interval,omitempty"`
	Workers     int    `json:"workers,omitempty"`
	QueueSize   int    `json:"queue_size,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

// NotifierConfig selects and configures the outbound channel.
//
// Channel values: "smtp", "telegram", "log".
type NotifierConfig struct {
	Channel  string                 `json:"channel"`
	SMTP     SMTPNotifierConfig     `json:"smtp,omitempty"`
	Telegram TelegramNotifierConfig `json:"telegram,omitempty"`
}

type SMTPNotifierConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	From     string `json:"from"`
	StartTLS bool   `json:"starttls"`
}

type TelegramNotifierConfig struct {
	Token string `json:"token"`
}

// SessionConfig controls session token minting and the process-epoch guard.
type SessionConfig struct {
	// Lifetime is a Go duration string; default "30m".
	Lifetime string `json:"lifetime,omitempty"`
	// Secret signs session tokens. Required when sessions are used.
	Secret string `json:"secret,omitempty"`
}
