package delivery

import "time"

// Config controls the delivery engine.
type Config struct {
	Enabled bool
	// Interval between due-message scans. Default 1m.
	Interval time.Duration
	// Workers bounds concurrent delivery attempts. Default 4.
	Workers int
	// QueueSize bounds ids waiting for a worker. Default 256.
	QueueSize int
	// RatePerSec caps notifier sends across all workers. Default 5.
	RatePerSec int
	// SendTimeout bounds one notifier call. Default 10s.
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 5
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// Result classifies one delivery attempt.
type Result int

const (
	// ResultDelivered means this attempt recorded the delivery.
	ResultDelivered Result = iota
	// ResultSkipped means there was nothing to do: the message is missing or
	// was already delivered (possibly by a concurrent attempt).
	ResultSkipped
	// ResultFailed means the attempt failed and the message stays due; it
	// will be retried on the next tick.
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultDelivered:
		return "delivered"
	case ResultSkipped:
		return "skipped"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TickEvent is published on the event bus for each due-message scan.
type TickEvent struct {
	At    time.Time `json:"at"`
	Due   int       `json:"due"`
	Error string    `json:"error,omitempty"`
}

// MessageEvent is published for per-message delivery outcomes.
type MessageEvent struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	At        time.Time `json:"at"`
	Error     string    `json:"error,omitempty"`
}
