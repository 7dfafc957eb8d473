package session

import (
	"time"

	"github.com/danmuck/imagedb/internal/protocol/frame"
)

// Config defines transport timeouts and receive limits. ITP itself defines
// no timeouts; these bound how long a silent peer can hold a connection.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Limits         frame.Limits
}

// DefaultConfig returns transport defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		Limits:         frame.DefaultLimits(),
	}
}

// WithDefaults fills zero values from DefaultConfig. Negative durations
// disable the corresponding deadline.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Limits.MaxMessageBytes <= 0 {
		c.Limits.MaxMessageBytes = def.Limits.MaxMessageBytes
	}
	if c.Limits.MaxNameBytes == 0 {
		c.Limits.MaxNameBytes = def.Limits.MaxNameBytes
	}
	return c
}

// Deadline returns the absolute deadline for d, or the zero time when d
// disables it.
func Deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
