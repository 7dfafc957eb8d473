package server

import (
	"strings"

	"github.com/danmuck/imagedb/internal/protocol/session"
)

// Config is the ITP server endpoint configuration.
type Config struct {
	ListenAddr string
	// AdminAddr enables the health/metrics HTTP endpoint when set.
	AdminAddr string
	NodeID    string
	// MaxConnections answers Busy once more connections than this are
	// active. Zero disables the limit.
	MaxConnections int
	Session        session.Config
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":3000",
		AdminAddr:      "",
		NodeID:         "imagedb",
		MaxConnections: 0,
		Session:        session.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	if strings.TrimSpace(c.NodeID) == "" {
		c.NodeID = def.NodeID
	}
	if c.MaxConnections < 0 {
		c.MaxConnections = 0
	}
	c.Session = c.Session.WithDefaults()
	return c
}
