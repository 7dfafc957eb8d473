package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/danmuck/imagedb/internal/imagestore"
	"github.com/danmuck/imagedb/internal/logging"
	"github.com/pelletier/go-toml/v2"
)

// ServerFile is the on-disk shape of cmd/imagedb/config.toml.
type ServerFile struct {
	NodeID         string            `toml:"node_id"`
	ListenAddr     string            `toml:"listen_addr"`
	AdminAddr      string            `toml:"admin_addr"`
	MaxConnections int               `toml:"max_connections"`
	TickInterval   string            `toml:"tick_interval"`
	ReadTimeout    string            `toml:"read_timeout"`
	WriteTimeout   string            `toml:"write_timeout"`
	MaxNameBytes   uint64            `toml:"max_name_bytes"`
	Store          imagestore.Config `toml:"store"`
	Log            logging.Config    `toml:"log"`
}

// ClientFile is the on-disk shape of cmd/getimage/config.toml.
type ClientFile struct {
	Server          string         `toml:"server"`
	Version         uint8          `toml:"version"`
	OutputDir       string         `toml:"output_dir"`
	Open            bool           `toml:"open"`
	ConnectTimeout  string         `toml:"connect_timeout"`
	ReadTimeout     string         `toml:"read_timeout"`
	WriteTimeout    string         `toml:"write_timeout"`
	MaxMessageBytes int64          `toml:"max_message_bytes"`
	Log             logging.Config `toml:"log"`
}

// LoadServerFile parses path strictly: unknown keys are errors.
func LoadServerFile(path string) (ServerFile, error) {
	var cfg ServerFile
	if err := loadToml(path, &cfg); err != nil {
		return ServerFile{}, err
	}
	if err := ValidateServerFile(cfg); err != nil {
		return ServerFile{}, err
	}
	return cfg, nil
}

func LoadClientFile(path string) (ClientFile, error) {
	var cfg ClientFile
	if err := loadToml(path, &cfg); err != nil {
		return ClientFile{}, err
	}
	if err := ValidateClientFile(cfg); err != nil {
		return ClientFile{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	defer f.Close()
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerFile(cfg ServerFile) error {
	if addr := strings.TrimSpace(cfg.ListenAddr); addr != "" {
		if err := validateHostPort(addr); err != nil {
			return fmt.Errorf("server config listen_addr: %w", err)
		}
	}
	if addr := strings.TrimSpace(cfg.AdminAddr); addr != "" {
		if err := validateHostPort(addr); err != nil {
			return fmt.Errorf("server config admin_addr: %w", err)
		}
	}
	if cfg.MaxConnections < 0 {
		return fmt.Errorf("server config max_connections must be >= 0")
	}
	for key, raw := range map[string]string{
		"tick_interval": cfg.TickInterval,
		"read_timeout":  cfg.ReadTimeout,
		"write_timeout": cfg.WriteTimeout,
	} {
		if _, err := ParseDuration(raw); err != nil {
			return fmt.Errorf("server config %s: %w", key, err)
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Backend)) {
	case "", imagestore.BackendFS:
	case imagestore.BackendS3:
		if err := cfg.Store.S3.Validate(); err != nil {
			return fmt.Errorf("server config store.s3: %w", err)
		}
	default:
		return fmt.Errorf("server config store.backend %q unknown", cfg.Store.Backend)
	}
	return nil
}

func ValidateClientFile(cfg ClientFile) error {
	if addr := strings.TrimSpace(cfg.Server); addr != "" {
		if err := validateHostPort(addr); err != nil {
			return fmt.Errorf("client config server: %w", err)
		}
	}
	if cfg.Version > 0xF {
		return fmt.Errorf("client config version %d does not fit 4 bits", cfg.Version)
	}
	for key, raw := range map[string]string{
		"connect_timeout": cfg.ConnectTimeout,
		"read_timeout":    cfg.ReadTimeout,
		"write_timeout":   cfg.WriteTimeout,
	} {
		if _, err := ParseDuration(raw); err != nil {
			return fmt.Errorf("client config %s: %w", key, err)
		}
	}
	if cfg.MaxMessageBytes < 0 {
		return fmt.Errorf("client config max_message_bytes must be >= 0")
	}
	return nil
}

// ParseDuration parses a Go duration string. Empty input yields zero so
// callers fall back to defaults.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func validateHostPort(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if port == "" {
		return fmt.Errorf("missing port in %q", addr)
	}
	return nil
}
