package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const EnvPrefix = "ITP_LOG"

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config controls the process logger. Zero-valued Level means info.
type Config struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	Timestamp bool   `toml:"timestamp"`
	NoColor   bool   `toml:"nocolor"`
	File      string `toml:"file"`

	// rotation applies only when File is set
	MaxSizeMB  int  `toml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days"`
	Compress   bool `toml:"compress"`

	Out io.Writer `toml:"-"`
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the global logger once per process, applying
// ITP_LOG_* environment overrides to the profile defaults.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := DefaultConfig(profile)
		_ = ApplyEnv(&cfg)
		log.Logger = New(cfg)
		zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	})
}

func DefaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: "debug", Format: "console", Timestamp: false, NoColor: true}
	default:
		return Config{Level: "info", Format: "console", Timestamp: true}
	}
}

// ApplyEnv overlays ITP_LOG_* variables onto cfg. Unset variables leave
// cfg untouched.
func ApplyEnv(cfg *Config) error {
	var env struct {
		Level     string `envconfig:"LEVEL"`
		Format    string `envconfig:"FORMAT"`
		Timestamp *bool  `envconfig:"TIMESTAMP"`
		NoColor   *bool  `envconfig:"NOCOLOR"`
		File      string `envconfig:"FILE"`
	}
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}
	if _, ok := levels[strings.ToLower(strings.TrimSpace(env.Level))]; ok {
		cfg.Level = env.Level
	}
	if f := strings.TrimSpace(env.Format); f != "" {
		cfg.Format = f
	}
	if env.Timestamp != nil {
		cfg.Timestamp = *env.Timestamp
	}
	if env.NoColor != nil {
		cfg.NoColor = *env.NoColor
	}
	if f := strings.TrimSpace(env.File); f != "" {
		cfg.File = f
	}
	return nil
}

// New builds a logger for cfg without touching global state.
func New(cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	var w io.Writer = out
	if !strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		w = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
	}
	if file := strings.TrimSpace(cfg.File); file != "" {
		w = zerolog.MultiLevelWriter(w, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    max(cfg.MaxSizeMB, 10),
			MaxBackups: max(cfg.MaxBackups, 1),
			MaxAge:     max(cfg.MaxAgeDays, 7),
			Compress:   cfg.Compress,
		})
	}
	ctx := zerolog.New(w).Level(ParseLevel(cfg.Level)).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

var levels = map[string]zerolog.Level{
	"trace":       zerolog.TraceLevel,
	"diagnostics": zerolog.TraceLevel,
	"debug":       zerolog.DebugLevel,
	"info":        zerolog.InfoLevel,
	"warn":        zerolog.WarnLevel,
	"warning":     zerolog.WarnLevel,
	"error":       zerolog.ErrorLevel,
	"disabled":    zerolog.Disabled,
	"off":         zerolog.Disabled,
	"none":        zerolog.Disabled,
}

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(raw string) zerolog.Level {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}
