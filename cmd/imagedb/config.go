package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/imagedb/internal/config"
	"github.com/danmuck/imagedb/internal/imagestore"
	"github.com/danmuck/imagedb/internal/logging"
	"github.com/danmuck/imagedb/internal/protocol/session"
	"github.com/danmuck/imagedb/internal/server"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultConfigPath = "cmd/imagedb/config.toml"
	envPrefix         = "ITP"
)

type runtimeConfig struct {
	Server       server.Config
	Store        imagestore.Config
	Log          logging.Config
	TickInterval time.Duration
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		Server:       server.DefaultConfig(),
		Store:        imagestore.DefaultConfig(),
		Log:          logging.DefaultConfig(logging.ProfileRuntime),
		TickInterval: session.DefaultTickInterval,
	}
}

// loadRuntimeConfig overlays the TOML file at path onto defaults. A missing
// file is not an error when optional is set.
func loadRuntimeConfig(path string, optional bool) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()

	var raw config.ServerFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return runtimeConfig{}, fmt.Errorf("load imagedb config: %w", err)
	}
	if err := config.ValidateServerFile(raw); err != nil {
		return runtimeConfig{}, fmt.Errorf("load imagedb config %s: %w", path, err)
	}

	if meta.IsDefined("node_id") {
		if id := strings.TrimSpace(raw.NodeID); id != "" {
			cfg.Server.NodeID = id
		}
	}
	if meta.IsDefined("listen_addr") {
		cfg.Server.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.Server.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("max_connections") {
		cfg.Server.MaxConnections = raw.MaxConnections
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"tick_interval", raw.TickInterval, &cfg.TickInterval},
		{"read_timeout", raw.ReadTimeout, &cfg.Server.Session.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Server.Session.WriteTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := config.ParseDuration(d.raw)
		if err != nil {
			return runtimeConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("max_name_bytes") {
		cfg.Server.Session.Limits.MaxNameBytes = raw.MaxNameBytes
	}

	if meta.IsDefined("store", "backend") {
		cfg.Store.Backend = strings.TrimSpace(raw.Store.Backend)
	}
	if meta.IsDefined("store", "root") {
		cfg.Store.Root = strings.TrimSpace(raw.Store.Root)
	}
	if meta.IsDefined("store", "cache") {
		cfg.Store.Cache = raw.Store.Cache
	}
	if meta.IsDefined("store", "max_entry_bytes") {
		cfg.Store.MaxEntryBytes = raw.Store.MaxEntryBytes
	}
	if meta.IsDefined("store", "s3") {
		cfg.Store.S3 = raw.Store.S3
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = raw.Log.Level
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = raw.Log.Format
	}
	if meta.IsDefined("log", "timestamp") {
		cfg.Log.Timestamp = raw.Log.Timestamp
	}
	if meta.IsDefined("log", "nocolor") {
		cfg.Log.NoColor = raw.Log.NoColor
	}
	if meta.IsDefined("log", "file") {
		cfg.Log.File = strings.TrimSpace(raw.Log.File)
		cfg.Log.MaxSizeMB = raw.Log.MaxSizeMB
		cfg.Log.MaxBackups = raw.Log.MaxBackups
		cfg.Log.MaxAgeDays = raw.Log.MaxAgeDays
		cfg.Log.Compress = raw.Log.Compress
	}

	return cfg, nil
}

type envConfig struct {
	NodeID         string `envconfig:"NODE_ID"`
	ListenAddr     string `envconfig:"LISTEN_ADDR"`
	AdminAddr      string `envconfig:"ADMIN_ADDR"`
	MaxConnections *int   `envconfig:"MAX_CONNECTIONS"`
	ImagesRoot     string `envconfig:"IMAGES_ROOT"`
	StoreBackend   string `envconfig:"STORE_BACKEND"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Prefix       string `envconfig:"S3_PREFIX"`
	S3Region       string `envconfig:"S3_REGION"`
	S3AccessKeyID  string `envconfig:"S3_ACCESS_KEY_ID"`
	S3Secret       string `envconfig:"S3_SECRET_ACCESS_KEY"`
}

// loadDotEnv reads a .env file into the environment when present. Values
// already set in the environment win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays ITP_* variables onto cfg.
func applyEnv(cfg *runtimeConfig) error {
	var env envConfig
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("imagedb env: %w", err)
	}
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.NodeID, env.NodeID)
	set(&cfg.Server.ListenAddr, env.ListenAddr)
	set(&cfg.Server.AdminAddr, env.AdminAddr)
	if env.MaxConnections != nil {
		cfg.Server.MaxConnections = *env.MaxConnections
	}
	set(&cfg.Store.Root, env.ImagesRoot)
	set(&cfg.Store.Backend, env.StoreBackend)
	set(&cfg.Store.S3.Endpoint, env.S3Endpoint)
	set(&cfg.Store.S3.Bucket, env.S3Bucket)
	set(&cfg.Store.S3.Prefix, env.S3Prefix)
	set(&cfg.Store.S3.Region, env.S3Region)
	set(&cfg.Store.S3.AccessKeyID, env.S3AccessKeyID)
	set(&cfg.Store.S3.SecretAccessKey, env.S3Secret)
	return nil
}
