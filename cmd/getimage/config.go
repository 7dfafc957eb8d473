package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/danmuck/imagedb/internal/client"
	"github.com/danmuck/imagedb/internal/config"
	"github.com/danmuck/imagedb/internal/logging"
	"github.com/kelseyhightower/envconfig"
)

const defaultConfigPath = "cmd/getimage/config.toml"

type runtimeConfig struct {
	Client client.Config
	Open   bool
	Log    logging.Config
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		Client: client.DefaultConfig(),
		Log:    logging.DefaultConfig(logging.ProfileRuntime),
	}
}

// loadRuntimeConfig applies the non-zero values of the file at path to the
// defaults. A missing file is not an error when optional is set.
func loadRuntimeConfig(path string, optional bool) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()
	file, err := config.LoadClientFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return runtimeConfig{}, err
	}

	if v := strings.TrimSpace(file.Server); v != "" {
		cfg.Client.Address = v
	}
	if file.Version != 0 {
		cfg.Client.Version = file.Version
	}
	if v := strings.TrimSpace(file.OutputDir); v != "" {
		cfg.Client.OutputDir = v
	}
	cfg.Open = file.Open
	if d, _ := config.ParseDuration(file.ConnectTimeout); d != 0 {
		cfg.Client.Session.ConnectTimeout = d
	}
	if d, _ := config.ParseDuration(file.ReadTimeout); d != 0 {
		cfg.Client.Session.ReadTimeout = d
	}
	if d, _ := config.ParseDuration(file.WriteTimeout); d != 0 {
		cfg.Client.Session.WriteTimeout = d
	}
	if file.MaxMessageBytes > 0 {
		cfg.Client.Session.Limits.MaxMessageBytes = file.MaxMessageBytes
	}
	if v := strings.TrimSpace(file.Log.Level); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(file.Log.Format); v != "" {
		cfg.Log.Format = v
	}
	cfg.Log.Timestamp = file.Log.Timestamp
	return cfg, nil
}

// applyEnv overlays ITP_SERVER, ITP_VERSION and ITP_OUTPUT_DIR.
func applyEnv(cfg *runtimeConfig) error {
	var env struct {
		Server    string `envconfig:"SERVER"`
		Version   *uint8 `envconfig:"VERSION"`
		OutputDir string `envconfig:"OUTPUT_DIR"`
	}
	if err := envconfig.Process("ITP", &env); err != nil {
		return fmt.Errorf("getimage env: %w", err)
	}
	if v := strings.TrimSpace(env.Server); v != "" {
		cfg.Client.Address = v
	}
	if env.Version != nil {
		cfg.Client.Version = *env.Version
	}
	if v := strings.TrimSpace(env.OutputDir); v != "" {
		cfg.Client.OutputDir = v
	}
	return nil
}
