package imagestore

import (
	"context"
	"fmt"
	"strings"
)

const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Backend       string   `toml:"backend"`
	Root          string   `toml:"root"`
	Cache         bool     `toml:"cache"`
	MaxEntryBytes int      `toml:"max_entry_bytes"`
	S3            S3Config `toml:"s3"`
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendFS,
		Root:    DefaultRoot,
		Cache:   false,
	}
}

// Open builds the configured store. The returned Cached is nil unless
// cfg.Cache is set on the fs backend; callers run its Watch loop.
func Open(ctx context.Context, cfg Config) (Store, *Cached, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendFS:
		fs := NewFSWithRoot(cfg.Root)
		if !cfg.Cache {
			return fs, nil, nil
		}
		cached := NewCached(fs, fs.Root(), cfg.MaxEntryBytes)
		return cached, cached, nil
	case BackendS3:
		s, err := NewS3(ctx, cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("imagestore: unknown backend %q", cfg.Backend)
	}
}
