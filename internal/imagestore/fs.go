package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FS serves images from a local directory.
type FS struct {
	root string
}

// NewFS constructs a filesystem store rooted at images/ under cwd.
func NewFS() FS {
	return NewFSWithRoot(DefaultRoot)
}

// NewFSWithRoot constructs a filesystem store with explicit root.
func NewFSWithRoot(root string) FS {
	resolved := strings.TrimSpace(root)
	if resolved == "" {
		resolved = DefaultRoot
	}
	return FS{root: resolved}
}

func (s FS) Root() string {
	return s.root
}

// Read returns the bytes of name.ext, trying the common spellings of ext.
func (s FS) Read(ctx context.Context, name, ext string) ([]byte, error) {
	if err := validateName(name, ext); err != nil {
		return nil, err
	}
	for _, candidate := range candidateFileNames(name, ext) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := s.resolvePath(candidate)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if err == nil {
			log.Debug().Str("path", p).Int("bytes", len(data)).Msg("imagestore.FS read")
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("imagestore: read %s: %w", p, err)
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrNotFound, name, ext)
}

func (s FS) resolvePath(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrInvalidName)
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	p := filepath.Clean(filepath.Join(root, rel))
	if !isWithin(p, root) {
		return "", fmt.Errorf("%w: path escapes root", ErrInvalidName)
	}
	return p, nil
}

func isWithin(path string, root string) bool {
	p := filepath.Clean(path)
	r := filepath.Clean(root)
	if p == r {
		return true
	}
	return strings.HasPrefix(p, r+string(os.PathSeparator))
}
