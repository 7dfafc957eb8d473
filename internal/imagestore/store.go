package imagestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("imagestore: image not found")
	ErrInvalidName = errors.New("imagestore: invalid image name")
)

// DefaultRoot is the directory images are served from when none is configured.
const DefaultRoot = "images"

// Store reads the image stored as name.ext.
type Store interface {
	Read(ctx context.Context, name, ext string) ([]byte, error)
}

// candidates are the spellings tried for a canonical extension, in order.
var extensionSpellings = map[string][]string{
	"JPEG": {"JPEG", "jpeg", "JPG", "jpg"},
	"TIFF": {"TIFF", "tiff", "TIF", "tif"},
}

func candidateFileNames(name, ext string) []string {
	spellings, ok := extensionSpellings[strings.ToUpper(ext)]
	if !ok {
		spellings = []string{ext}
		if lower := strings.ToLower(ext); lower != ext {
			spellings = append(spellings, lower)
		}
	}
	out := make([]string, 0, len(spellings))
	for _, s := range spellings {
		out = append(out, name+"."+s)
	}
	return out
}

// validateName rejects names that could address anything other than a
// single file directly under the store root.
func validateName(name, ext string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(ext) == "" {
		return fmt.Errorf("%w: empty name or extension", ErrInvalidName)
	}
	for _, part := range []string{name, ext} {
		if strings.ContainsAny(part, "/\\\x00") || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidName, name+"."+ext)
		}
	}
	return nil
}
