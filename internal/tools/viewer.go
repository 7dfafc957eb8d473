package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrNoViewer = errors.New("tools: no image viewer for platform")

// ViewerCommand returns the command that opens a file with the desktop
// default application on goos.
func ViewerCommand(goos string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", nil, nil
	case "windows":
		return "cmd", []string{"/c", "start", ""}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", nil, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrNoViewer, goos)
	}
}

// launchFunc starts the viewer and waits for it, returning its stderr.
type launchFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Viewer opens saved images.
type Viewer struct {
	GOOS   string
	launch launchFunc
}

func NewViewer() Viewer {
	return Viewer{GOOS: runtime.GOOS, launch: runViewer}
}

// Open launches the platform viewer for path.
func (v Viewer) Open(ctx context.Context, path string) error {
	name, args, err := ViewerCommand(v.GOOS)
	if err != nil {
		return err
	}
	launch := v.launch
	if launch == nil {
		launch = runViewer
	}
	args = append(append([]string{}, args...), path)
	stderr, err := launch(ctx, name, args...)
	if err != nil {
		return fmt.Errorf("tools: open %s with %s: %w: %s", path, name, err, strings.TrimSpace(string(stderr)))
	}
	log.Debug().Str("viewer", name).Str("path", path).Msg("tools.Viewer opened")
	return nil
}

// runViewer execs the viewer command. A missing binary is reported as
// ErrNoViewer so callers can tell it apart from a viewer that failed.
func runViewer(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return nil, nil
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return stderr.Bytes(), fmt.Errorf("%w: %s not installed: %w", ErrNoViewer, name, err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stderr.Bytes(), fmt.Errorf("%s exited %d: %w", name, exitErr.ExitCode(), err)
	}
	return stderr.Bytes(), err
}
