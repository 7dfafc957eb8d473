// Package client fetches one image from an ITP server per call.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/imagedb/internal/display"
	"github.com/danmuck/imagedb/internal/protocol"
	"github.com/danmuck/imagedb/internal/protocol/frame"
	"github.com/danmuck/imagedb/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

var (
	ErrAddressRequired  = errors.New("client: server address required")
	ErrConnectionFailed = errors.New("client: connection failed")
	ErrNoResponse       = errors.New("client: server closed without responding")
)

// State is the client-side lifecycle of one fetch.
type State int

const (
	StateConnecting State = iota
	StateSent
	StateReceiving
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSent:
		return "sent"
	case StateReceiving:
		return "receiving"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Config struct {
	Address string
	Version uint8
	// OutputDir receives Found payloads. Empty disables saving.
	OutputDir string
	Session   session.Config
}

func DefaultConfig() Config {
	return Config{
		Address:   "127.0.0.1:3000",
		Version:   protocol.SupportedVersion,
		OutputDir: ".",
		Session:   session.DefaultConfig(),
	}
}

// Result is the outcome of one fetch.
type Result struct {
	State     State
	Response  protocol.Response
	FileName  string
	SavedPath string
}

type Client struct {
	cfg Config
	gen *session.Generator
}

// New constructs a client. gen supplies request timestamps and is ticked by
// the caller, usually with gen.Run for the life of the process. A nil gen
// gets a fresh unticked generator, so every request carries its seed.
func New(cfg Config, gen *session.Generator) *Client {
	cfg.Session = cfg.Session.WithDefaults()
	if gen == nil {
		gen = session.NewGenerator()
	}
	return &Client{cfg: cfg, gen: gen}
}

// Fetch requests fileName (e.g. "cat.png") over a fresh connection and
// returns the parsed response. A Found payload is saved to OutputDir.
func (c *Client) Fetch(ctx context.Context, fileName string) (Result, error) {
	res := Result{State: StateConnecting, FileName: fileName}
	addr := strings.TrimSpace(c.cfg.Address)
	if addr == "" {
		res.State = StateFailed
		return res, ErrAddressRequired
	}
	packet, err := protocol.NewRequestFromFileName(c.cfg.Version, fileName, c.gen.CurrentTimestamp())
	if err != nil {
		res.State = StateFailed
		return res, err
	}

	dialer := net.Dialer{Timeout: c.cfg.Session.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	log.Info().Str("addr", addr).Msg("Connected to ImageDB server")

	_ = conn.SetWriteDeadline(session.Deadline(c.cfg.Session.WriteTimeout))
	if err := frame.WriteMessage(conn, packet); err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("%w: send: %w", ErrConnectionFailed, err)
	}
	res.State = StateSent
	log.Debug().Str("state", res.State.String()).Int("bytes", len(packet)).Msg("client.request sent")

	res.State = StateReceiving
	_ = conn.SetReadDeadline(session.Deadline(c.cfg.Session.ReadTimeout))
	raw, err := frame.ReceiveOneMessage(conn, c.cfg.Session.Limits)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("%w: receive: %w", ErrConnectionFailed, err)
	}
	if len(raw) == 0 {
		res.State = StateFailed
		return res, ErrNoResponse
	}
	display.LogPacket(log.Logger, "ITP packet header received", raw[:min(len(raw), protocol.HeaderSize)])

	resp, err := protocol.ParseResponse(raw)
	if err != nil {
		res.State = StateFailed
		return res, err
	}
	display.LogResponse(log.Logger, resp)
	res.Response = resp

	if resp.ResponseType == protocol.ResponseFound && strings.TrimSpace(c.cfg.OutputDir) != "" {
		path, err := SaveImage(c.cfg.OutputDir, fileName, resp.Payload)
		if err != nil {
			res.State = StateFailed
			return res, err
		}
		res.SavedPath = path
	}
	res.State = StateComplete
	return res, nil
}

// SaveImage writes payload to dir under the base of fileName and returns
// the written path.
func SaveImage(dir, fileName string, payload []byte) (string, error) {
	base := filepath.Base(strings.TrimSpace(fileName))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("%w: %q", protocol.ErrInvalidFileName, fileName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("client: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, base)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("client: save %s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("bytes", len(payload)).Msg("client.SaveImage")
	return path, nil
}
