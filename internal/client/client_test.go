package client

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/imagedb/internal/imagestore"
	"github.com/danmuck/imagedb/internal/protocol"
	"github.com/danmuck/imagedb/internal/protocol/session"
	"github.com/danmuck/imagedb/internal/server"
	"github.com/danmuck/imagedb/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func startImageDB(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := server.New(server.Config{NodeID: "client-test"}, imagestore.NewFSWithRoot(dir), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func TestFetchFoundSavesImage(t *testing.T) {
	testlog.Start(t)
	addr := startImageDB(t, map[string][]byte{"cat.PNG": {1, 2, 3, 4, 5}})
	out := t.TempDir()

	c := New(Config{Address: addr, Version: 9, OutputDir: out}, session.NewGenerator(session.WithStart(0, 77)))
	res, err := c.Fetch(context.Background(), "cat.png")
	require.NoError(t, err)
	require.Equal(t, StateComplete, res.State)
	require.Equal(t, protocol.ResponseFound, res.Response.ResponseType)
	require.Equal(t, uint8(9), res.Response.Version)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, res.Response.Payload)
	require.Equal(t, filepath.Join(out, "cat.png"), res.SavedPath)

	saved, err := os.ReadFile(res.SavedPath)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, saved)
}

func TestFetchUnsupportedVersionIsNoResponse(t *testing.T) {
	testlog.Start(t)
	addr := startImageDB(t, map[string][]byte{"cat.PNG": {1}})

	c := New(Config{Address: addr, Version: 1, OutputDir: t.TempDir()}, nil)
	res, err := c.Fetch(context.Background(), "cat.png")
	require.ErrorIs(t, err, ErrNoResponse)
	require.Equal(t, StateFailed, res.State)
	require.Equal(t, protocol.Response{}, res.Response)
}

func TestFetchNotFoundDoesNotSave(t *testing.T) {
	testlog.Start(t)
	addr := startImageDB(t, nil)
	out := t.TempDir()

	c := New(Config{Address: addr, Version: 9, OutputDir: out}, nil)
	res, err := c.Fetch(context.Background(), "dog.gif")
	require.NoError(t, err)
	require.Equal(t, protocol.ResponseNotFound, res.Response.ResponseType)
	require.Empty(t, res.SavedPath)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFetchConnectionRefused(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := New(Config{Address: addr, Version: 9}, nil)
	res, err := c.Fetch(context.Background(), "cat.png")
	require.ErrorIs(t, err, ErrConnectionFailed)
	require.Equal(t, StateFailed, res.State)
}

func TestFetchRejectsBadFileNames(t *testing.T) {
	testlog.Start(t)
	c := New(Config{Address: "127.0.0.1:1", Version: 9}, nil)

	_, err := c.Fetch(context.Background(), "photo.webp")
	require.ErrorIs(t, err, protocol.ErrUnknownExtension)
	_, err = c.Fetch(context.Background(), "noext")
	require.ErrorIs(t, err, protocol.ErrInvalidFileName)

	_, err = New(Config{}, nil).Fetch(context.Background(), "cat.png")
	require.ErrorIs(t, err, ErrAddressRequired)
}

func TestFetchTruncatedResponse(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.ReadAll(conn)
		full, _ := protocol.BuildResponse(9, protocol.ResponseFound, 1, 1, []byte{1, 2, 3, 4, 5})
		_, _ = conn.Write(full[:14])
	}()

	c := New(Config{Address: ln.Addr().String(), Version: 9, OutputDir: t.TempDir()}, nil)
	res, err := c.Fetch(context.Background(), "cat.png")
	require.ErrorIs(t, err, protocol.ErrTruncated)
	require.Equal(t, StateFailed, res.State)
}

func TestFetchHonoursReadTimeout(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	release := make(chan struct{})
	defer close(release)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}()

	cfg := Config{Address: ln.Addr().String(), Version: 9}
	cfg.Session.ReadTimeout = 50 * time.Millisecond
	_, err = New(cfg, nil).Fetch(context.Background(), "cat.png")
	require.ErrorIs(t, err, ErrConnectionFailed)
	var ne net.Error
	require.True(t, errors.As(err, &ne) && ne.Timeout())
}

func TestFetchStampsTickedTimestamp(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	stamps := make(chan uint32, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		raw, _ := io.ReadAll(conn)
		req, err := protocol.ParseRequest(raw)
		if err != nil {
			stamps <- 0
			return
		}
		stamps <- req.Timestamp
		out, _ := protocol.BuildResponse(9, protocol.ResponseNotFound, 1, req.Timestamp, nil)
		_, _ = conn.Write(out)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := session.NewGenerator(session.WithStart(0, 100), session.WithInterval(time.Millisecond))
	go func() { _ = gen.Run(ctx) }()
	require.Eventually(t, func() bool { return gen.CurrentTimestamp() > 105 }, 2*time.Second, time.Millisecond)

	res, err := New(Config{Address: ln.Addr().String(), Version: 9}, gen).Fetch(context.Background(), "cat.png")
	require.NoError(t, err)
	require.Equal(t, protocol.ResponseNotFound, res.Response.ResponseType)
	require.Greater(t, <-stamps, uint32(105))
}

func TestSaveImageUsesBaseName(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()

	path, err := SaveImage(dir, "../../etc/cat.png", []byte{9})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "cat.png"), path)

	_, err = SaveImage(dir, "", nil)
	require.ErrorIs(t, err, protocol.ErrInvalidFileName)
}

func TestStateNames(t *testing.T) {
	testlog.Start(t)
	require.Equal(t, "complete", StateComplete.String())
	require.Equal(t, "State(42)", State(42).String())
}
