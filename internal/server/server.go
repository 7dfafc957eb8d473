package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/imagedb/internal/display"
	"github.com/danmuck/imagedb/internal/imagestore"
	"github.com/danmuck/imagedb/internal/observability"
	"github.com/danmuck/imagedb/internal/protocol"
	"github.com/danmuck/imagedb/internal/protocol/frame"
	"github.com/danmuck/imagedb/internal/protocol/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Exchange outcomes recorded in metrics and spans.
const (
	OutcomeResponded  = "responded"
	OutcomeRejected   = "rejected"
	OutcomeReceiveErr = "receive_failed"
	OutcomeWriteErr   = "write_failed"
)

// Server answers ITP image queries, one request per TCP connection.
type Server struct {
	cfg   Config
	store imagestore.Store
	gen   *session.Generator
	peers *PeerRegistry

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool

	active atomic.Int64
	ready  atomic.Bool
	addr   atomic.Value

	tasks []func(context.Context) error
}

// New constructs a server. A nil gen gets a fresh Generator.
func New(cfg Config, store imagestore.Store, gen *session.Generator) *Server {
	if gen == nil {
		gen = session.NewGenerator()
	}
	return &Server{
		cfg:   cfg.withDefaults(),
		store: store,
		gen:   gen,
		peers: NewPeerRegistry(),
		conns: make(map[net.Conn]struct{}),
	}
}

func (s *Server) Config() Config {
	return s.cfg
}

func (s *Server) Peers() *PeerRegistry {
	return s.peers
}

func (s *Server) Generator() *session.Generator {
	return s.gen
}

// Addr returns the bound listener address once serving, else "".
func (s *Server) Addr() string {
	if v, ok := s.addr.Load().(string); ok {
		return v
	}
	return ""
}

// AddTask registers fn to run alongside the listener in Run. Tasks stop
// when the run context is cancelled; a task error stops the server.
func (s *Server) AddTask(fn func(context.Context) error) {
	if fn != nil {
		s.tasks = append(s.tasks, fn)
	}
}

// Run listens on ListenAddr and serves until ctx is done. The generator
// ticker, the admin endpoint and registered tasks share its lifetime.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	}
	log.Info().
		Str("node", s.cfg.NodeID).
		Str("addr", ln.Addr().String()).
		Msg("ImageDB server is started and listening")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Serve(gctx, ln) })
	g.Go(func() error { return s.gen.Run(gctx) })
	if addr := strings.TrimSpace(s.cfg.AdminAddr); addr != "" {
		router := s.AdminRouter(time.Now())
		g.Go(func() error { return observability.ServeAdmin(gctx, addr, router) })
	}
	for _, task := range s.tasks {
		g.Go(func() error { return task(gctx) })
	}
	return g.Wait()
}

// Serve accepts connections on ln until ctx is done, handling each on its
// own goroutine.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	s.connsMu.Lock()
	s.closing = false
	s.connsMu.Unlock()
	s.addr.Store(ln.Addr().String())
	s.ready.Store(true)
	defer s.ready.Store(false)
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if !s.trackConn(conn) {
			_ = conn.Close()
			return nil
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)
	start := time.Now()
	node := s.cfg.NodeID

	release := observability.TrackConnection(node)
	defer release()
	active := s.active.Add(1)
	defer s.active.Add(-1)

	peer := s.peers.Join(conn.RemoteAddr(), s.gen.CurrentTimestamp())
	defer s.peers.Leave(peer.ID)

	logger := log.With().
		Str("node", node).
		Str("conn", peer.ID).
		Str("peer", peer.Nickname).
		Logger()
	logger.Info().
		Str("remote", peer.RemoteAddr).
		Uint32("ts", peer.JoinedAt).
		Int64("active", active).
		Msgf("%s is connected at timestamp: %d", peer.Nickname, peer.JoinedAt)

	ctx, span := observability.StartExchange(ctx, node, peer.ID, peer.RemoteAddr)
	ex := &exchange{
		s:      s,
		conn:   conn,
		peer:   peer,
		busy:   s.cfg.MaxConnections > 0 && active > int64(s.cfg.MaxConnections),
		logger: logger,
		state:  StateIdle,
	}
	outcome, err := ex.run(ctx)
	ex.transition(StateClosed)
	observability.EndExchange(span, outcome, err)
	observability.RecordExchange(node, outcome, time.Since(start))

	logger.Info().Str("outcome", outcome).Msgf("%s closed the connection", peer.Nickname)
}

// exchange carries one connection through Idle, Receiving, Resolved,
// Responded and Closed.
type exchange struct {
	s      *Server
	conn   net.Conn
	peer   Peer
	busy   bool
	logger zerolog.Logger
	state  ConnState
}

func (e *exchange) transition(next ConnState) {
	e.logger.Debug().Str("from", e.state.String()).Str("state", next.String()).Msg("server.conn state")
	e.state = next
}

func (e *exchange) run(ctx context.Context) (string, error) {
	cfg := e.s.cfg
	node := cfg.NodeID

	e.transition(StateReceiving)
	_ = e.conn.SetReadDeadline(session.Deadline(cfg.Session.ReadTimeout))
	packet, err := frame.ReceiveRequest(e.conn, cfg.Session.Limits)
	if err != nil {
		observability.RecordRejected(node, rejectReason(err))
		e.logger.Warn().Err(err).Msg("server.receive failed")
		return OutcomeReceiveErr, err
	}
	display.LogPacket(e.logger, "ITP packet received", packet)

	req, err := protocol.ParseRequest(packet)
	if err != nil {
		observability.RecordRejected(node, "malformed")
		e.logger.Warn().Err(err).Msg("server.parse failed")
		return OutcomeReceiveErr, err
	}
	display.LogRequest(e.logger, req)

	if req.Version != protocol.SupportedVersion {
		observability.RecordRejected(node, "unsupported_version")
		e.logger.Warn().Uint8("version", req.Version).Msg("The protocol version is not supported")
		return OutcomeRejected, fmt.Errorf("%w: %d", protocol.ErrUnsupportedVersion, req.Version)
	}

	rt, payload := e.resolve(ctx, req)
	e.transition(StateResolved)

	seq := uint16(e.s.gen.NextSequence())
	ts := e.s.gen.CurrentTimestamp()
	out, err := protocol.BuildResponse(req.Version, rt, seq, ts, payload)
	if err != nil {
		e.logger.Error().Err(err).Msg("server.build response failed")
		return OutcomeWriteErr, err
	}

	_ = e.conn.SetWriteDeadline(session.Deadline(cfg.Session.WriteTimeout))
	if err := frame.WriteMessage(e.conn, out); err != nil {
		e.logger.Warn().Err(err).Msg("server.write failed")
		return OutcomeWriteErr, err
	}
	e.transition(StateResponded)
	_ = e.conn.SetReadDeadline(session.Deadline(cfg.Session.ReadTimeout))
	if n, err := frame.Discard(e.conn, cfg.Session.Limits); err != nil || n > 0 {
		e.logger.Debug().Err(err).Int64("bytes", n).Msg("server.drained trailing bytes")
	}
	observability.RecordResponse(node, req.ImageType.String(), rt.String(), len(payload))
	e.logger.Info().
		Str("image", req.FileName()).
		Str("response_type", rt.String()).
		Uint16("seq", seq).
		Uint32("ts", ts).
		Int("bytes", len(payload)).
		Msg("server.response sent")
	return OutcomeResponded, nil
}

// resolve maps a supported request to its response type and payload. Any
// store failure is answered with NotFound.
func (e *exchange) resolve(ctx context.Context, req protocol.Request) (protocol.ResponseType, []byte) {
	if e.busy {
		e.logger.Warn().Int("max_connections", e.s.cfg.MaxConnections).Msg("server.busy")
		return protocol.ResponseBusy, nil
	}
	data, err := e.s.store.Read(ctx, req.ImageName, req.ImageType.Extension())
	if err != nil {
		event := e.logger.Info()
		if !errors.Is(err, imagestore.ErrNotFound) {
			event = e.logger.Warn()
		}
		event.Err(err).Str("image", req.FileName()).Msg("server.lookup failed")
		return protocol.ResponseNotFound, nil
	}
	return protocol.ResponseFound, data
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, frame.ErrEmptyMessage):
		return "empty"
	case errors.Is(err, frame.ErrShortHeader), errors.Is(err, frame.ErrTruncated):
		return "truncated"
	case errors.Is(err, frame.ErrMessageTooLarge):
		return "too_large"
	default:
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return "timeout"
		}
		return "io"
	}
}

// trackConn registers conn for forced close on shutdown. It reports false
// once closeAllConns has run, and the caller must close conn itself.
func (s *Server) trackConn(conn net.Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.closing = true
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}
