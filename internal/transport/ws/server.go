// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

// Package ws is the websocket adapter between game clients and the engine.
package ws

import (
	"context"
	cryptotls "crypto/tls"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gachafight/arena/internal/auth"
	"github.com/gachafight/arena/internal/core"
	"github.com/gachafight/arena/internal/logging"
	"github.com/gachafight/arena/pkg/errutil"
)

// ProtocolConstraint is the client protocol range this server speaks.
const ProtocolConstraint = "^1"

// Handshake results recorded by Metrics.Connection.
const (
	ResultAccepted            = "accepted"
	ResultForbiddenOrigin     = "forbidden_origin"
	ResultUnsupportedProtocol = "unsupported_protocol"
	ResultUnauthorized        = "unauthorized"
	ResultRateLimited         = "rate_limited"
	ResultUnavailable         = "unavailable"
	ResultUpgradeFailed       = "upgrade_failed"
)

// Config holds transport settings.
type Config struct {
	Addr           string
	Path           string
	AllowedOrigins []string
	OutboxSize     int
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64

	// TLS serves wss:// when set.
	TLS *cryptotls.Config
}

// DefaultConfig returns the keepalive settings game clients expect.
func DefaultConfig() Config {
	return Config{
		Addr:           ":3001",
		Path:           "/ws",
		OutboxSize:     64,
		PingInterval:   25 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 16 << 10,
	}
}

// Metrics receives handshake results.
type Metrics interface {
	Connection(result string)
}

type noopMetrics struct{}

func (noopMetrics) Connection(string) {}

// inbound is a client envelope.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Server accepts websocket connections, authenticates them, and feeds
// their intents to the engine.
type Server struct {
	cfg      Config
	engine   *core.Engine
	auth     auth.Authenticator
	metrics  Metrics
	logger   *slog.Logger
	origins  []glob.Glob
	protocol *semver.Constraints
	upgrader websocket.Upgrader
	limiter  *auth.FailureLimiter

	mu       sync.Mutex
	listener net.Listener
	clients  map[ulid.ULID]*client
	closing  bool
	handlers sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics sets the handshake metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithFailureLimiter refuses hosts that fail authentication repeatedly.
func WithFailureLimiter(l *auth.FailureLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// NewServer creates a websocket server. Zero config fields take their
// DefaultConfig values.
func NewServer(cfg Config, engine *core.Engine, authenticator auth.Authenticator, opts ...Option) (*Server, error) {
	cfg = withDefaults(cfg)

	origins := make([]glob.Glob, 0, len(cfg.AllowedOrigins))
	for _, pattern := range cfg.AllowedOrigins {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.Code("WS_INVALID_CONFIG").With("origin", pattern).Wrapf(err, "invalid origin pattern")
		}
		origins = append(origins, g)
	}
	constraint, err := semver.NewConstraint(ProtocolConstraint)
	if err != nil {
		return nil, oops.Code("WS_INVALID_CONFIG").Wrap(err)
	}

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		auth:     authenticator,
		metrics:  noopMetrics{},
		logger:   slog.Default(),
		origins:  origins,
		protocol: constraint,
		clients:  make(map[ulid.ULID]*client),
	}
	// Origin is checked before authentication in ServeHTTP.
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = def.OutboxSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	return cfg
}

// Addr returns the listen address once Run has bound it.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run serves until ctx is cancelled, then closes every client and waits
// for their handlers to finish.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return oops.Code("WS_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	if s.cfg.TLS != nil {
		listener = cryptotls.NewListener(listener, s.cfg.TLS)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("websocket server started", "addr", listener.Addr().String(), "path", s.cfg.Path, "tls", s.cfg.TLS != nil)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return oops.Code("WS_SERVE_FAILED").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("websocket shutdown incomplete", "error", err)
	}
	s.closeClients()
	s.handlers.Wait()
	s.logger.Info("websocket server stopped")
	return nil
}

// closeClients stops new connections and closes the current ones.
func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for _, c := range s.clients {
		c.close()
	}
}

// ServeHTTP runs the handshake and, on success, the connection's read loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.originAllowed(r.Header.Get("Origin")) {
		s.metrics.Connection(ResultForbiddenOrigin)
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	if !s.protocolSupported(r.URL.Query().Get("protocol")) {
		s.metrics.Connection(ResultUnsupportedProtocol)
		http.Error(w, "unsupported protocol version", http.StatusBadRequest)
		return
	}

	host := remoteHost(r)
	if s.limiter != nil {
		if rl := s.limiter.Check(host); rl.IsLockedOut {
			s.metrics.Connection(ResultRateLimited)
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.LockoutRemaining.Seconds())+1))
			http.Error(w, "too many failed attempts", http.StatusTooManyRequests)
			return
		}
	}

	identity, err := s.auth.Authenticate(r.Context(), tokenFrom(r))
	if err != nil {
		if errutil.Code(err) == auth.CodeProfileLookup {
			s.metrics.Connection(ResultUnavailable)
			errutil.LogError(s.logger, "profile lookup failed during handshake", err)
			http.Error(w, "profile service unavailable", http.StatusServiceUnavailable)
			return
		}
		s.metrics.Connection(ResultUnauthorized)
		errutil.LogWarn(s.logger, "handshake rejected", err, "remote_addr", r.RemoteAddr)
		if s.limiter != nil && s.limiter.Fail(host).IsLockedOut {
			s.logger.Warn("remote host locked out", "host", host)
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if s.limiter != nil {
		s.limiter.Reset(host)
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		s.metrics.Connection(ResultUnavailable)
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.handlers.Add(1)
	s.mu.Unlock()
	defer s.handlers.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.metrics.Connection(ResultUpgradeFailed)
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	s.metrics.Connection(ResultAccepted)

	s.serve(context.WithoutCancel(r.Context()), newClient(conn, s.cfg, s.logger), identity)
}

func (s *Server) serve(ctx context.Context, c *client, identity auth.Identity) {
	ctx = logging.WithConn(ctx, c.ID().String())

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		c.close()
		return
	}
	s.clients[c.ID()] = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.ID())
		s.mu.Unlock()
	}()

	go c.writePump()
	defer c.close()

	if err := s.engine.Connect(ctx, c, identity); err != nil {
		errutil.LogError(s.logger, "failed to register connection", err)
		return
	}
	defer s.engine.Disconnect(ctx, c.ID())

	c.readPump(func(msg inbound) { s.dispatch(ctx, c, msg) })
}

func (s *Server) dispatch(ctx context.Context, c *client, msg inbound) {
	switch msg.Type {
	case core.EventMatchmakingJoin:
		s.engine.JoinQueue(ctx, c.ID())
	case core.EventMatchmakingLeave:
		s.engine.LeaveQueue(ctx, c.ID())
	case core.EventJoinRoom:
		var roomID string
		if !s.decode(ctx, msg, &roomID) {
			return
		}
		s.engine.JoinRoom(ctx, c.ID(), roomID)
	case core.EventState:
		var p core.StatePayload
		if !s.decode(ctx, msg, &p) {
			return
		}
		s.engine.UpdateState(ctx, c.ID(), p)
	case core.EventHit:
		var p core.HitPayload
		if !s.decode(ctx, msg, &p) {
			return
		}
		s.engine.Attack(ctx, c.ID(), p)
	case core.EventRespawn:
		s.engine.Respawn(ctx, c.ID())
	case core.EventCERegen:
		s.engine.RegenCE(ctx, c.ID())
	default:
		s.logger.DebugContext(ctx, "unknown message type", "type", msg.Type)
	}
}

func (s *Server) decode(ctx context.Context, msg inbound, v any) bool {
	if len(msg.Data) == 0 {
		s.logger.DebugContext(ctx, "message without data", "type", msg.Type)
		return false
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		s.logger.DebugContext(ctx, "malformed message data", "type", msg.Type, "error", err)
		return false
	}
	return true
}

// originAllowed accepts any origin when no patterns are configured, and
// requests without an Origin header, which browsers always send.
func (s *Server) originAllowed(origin string) bool {
	if len(s.origins) == 0 || origin == "" {
		return true
	}
	for _, g := range s.origins {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// protocolSupported accepts an absent version.
func (s *Server) protocolSupported(version string) bool {
	if version == "" {
		return true
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return s.protocol.Check(v)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func tokenFrom(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
