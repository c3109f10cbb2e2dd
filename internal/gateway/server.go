// Package gateway exposes the relay over HTTP: an inbound message
// endpoint, the outcome log, and a WebSocket stream of new outcome lines.
package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/smsrelay/internal/channel"
	"github.com/soyeahso/smsrelay/internal/config"
	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/soyeahso/smsrelay/internal/hooks"
	"github.com/soyeahso/smsrelay/internal/logging"
	"github.com/soyeahso/smsrelay/internal/outcome"
	"github.com/soyeahso/smsrelay/internal/routing"
	"github.com/soyeahso/smsrelay/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

const (
	maxInboundBytes = 1 << 20
	maxFrameBytes   = 1 << 20
	handshakeWait   = 10 * time.Second
	shutdownWait    = 10 * time.Second
)

// Forwarder runs one inbound trigger to completion.
type Forwarder interface {
	HandleInbound(ctx context.Context, fragments []domain.Fragment, receivedAt time.Time) routing.DispatchResult
	Enabled() bool
	SetEnabled(on bool)
}

// Server is the smsrelay HTTP and WebSocket gateway.
type Server struct {
	cfg       config.GatewayConfig
	auth      ResolvedAuth
	log       *logging.Logger
	clients   *ClientRegistry
	handlers  map[string]RequestHandler
	forwarder Forwarder
	outcomes  *outcome.Log
	senders   *channel.Registry
	hooks     *hooks.Manager
	eventSeq  atomic.Int64

	baseCtx  context.Context
	inflight sync.WaitGroup

	mu          sync.RWMutex
	addr        string
	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
	stopLimiter chan struct{}
	unsubscribe func()
	closeOnce   sync.Once
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithSenders exposes sender availability through the senders.status method.
func WithSenders(r *channel.Registry) ServerOption {
	return func(s *Server) { s.senders = r }
}

// WithHooks emits gateway lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) { s.hooks = hm }
}

// New creates a gateway server. New outcome log entries are pushed to
// connected WebSocket clients from the moment New returns.
func New(cfg config.GatewayConfig, forwarder Forwarder, outcomes *outcome.Log, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Auth),
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		handlers:    make(map[string]RequestHandler),
		forwarder:   forwarder,
		outcomes:    outcomes,
		baseCtx:     context.Background(),
		authLimiter: newAuthRateLimiter(),
		stopLimiter: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.authLimiter.run(s.stopLimiter)
	s.unsubscribe = outcomes.Subscribe(func(entry string) {
		s.clients.Broadcast(EventOutcomeAppended, OutcomeEvent{Entry: entry}, s.eventSeq.Add(1))
	})
	s.registerRPCHandlers()
	return s
}

// checkWebSocketOrigin allows non-browser clients and the configured origins.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isOriginAllowed(origin, allowed)
	}
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names, sorted.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Handler returns the complete HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.AllowedOrigins)
}

func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully and
// waits for in-flight dispatches.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertPath, s.cfg.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Bind != "loopback" {
		s.log.Warn().Msg("TLS is not enabled, credentials travel in cleartext")
	}

	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.baseCtx = ctx
	s.httpServer = httpServer
	s.addr = ln.Addr().String()
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info().
		Str("addr", s.Addr()).
		Str("bind", s.cfg.Bind).
		Str("auth", s.auth.Mode).
		Bool("signedInbound", s.cfg.InboundSecret != "").
		Int("methods", len(s.handlers)).
		Msg("gateway server ready")
	s.outcomes.Append("gateway started on " + s.Addr())
	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": s.Addr()})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		s.clients.CloseAll()
		httpServer.Shutdown(shutdownCtx)
		s.waitInflight(shutdownCtx)
		s.outcomes.Append("gateway stopped")
		if s.hooks != nil {
			s.hooks.Emit(shutdownCtx, hooks.EventGatewayStop, nil)
		}
		s.Close()
	}()

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Uptime returns how long the server has been serving.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// Close stops outcome streaming and background housekeeping. It does not
// stop a running Start; cancel its context for that.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		close(s.stopLimiter)
		s.clients.CloseAll()
	})
}

// WaitIdle blocks until every accepted inbound message has been dispatched.
func (s *Server) WaitIdle() {
	s.inflight.Wait()
}

func (s *Server) waitInflight(ctx context.Context) {
	idle := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		s.log.Warn().Msg("shutdown deadline reached with dispatches still running")
	}
}

func (s *Server) dispatchContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return context.WithoutCancel(s.baseCtx)
}

// dispatchAsync hands a trigger to the forwarder on its own goroutine.
func (s *Server) dispatchAsync(reqID string, fragments []domain.Fragment, receivedAt time.Time) {
	ctx := s.dispatchContext()
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if v := recover(); v != nil {
				s.log.Error().Str("requestId", reqID).Str("panic", fmt.Sprint(v)).Msg("dispatch panicked")
			}
		}()
		res := s.forwarder.HandleInbound(ctx, fragments, receivedAt)
		s.log.Debug().
			Str("requestId", reqID).
			Int("matched", res.Matched).
			Int("completed", len(res.Outcomes)).
			Bool("timedOut", res.TimedOut).
			Msg("inbound message dispatched")
	}()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited after repeated auth failures")
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		s.authLimiter.recordFailure(r.RemoteAddr)
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.readLoop(client)
}

// handshake sends a challenge, expects a connect request and answers with
// hello-ok once the credentials check out.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeWait))

	challenge, err := NewEvent(EventChallenge, map[string]any{
		"nonce": uuid.New().String(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("creating challenge: %w", err)
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading connect: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return nil, fmt.Errorf("parsing connect frame: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		sendErrorAndClose(conn, frame.ID, "protocol_error", "expected connect request")
		return nil, fmt.Errorf("expected connect request, got type=%s method=%s", frame.Type, frame.Method)
	}

	var params ConnectParams
	if len(frame.Params) > 0 {
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			sendErrorAndClose(conn, frame.ID, "invalid_params", "invalid connect params")
			return nil, fmt.Errorf("parsing connect params: %w", err)
		}
	}

	authResult := Authorize(s.auth, params.Auth)
	if !authResult.OK {
		sendErrorAndClose(conn, frame.ID, "unauthorized", authResult.Reason)
		return nil, fmt.Errorf("auth failed: %s", authResult.Reason)
	}

	conn.SetReadDeadline(time.Time{})
	client := NewClient(conn, params.Client, authResult)

	resp, err := NewResponse(frame.ID, HelloOK{
		Protocol: ProtocolVersion,
		Server: ServerInfo{
			Version: version.Version,
			Commit:  version.Commit,
			ConnID:  client.ConnID,
		},
		Features: Features{
			Methods: s.Methods(),
			Events:  []string{EventChallenge, EventOutcomeAppended, EventForwarding},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating hello response: %w", err)
	}
	if err := client.Send(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("clientId", params.Client.ID).
		Str("authMethod", authResult.Method).
		Msg("client authenticated")
	return client, nil
}

func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read loop ended")
			}
			return
		}
		if frame.Type != FrameTypeRequest {
			continue
		}
		s.dispatchRPC(client, frame)
	}
}

func (s *Server) dispatchRPC(client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    "method_not_found",
			Message: "unknown method: " + frame.Method,
		})
		return
	}
	handler(&RequestContext{Client: client, Frame: frame, Server: s})
}

func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{Code: code, Message: message}))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
}
