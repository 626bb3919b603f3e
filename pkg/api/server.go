package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cuemby/lookout/pkg/client"
	"github.com/cuemby/lookout/pkg/events"
	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/cuemby/lookout/pkg/supervisor"
	"github.com/cuemby/lookout/pkg/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// Session is the part of the supervisor exposed over the local API
type Session interface {
	Snapshot() supervisor.Status
	Start(ctx context.Context, cfg types.SessionConfig) error
	Stop(ctx context.Context) error
	Attach(ctx context.Context) error
}

// Options configures the API server
type Options struct {
	// ReadOnly rejects every request that is not a GET
	ReadOnly bool

	// Token, when set, is required as a bearer token or ?token= query
	Token string

	// Version is reported by /health
	Version string

	// AllowedIPs restricts clients to these CIDRs or addresses when set
	AllowedIPs []string

	// CommandRate limits POST requests per client per second; 0 disables
	CommandRate  float64
	CommandBurst int
}

// Server is the local HTTP API of `lookout watch`
type Server struct {
	session  Session
	broker   *events.Broker
	opts     Options
	mux      *http.ServeMux
	server   *http.Server
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	closing   chan struct{}
	closeOnce sync.Once
	streams   sync.WaitGroup
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// NewServer creates the API server. broker may be nil, in which case
// /events is not served.
func NewServer(session Session, broker *events.Broker, opts Options) *Server {
	s := &Server{
		session: session,
		broker:  broker,
		opts:    opts,
		mux:     http.NewServeMux(),
		logger:  log.WithComponent("api"),
		closing: make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: checkOrigin}

	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/ready", s.readyHandler)
	s.mux.HandleFunc("/live", metrics.LivenessHandler())
	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/session", s.handleSession)
	s.mux.HandleFunc("/session/start", s.handleStart)
	s.mux.HandleFunc("/session/stop", s.handleStop)
	s.mux.HandleFunc("/session/attach", s.handleAttach)
	if broker != nil {
		s.mux.HandleFunc("/events", s.handleEvents)
	}

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the API handler with its middleware applied
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.opts.ReadOnly {
		h = ReadOnly(h)
	}
	h = LimitCommands(s.opts.CommandRate, s.opts.CommandBurst, h)
	h = RequireToken(s.opts.Token, h)
	h = AllowFrom(s.opts.AllowedIPs, h)
	return LogRequests(s.logger, h)
}

// Start listens on addr and serves until Shutdown
func (s *Server) Start(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve serves on l until Shutdown
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info().Str("addr", l.Addr().String()).Msg("API server listening")
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, ends event streams, and waits for them
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })

	err := s.server.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var cfg types.SessionConfig
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid session config: " + err.Error(), Kind: "validation"})
		return
	}

	if err := s.session.Start(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.session.Snapshot())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.session.Stop(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.session.Attach(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// handleEvents streams supervisor events as JSON websocket messages
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	s.streams.Add(1)
	defer s.streams.Done()
	defer conn.Close()

	// Clear the server read timeout inherited from the HTTP request
	_ = conn.SetReadDeadline(time.Time{})

	sub := s.broker.Subscribe()
	defer s.broker.Unsubscribe(sub)

	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("Event stream opened")

	// Reads only detect the peer going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}

		case <-gone:
			s.logger.Debug().Str("remote", r.RemoteAddr).Msg("Event stream closed by peer")
			return

		case <-s.closing:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
}

// writeError maps supervisor and client errors onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	var (
		verr *types.ValidationError
		terr *client.TimeoutError
		nerr *client.NetworkError
		rerr *client.RemoteError
	)

	status := http.StatusInternalServerError
	kind := client.Kind(err)
	switch {
	case errors.As(err, &verr):
		status, kind = http.StatusBadRequest, "validation"
	case errors.Is(err, supervisor.ErrBusy):
		status, kind = http.StatusConflict, "busy"
	case errors.Is(err, supervisor.ErrClosed):
		status, kind = http.StatusServiceUnavailable, "closed"
	case errors.As(err, &terr):
		status = http.StatusGatewayTimeout
	case errors.As(err, &nerr), errors.As(err, &rerr):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}
