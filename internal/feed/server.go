// Package feed serves the local artifact set to renderers over HTTP.
//
// Endpoints:
//
//	GET /healthz          board connectivity
//	GET /artifacts        current artifact set
//	GET /artifacts/{id}   one artifact
//	GET /identity         identity map of every engine (?domain= filters)
//	GET /identity/{anchor}/{spec}
//	                      artifact(s) rendering one spec entry
//	POST /reconcile       request an on-demand pass (?domain= filters)
//	GET /ws               websocket stream of artifact snapshots
//	GET /metrics          Prometheus metrics
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dyluth/aura/internal/artifact"
	"github.com/dyluth/aura/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Pinger checks connectivity to the shared board.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Source is the artifact set being served.
type Source interface {
	List(ctx context.Context) ([]*artifact.Artifact, error)
	Get(id string) (*artifact.Artifact, bool)
	Subscribe() (<-chan []*artifact.Artifact, func())
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Redis     string `json:"redis,omitempty"`
	Artifacts int    `json:"artifacts"`
	Clients   int    `json:"clients"`
	Error     string `json:"error,omitempty"`
}

// Server is the feed HTTP server.
type Server struct {
	pinger   Pinger
	source   Source
	engines  []engineEntry
	hub      *Hub
	router   *mux.Router
	server   *http.Server
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithCheckOrigin sets the websocket origin check. All origins are accepted
// by default.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = check }
}

// NewServer creates a feed server listening on addr.
func NewServer(addr string, pinger Pinger, source Source, opts ...Option) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		pinger: pinger,
		source: source,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "feed").Logger()
	s.hub = NewHub(s.logger)

	s.router.Use(s.recordRequests)
	s.router.HandleFunc("/healthz", s.healthCheckHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/artifacts", s.listHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/artifacts/{id}", s.getHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/identity", s.identityHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/identity/{anchor}/{spec}", s.lookupHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/reconcile", s.reconcileHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/ws", s.streamHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the stream hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Stream publishes the source's artifact set to stream clients until ctx is
// cancelled, then disconnects them.
func (s *Server) Stream(ctx context.Context) error {
	updates, unsubscribe := s.source.Subscribe()
	defer unsubscribe()
	defer s.hub.Close()

	items, err := s.source.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to read initial artifact set: %w", err)
	}
	if err := s.hub.Publish(items); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case items, ok := <-updates:
			if !ok {
				return nil
			}
			if err := s.hub.Publish(items); err != nil {
				s.logger.Error().Str("event_type", "publish_failed").Err(err).Msg("publish_failed")
			}
		}
	}
}

// Start listens in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.logger.Info().Str("event_type", "feed_listening").Str("addr", ln.Addr().String()).Msg("feed_listening")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Str("event_type", "feed_server_error").Err(err).Msg("feed_server_error")
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// healthCheckHandler returns 200 OK if Redis is accessible, 503 Service
// Unavailable otherwise.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:  "healthy",
		Clients: s.hub.Clients(),
	}
	if items, err := s.source.List(ctx); err == nil {
		response.Artifacts = len(items)
	}

	if err := s.pinger.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	response.Redis = "connected"
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.source.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*artifact.Artifact{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) getHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, ok := s.source.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("artifact %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Debug().Str("event_type", "stream_upgrade_failed").Err(err).Msg("stream_upgrade_failed")
		return
	}
	c, ok := s.hub.register(conn)
	if !ok {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	go s.hub.writePump(c)
	s.hub.readPump(c)
}

// recordRequests records request counts and latency by route template.
func (s *Server) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		metrics.RecordHTTPRequest(r.Method, path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
