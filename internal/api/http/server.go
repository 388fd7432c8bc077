// Package apihttp exposes the session and streaming API over plain net/http.
package apihttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"magnetstream/internal/domain"
	"magnetstream/internal/registry"
	"magnetstream/internal/transcode"
	"magnetstream/internal/usecase"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type AddSessionUseCase interface {
	Execute(ctx context.Context, descriptor string) (usecase.AddSessionResult, error)
}

type StreamSessionUseCase interface {
	Execute(ctx context.Context, id domain.InfoHash, fileIndex int, forceTranscode bool, offset int64) (usecase.StreamSource, error)
}

type StatusSessionUseCase interface {
	Execute(id domain.InfoHash) (domain.SessionStatus, error)
	Snapshot() []domain.SessionStatus
}

type RemoveSessionUseCase interface {
	Execute(id domain.InfoHash) bool
}

// Deliverer moves bytes from a prepared reader to the response, optionally
// through the conversion subprocess.
type Deliverer interface {
	Deliver(ctx context.Context, reader io.ReadCloser, w http.ResponseWriter, req transcode.Request) error
}

type Server struct {
	addSession    AddSessionUseCase
	streamSession StreamSessionUseCase
	statusSession StatusSessionUseCase
	removeSession RemoveSessionUseCase
	pipeline      Deliverer
	sessions      *registry.Registry
	rateRPS       float64
	rateBurst     int
	logger        *slog.Logger
	handler       http.Handler
	wsHub         *wsHub
}

type ServerOption func(*Server)

func WithStreamSession(uc StreamSessionUseCase) ServerOption {
	return func(s *Server) { s.streamSession = uc }
}

func WithStatusSession(uc StatusSessionUseCase) ServerOption {
	return func(s *Server) { s.statusSession = uc }
}

func WithRemoveSession(uc RemoveSessionUseCase) ServerOption {
	return func(s *Server) { s.removeSession = uc }
}

func WithPipeline(p Deliverer) ServerOption {
	return func(s *Server) { s.pipeline = p }
}

func WithSessions(r *registry.Registry) ServerOption {
	return func(s *Server) { s.sessions = r }
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateRPS = rps
		s.rateBurst = burst
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func NewServer(add AddSessionUseCase, opts ...ServerOption) *Server {
	s := &Server{
		addSession: add,
		rateRPS:    100,
		rateBurst:  200,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/sessions/", s.handleSessionByID)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "magnetstream",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(corsMiddleware(traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

// BroadcastStatus pushes the current per-session transfer counters to every
// connected WebSocket client.
func (s *Server) BroadcastStatus(states []domain.SessionStatus) {
	if s.wsHub != nil {
		s.wsHub.BroadcastStatus(states)
	}
}

// Close disconnects WebSocket clients. In-flight HTTP streams are handled by
// the outer http.Server shutdown.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

// splitSessionPath returns the path segments after /sessions/.
func splitSessionPath(path string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, "/sessions/"), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
