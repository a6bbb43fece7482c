package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/domain"
	"github.com/vertextoedge/localai-desktop/internal/domain/event"
	"github.com/vertextoedge/localai-desktop/internal/port"
	"github.com/vertextoedge/localai-desktop/internal/service/orchestrator"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr       string
	AuthToken      string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	WSSendBuffer   int
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "127.0.0.1:11500",
		ReadTimeout:  30 * time.Second,
		IdleTimeout:  60 * time.Second,
		WSSendBuffer: 64,
	}
}

// Acquirer is the orchestrator surface exposed over HTTP
type Acquirer interface {
	CheckInstallation(ctx context.Context) domain.DetectionResult
	EngineStatus(ctx context.Context) domain.EngineStatus
	RequestDownload(ctx context.Context) (string, error)
	Cancel() bool
	State() orchestrator.Snapshot
	History(ctx context.Context, limit int) ([]*domain.Acquisition, error)
}

// Dependencies groups the collaborators of a Server
type Dependencies struct {
	Acquirer Acquirer
	Store    port.Store
	Events   event.EventDispatcher
	Metrics  *event.MetricsHandler
}

// Server represents the HTTP API server
type Server struct {
	config       *Config
	deps         Dependencies
	logger       *zap.Logger
	server       *http.Server
	hub          *Hub
	sub          *event.Subscription
	origins      *originPolicy
	upgrader     websocket.Upgrader
	debugHandler *DebugHandler
}

// New creates a new HTTP server and subscribes its WebSocket hub to events
func New(cfg *Config, deps Dependencies, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		config:  cfg,
		deps:    deps,
		logger:  logger,
		hub:     NewHub(cfg.WSSendBuffer, logger),
		origins: newOriginPolicy(cfg.AllowedOrigins),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.origins.Check}
	s.debugHandler = NewDebugHandler(deps.Store, deps.Metrics, s.hub, logger)
	if deps.Events != nil {
		s.sub = deps.Events.Subscribe(s.hub)
	}

	auth := TokenAuthMiddleware(cfg.AuthToken, logger)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Engine
	mux.HandleFunc("/api/engine/detect", auth(s.handleDetect))
	mux.HandleFunc("/api/engine/status", auth(s.handleEngineStatus))

	// Download
	mux.HandleFunc("/api/download", auth(s.handleDownload))
	mux.HandleFunc("/api/download/cancel", auth(s.handleCancel))
	mux.HandleFunc("/api/download/state", auth(s.handleState))
	mux.HandleFunc("/api/acquisitions", auth(s.handleAcquisitions))
	mux.HandleFunc("/ws", auth(s.handleWS))

	// Debug endpoints
	mux.HandleFunc("/debug/stats", auth(s.debugHandler.HandleStats))

	handler := RecoverMiddleware(logger)(CORSMiddleware(s.origins)(mux))
	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      LoggingMiddleware(logger)(handler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the HTTP server
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server and disconnects WebSocket clients
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	if s.sub != nil {
		s.deps.Events.Unsubscribe(s.sub)
	}
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxInboundSize)

	s.logger.Debug("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))
	c := s.hub.Add(conn)

	// Inbound messages are ignored; reading detects the close
	go func() {
		defer func() {
			s.hub.Remove(c)
			s.logger.Debug("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
