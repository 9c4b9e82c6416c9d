package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/vishnuvardhanreddy8653/smart-home/internal/application"
	"github.com/vishnuvardhanreddy8653/smart-home/internal/domain"
)

// Server is the outer surface of the hub: the command-resolution entry
// point, both websocket endpoints, the poll transport and the device
// registration CRUD.
type Server struct {
	addr           string
	hub            *application.Hub
	resolver       *application.Resolver
	repo           application.DeviceRepository
	resolveTimeout time.Duration
	logger         *slog.Logger
	handler        http.Handler

	sessionsMu sync.Mutex
	sessions   map[string]*application.Session
}

// NewServer wires the HTTP surface. resolveTimeout bounds a single
// command resolution end to end, oracle retries included; zero means no
// bound beyond the request context.
func NewServer(addr string, hub *application.Hub, resolver *application.Resolver, repo application.DeviceRepository, resolveTimeout time.Duration, logger *slog.Logger) *Server {
	s := &Server{
		addr:           addr,
		hub:            hub,
		resolver:       resolver,
		repo:           repo,
		resolveTimeout: resolveTimeout,
		logger:         logger,
		sessions:       make(map[string]*application.Session),
	}

	r := chi.NewRouter()

	// The UI is served from arbitrary LAN origins (dev server, QR-code
	// mobile access), so any origin is allowed. AllowOriginFunc instead of
	// AllowedOrigins "*" because credentials and the wildcard are mutually
	// exclusive.
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(r *http.Request, origin string) bool { return true },
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/command", s.handleCommand)
	r.Post("/voice", s.handleCommand)
	r.Get("/devices", s.handleListDevices)
	r.Post("/devices", s.handleRegisterDevice)
	r.Get("/connection-info", s.handleConnectionInfo)
	r.Get("/device-command", s.handlePoll)
	r.Get("/ws", s.handleClientWS)
	r.Get("/ws/client", s.handleClientWS)
	r.Get("/ws/device/{deviceID}", s.handleDeviceWS)

	s.handler = r
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.addr,
		Handler:     s.handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP server starting", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			return srv.Close()
		}
		return nil
	})

	return g.Wait()
}

type commandRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

// handleCommand is the command-resolution entry point. Each request runs
// in its own goroutine, so a slow oracle call never blocks the websocket
// traffic of other connections.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "no text provided", http.StatusBadRequest)
		return
	}

	s.logger.Info("processing command", "text", req.Text)

	ctx := r.Context()
	if s.resolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.resolveTimeout)
		defer cancel()
	}

	intent := s.resolver.Resolve(ctx, req.Text, s.session(req.SessionID))
	intent = s.hub.Apply(intent)

	writeJSON(w, http.StatusOK, intent)
}

// session returns the conversational context for a command source,
// creating it on first use. Clients that send no session_id share the
// default session.
func (s *Server) session(id string) *application.Session {
	if id == "" {
		id = "default"
	}
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = application.NewSession()
		s.sessions[id] = sess
	}
	return sess
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.hub.PollCommand())
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		http.Error(w, "device registry not configured", http.StatusServiceUnavailable)
		return
	}

	devices, err := s.repo.List(r.Context())
	if err != nil {
		s.logger.Error("listing devices", "error", err)
		http.Error(w, "listing devices failed", http.StatusInternalServerError)
		return
	}
	if devices == nil {
		devices = []domain.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		http.Error(w, "device registry not configured", http.StatusServiceUnavailable)
		return
	}

	var device domain.Device
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&device); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if device.ID == "" {
		http.Error(w, "device id required", http.StatusBadRequest)
		return
	}

	registered, err := s.repo.Register(r.Context(), device)
	if err != nil {
		s.logger.Error("registering device", "id", device.ID, "error", err)
		http.Error(w, "registering device failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, registered)
}

// handleConnectionInfo reports the LAN address clients should use, so the
// frontend can render a QR code for mobile devices.
func (s *Server) handleConnectionInfo(w http.ResponseWriter, r *http.Request) {
	ip := localIP()
	port := s.port()
	writeJSON(w, http.StatusOK, map[string]any{
		"ip":   ip,
		"port": port,
		"url":  fmt.Sprintf("http://%s:%d/static/index.html", ip, port),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"clients": s.hub.ClientCount(),
		"devices": s.hub.DeviceCount(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Smart Home API is running"})
}

func (s *Server) port() int {
	_, portStr, err := net.SplitHostPort(s.addr)
	if err != nil {
		return 8000
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 8000
	}
	return port
}

// localIP determines the outbound interface address. The UDP dial never
// sends a packet; it only selects a route.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
