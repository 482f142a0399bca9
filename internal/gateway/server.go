// Package gateway provides the HTTP gateway server.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"strider/internal/agent"
	"strider/internal/config"
	"strider/internal/gateway/handlers"
	"strider/internal/gateway/middleware"
	"strider/internal/gateway/websocket"
	"strider/internal/profile"
	"strider/internal/schedule"
	"strider/internal/storage"
	"strider/pkg/logger"
)

// ErrNoLauncher indicates the server has no run launcher configured.
var ErrNoLauncher = errors.New("gateway: no run launcher configured")

// RunLauncher starts a browsing run for a task and returns the run ID
// together with the raw event stream.
type RunLauncher func(ctx context.Context, task string) (string, <-chan agent.Event, error)

// Server represents the HTTP gateway server.
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	hub         *websocket.Hub
	watcher     *Watcher
	config      *config.Config
	db          *storage.DB
	rateLimiter *middleware.RateLimiter
	version     string

	launcher  RunLauncher
	profiles  *profile.Store
	scheduler *schedule.Scheduler
}

// NewServer creates a new gateway server.
func NewServer(cfg *config.Config, hub *websocket.Hub, db *storage.DB) *Server {
	router := mux.NewRouter()

	// Initialize rate limiter
	rlConfig := middleware.RateLimiterConfig{
		RequestsPerMinute: cfg.Gateway.RateLimit.RequestsPerMinute,
		Burst:             cfg.Gateway.RateLimit.Burst,
		Enabled:           cfg.Gateway.RateLimit.Enabled,
		CleanupInterval:   cfg.Gateway.RateLimit.CleanupInterval,
	}
	if rlConfig.RequestsPerMinute == 0 {
		rlConfig.RequestsPerMinute = 60
	}
	if rlConfig.Burst == 0 {
		rlConfig.Burst = 10
	}
	if rlConfig.CleanupInterval == 0 {
		rlConfig.CleanupInterval = 5 * time.Minute
	}
	rateLimiter := middleware.NewRateLimiter(rlConfig)

	// Initialize version middleware
	versionConfig := middleware.DefaultVersionConfig()

	// Apply middleware chain: Recovery -> Logging -> CORS -> RateLimit -> Version
	handler := middleware.Recovery(
		middleware.Logging(
			middleware.CORS(
				rateLimiter.RateLimit(
					middleware.Version(versionConfig)(router),
				),
			),
		),
	)

	server := &Server{
		httpServer: &http.Server{
			Handler:      handler,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 0, // Disable write timeout; WebSocket connections stay open
			IdleTimeout:  120 * time.Second,
		},
		router:      router,
		hub:         hub,
		config:      cfg,
		db:          db,
		rateLimiter: rateLimiter,
		version:     "dev",
	}

	// Note: setupRoutes() is called later via InitializeRoutes() after all dependencies are set

	return server
}

// setupRoutes configures the server routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", handlers.HealthHandler(s.version)).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", handlers.HealthHandler(s.version)).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.handleLaunchRun).Methods(http.MethodPost)

	if s.db != nil {
		handlers.NewRunsHandler(s.db).RegisterRoutes(api)
	}
	if s.profiles != nil {
		handlers.NewProfileHandler(s.profiles).RegisterRoutes(api)
	}
	if s.scheduler != nil {
		api.HandleFunc("/schedule", s.handleListSchedule).Methods(http.MethodGet)
		api.HandleFunc("/schedule/{name}/run", s.handleRunScheduledTask).Methods(http.MethodPost)
	}

	// WebSocket endpoint
	s.router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.hub, w, r)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	handlers.InitStartTime()

	addr := fmt.Sprintf("%s:%d", s.config.Gateway.Host, s.config.Gateway.Port)
	s.httpServer.Addr = addr

	// Start WebSocket hub
	go s.hub.Run()

	logger.Info().
		Str("addr", addr).
		Msg("Starting gateway server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Msg("Shutting down gateway server")

	// Stop watcher if running
	if s.watcher != nil {
		s.watcher.Stop()
	}

	// Stop rate limiter
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	return nil
}

// IsReady returns true if the server is ready to accept requests.
func (s *Server) IsReady() bool {
	return s.httpServer != nil && s.httpServer.Addr != ""
}

// SetVersion sets the version reported by health and status endpoints.
func (s *Server) SetVersion(v string) {
	if v != "" {
		s.version = v
	}
}

// SetWatcher sets the file watcher for site map hot reload.
func (s *Server) SetWatcher(w *Watcher) {
	s.watcher = w
}

// Router returns the underlying router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}

// SetRunLauncher sets the launcher used for runs started through the
// gateway, and enables run commands on WebSocket connections.
func (s *Server) SetRunLauncher(l RunLauncher) {
	s.launcher = l

	if s.hub != nil && l != nil {
		s.hub.SetRunHandler(func(task string) (string, <-chan []byte, error) {
			return s.streamRun(task)
		})
	}
}

// SetProfileStore sets the profile store served under /api/v1/profile.
func (s *Server) SetProfileStore(store *profile.Store) {
	s.profiles = store
}

// SetScheduler sets the task scheduler served under /api/v1/schedule.
// Finished scheduled runs are announced to all WebSocket clients.
func (s *Server) SetScheduler(sched *schedule.Scheduler) {
	s.scheduler = sched

	if sched != nil && s.hub != nil {
		sched.SetNotify(func(task schedule.Task, runID string) {
			payload := struct {
				Name  string `json:"name"`
				RunID string `json:"run_id"`
			}{Name: task.Name, RunID: runID}
			if err := s.hub.BroadcastTyped(websocket.TypeSchedule, payload); err != nil {
				logger.Warn().Err(err).Str("task", task.Name).Msg("Failed to announce scheduled run")
			}
		})
	}
}

// InitializeRoutes initializes routes after all dependencies are set.
// This must be called before starting the server.
func (s *Server) InitializeRoutes() {
	s.setupRoutes()
}

// launch starts a run through the configured launcher and announces it
// to all connected clients.
func (s *Server) launch(ctx context.Context, task string) (string, <-chan agent.Event, error) {
	if s.launcher == nil {
		return "", nil, ErrNoLauncher
	}

	runID, events, err := s.launcher(ctx, task)
	if err != nil {
		return "", nil, err
	}

	s.announceRun(runID, task)
	return runID, events, nil
}

// LaunchRun starts a run in the background. Its events are broadcast
// to the run's WebSocket subscribers.
func (s *Server) LaunchRun(ctx context.Context, task string) (string, error) {
	runID, events, err := s.launch(ctx, task)
	if err != nil {
		return "", err
	}

	go s.pumpEvents(runID, events)
	return runID, nil
}

// RunAndWait starts a run and blocks until it finishes, broadcasting
// its events along the way. It satisfies schedule.Launcher.
func (s *Server) RunAndWait(ctx context.Context, task string) (string, error) {
	runID, events, err := s.launch(ctx, task)
	if err != nil {
		return "", err
	}

	s.pumpEvents(runID, events)
	return runID, nil
}

// streamRun starts a run for a WebSocket client and returns the
// translated event stream. It satisfies websocket.RunHandler.
func (s *Server) streamRun(task string) (string, <-chan []byte, error) {
	runID, events, err := s.launch(context.Background(), task)
	if err != nil {
		return "", nil, err
	}

	out := make(chan []byte, 100)
	go func() {
		defer close(out)
		for ev := range events {
			data, err := encodeEvent(runID, ev)
			if err != nil {
				continue
			}
			select {
			case out <- data:
			default:
				// Buffer full, skip event
			}
		}
	}()

	return runID, out, nil
}

// pumpEvents broadcasts a run's events to its subscribers until the
// stream closes.
func (s *Server) pumpEvents(runID string, events <-chan agent.Event) {
	for ev := range events {
		data, err := encodeEvent(runID, ev)
		if err != nil {
			continue
		}
		s.hub.Broadcast(runID, data)
	}
}

// announceRun tells every connected client a run has started.
func (s *Server) announceRun(runID, task string) {
	data, err := json.Marshal(websocket.WSMessage{
		Type: websocket.TypeRun,
		Run:  runID,
		Task: task,
	})
	if err != nil {
		return
	}
	s.hub.BroadcastAll(data)
}

// encodeEvent wraps one run event in a WebSocket message.
func encodeEvent(runID string, ev agent.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(websocket.WSMessage{
		Type: ev.Type.String(),
		Run:  runID,
		Data: payload,
	})
}

// handleStatus reports gateway runtime state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Uptime  int64  `json:"uptime_seconds"`
		Clients int    `json:"clients"`
		Tasks   int    `json:"scheduled_tasks"`
	}{
		Status:  "ok",
		Version: s.version,
		Uptime:  handlers.Uptime(),
		Clients: s.hub.ClientCount(),
	}
	if s.scheduler != nil {
		resp.Tasks = s.scheduler.TaskCount()
	}

	handlers.SendJSON(w, http.StatusOK, resp)
}

// handleLaunchRun starts a run from a POST body and returns its ID.
func (s *Server) handleLaunchRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task string `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Task == "" {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "task is required")
		return
	}

	// The run outlives the request.
	runID, err := s.LaunchRun(context.Background(), req.Task)
	if err != nil {
		if errors.Is(err, ErrNoLauncher) {
			handlers.SendError(w, http.StatusServiceUnavailable, handlers.ErrCodeServiceUnavailable, err.Error())
			return
		}
		handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, err.Error())
		return
	}

	handlers.SendJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": storage.RunStatusRunning,
	})
}

// handleListSchedule reports the configured tasks with their state.
func (s *Server) handleListSchedule(w http.ResponseWriter, r *http.Request) {
	tasks := s.scheduler.Tasks()
	handlers.SendJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// handleRunScheduledTask fires a scheduled task immediately.
func (s *Server) handleRunScheduledTask(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := s.scheduler.RunNow(name); err != nil {
		switch {
		case errors.Is(err, schedule.ErrUnknownTask):
			handlers.SendError(w, http.StatusNotFound, handlers.ErrCodeNotFound, err.Error())
		case errors.Is(err, schedule.ErrTaskRunning):
			handlers.SendError(w, http.StatusConflict, handlers.ErrCodeConflict, err.Error())
		default:
			handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, err.Error())
		}
		return
	}

	handlers.SendJSON(w, http.StatusAccepted, map[string]string{
		"task":   name,
		"status": "launched",
	})
}
