// Package server assembles the strider runtime in one process:
// storage, the model provider, the run launcher, the task scheduler,
// and the HTTP gateway. The CLI embeds it rather than wiring the
// pieces itself.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"strider/internal/config"
	"strider/internal/gateway"
	"strider/internal/gateway/websocket"
	"strider/internal/profile"
	"strider/internal/schedule"
	"strider/internal/storage"
)

// Server is the embedded strider runtime.
type Server struct {
	cfg         *config.Config
	logger      zerolog.Logger
	version     string
	storagePath string

	gatewayServer *gateway.Server
	scheduler     *schedule.Scheduler
	db            *storage.DB
	launcher      *Launcher
	profiles      *profile.Store

	running       bool
	mu            sync.RWMutex
	startedAt     time.Time
	errChan       chan error
	onStateChange func(bool)
}

// ServerConfig holds construction options for the embedded server.
type ServerConfig struct {
	ConfigPath    string
	StoragePath   string
	Version       string
	Logger        zerolog.Logger
	OnStateChange func(bool)
}

// NewServer creates a new embedded server instance.
func NewServer(cfg ServerConfig) (*Server, error) {
	striderCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if striderCfg.Gateway.Port == 0 {
		striderCfg.Gateway.Port = 8080
	}
	if striderCfg.Gateway.Host == "" {
		striderCfg.Gateway.Host = "127.0.0.1"
	}

	storagePath := cfg.StoragePath
	if storagePath == "" {
		storagePath = striderCfg.Storage.Path
	}
	if storagePath == "" {
		storagePath, err = config.DefaultDataPath()
		if err != nil {
			return nil, fmt.Errorf("failed to determine storage path: %w", err)
		}
	}

	return &Server{
		cfg:           striderCfg,
		logger:        cfg.Logger,
		version:       cfg.Version,
		storagePath:   storagePath,
		errChan:       make(chan error, 1),
		onStateChange: cfg.OnStateChange,
	}, nil
}

// ErrorChan returns the error channel for monitoring server errors.
func (s *Server) ErrorChan() <-chan error {
	return s.errChan
}

// Config returns the loaded configuration. Mutations made before Start
// take effect; later ones do not.
func (s *Server) Config() *config.Config {
	return s.cfg
}

// Start starts the embedded server and waits until it is ready.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	go s.run()

	// Wait for server to be ready (with timeout)
	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return fmt.Errorf("server start timeout")
		case err := <-s.errChan:
			return fmt.Errorf("server start failed: %w", err)
		case <-ticker.C:
			if s.IsReady() {
				return nil
			}
		}
	}
}

// run initializes every component and blocks serving HTTP.
func (s *Server) run() {
	s.logger.Info().Msg("Starting strider server...")

	db, err := storage.Open(s.storagePath)
	if err != nil {
		s.errChan <- fmt.Errorf("failed to initialize database: %w", err)
		return
	}
	s.db = db

	hub := websocket.NewHub()

	s.gatewayServer = gateway.NewServer(s.cfg, hub, db)
	if s.version != "" {
		s.gatewayServer.SetVersion(s.version)
	}

	if s.cfg.Profile.Enabled {
		s.profiles = profile.NewStore(db, s.logger)
		s.gatewayServer.SetProfileStore(s.profiles)
	}

	// Model provider. The server starts without one so the REST and
	// profile surfaces stay usable; launching runs then fails with a
	// clear error until a key is configured.
	launcher, err := NewLauncher(s.cfg, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("No model provider available, runs are disabled until one is configured")
	} else {
		launcher.SetStore(db)
		if s.profiles != nil {
			launcher.SetProfile(s.profiles)
		}
		s.launcher = launcher
		s.gatewayServer.SetRunLauncher(launcher.Launch)
		s.logger.Info().Str("provider", launcher.Provider().Name()).Msg("Model provider initialized")
	}

	if s.cfg.Schedule.Enabled {
		if err := s.initScheduler(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to initialize scheduler")
		}
	}

	if s.cfg.Browser.SiteFile != "" {
		if err := s.initWatcher(hub); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to watch site file")
		}
	}

	s.gatewayServer.InitializeRoutes()

	if s.scheduler != nil {
		if err := s.scheduler.Start(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to start scheduler")
		}
	}

	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.onStateChange != nil {
		s.onStateChange(true)
	}

	s.logger.Info().
		Str("address", fmt.Sprintf("http://%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)).
		Msg("Strider server started")

	if err := s.gatewayServer.Start(); err != nil {
		s.logger.Error().Err(err).Msg("Server error")
		s.errChan <- err
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if s.onStateChange != nil {
		s.onStateChange(false)
	}
}

// initScheduler wires the cron scheduler to the gateway launcher.
func (s *Server) initScheduler() error {
	tasksPath := s.cfg.Schedule.TasksFile
	if tasksPath == "" {
		var err error
		tasksPath, err = config.DefaultTasksPath()
		if err != nil {
			return err
		}
	}
	tasksPath, err := config.ExpandPath(tasksPath)
	if err != nil {
		return err
	}

	sched := schedule.NewScheduler(tasksPath, s.gatewayServer.RunAndWait, s.logger)
	sched.SetStore(s.db)
	s.scheduler = sched
	s.gatewayServer.SetScheduler(sched)
	return nil
}

// initWatcher broadcasts a reload to clients when the site map changes.
func (s *Server) initWatcher(hub *websocket.Hub) error {
	sitePath, err := config.ExpandPath(s.cfg.Browser.SiteFile)
	if err != nil {
		return err
	}

	watcher, err := gateway.NewWatcher(hub, sitePath)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	s.gatewayServer.SetWatcher(watcher)
	return nil
}

// Stop stops the embedded server.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping strider server...")

	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	if s.gatewayServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.gatewayServer.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Error during server shutdown")
		}
	}

	if s.db != nil {
		s.db.Close()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if s.onStateChange != nil {
		s.onStateChange(false)
	}

	s.logger.Info().Msg("Strider server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// IsReady checks if the server is ready to accept connections.
func (s *Server) IsReady() bool {
	if !s.IsRunning() {
		return false
	}
	return s.gatewayServer != nil && s.gatewayServer.IsReady()
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
