package api

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/crypto"
	"github.com/vodsync/vodsync/internal/database"
	"github.com/vodsync/vodsync/internal/database/sqlc"
	"github.com/vodsync/vodsync/internal/diagnostics"
	"github.com/vodsync/vodsync/internal/health"
	"github.com/vodsync/vodsync/internal/progress"
	"github.com/vodsync/vodsync/internal/rawcache"
	"github.com/vodsync/vodsync/internal/scheduler"
	"github.com/vodsync/vodsync/internal/scheduler/tasks"
	"github.com/vodsync/vodsync/internal/streamprobe"
	"github.com/vodsync/vodsync/internal/vod"
	"github.com/vodsync/vodsync/internal/websocket"
)

// Server handles HTTP requests for the vodsync API and owns the background
// scheduler.
type Server struct {
	echo      *echo.Echo
	db        *database.DB
	hub       *websocket.Hub
	logger    zerolog.Logger
	cfg       *config.Config
	startTime time.Time

	accountsService    *accounts.Service
	vodService         *vod.Service
	refresher          *vod.Refresher
	diagnosticsService *diagnostics.Service
	healthService      *health.Service
	healthChecker      *health.Checker
	progressManager    *progress.Manager
	prober             *streamprobe.Prober
	rawCache           *rawcache.Store
	scheduler          *scheduler.Scheduler
	logsProvider       LogsProvider
}

// NewServer creates a new API server instance. hub may be nil.
func NewServer(db *database.DB, hub *websocket.Hub, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		db:        db,
		hub:       hub,
		logger:    logger,
		cfg:       cfg,
		startTime: time.Now(),
	}

	conn := db.Conn()
	secrets, err := openSecrets(conn, cfg.Security.SecretKey, logger)
	if err != nil {
		return nil, err
	}
	s.accountsService = accounts.NewService(conn, logger)
	s.accountsService.SetSecretStore(secrets)
	s.vodService = vod.NewService(conn, logger)
	s.vodService.SetSecretStore(secrets)
	s.diagnosticsService = diagnostics.NewService(conn, s.accountsService, cfg.Xtream, logger)
	s.prober = streamprobe.NewProber(cfg.Probe, logger)

	// a nil *Hub must not end up inside the Broadcaster interface
	if hub != nil {
		s.progressManager = progress.NewManager(hub, logger)
	} else {
		s.progressManager = progress.NewManager(nil, logger)
	}

	s.healthService = health.NewService(logger)
	s.healthChecker = health.NewChecker(s.healthService, s.accountsService, cfg.Xtream, logger)
	s.healthChecker.SetDatabase(conn, filepath.Dir(db.Path()))
	s.healthChecker.SetProbe(s.prober)

	s.refresher = vod.NewRefresher(s.vodService, s.accountsService, cfg.Xtream, cfg.VOD, logger)
	s.refresher.SetProgressManager(s.progressManager)
	s.refresher.SetRefreshReporter(s.healthService)
	if hub != nil {
		s.refresher.SetBroadcaster(hub)
		s.healthService.SetBroadcaster(hub)
	}

	if cfg.RawCache.Enabled {
		store, err := rawcache.Open(cfg.RawCache.Path)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.RawCache.Path).Msg("Failed to open raw payload cache, continuing without it")
		} else {
			s.rawCache = store
			s.refresher.SetRawCache(store)
			s.diagnosticsService.SetRawCache(store)
			s.healthChecker.SetRawCacheDir(filepath.Dir(cfg.RawCache.Path))
		}
	}

	sched, err := scheduler.New(logger)
	if err != nil {
		return nil, err
	}
	s.scheduler = sched
	if err := s.registerTasks(); err != nil {
		return nil, err
	}

	if hub != nil {
		s.registerHubHandlers()
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// openSecrets loads the password key and encrypts any passwords still
// stored in plaintext.
func openSecrets(conn *sql.DB, secret string, logger zerolog.Logger) (*crypto.SecretStore, error) {
	ctx := context.Background()
	queries := sqlc.New(conn)
	store, err := crypto.Open(ctx, queries, secret)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, nil
	}
	n, err := store.EncryptAccountPasswords(ctx, queries)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		logger.Info().Int("accounts", n).Msg("Encrypted stored account passwords")
	}
	return store, nil
}

func (s *Server) registerTasks() error {
	refreshTask := tasks.NewAccountRefreshTask(s.accountsService, s.refresher, s.logger)
	if err := tasks.RegisterAccountRefreshTask(s.scheduler, refreshTask, s.cfg.Scheduler.RefreshCron, s.cfg.Scheduler.RunOnStart); err != nil {
		return err
	}
	if err := tasks.RegisterCatalogCleanupTask(s.scheduler, s.vodService, s.cfg.Scheduler.CleanupCron); err != nil {
		return err
	}
	return tasks.RegisterHealthCheckTask(s.scheduler, s.healthChecker, s.cfg.Scheduler.HealthCron)
}

// SetLogsProvider sets the source for the logs endpoint.
func (s *Server) SetLogsProvider(provider LogsProvider) {
	s.logsProvider = provider
}

// Start starts the scheduler and begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	s.scheduler.Start()
	return s.echo.Start(address)
}

// Shutdown stops the scheduler and the HTTP server and closes the raw cache.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if err := s.scheduler.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stop scheduler")
	}

	err := s.echo.Shutdown(ctx)

	if s.rawCache != nil {
		if cerr := s.rawCache.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("Failed to close raw payload cache")
		}
	}
	return err
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
