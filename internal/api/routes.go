package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/api/handlers"
	apimw "github.com/vodsync/vodsync/internal/api/middleware"
	"github.com/vodsync/vodsync/internal/diagnostics"
	"github.com/vodsync/vodsync/internal/health"
	"github.com/vodsync/vodsync/internal/vod"
)

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.APIHeaders())

	// Request body size limit (2MB)
	s.echo.Use(middleware.BodyLimit("2M"))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	if s.hub != nil {
		s.echo.GET("/ws", s.hub.HandleWebSocket)
	}

	api := s.echo.Group("/api/v1")

	s.setupSystemRoutes(api)
	s.setupHealthRoutes(api)
	s.setupCatalogRoutes(api)
	s.setupDiagnosticsRoutes(api)
	s.setupSchedulerRoutes(api)
}

func (s *Server) setupSystemRoutes(api *echo.Group) {
	system := api.Group("/system")
	system.GET("/status", s.getStatus)
	system.GET("/activities", s.getActivities)

	logsHandlers := NewLogsHandlers(s)
	logsHandlers.RegisterRoutes(system.Group("/logs"))
}

func (s *Server) setupHealthRoutes(api *echo.Group) {
	healthHandlers := health.NewHandlers(s.healthService, s.healthChecker)
	healthHandlers.RegisterRoutes(api.Group("/health"))
}

func (s *Server) setupCatalogRoutes(api *echo.Group) {
	accountsGroup := api.Group("/accounts")
	accountHandlers := accounts.NewHandlers(s.accountsService)
	accountHandlers.SetOnDeleted(func(accountID int64) {
		s.healthService.RemoveProvider(accountID)
		if s.rawCache == nil {
			return
		}
		if n, err := s.rawCache.DeleteAccount(accountID); err != nil {
			s.logger.Warn().Err(err).Int64("accountId", accountID).Msg("Failed to drop cached payloads")
		} else if n > 0 {
			s.logger.Debug().Int64("accountId", accountID).Int("entries", n).Msg("Dropped cached payloads")
		}
	})
	accountHandlers.RegisterRoutes(accountsGroup)

	var comparer vod.StreamComparer
	if s.prober.IsAvailable() {
		comparer = s.prober
	}
	vodHandlers := vod.NewHandlers(s.vodService, s.refresher, comparer)
	vodHandlers.RegisterRoutes(api.Group("/vod"))
	vodHandlers.RegisterAccountRoutes(accountsGroup)
}

func (s *Server) setupDiagnosticsRoutes(api *echo.Group) {
	diagnosticsHandlers := diagnostics.NewHandlers(s.diagnosticsService)
	diagnosticsHandlers.RegisterRoutes(api.Group("/diagnostics"))
}

func (s *Server) setupSchedulerRoutes(api *echo.Group) {
	schedulerHandler := handlers.NewSchedulerHandler(s.scheduler)
	schedulerGroup := api.Group("/scheduler")
	schedulerGroup.GET("/tasks", schedulerHandler.ListTasks)
	schedulerGroup.GET("/tasks/:id", schedulerHandler.GetTask)
	schedulerGroup.POST("/tasks/:id/run", schedulerHandler.RunTask)
}

// registerHubHandlers answers client requests sent over the WebSocket.
func (s *Server) registerHubHandlers() {
	s.hub.Handle("activities:list", func(json.RawMessage) (string, interface{}, error) {
		return "activities:list", s.progressManager.List(), nil
	})
	s.hub.Handle("health:list", func(json.RawMessage) (string, interface{}, error) {
		return "health:list", s.healthService.GetAll(), nil
	})
	s.hub.Handle("scheduler:tasks", func(json.RawMessage) (string, interface{}, error) {
		return "scheduler:tasks", s.scheduler.ListTasks(), nil
	})
}
