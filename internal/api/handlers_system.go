package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/vod"
)

func (s *Server) healthCheck(c echo.Context) error {
	if err := s.db.Conn().PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// getStatus reports version, catalog size and the state of optional components.
// GET /api/v1/system/status
func (s *Server) getStatus(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := s.vodService.Counts(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to count catalog")
		counts = &vod.CatalogCounts{}
	}

	accountCount := 0
	if accts, err := s.accountsService.List(ctx); err == nil {
		accountCount = len(accts)
	}

	schemaVersion, _ := s.db.SchemaVersion(ctx)

	response := map[string]interface{}{
		"version":          config.Version,
		"startTime":        s.startTime.UTC().Format(time.RFC3339),
		"uptime":           time.Since(s.startTime).Round(time.Second).String(),
		"schemaVersion":    schemaVersion,
		"accounts":         accountCount,
		"catalog":          counts,
		"ffprobeAvailable": s.prober.IsAvailable(),
		"rawCacheEnabled":  s.rawCache != nil,
		"activities":       len(s.progressManager.List()),
		"healthIssues":     s.healthService.GetSummary().HasIssues,
	}
	if s.rawCache != nil {
		if n, err := s.rawCache.Count(); err == nil {
			response["rawCacheEntries"] = n
		}
	}
	if s.hub != nil {
		response["websocketClients"] = s.hub.ClientCount()
	}
	return c.JSON(http.StatusOK, response)
}

// getActivities lists running and recently finished activities.
// GET /api/v1/system/activities
func (s *Server) getActivities(c echo.Context) error {
	return c.JSON(http.StatusOK, s.progressManager.List())
}
