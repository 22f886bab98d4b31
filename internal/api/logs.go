package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vodsync/vodsync/internal/logger"
)

// LogsProvider provides access to log data.
type LogsProvider interface {
	GetRecentLogs() []logger.LogEntry
	GetLogFilePath() string
}

// LogsHandlers handles log-related HTTP endpoints.
type LogsHandlers struct {
	provider LogsProvider
}

// NewLogsHandlers creates a new logs handlers instance.
func NewLogsHandlers(provider LogsProvider) *LogsHandlers {
	return &LogsHandlers{provider: provider}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentLogs)
	g.GET("/download", h.DownloadLogFile)
}

// GetRecentLogs returns buffered log entries, oldest first. ?level= keeps
// entries of one level and ?component= entries of one component; ?limit=
// keeps the newest n.
// GET /api/v1/system/logs
func (h *LogsHandlers) GetRecentLogs(c echo.Context) error {
	level := strings.ToLower(c.QueryParam("level"))
	component := c.QueryParam("component")

	logs := []logger.LogEntry{}
	for _, entry := range h.provider.GetRecentLogs() {
		if level != "" && entry.Level != level {
			continue
		}
		if component != "" && entry.Component != component {
			continue
		}
		logs = append(logs, entry)
	}

	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil && limit > 0 && limit < len(logs) {
		logs = logs[len(logs)-limit:]
	}
	return c.JSON(http.StatusOK, logs)
}

// DownloadLogFile serves the current log file for download.
// GET /api/v1/system/logs/download
func (h *LogsHandlers) DownloadLogFile(c echo.Context) error {
	logPath := h.provider.GetLogFilePath()
	if logPath == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}

	return c.Attachment(logPath, "vodsync.log")
}

// GetRecentLogs returns the entries of the configured provider.
func (s *Server) GetRecentLogs() []logger.LogEntry {
	if s.logsProvider == nil {
		return nil
	}
	return s.logsProvider.GetRecentLogs()
}

// GetLogFilePath returns the log file of the configured provider.
func (s *Server) GetLogFilePath() string {
	if s.logsProvider == nil {
		return ""
	}
	return s.logsProvider.GetLogFilePath()
}
