package diagnostics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/vod"
)

// Handlers provides HTTP handlers for diagnostics.
type Handlers struct {
	service *Service
}

// NewHandlers creates new diagnostics handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers diagnostics routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/duplicates", h.Duplicates)
	g.GET("/multistream", h.MultiStream)
	g.GET("/relations", h.RelationStats)
	g.GET("/episodes/:id", h.InspectEpisode)
	g.GET("/streams", h.CheckStreams)
	g.POST("/provider/:accountId", h.AnalyzeProvider)
}

// Duplicates lists duplicate episode keys.
// GET /api/v1/diagnostics/duplicates
func (h *Handlers) Duplicates(c echo.Context) error {
	groups, err := h.service.Duplicates(c.Request().Context(), queryInt(c, "limit"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, groups)
}

// MultiStream lists episodes with several streams from one account.
// GET /api/v1/diagnostics/multistream
func (h *Handlers) MultiStream(c echo.Context) error {
	episodes, err := h.service.MultiStream(c.Request().Context(), queryInt(c, "limit"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, episodes)
}

// RelationStats returns per-account relation statistics.
// GET /api/v1/diagnostics/relations
func (h *Handlers) RelationStats(c echo.Context) error {
	stats, err := h.service.RelationStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// InspectEpisode returns an episode with its series and streams.
// GET /api/v1/diagnostics/episodes/:id
func (h *Handlers) InspectEpisode(c echo.Context) error {
	out, err := h.service.InspectEpisode(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// CheckStreams reports which stream ids have relations.
// GET /api/v1/diagnostics/streams?ids=78025,78026
func (h *Handlers) CheckStreams(c echo.Context) error {
	out, err := h.service.CheckStreamIDs(c.Request().Context(), c.QueryParams()["ids"])
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// AnalyzeProvider scans raw provider payloads of an account.
// POST /api/v1/diagnostics/provider/:accountId
func (h *Handlers) AnalyzeProvider(c echo.Context) error {
	accountID, err := strconv.ParseInt(c.Param("accountId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid account ID")
	}

	var opts ProviderOptions
	if err := c.Bind(&opts); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if opts.Source != "" && opts.Source != SourceLive && opts.Source != SourceCache {
		return echo.NewHTTPError(http.StatusBadRequest, "source must be live or cache")
	}

	report, err := h.service.AnalyzeProvider(c.Request().Context(), accountID, opts)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func queryInt(c echo.Context, name string) int {
	v, _ := strconv.Atoi(c.QueryParam(name))
	return v
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrEpisodeNotFound), errors.Is(err, accounts.ErrAccountNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoStreamIDs), errors.Is(err, vod.ErrNotXtream):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoRawCache):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
