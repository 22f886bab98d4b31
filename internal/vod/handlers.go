package vod

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/streamprobe"
)

// Handlers provides HTTP handlers for the VOD catalog.
type Handlers struct {
	service   *Service
	refresher *Refresher
	comparer  StreamComparer
}

// NewHandlers creates new VOD handlers. comparer may be nil when ffprobe is
// not installed.
func NewHandlers(service *Service, refresher *Refresher, comparer StreamComparer) *Handlers {
	return &Handlers{service: service, refresher: refresher, comparer: comparer}
}

// RegisterRoutes registers the catalog routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/movies", h.ListMovies)
	g.GET("/movies/:uuid", h.GetMovie)
	g.GET("/series", h.ListSeries)
	g.GET("/series/:uuid", h.GetSeries)
	g.GET("/series/:uuid/episodes", h.ListEpisodes)
	g.POST("/series/:uuid/refresh", h.RefreshSeries)
	g.GET("/episodes/:uuid", h.GetEpisode)
	g.GET("/episodes/:uuid/streams", h.GetEpisodeStreams)
	g.POST("/episodes/:uuid/compare", h.CompareEpisode)
	g.POST("/cleanup", h.CleanupOrphans)
}

// RegisterAccountRoutes registers the refresh route on the accounts group.
func (h *Handlers) RegisterAccountRoutes(g *echo.Group) {
	g.POST("/:id/refresh", h.RefreshAccount)
}

// ListMovies returns a page of movies.
// GET /api/v1/vod/movies
func (h *Handlers) ListMovies(c echo.Context) error {
	movies, err := h.service.ListMovies(c.Request().Context(), listOptions(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, movies)
}

// GetMovie returns a movie with its streams.
// GET /api/v1/vod/movies/:uuid
func (h *Handlers) GetMovie(c echo.Context) error {
	movie, err := h.service.GetMovie(c.Request().Context(), c.Param("uuid"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, movie)
}

// ListSeries returns a page of series.
// GET /api/v1/vod/series
func (h *Handlers) ListSeries(c echo.Context) error {
	series, err := h.service.ListSeries(c.Request().Context(), listOptions(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, series)
}

// GetSeries returns a series.
// GET /api/v1/vod/series/:uuid
func (h *Handlers) GetSeries(c echo.Context) error {
	series, err := h.service.GetSeries(c.Request().Context(), c.Param("uuid"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, series)
}

// ListEpisodes returns the episodes of a series.
// GET /api/v1/vod/series/:uuid/episodes
func (h *Handlers) ListEpisodes(c echo.Context) error {
	episodes, err := h.service.ListEpisodes(c.Request().Context(), c.Param("uuid"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, episodes)
}

// RefreshSeries re-imports the episodes of a series from every account that lists it.
// POST /api/v1/vod/series/:uuid/refresh
func (h *Handlers) RefreshSeries(c echo.Context) error {
	ctx := c.Request().Context()
	relations, err := h.service.SeriesRelationIDs(ctx, c.Param("uuid"))
	if err != nil {
		return mapError(err)
	}

	results := make(map[string]*BatchResult, len(relations))
	for accountID, relationID := range relations {
		result, err := h.refresher.RefreshSeriesEpisodes(ctx, accountID, relationID)
		if err != nil {
			return mapError(err)
		}
		results[strconv.FormatInt(accountID, 10)] = result
	}
	return c.JSON(http.StatusOK, results)
}

// GetEpisode returns an episode.
// GET /api/v1/vod/episodes/:uuid
func (h *Handlers) GetEpisode(c echo.Context) error {
	episode, err := h.service.GetEpisode(c.Request().Context(), c.Param("uuid"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, episode)
}

// GetEpisodeStreams returns every provider stream of an episode.
// GET /api/v1/vod/episodes/:uuid/streams
func (h *Handlers) GetEpisodeStreams(c echo.Context) error {
	streams, err := h.service.EpisodeStreams(c.Request().Context(), c.Param("uuid"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, streams)
}

// CompareEpisode probes the streams of an episode with ffprobe.
// POST /api/v1/vod/episodes/:uuid/compare
func (h *Handlers) CompareEpisode(c echo.Context) error {
	if h.comparer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, streamprobe.ErrFFprobeNotFound.Error())
	}
	result, err := h.service.CompareEpisodeStreams(c.Request().Context(), c.Param("uuid"), h.comparer)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// CleanupOrphans removes catalog entries no relation references.
// POST /api/v1/vod/cleanup
func (h *Handlers) CleanupOrphans(c echo.Context) error {
	result, err := h.service.CleanupOrphans(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// RefreshAccount starts an account refresh. With ?wait=true the request
// blocks until the refresh finishes and returns its result.
// POST /api/v1/accounts/:id/refresh
func (h *Handlers) RefreshAccount(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid account ID")
	}

	var opts RefreshOptions
	if err := c.Bind(&opts); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if c.QueryParam("wait") == "true" {
		result, err := h.refresher.RefreshAccount(c.Request().Context(), id, opts)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, result)
	}

	activityID, err := h.refresher.StartRefresh(c.Request().Context(), id, opts)
	if errors.Is(err, ErrRefreshRunning) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"message":   "Refresh already in progress",
			"accountId": id,
		})
	}
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message":    "Refresh started",
		"accountId":  id,
		"activityId": activityID,
	})
}

func listOptions(c echo.Context) ListOptions {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	return ListOptions{Search: c.QueryParam("search"), Page: page, PageSize: pageSize}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrMovieNotFound), errors.Is(err, ErrSeriesNotFound),
		errors.Is(err, ErrEpisodeNotFound), errors.Is(err, accounts.ErrAccountNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrRefreshRunning):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotXtream):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
