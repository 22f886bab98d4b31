package health

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for health endpoints.
type Handlers struct {
	health  *Service
	checker *Checker
}

// NewHandlers creates new health handlers.
func NewHandlers(health *Service, checker *Checker) *Handlers {
	return &Handlers{health: health, checker: checker}
}

// RegisterRoutes registers health routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetAll)
	g.GET("/summary", h.GetSummary)
	g.GET("/:category", h.GetByCategory)
	g.POST("/:category/test", h.TestCategory)
	g.POST("/:category/:id/test", h.TestItem)
}

// TestResult is the outcome of testing one item.
type TestResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// GetAll returns all health items grouped by category.
// GET /api/v1/health
func (h *Handlers) GetAll(c echo.Context) error {
	return c.JSON(http.StatusOK, h.health.GetAll())
}

// GetSummary returns counts per category.
// GET /api/v1/health/summary
func (h *Handlers) GetSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.health.GetSummary())
}

// GetByCategory returns health items for a specific category.
// GET /api/v1/health/:category
func (h *Handlers) GetByCategory(c echo.Context) error {
	category := HealthCategory(c.Param("category"))
	if !validCategory(category) {
		return echo.NewHTTPError(http.StatusBadRequest, ErrInvalidCategory.Error())
	}
	return c.JSON(http.StatusOK, h.health.GetByCategory(category))
}

// TestCategory tests all items in a category, one after another.
// POST /api/v1/health/:category/test
func (h *Handlers) TestCategory(c echo.Context) error {
	ctx := c.Request().Context()
	category := HealthCategory(c.Param("category"))
	if !validCategory(category) {
		return echo.NewHTTPError(http.StatusBadRequest, ErrInvalidCategory.Error())
	}

	items := h.health.GetByCategory(category)
	results := make([]TestResult, 0, len(items))
	for _, item := range items {
		ok, msg, err := h.checker.Test(ctx, category, item.ID)
		if err != nil {
			msg = err.Error()
		}
		results = append(results, TestResult{ID: item.ID, Success: ok, Message: msg})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"category": category,
		"results":  results,
	})
}

// TestItem tests a specific health item.
// POST /api/v1/health/:category/:id/test
func (h *Handlers) TestItem(c echo.Context) error {
	id := c.Param("id")
	ok, msg, err := h.checker.Test(c.Request().Context(), HealthCategory(c.Param("category")), id)
	switch {
	case errors.Is(err, ErrInvalidCategory):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrItemNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, TestResult{ID: id, Success: ok, Message: msg})
}
