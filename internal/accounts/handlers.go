package accounts

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for account operations.
type Handlers struct {
	service   *Service
	onDeleted func(accountID int64)
}

// NewHandlers creates new account handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// SetOnDeleted sets a callback run after an account was deleted.
func (h *Handlers) SetOnDeleted(fn func(accountID int64)) {
	h.onDeleted = fn
}

// RegisterRoutes registers the account routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// List returns all accounts.
// GET /api/v1/accounts
func (h *Handlers) List(c echo.Context) error {
	accounts, err := h.service.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, accounts)
}

// Get returns a single account.
// GET /api/v1/accounts/:id
func (h *Handlers) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	account, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, account)
}

// Create creates a new account.
// POST /api/v1/accounts
func (h *Handlers) Create(c echo.Context) error {
	var input CreateAccountInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	account, err := h.service.Create(c.Request().Context(), input)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, account)
}

// Update updates an account.
// PUT /api/v1/accounts/:id
func (h *Handlers) Update(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var input UpdateAccountInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	account, err := h.service.Update(c.Request().Context(), id, input)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, account)
}

// Delete deletes an account.
// DELETE /api/v1/accounts/:id
func (h *Handlers) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	if h.onDeleted != nil {
		h.onDeleted(id)
	}
	return c.NoContent(http.StatusNoContent)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateName):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNameRequired),
		errors.Is(err, ErrInvalidAccountType),
		errors.Is(err, ErrInvalidServerURL),
		errors.Is(err, ErrCredentialsRequired):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
