package accounts

import (
	"strings"
	"time"

	"github.com/vodsync/vodsync/internal/database/sqlc"
)

// Account types.
const (
	TypeXtream   = "XC"
	TypeStandard = "STD"
)

// Account is an IPTV provider the catalog is ingested from.
type Account struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	AccountType          string     `json:"accountType"`
	ServerURL            string     `json:"serverUrl"`
	Username             string     `json:"username"`
	Password             string     `json:"-"`
	UserAgent            string     `json:"userAgent,omitempty"`
	IsActive             bool       `json:"isActive"`
	RefreshIntervalHours int        `json:"refreshIntervalHours"`
	LastRefreshedAt      *time.Time `json:"lastRefreshedAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// IsXtream reports whether the account speaks the Xtream Codes player API.
func (a *Account) IsXtream() bool {
	return a.AccountType == TypeXtream
}

// CreateAccountInput contains fields for creating an account.
type CreateAccountInput struct {
	Name                 string `json:"name"`
	AccountType          string `json:"accountType"`
	ServerURL            string `json:"serverUrl"`
	Username             string `json:"username"`
	Password             string `json:"password"`
	UserAgent            string `json:"userAgent"`
	IsActive             *bool  `json:"isActive"`
	RefreshIntervalHours int    `json:"refreshIntervalHours"`
}

// UpdateAccountInput contains fields for updating an account. Nil fields are left unchanged.
type UpdateAccountInput struct {
	Name                 *string `json:"name"`
	AccountType          *string `json:"accountType"`
	ServerURL            *string `json:"serverUrl"`
	Username             *string `json:"username"`
	Password             *string `json:"password"`
	UserAgent            *string `json:"userAgent"`
	IsActive             *bool   `json:"isActive"`
	RefreshIntervalHours *int    `json:"refreshIntervalHours"`
}

// FromRow converts a database row to an Account.
func FromRow(row *sqlc.M3uAccount) *Account {
	a := &Account{
		ID:                   row.ID,
		Name:                 row.Name,
		AccountType:          row.AccountType,
		ServerURL:            row.ServerUrl,
		Username:             row.Username,
		Password:             row.Password,
		UserAgent:            row.UserAgent,
		IsActive:             row.IsActive == 1,
		RefreshIntervalHours: int(row.RefreshIntervalHours),
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
	if row.LastRefreshedAt.Valid {
		t := row.LastRefreshedAt.Time
		a.LastRefreshedAt = &t
	}
	return a
}

func normalizeServerURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
