// Package vod imports provider VOD catalogs (movies, series, episodes) and
// serves the resulting catalog.
package vod

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vodsync/vodsync/internal/crypto"
	"github.com/vodsync/vodsync/internal/database/sqlc"
)

var (
	ErrMovieNotFound   = errors.New("movie not found")
	ErrSeriesNotFound  = errors.New("series not found")
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrRefreshRunning  = errors.New("a refresh is already running for this account")
	ErrNotXtream       = errors.New("account does not use the Xtream Codes API")
)

// Service owns catalog writes and reads.
type Service struct {
	db      *sql.DB
	queries *sqlc.Queries
	logger  zerolog.Logger
	secrets *crypto.SecretStore
}

// NewService creates a new catalog service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:      db,
		queries: sqlc.New(db),
		logger:  logger.With().Str("component", "vod").Logger(),
	}
}

// SetSecretStore lets stream URLs be built from encrypted account passwords.
func (s *Service) SetSecretStore(store *crypto.SecretStore) {
	s.secrets = store
}

// BatchResult summarises one batch write.
type BatchResult struct {
	Created          int      `json:"created"`
	Updated          int      `json:"updated"`
	RelationsCreated int      `json:"relationsCreated"`
	RelationsUpdated int      `json:"relationsUpdated"`
	Skipped          int      `json:"skipped"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Add folds other into r.
func (r *BatchResult) Add(other *BatchResult) {
	if other == nil {
		return
	}
	r.Created += other.Created
	r.Updated += other.Updated
	r.RelationsCreated += other.RelationsCreated
	r.RelationsUpdated += other.RelationsUpdated
	r.Skipped += other.Skipped
	r.Warnings = append(r.Warnings, other.Warnings...)
}

func (r *BatchResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func sqlNullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
