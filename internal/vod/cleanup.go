package vod

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vodsync/vodsync/internal/database"
	"github.com/vodsync/vodsync/internal/database/sqlc"
)

// OrphanResult counts catalog rows removed because no relation references them.
type OrphanResult struct {
	Movies   int64 `json:"movies"`
	Series   int64 `json:"series"`
	Episodes int64 `json:"episodes"`
}

// Total returns the number of removed rows.
func (r OrphanResult) Total() int64 {
	return r.Movies + r.Series + r.Episodes
}

// StaleResult counts relations removed because the provider stopped listing them.
type StaleResult struct {
	Movies   int64 `json:"movies"`
	Series   int64 `json:"series"`
	Episodes int64 `json:"episodes"`
}

// staleKinds selects which relation kinds a stale sweep touches. Only kinds
// that were fully re-listed during the scan may be swept.
type staleKinds struct {
	movies   bool
	series   bool
	episodes bool
}

// CleanupOrphans deletes movies, series and episodes without any relation.
// Series go first so their episodes cascade before the episode sweep counts.
func (s *Service) CleanupOrphans(ctx context.Context) (*OrphanResult, error) {
	result := &OrphanResult{}
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		q := s.queries.WithTx(tx)

		var err error
		if result.Series, err = q.DeleteOrphanSeries(ctx); err != nil {
			return fmt.Errorf("failed to delete orphan series: %w", err)
		}
		if result.Episodes, err = q.DeleteOrphanEpisodes(ctx); err != nil {
			return fmt.Errorf("failed to delete orphan episodes: %w", err)
		}
		if result.Movies, err = q.DeleteOrphanMovies(ctx); err != nil {
			return fmt.Errorf("failed to delete orphan movies: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Total() > 0 {
		s.logger.Info().
			Int64("movies", result.Movies).
			Int64("series", result.Series).
			Int64("episodes", result.Episodes).
			Msg("Removed orphaned catalog entries")
	}
	return result, nil
}

func (s *Service) deleteStaleRelations(ctx context.Context, accountID int64, before time.Time, kinds staleKinds) (*StaleResult, error) {
	result := &StaleResult{}
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		q := s.queries.WithTx(tx)
		params := sqlc.DeleteStaleRelationsParams{AccountID: accountID, Before: before}

		var err error
		if kinds.movies {
			if result.Movies, err = q.DeleteStaleMovieRelations(ctx, params); err != nil {
				return fmt.Errorf("failed to delete stale movie relations: %w", err)
			}
		}
		if kinds.series {
			if result.Series, err = q.DeleteStaleSeriesRelations(ctx, params); err != nil {
				return fmt.Errorf("failed to delete stale series relations: %w", err)
			}
		}
		if kinds.episodes {
			if result.Episodes, err = q.DeleteStaleEpisodeRelations(ctx, params); err != nil {
				return fmt.Errorf("failed to delete stale episode relations: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
