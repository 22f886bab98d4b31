package sqlc

import (
	"context"
	"database/sql"
	"time"
)

// Movie relations

const movieRelationColumns = `id, account_id, movie_id, category_id, stream_id, container_extension, custom_properties, last_seen_at, created_at, updated_at`

func scanMovieRelation(row interface{ Scan(...interface{}) error }) (*M3uMovieRelation, error) {
	var i M3uMovieRelation
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.MovieID,
		&i.CategoryID,
		&i.StreamID,
		&i.ContainerExtension,
		&i.CustomProperties,
		&i.LastSeenAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

const getMovieRelationByStream = `SELECT ` + movieRelationColumns + ` FROM m3u_movie_relations
WHERE account_id = ? AND stream_id = ? LIMIT 1`

type GetMovieRelationByStreamParams struct {
	AccountID int64  `json:"account_id"`
	StreamID  string `json:"stream_id"`
}

func (q *Queries) GetMovieRelationByStream(ctx context.Context, arg GetMovieRelationByStreamParams) (*M3uMovieRelation, error) {
	return scanMovieRelation(q.db.QueryRowContext(ctx, getMovieRelationByStream, arg.AccountID, arg.StreamID))
}

const createMovieRelation = `INSERT INTO m3u_movie_relations (
    account_id, movie_id, category_id, stream_id, container_extension, custom_properties, last_seen_at
) VALUES (?, ?, ?, ?, ?, ?, ?)`

type CreateMovieRelationParams struct {
	AccountID          int64          `json:"account_id"`
	MovieID            int64          `json:"movie_id"`
	CategoryID         sql.NullInt64  `json:"category_id"`
	StreamID           string         `json:"stream_id"`
	ContainerExtension string         `json:"container_extension"`
	CustomProperties   sql.NullString `json:"custom_properties"`
	LastSeenAt         time.Time      `json:"last_seen_at"`
}

func (q *Queries) CreateMovieRelation(ctx context.Context, arg CreateMovieRelationParams) error {
	_, err := q.db.ExecContext(ctx, createMovieRelation,
		arg.AccountID,
		arg.MovieID,
		arg.CategoryID,
		arg.StreamID,
		arg.ContainerExtension,
		arg.CustomProperties,
		arg.LastSeenAt,
	)
	return err
}

const updateMovieRelation = `UPDATE m3u_movie_relations SET
    movie_id = ?,
    category_id = ?,
    container_extension = ?,
    custom_properties = ?,
    last_seen_at = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateMovieRelationParams struct {
	MovieID            int64          `json:"movie_id"`
	CategoryID         sql.NullInt64  `json:"category_id"`
	ContainerExtension string         `json:"container_extension"`
	CustomProperties   sql.NullString `json:"custom_properties"`
	LastSeenAt         time.Time      `json:"last_seen_at"`
	ID                 int64          `json:"id"`
}

func (q *Queries) UpdateMovieRelation(ctx context.Context, arg UpdateMovieRelationParams) error {
	_, err := q.db.ExecContext(ctx, updateMovieRelation,
		arg.MovieID,
		arg.CategoryID,
		arg.ContainerExtension,
		arg.CustomProperties,
		arg.LastSeenAt,
		arg.ID,
	)
	return err
}

const listMovieRelationsByMovie = `SELECT ` + movieRelationColumns + ` FROM m3u_movie_relations
WHERE movie_id = ? ORDER BY account_id, stream_id`

func (q *Queries) ListMovieRelationsByMovie(ctx context.Context, movieID int64) ([]*M3uMovieRelation, error) {
	rows, err := q.db.QueryContext(ctx, listMovieRelationsByMovie, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*M3uMovieRelation{}
	for rows.Next() {
		i, err := scanMovieRelation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteStaleMovieRelations = `DELETE FROM m3u_movie_relations
WHERE account_id = ? AND julianday(last_seen_at) < julianday(?)`

type DeleteStaleRelationsParams struct {
	AccountID int64     `json:"account_id"`
	Before    time.Time `json:"before"`
}

func (q *Queries) DeleteStaleMovieRelations(ctx context.Context, arg DeleteStaleRelationsParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteStaleMovieRelations, arg.AccountID, arg.Before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Series relations

const seriesRelationColumns = `id, account_id, series_id, category_id, external_series_id, custom_properties, last_episode_refresh_at, last_seen_at, created_at, updated_at`

func scanSeriesRelation(row interface{ Scan(...interface{}) error }) (*M3uSeriesRelation, error) {
	var i M3uSeriesRelation
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.SeriesID,
		&i.CategoryID,
		&i.ExternalSeriesID,
		&i.CustomProperties,
		&i.LastEpisodeRefreshAt,
		&i.LastSeenAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

func (q *Queries) listSeriesRelations(ctx context.Context, query string, args ...interface{}) ([]*M3uSeriesRelation, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*M3uSeriesRelation{}
	for rows.Next() {
		i, err := scanSeriesRelation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getSeriesRelation = `SELECT ` + seriesRelationColumns + ` FROM m3u_series_relations WHERE id = ? LIMIT 1`

func (q *Queries) GetSeriesRelation(ctx context.Context, id int64) (*M3uSeriesRelation, error) {
	return scanSeriesRelation(q.db.QueryRowContext(ctx, getSeriesRelation, id))
}

const getSeriesRelationByExternalID = `SELECT ` + seriesRelationColumns + ` FROM m3u_series_relations
WHERE account_id = ? AND external_series_id = ? LIMIT 1`

type GetSeriesRelationByExternalIDParams struct {
	AccountID        int64  `json:"account_id"`
	ExternalSeriesID string `json:"external_series_id"`
}

func (q *Queries) GetSeriesRelationByExternalID(ctx context.Context, arg GetSeriesRelationByExternalIDParams) (*M3uSeriesRelation, error) {
	return scanSeriesRelation(q.db.QueryRowContext(ctx, getSeriesRelationByExternalID, arg.AccountID, arg.ExternalSeriesID))
}

const createSeriesRelation = `INSERT INTO m3u_series_relations (
    account_id, series_id, category_id, external_series_id, custom_properties, last_seen_at
) VALUES (?, ?, ?, ?, ?, ?)`

type CreateSeriesRelationParams struct {
	AccountID        int64          `json:"account_id"`
	SeriesID         int64          `json:"series_id"`
	CategoryID       sql.NullInt64  `json:"category_id"`
	ExternalSeriesID string         `json:"external_series_id"`
	CustomProperties sql.NullString `json:"custom_properties"`
	LastSeenAt       time.Time      `json:"last_seen_at"`
}

func (q *Queries) CreateSeriesRelation(ctx context.Context, arg CreateSeriesRelationParams) error {
	_, err := q.db.ExecContext(ctx, createSeriesRelation,
		arg.AccountID,
		arg.SeriesID,
		arg.CategoryID,
		arg.ExternalSeriesID,
		arg.CustomProperties,
		arg.LastSeenAt,
	)
	return err
}

const updateSeriesRelation = `UPDATE m3u_series_relations SET
    series_id = ?,
    category_id = ?,
    custom_properties = ?,
    last_seen_at = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateSeriesRelationParams struct {
	SeriesID         int64          `json:"series_id"`
	CategoryID       sql.NullInt64  `json:"category_id"`
	CustomProperties sql.NullString `json:"custom_properties"`
	LastSeenAt       time.Time      `json:"last_seen_at"`
	ID               int64          `json:"id"`
}

func (q *Queries) UpdateSeriesRelation(ctx context.Context, arg UpdateSeriesRelationParams) error {
	_, err := q.db.ExecContext(ctx, updateSeriesRelation,
		arg.SeriesID,
		arg.CategoryID,
		arg.CustomProperties,
		arg.LastSeenAt,
		arg.ID,
	)
	return err
}

const listSeriesRelationsByAccount = `SELECT ` + seriesRelationColumns + ` FROM m3u_series_relations
WHERE account_id = ? ORDER BY id`

func (q *Queries) ListSeriesRelationsByAccount(ctx context.Context, accountID int64) ([]*M3uSeriesRelation, error) {
	return q.listSeriesRelations(ctx, listSeriesRelationsByAccount, accountID)
}

const listSeriesRelationsBySeries = `SELECT ` + seriesRelationColumns + ` FROM m3u_series_relations
WHERE series_id = ? ORDER BY account_id`

func (q *Queries) ListSeriesRelationsBySeries(ctx context.Context, seriesID int64) ([]*M3uSeriesRelation, error) {
	return q.listSeriesRelations(ctx, listSeriesRelationsBySeries, seriesID)
}

const touchSeriesEpisodeRefresh = `UPDATE m3u_series_relations SET last_episode_refresh_at = ? WHERE id = ?`

type TouchSeriesEpisodeRefreshParams struct {
	LastEpisodeRefreshAt sql.NullTime `json:"last_episode_refresh_at"`
	ID                   int64        `json:"id"`
}

func (q *Queries) TouchSeriesEpisodeRefresh(ctx context.Context, arg TouchSeriesEpisodeRefreshParams) error {
	_, err := q.db.ExecContext(ctx, touchSeriesEpisodeRefresh, arg.LastEpisodeRefreshAt, arg.ID)
	return err
}

const deleteStaleSeriesRelations = `DELETE FROM m3u_series_relations
WHERE account_id = ? AND julianday(last_seen_at) < julianday(?)`

func (q *Queries) DeleteStaleSeriesRelations(ctx context.Context, arg DeleteStaleRelationsParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteStaleSeriesRelations, arg.AccountID, arg.Before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Episode relations

const episodeRelationColumns = `id, account_id, episode_id, stream_id, container_extension, custom_properties, last_seen_at, created_at, updated_at`

func scanEpisodeRelation(row interface{ Scan(...interface{}) error }) (*M3uEpisodeRelation, error) {
	var i M3uEpisodeRelation
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.EpisodeID,
		&i.StreamID,
		&i.ContainerExtension,
		&i.CustomProperties,
		&i.LastSeenAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

func (q *Queries) listEpisodeRelations(ctx context.Context, query string, args ...interface{}) ([]*M3uEpisodeRelation, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*M3uEpisodeRelation{}
	for rows.Next() {
		i, err := scanEpisodeRelation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getEpisodeRelationByStream = `SELECT ` + episodeRelationColumns + ` FROM m3u_episode_relations
WHERE account_id = ? AND stream_id = ? LIMIT 1`

type GetEpisodeRelationByStreamParams struct {
	AccountID int64  `json:"account_id"`
	StreamID  string `json:"stream_id"`
}

func (q *Queries) GetEpisodeRelationByStream(ctx context.Context, arg GetEpisodeRelationByStreamParams) (*M3uEpisodeRelation, error) {
	return scanEpisodeRelation(q.db.QueryRowContext(ctx, getEpisodeRelationByStream, arg.AccountID, arg.StreamID))
}

const createEpisodeRelation = `INSERT INTO m3u_episode_relations (
    account_id, episode_id, stream_id, container_extension, custom_properties, last_seen_at
) VALUES (?, ?, ?, ?, ?, ?)`

type CreateEpisodeRelationParams struct {
	AccountID          int64          `json:"account_id"`
	EpisodeID          int64          `json:"episode_id"`
	StreamID           string         `json:"stream_id"`
	ContainerExtension string         `json:"container_extension"`
	CustomProperties   sql.NullString `json:"custom_properties"`
	LastSeenAt         time.Time      `json:"last_seen_at"`
}

func (q *Queries) CreateEpisodeRelation(ctx context.Context, arg CreateEpisodeRelationParams) error {
	_, err := q.db.ExecContext(ctx, createEpisodeRelation,
		arg.AccountID,
		arg.EpisodeID,
		arg.StreamID,
		arg.ContainerExtension,
		arg.CustomProperties,
		arg.LastSeenAt,
	)
	return err
}

const updateEpisodeRelation = `UPDATE m3u_episode_relations SET
    episode_id = ?,
    container_extension = ?,
    custom_properties = ?,
    last_seen_at = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateEpisodeRelationParams struct {
	EpisodeID          int64          `json:"episode_id"`
	ContainerExtension string         `json:"container_extension"`
	CustomProperties   sql.NullString `json:"custom_properties"`
	LastSeenAt         time.Time      `json:"last_seen_at"`
	ID                 int64          `json:"id"`
}

func (q *Queries) UpdateEpisodeRelation(ctx context.Context, arg UpdateEpisodeRelationParams) error {
	_, err := q.db.ExecContext(ctx, updateEpisodeRelation,
		arg.EpisodeID,
		arg.ContainerExtension,
		arg.CustomProperties,
		arg.LastSeenAt,
		arg.ID,
	)
	return err
}

const listEpisodeRelationsByEpisode = `SELECT ` + episodeRelationColumns + ` FROM m3u_episode_relations
WHERE episode_id = ? ORDER BY account_id, stream_id`

func (q *Queries) ListEpisodeRelationsByEpisode(ctx context.Context, episodeID int64) ([]*M3uEpisodeRelation, error) {
	return q.listEpisodeRelations(ctx, listEpisodeRelationsByEpisode, episodeID)
}

const listEpisodeRelationsByStreamID = `SELECT ` + episodeRelationColumns + ` FROM m3u_episode_relations
WHERE stream_id = ? ORDER BY account_id`

func (q *Queries) ListEpisodeRelationsByStreamID(ctx context.Context, streamID string) ([]*M3uEpisodeRelation, error) {
	return q.listEpisodeRelations(ctx, listEpisodeRelationsByStreamID, streamID)
}

const listEpisodeRelationsByAccount = `SELECT ` + episodeRelationColumns + ` FROM m3u_episode_relations
WHERE account_id = ? ORDER BY id`

func (q *Queries) ListEpisodeRelationsByAccount(ctx context.Context, accountID int64) ([]*M3uEpisodeRelation, error) {
	return q.listEpisodeRelations(ctx, listEpisodeRelationsByAccount, accountID)
}

const deleteStaleEpisodeRelations = `DELETE FROM m3u_episode_relations
WHERE account_id = ? AND julianday(last_seen_at) < julianday(?)`

func (q *Queries) DeleteStaleEpisodeRelations(ctx context.Context, arg DeleteStaleRelationsParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteStaleEpisodeRelations, arg.AccountID, arg.Before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteStaleEpisodeRelationsForSeries = `DELETE FROM m3u_episode_relations
WHERE account_id = ?
  AND julianday(last_seen_at) < julianday(?)
  AND episode_id IN (SELECT id FROM vod_episodes WHERE series_id = ?)`

type DeleteStaleEpisodeRelationsForSeriesParams struct {
	AccountID int64     `json:"account_id"`
	Before    time.Time `json:"before"`
	SeriesID  int64     `json:"series_id"`
}

func (q *Queries) DeleteStaleEpisodeRelationsForSeries(ctx context.Context, arg DeleteStaleEpisodeRelationsForSeriesParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteStaleEpisodeRelationsForSeries, arg.AccountID, arg.Before, arg.SeriesID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countEpisodeRelationsByAccount = `SELECT COUNT(*) FROM m3u_episode_relations WHERE account_id = ?`

func (q *Queries) CountEpisodeRelationsByAccount(ctx context.Context, accountID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countEpisodeRelationsByAccount, accountID).Scan(&count)
	return count, err
}
