package sqlc

import (
	"context"
	"database/sql"
)

const episodeColumns = `id, uuid, series_id, name, description, air_date, rating, duration_secs, season_number, episode_number, tmdb_id, imdb_id, custom_properties, created_at, updated_at`

func scanEpisode(row interface{ Scan(...interface{}) error }) (*VodEpisode, error) {
	var i VodEpisode
	err := row.Scan(
		&i.ID,
		&i.Uuid,
		&i.SeriesID,
		&i.Name,
		&i.Description,
		&i.AirDate,
		&i.Rating,
		&i.DurationSecs,
		&i.SeasonNumber,
		&i.EpisodeNumber,
		&i.TmdbID,
		&i.ImdbID,
		&i.CustomProperties,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

const insertEpisode = `INSERT INTO vod_episodes (
    uuid, series_id, name, description, air_date, rating, duration_secs, season_number, episode_number, tmdb_id, imdb_id, custom_properties
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (series_id, season_number, episode_number) DO NOTHING
RETURNING id`

type InsertEpisodeParams struct {
	Uuid             string         `json:"uuid"`
	SeriesID         int64          `json:"series_id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	AirDate          string         `json:"air_date"`
	Rating           string         `json:"rating"`
	DurationSecs     sql.NullInt64  `json:"duration_secs"`
	SeasonNumber     int64          `json:"season_number"`
	EpisodeNumber    int64          `json:"episode_number"`
	TmdbID           sql.NullString `json:"tmdb_id"`
	ImdbID           sql.NullString `json:"imdb_id"`
	CustomProperties sql.NullString `json:"custom_properties"`
}

// InsertEpisode returns sql.ErrNoRows when another writer already owns the
// (series_id, season_number, episode_number) key.
func (q *Queries) InsertEpisode(ctx context.Context, arg InsertEpisodeParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertEpisode,
		arg.Uuid,
		arg.SeriesID,
		arg.Name,
		arg.Description,
		arg.AirDate,
		arg.Rating,
		arg.DurationSecs,
		arg.SeasonNumber,
		arg.EpisodeNumber,
		arg.TmdbID,
		arg.ImdbID,
		arg.CustomProperties,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateEpisode = `UPDATE vod_episodes SET
    name = ?,
    description = ?,
    air_date = ?,
    rating = ?,
    duration_secs = ?,
    tmdb_id = ?,
    imdb_id = ?,
    custom_properties = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateEpisodeParams struct {
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	AirDate          string         `json:"air_date"`
	Rating           string         `json:"rating"`
	DurationSecs     sql.NullInt64  `json:"duration_secs"`
	TmdbID           sql.NullString `json:"tmdb_id"`
	ImdbID           sql.NullString `json:"imdb_id"`
	CustomProperties sql.NullString `json:"custom_properties"`
	ID               int64          `json:"id"`
}

func (q *Queries) UpdateEpisode(ctx context.Context, arg UpdateEpisodeParams) error {
	_, err := q.db.ExecContext(ctx, updateEpisode,
		arg.Name,
		arg.Description,
		arg.AirDate,
		arg.Rating,
		arg.DurationSecs,
		arg.TmdbID,
		arg.ImdbID,
		arg.CustomProperties,
		arg.ID,
	)
	return err
}

const getEpisode = `SELECT ` + episodeColumns + ` FROM vod_episodes WHERE id = ? LIMIT 1`

func (q *Queries) GetEpisode(ctx context.Context, id int64) (*VodEpisode, error) {
	return scanEpisode(q.db.QueryRowContext(ctx, getEpisode, id))
}

const getEpisodeByUUID = `SELECT ` + episodeColumns + ` FROM vod_episodes WHERE uuid = ? LIMIT 1`

func (q *Queries) GetEpisodeByUUID(ctx context.Context, uuid string) (*VodEpisode, error) {
	return scanEpisode(q.db.QueryRowContext(ctx, getEpisodeByUUID, uuid))
}

const getEpisodeByNumber = `SELECT ` + episodeColumns + ` FROM vod_episodes
WHERE series_id = ? AND season_number = ? AND episode_number = ? LIMIT 1`

type GetEpisodeByNumberParams struct {
	SeriesID      int64 `json:"series_id"`
	SeasonNumber  int64 `json:"season_number"`
	EpisodeNumber int64 `json:"episode_number"`
}

func (q *Queries) GetEpisodeByNumber(ctx context.Context, arg GetEpisodeByNumberParams) (*VodEpisode, error) {
	return scanEpisode(q.db.QueryRowContext(ctx, getEpisodeByNumber, arg.SeriesID, arg.SeasonNumber, arg.EpisodeNumber))
}

const listEpisodesBySeries = `SELECT ` + episodeColumns + ` FROM vod_episodes
WHERE series_id = ? ORDER BY season_number, episode_number`

func (q *Queries) ListEpisodesBySeries(ctx context.Context, seriesID int64) ([]*VodEpisode, error) {
	rows, err := q.db.QueryContext(ctx, listEpisodesBySeries, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*VodEpisode{}
	for rows.Next() {
		i, err := scanEpisode(rows)
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

const countEpisodesBySeries = `SELECT COUNT(*) FROM vod_episodes WHERE series_id = ?`

func (q *Queries) CountEpisodesBySeries(ctx context.Context, seriesID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countEpisodesBySeries, seriesID).Scan(&count)
	return count, err
}

const deleteOrphanEpisodes = `DELETE FROM vod_episodes
WHERE NOT EXISTS (SELECT 1 FROM m3u_episode_relations r WHERE r.episode_id = vod_episodes.id)`

func (q *Queries) DeleteOrphanEpisodes(ctx context.Context) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteOrphanEpisodes)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
