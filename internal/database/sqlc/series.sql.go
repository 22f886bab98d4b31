package sqlc

import (
	"context"
	"database/sql"
)

const seriesColumns = `id, uuid, name, description, year, rating, genre, tmdb_id, imdb_id, logo_url, custom_properties, created_at, updated_at`

func scanSeries(row interface{ Scan(...interface{}) error }) (*VodSeries, error) {
	var i VodSeries
	err := row.Scan(
		&i.ID,
		&i.Uuid,
		&i.Name,
		&i.Description,
		&i.Year,
		&i.Rating,
		&i.Genre,
		&i.TmdbID,
		&i.ImdbID,
		&i.LogoUrl,
		&i.CustomProperties,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

func (q *Queries) listSeries(ctx context.Context, query string, args ...interface{}) ([]*VodSeries, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*VodSeries{}
	for rows.Next() {
		i, err := scanSeries(rows)
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

const createSeries = `INSERT INTO vod_series (
    uuid, name, description, year, rating, genre, tmdb_id, imdb_id, logo_url, custom_properties
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + seriesColumns

type CreateSeriesParams struct {
	Uuid             string         `json:"uuid"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Year             sql.NullInt64  `json:"year"`
	Rating           string         `json:"rating"`
	Genre            string         `json:"genre"`
	TmdbID           sql.NullString `json:"tmdb_id"`
	ImdbID           sql.NullString `json:"imdb_id"`
	LogoUrl          string         `json:"logo_url"`
	CustomProperties sql.NullString `json:"custom_properties"`
}

func (q *Queries) CreateSeries(ctx context.Context, arg CreateSeriesParams) (*VodSeries, error) {
	row := q.db.QueryRowContext(ctx, createSeries,
		arg.Uuid,
		arg.Name,
		arg.Description,
		arg.Year,
		arg.Rating,
		arg.Genre,
		arg.TmdbID,
		arg.ImdbID,
		arg.LogoUrl,
		arg.CustomProperties,
	)
	return scanSeries(row)
}

const updateSeries = `UPDATE vod_series SET
    name = ?,
    description = ?,
    year = ?,
    rating = ?,
    genre = ?,
    tmdb_id = ?,
    imdb_id = ?,
    logo_url = ?,
    custom_properties = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateSeriesParams struct {
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Year             sql.NullInt64  `json:"year"`
	Rating           string         `json:"rating"`
	Genre            string         `json:"genre"`
	TmdbID           sql.NullString `json:"tmdb_id"`
	ImdbID           sql.NullString `json:"imdb_id"`
	LogoUrl          string         `json:"logo_url"`
	CustomProperties sql.NullString `json:"custom_properties"`
	ID               int64          `json:"id"`
}

func (q *Queries) UpdateSeries(ctx context.Context, arg UpdateSeriesParams) error {
	_, err := q.db.ExecContext(ctx, updateSeries,
		arg.Name,
		arg.Description,
		arg.Year,
		arg.Rating,
		arg.Genre,
		arg.TmdbID,
		arg.ImdbID,
		arg.LogoUrl,
		arg.CustomProperties,
		arg.ID,
	)
	return err
}

const getSeries = `SELECT ` + seriesColumns + ` FROM vod_series WHERE id = ? LIMIT 1`

func (q *Queries) GetSeries(ctx context.Context, id int64) (*VodSeries, error) {
	return scanSeries(q.db.QueryRowContext(ctx, getSeries, id))
}

const getSeriesByUUID = `SELECT ` + seriesColumns + ` FROM vod_series WHERE uuid = ? LIMIT 1`

func (q *Queries) GetSeriesByUUID(ctx context.Context, uuid string) (*VodSeries, error) {
	return scanSeries(q.db.QueryRowContext(ctx, getSeriesByUUID, uuid))
}

const getSeriesByTmdbID = `SELECT ` + seriesColumns + ` FROM vod_series WHERE tmdb_id = ? ORDER BY id LIMIT 1`

func (q *Queries) GetSeriesByTmdbID(ctx context.Context, tmdbID sql.NullString) (*VodSeries, error) {
	return scanSeries(q.db.QueryRowContext(ctx, getSeriesByTmdbID, tmdbID))
}

const getSeriesByImdbID = `SELECT ` + seriesColumns + ` FROM vod_series WHERE imdb_id = ? ORDER BY id LIMIT 1`

func (q *Queries) GetSeriesByImdbID(ctx context.Context, imdbID sql.NullString) (*VodSeries, error) {
	return scanSeries(q.db.QueryRowContext(ctx, getSeriesByImdbID, imdbID))
}

const getSeriesByNameYear = `SELECT ` + seriesColumns + ` FROM vod_series
WHERE name = ? AND year IS ?
ORDER BY id LIMIT 1`

type GetSeriesByNameYearParams struct {
	Name string        `json:"name"`
	Year sql.NullInt64 `json:"year"`
}

func (q *Queries) GetSeriesByNameYear(ctx context.Context, arg GetSeriesByNameYearParams) (*VodSeries, error) {
	return scanSeries(q.db.QueryRowContext(ctx, getSeriesByNameYear, arg.Name, arg.Year))
}

const listSeriesPaginated = `SELECT ` + seriesColumns + ` FROM vod_series ORDER BY name, id LIMIT ? OFFSET ?`

type ListSeriesPaginatedParams struct {
	Limit  int64 `json:"limit"`
	Offset int64 `json:"offset"`
}

func (q *Queries) ListSeriesPaginated(ctx context.Context, arg ListSeriesPaginatedParams) ([]*VodSeries, error) {
	return q.listSeries(ctx, listSeriesPaginated, arg.Limit, arg.Offset)
}

const searchSeries = `SELECT ` + seriesColumns + ` FROM vod_series
WHERE name LIKE ? ORDER BY name, id LIMIT ? OFFSET ?`

type SearchSeriesParams struct {
	Name   string `json:"name"`
	Limit  int64  `json:"limit"`
	Offset int64  `json:"offset"`
}

func (q *Queries) SearchSeries(ctx context.Context, arg SearchSeriesParams) ([]*VodSeries, error) {
	return q.listSeries(ctx, searchSeries, arg.Name, arg.Limit, arg.Offset)
}

const countSeries = `SELECT COUNT(*) FROM vod_series`

func (q *Queries) CountSeries(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countSeries).Scan(&count)
	return count, err
}

const deleteOrphanSeries = `DELETE FROM vod_series
WHERE NOT EXISTS (SELECT 1 FROM m3u_series_relations r WHERE r.series_id = vod_series.id)`

func (q *Queries) DeleteOrphanSeries(ctx context.Context) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteOrphanSeries)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
