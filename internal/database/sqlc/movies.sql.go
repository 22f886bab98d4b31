package sqlc

import (
	"context"
	"database/sql"
)

const movieColumns = `id, uuid, name, description, year, rating, genre, duration_secs, tmdb_id, imdb_id, logo_url, custom_properties, created_at, updated_at`

func scanMovie(row interface{ Scan(...interface{}) error }) (*VodMovie, error) {
	var i VodMovie
	err := row.Scan(
		&i.ID,
		&i.Uuid,
		&i.Name,
		&i.Description,
		&i.Year,
		&i.Rating,
		&i.Genre,
		&i.DurationSecs,
		&i.TmdbID,
		&i.ImdbID,
		&i.LogoUrl,
		&i.CustomProperties,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

func (q *Queries) listMovies(ctx context.Context, query string, args ...interface{}) ([]*VodMovie, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*VodMovie{}
	for rows.Next() {
		i, err := scanMovie(rows)
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

const createMovie = `INSERT INTO vod_movies (
    uuid, name, description, year, rating, genre, duration_secs, tmdb_id, imdb_id, logo_url, custom_properties
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + movieColumns

type CreateMovieParams struct {
	Uuid             string         `json:"uuid"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Year             sql.NullInt64  `json:"year"`
	Rating           string         `json:"rating"`
	Genre            string         `json:"genre"`
	DurationSecs     sql.NullInt64  `json:"duration_secs"`
	TmdbID           sql.NullString `json:"tmdb_id"`
	ImdbID           sql.NullString `json:"imdb_id"`
	LogoUrl          string         `json:"logo_url"`
	CustomProperties sql.NullString `json:"custom_properties"`
}

func (q *Queries) CreateMovie(ctx context.Context, arg CreateMovieParams) (*VodMovie, error) {
	row := q.db.QueryRowContext(ctx, createMovie,
		arg.Uuid,
		arg.Name,
		arg.Description,
		arg.Year,
		arg.Rating,
		arg.Genre,
		arg.DurationSecs,
		arg.TmdbID,
		arg.ImdbID,
		arg.LogoUrl,
		arg.CustomProperties,
	)
	return scanMovie(row)
}

const updateMovie = `UPDATE vod_movies SET
    name = ?,
    description = ?,
    year = ?,
    rating = ?,
    genre = ?,
    duration_secs = ?,
    tmdb_id = ?,
    imdb_id = ?,
    logo_url = ?,
    custom_properties = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateMovieParams struct {
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Year             sql.NullInt64  `json:"year"`
	Rating           string         `json:"rating"`
	Genre            string         `json:"genre"`
	DurationSecs     sql.NullInt64  `json:"duration_secs"`
	TmdbID           sql.NullString `json:"tmdb_id"`
	ImdbID           sql.NullString `json:"imdb_id"`
	LogoUrl          string         `json:"logo_url"`
	CustomProperties sql.NullString `json:"custom_properties"`
	ID               int64          `json:"id"`
}

func (q *Queries) UpdateMovie(ctx context.Context, arg UpdateMovieParams) error {
	_, err := q.db.ExecContext(ctx, updateMovie,
		arg.Name,
		arg.Description,
		arg.Year,
		arg.Rating,
		arg.Genre,
		arg.DurationSecs,
		arg.TmdbID,
		arg.ImdbID,
		arg.LogoUrl,
		arg.CustomProperties,
		arg.ID,
	)
	return err
}

const getMovie = `SELECT ` + movieColumns + ` FROM vod_movies WHERE id = ? LIMIT 1`

func (q *Queries) GetMovie(ctx context.Context, id int64) (*VodMovie, error) {
	return scanMovie(q.db.QueryRowContext(ctx, getMovie, id))
}

const getMovieByUUID = `SELECT ` + movieColumns + ` FROM vod_movies WHERE uuid = ? LIMIT 1`

func (q *Queries) GetMovieByUUID(ctx context.Context, uuid string) (*VodMovie, error) {
	return scanMovie(q.db.QueryRowContext(ctx, getMovieByUUID, uuid))
}

const getMovieByTmdbID = `SELECT ` + movieColumns + ` FROM vod_movies WHERE tmdb_id = ? ORDER BY id LIMIT 1`

func (q *Queries) GetMovieByTmdbID(ctx context.Context, tmdbID sql.NullString) (*VodMovie, error) {
	return scanMovie(q.db.QueryRowContext(ctx, getMovieByTmdbID, tmdbID))
}

const getMovieByImdbID = `SELECT ` + movieColumns + ` FROM vod_movies WHERE imdb_id = ? ORDER BY id LIMIT 1`

func (q *Queries) GetMovieByImdbID(ctx context.Context, imdbID sql.NullString) (*VodMovie, error) {
	return scanMovie(q.db.QueryRowContext(ctx, getMovieByImdbID, imdbID))
}

const getMovieByNameYear = `SELECT ` + movieColumns + ` FROM vod_movies
WHERE name = ? AND year IS ?
ORDER BY id LIMIT 1`

type GetMovieByNameYearParams struct {
	Name string        `json:"name"`
	Year sql.NullInt64 `json:"year"`
}

func (q *Queries) GetMovieByNameYear(ctx context.Context, arg GetMovieByNameYearParams) (*VodMovie, error) {
	return scanMovie(q.db.QueryRowContext(ctx, getMovieByNameYear, arg.Name, arg.Year))
}

const listMoviesPaginated = `SELECT ` + movieColumns + ` FROM vod_movies ORDER BY name, id LIMIT ? OFFSET ?`

type ListMoviesPaginatedParams struct {
	Limit  int64 `json:"limit"`
	Offset int64 `json:"offset"`
}

func (q *Queries) ListMoviesPaginated(ctx context.Context, arg ListMoviesPaginatedParams) ([]*VodMovie, error) {
	return q.listMovies(ctx, listMoviesPaginated, arg.Limit, arg.Offset)
}

const searchMovies = `SELECT ` + movieColumns + ` FROM vod_movies
WHERE name LIKE ? ORDER BY name, id LIMIT ? OFFSET ?`

type SearchMoviesParams struct {
	Name   string `json:"name"`
	Limit  int64  `json:"limit"`
	Offset int64  `json:"offset"`
}

func (q *Queries) SearchMovies(ctx context.Context, arg SearchMoviesParams) ([]*VodMovie, error) {
	return q.listMovies(ctx, searchMovies, arg.Name, arg.Limit, arg.Offset)
}

const countMovies = `SELECT COUNT(*) FROM vod_movies`

func (q *Queries) CountMovies(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countMovies).Scan(&count)
	return count, err
}

const deleteOrphanMovies = `DELETE FROM vod_movies
WHERE NOT EXISTS (SELECT 1 FROM m3u_movie_relations r WHERE r.movie_id = vod_movies.id)`

func (q *Queries) DeleteOrphanMovies(ctx context.Context) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteOrphanMovies)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
