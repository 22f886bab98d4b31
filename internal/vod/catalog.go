package vod

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vodsync/vodsync/internal/database/sqlc"
	"github.com/vodsync/vodsync/internal/xtream"
)

// Movie is a catalog movie.
type Movie struct {
	ID           int64          `json:"id"`
	UUID         string         `json:"uuid"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Year         int            `json:"year,omitempty"`
	Rating       string         `json:"rating,omitempty"`
	Genre        string         `json:"genre,omitempty"`
	DurationSecs int64          `json:"durationSecs,omitempty"`
	TmdbID       string         `json:"tmdbId,omitempty"`
	ImdbID       string         `json:"imdbId,omitempty"`
	LogoURL      string         `json:"logoUrl,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	Streams      []*MovieStream `json:"streams,omitempty"`
}

// MovieStream is one provider stream of a movie.
type MovieStream struct {
	RelationID         int64     `json:"relationId"`
	AccountID          int64     `json:"accountId"`
	StreamID           string    `json:"streamId"`
	ContainerExtension string    `json:"containerExtension,omitempty"`
	LastSeenAt         time.Time `json:"lastSeenAt"`
}

// Series is a catalog series.
type Series struct {
	ID           int64           `json:"id"`
	UUID         string          `json:"uuid"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Year         int             `json:"year,omitempty"`
	Rating       string          `json:"rating,omitempty"`
	Genre        string          `json:"genre,omitempty"`
	TmdbID       string          `json:"tmdbId,omitempty"`
	ImdbID       string          `json:"imdbId,omitempty"`
	LogoURL      string          `json:"logoUrl,omitempty"`
	Properties   json.RawMessage `json:"properties,omitempty"`
	EpisodeCount int64           `json:"episodeCount"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Providers    []*SeriesSource `json:"providers,omitempty"`
}

// SeriesSource is the relation of a series to one account.
type SeriesSource struct {
	RelationID           int64      `json:"relationId"`
	AccountID            int64      `json:"accountId"`
	ExternalSeriesID     string     `json:"externalSeriesId"`
	LastEpisodeRefreshAt *time.Time `json:"lastEpisodeRefreshAt,omitempty"`
	LastSeenAt           time.Time  `json:"lastSeenAt"`
}

// Episode is a catalog episode.
type Episode struct {
	ID            int64           `json:"id"`
	UUID          string          `json:"uuid"`
	SeriesID      int64           `json:"seriesId"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	AirDate       string          `json:"airDate,omitempty"`
	Rating        string          `json:"rating,omitempty"`
	DurationSecs  int64           `json:"durationSecs,omitempty"`
	SeasonNumber  int64           `json:"seasonNumber"`
	EpisodeNumber int64           `json:"episodeNumber"`
	TmdbID        string          `json:"tmdbId,omitempty"`
	ImdbID        string          `json:"imdbId,omitempty"`
	Info          json.RawMessage `json:"info,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// EpisodeStream is one provider stream of an episode with its playable URL.
type EpisodeStream struct {
	RelationID         int64     `json:"relationId"`
	AccountID          int64     `json:"accountId"`
	AccountName        string    `json:"accountName"`
	StreamID           string    `json:"streamId"`
	ContainerExtension string    `json:"containerExtension,omitempty"`
	URL                string    `json:"url"`
	LastSeenAt         time.Time `json:"lastSeenAt"`
}

// ListOptions pages and filters catalog listings.
type ListOptions struct {
	Search   string
	Page     int
	PageSize int
}

func (o ListOptions) limits() (int64, int64) {
	if o.PageSize <= 0 {
		o.PageSize = 100
	}
	if o.Page <= 0 {
		o.Page = 1
	}
	return int64(o.PageSize), int64((o.Page - 1) * o.PageSize)
}

// ListMovies returns a page of movies ordered by name.
func (s *Service) ListMovies(ctx context.Context, opts ListOptions) ([]*Movie, error) {
	limit, offset := opts.limits()

	var rows []*sqlc.VodMovie
	var err error
	if opts.Search != "" {
		rows, err = s.queries.SearchMovies(ctx, sqlc.SearchMoviesParams{Name: "%" + opts.Search + "%", Limit: limit, Offset: offset})
	} else {
		rows, err = s.queries.ListMoviesPaginated(ctx, sqlc.ListMoviesPaginatedParams{Limit: limit, Offset: offset})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}

	movies := make([]*Movie, len(rows))
	for i, row := range rows {
		movies[i] = rowToMovie(row)
	}
	return movies, nil
}

// GetMovie returns a movie with its provider streams.
func (s *Service) GetMovie(ctx context.Context, uuid string) (*Movie, error) {
	row, err := s.queries.GetMovieByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("failed to get movie: %w", err)
	}
	movie := rowToMovie(row)

	rels, err := s.queries.ListMovieRelationsByMovie(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list movie streams: %w", err)
	}
	for _, rel := range rels {
		movie.Streams = append(movie.Streams, &MovieStream{
			RelationID:         rel.ID,
			AccountID:          rel.AccountID,
			StreamID:           rel.StreamID,
			ContainerExtension: rel.ContainerExtension,
			LastSeenAt:         rel.LastSeenAt,
		})
	}
	return movie, nil
}

// ListSeries returns a page of series ordered by name.
func (s *Service) ListSeries(ctx context.Context, opts ListOptions) ([]*Series, error) {
	limit, offset := opts.limits()

	var rows []*sqlc.VodSeries
	var err error
	if opts.Search != "" {
		rows, err = s.queries.SearchSeries(ctx, sqlc.SearchSeriesParams{Name: "%" + opts.Search + "%", Limit: limit, Offset: offset})
	} else {
		rows, err = s.queries.ListSeriesPaginated(ctx, sqlc.ListSeriesPaginatedParams{Limit: limit, Offset: offset})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}

	series := make([]*Series, len(rows))
	for i, row := range rows {
		series[i] = rowToSeries(row)
	}
	return series, nil
}

// GetSeries returns a series with its episode count and provider relations.
func (s *Service) GetSeries(ctx context.Context, uuid string) (*Series, error) {
	row, err := s.queries.GetSeriesByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, fmt.Errorf("failed to get series: %w", err)
	}
	series := rowToSeries(row)

	if series.EpisodeCount, err = s.queries.CountEpisodesBySeries(ctx, row.ID); err != nil {
		return nil, fmt.Errorf("failed to count episodes: %w", err)
	}

	rels, err := s.queries.ListSeriesRelationsBySeries(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series relations: %w", err)
	}
	for _, rel := range rels {
		src := &SeriesSource{
			RelationID:       rel.ID,
			AccountID:        rel.AccountID,
			ExternalSeriesID: rel.ExternalSeriesID,
			LastSeenAt:       rel.LastSeenAt,
		}
		if rel.LastEpisodeRefreshAt.Valid {
			t := rel.LastEpisodeRefreshAt.Time
			src.LastEpisodeRefreshAt = &t
		}
		series.Providers = append(series.Providers, src)
	}
	return series, nil
}

// ListEpisodes returns the episodes of a series in season order.
func (s *Service) ListEpisodes(ctx context.Context, seriesUUID string) ([]*Episode, error) {
	row, err := s.queries.GetSeriesByUUID(ctx, seriesUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, fmt.Errorf("failed to get series: %w", err)
	}

	rows, err := s.queries.ListEpisodesBySeries(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	episodes := make([]*Episode, len(rows))
	for i, ep := range rows {
		episodes[i] = rowToEpisode(ep)
	}
	return episodes, nil
}

// GetEpisode returns an episode by UUID.
func (s *Service) GetEpisode(ctx context.Context, uuid string) (*Episode, error) {
	row, err := s.queries.GetEpisodeByUUID(ctx, uuid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}
	return rowToEpisode(row), nil
}

// EpisodeStreams returns every provider stream of an episode. URLs embed the
// account credentials.
func (s *Service) EpisodeStreams(ctx context.Context, uuid string) ([]*EpisodeStream, error) {
	episode, err := s.GetEpisode(ctx, uuid)
	if err != nil {
		return nil, err
	}

	rows, err := s.queries.ListEpisodeStreams(ctx, episode.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episode streams: %w", err)
	}
	streams := make([]*EpisodeStream, len(rows))
	for i, row := range rows {
		password, err := s.secrets.Decrypt(row.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt password of account %d: %w", row.AccountID, err)
		}
		streams[i] = &EpisodeStream{
			RelationID:         row.RelationID,
			AccountID:          row.AccountID,
			AccountName:        row.AccountName,
			StreamID:           row.StreamID,
			ContainerExtension: row.ContainerExtension,
			URL:                xtream.SeriesURL(row.ServerUrl, row.Username, password, row.StreamID, row.ContainerExtension),
			LastSeenAt:         row.LastSeenAt,
		}
	}
	return streams, nil
}

// SeriesRelationIDs returns the relation ids of a series keyed by account.
func (s *Service) SeriesRelationIDs(ctx context.Context, seriesUUID string) (map[int64]int64, error) {
	row, err := s.queries.GetSeriesByUUID(ctx, seriesUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, fmt.Errorf("failed to get series: %w", err)
	}
	rels, err := s.queries.ListSeriesRelationsBySeries(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series relations: %w", err)
	}
	out := make(map[int64]int64, len(rels))
	for _, rel := range rels {
		out[rel.AccountID] = rel.ID
	}
	return out, nil
}

func rowToMovie(row *sqlc.VodMovie) *Movie {
	return &Movie{
		ID:           row.ID,
		UUID:         row.Uuid,
		Name:         row.Name,
		Description:  row.Description,
		Year:         int(row.Year.Int64),
		Rating:       row.Rating,
		Genre:        row.Genre,
		DurationSecs: row.DurationSecs.Int64,
		TmdbID:       row.TmdbID.String,
		ImdbID:       row.ImdbID.String,
		LogoURL:      row.LogoUrl,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func rowToSeries(row *sqlc.VodSeries) *Series {
	series := &Series{
		ID:          row.ID,
		UUID:        row.Uuid,
		Name:        row.Name,
		Description: row.Description,
		Year:        int(row.Year.Int64),
		Rating:      row.Rating,
		Genre:       row.Genre,
		TmdbID:      row.TmdbID.String,
		ImdbID:      row.ImdbID.String,
		LogoURL:     row.LogoUrl,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.CustomProperties.Valid {
		series.Properties = json.RawMessage(row.CustomProperties.String)
	}
	return series
}

func rowToEpisode(row *sqlc.VodEpisode) *Episode {
	ep := &Episode{
		ID:            row.ID,
		UUID:          row.Uuid,
		SeriesID:      row.SeriesID,
		Name:          row.Name,
		Description:   row.Description,
		AirDate:       row.AirDate,
		Rating:        row.Rating,
		DurationSecs:  row.DurationSecs.Int64,
		SeasonNumber:  row.SeasonNumber,
		EpisodeNumber: row.EpisodeNumber,
		TmdbID:        row.TmdbID.String,
		ImdbID:        row.ImdbID.String,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.CustomProperties.Valid {
		ep.Info = json.RawMessage(row.CustomProperties.String)
	}
	return ep
}

// CatalogCounts is the size of the catalog.
type CatalogCounts struct {
	Movies   int64 `json:"movies"`
	Series   int64 `json:"series"`
	Episodes int64 `json:"episodes"`
}

// Counts returns the number of movies, series and episodes.
func (s *Service) Counts(ctx context.Context) (*CatalogCounts, error) {
	var (
		counts CatalogCounts
		err    error
	)
	if counts.Movies, err = s.queries.CountMovies(ctx); err != nil {
		return nil, fmt.Errorf("failed to count movies: %w", err)
	}
	if counts.Series, err = s.queries.CountSeries(ctx); err != nil {
		return nil, fmt.Errorf("failed to count series: %w", err)
	}
	if counts.Episodes, err = s.queries.CountEpisodes(ctx); err != nil {
		return nil, fmt.Errorf("failed to count episodes: %w", err)
	}
	return &counts, nil
}
