package sqlc

import (
	"database/sql"
	"time"
)

type M3uAccount struct {
	ID                   int64        `json:"id"`
	Name                 string       `json:"name"`
	AccountType          string       `json:"account_type"`
	ServerUrl            string       `json:"server_url"`
	Username             string       `json:"username"`
	Password             string       `json:"password"`
	UserAgent            string       `json:"user_agent"`
	IsActive             int64        `json:"is_active"`
	RefreshIntervalHours int64        `json:"refresh_interval_hours"`
	LastRefreshedAt      sql.NullTime `json:"last_refreshed_at"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

type VodCategory struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CategoryType string    `json:"category_type"`
	CreatedAt    time.Time `json:"created_at"`
}

type VodMovie struct {
	ID               int64          `json:"id"`
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
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type VodSeries struct {
	ID               int64          `json:"id"`
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
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type VodEpisode struct {
	ID               int64          `json:"id"`
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
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type M3uMovieRelation struct {
	ID                 int64          `json:"id"`
	AccountID          int64          `json:"account_id"`
	MovieID            int64          `json:"movie_id"`
	CategoryID         sql.NullInt64  `json:"category_id"`
	StreamID           string         `json:"stream_id"`
	ContainerExtension string         `json:"container_extension"`
	CustomProperties   sql.NullString `json:"custom_properties"`
	LastSeenAt         time.Time      `json:"last_seen_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

type M3uSeriesRelation struct {
	ID                   int64          `json:"id"`
	AccountID            int64          `json:"account_id"`
	SeriesID             int64          `json:"series_id"`
	CategoryID           sql.NullInt64  `json:"category_id"`
	ExternalSeriesID     string         `json:"external_series_id"`
	CustomProperties     sql.NullString `json:"custom_properties"`
	LastEpisodeRefreshAt sql.NullTime   `json:"last_episode_refresh_at"`
	LastSeenAt           time.Time      `json:"last_seen_at"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

type M3uEpisodeRelation struct {
	ID                 int64          `json:"id"`
	AccountID          int64          `json:"account_id"`
	EpisodeID          int64          `json:"episode_id"`
	StreamID           string         `json:"stream_id"`
	ContainerExtension string         `json:"container_extension"`
	CustomProperties   sql.NullString `json:"custom_properties"`
	LastSeenAt         time.Time      `json:"last_seen_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
