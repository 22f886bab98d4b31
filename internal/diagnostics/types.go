package diagnostics

import "time"

// DuplicateGroup is a (series, season, episode) key held by more than one
// catalog episode. A healthy catalog has none.
type DuplicateGroup struct {
	SeriesID      int64  `json:"seriesId"`
	SeriesName    string `json:"seriesName"`
	SeasonNumber  int64  `json:"seasonNumber"`
	EpisodeNumber int64  `json:"episodeNumber"`
	Count         int64  `json:"count"`
}

// StreamRef is one provider stream attached to an episode.
type StreamRef struct {
	RelationID         int64     `json:"relationId"`
	AccountID          int64     `json:"accountId"`
	AccountName        string    `json:"accountName"`
	StreamID           string    `json:"streamId"`
	ContainerExtension string    `json:"containerExtension,omitempty"`
	LastSeenAt         time.Time `json:"lastSeenAt"`
}

// MultiStreamEpisode is an episode an account lists under several stream ids.
type MultiStreamEpisode struct {
	EpisodeID     int64        `json:"episodeId"`
	EpisodeUUID   string       `json:"episodeUuid"`
	EpisodeName   string       `json:"episodeName"`
	SeriesName    string       `json:"seriesName"`
	SeasonNumber  int64        `json:"seasonNumber"`
	EpisodeNumber int64        `json:"episodeNumber"`
	AccountID     int64        `json:"accountId"`
	AccountName   string       `json:"accountName"`
	StreamCount   int64        `json:"streamCount"`
	Streams       []*StreamRef `json:"streams"`
}

// RelationStats summarises the episode relations of one account. The
// per-episode grouping is computed both in Go and in SQL; Mismatch is set
// when the two disagree.
type RelationStats struct {
	AccountID            int64  `json:"accountId"`
	AccountName          string `json:"accountName"`
	Relations            int64  `json:"relations"`
	DistinctEpisodes     int64  `json:"distinctEpisodes"`
	MultiStreamEpisodes  int64  `json:"multiStreamEpisodes"`
	SQLDistinctEpisodes  int64  `json:"sqlDistinctEpisodes"`
	SQLMultiStream       int64  `json:"sqlMultiStream"`
	MaxStreamsPerEpisode int64  `json:"maxStreamsPerEpisode"`
	Mismatch             bool   `json:"mismatch"`
}

// EpisodeInspection is an episode with its series and every attached stream.
type EpisodeInspection struct {
	EpisodeID     int64        `json:"episodeId"`
	EpisodeUUID   string       `json:"episodeUuid"`
	Name          string       `json:"name"`
	SeasonNumber  int64        `json:"seasonNumber"`
	EpisodeNumber int64        `json:"episodeNumber"`
	SeriesID      int64        `json:"seriesId"`
	SeriesUUID    string       `json:"seriesUuid"`
	SeriesName    string       `json:"seriesName"`
	TmdbID        string       `json:"tmdbId,omitempty"`
	Streams       []*StreamRef `json:"streams"`
	Accounts      int          `json:"accounts"`
}

// StreamCheck reports which provider stream ids have episode relations.
type StreamCheck struct {
	Found   []*StreamMatch `json:"found"`
	Missing []string       `json:"missing"`
}

// StreamMatch is one relation found for a requested stream id.
type StreamMatch struct {
	StreamID      string `json:"streamId"`
	AccountID     int64  `json:"accountId"`
	RelationID    int64  `json:"relationId"`
	EpisodeID     int64  `json:"episodeId"`
	EpisodeUUID   string `json:"episodeUuid"`
	SeasonNumber  int64  `json:"seasonNumber"`
	EpisodeNumber int64  `json:"episodeNumber"`
}

// ProviderSource selects where provider payloads are read from.
type ProviderSource string

const (
	SourceLive  ProviderSource = "live"
	SourceCache ProviderSource = "cache"
)

// ProviderOptions controls a raw provider analysis.
type ProviderOptions struct {
	Sample int            `json:"sample" query:"sample"`
	Source ProviderSource `json:"source" query:"source"`
}

// ProviderReport is the result of scanning raw get_series_info payloads for
// episode keys listed under several stream ids.
type ProviderReport struct {
	AccountID     int64           `json:"accountId"`
	AccountName   string          `json:"accountName"`
	Source        ProviderSource  `json:"source"`
	SeriesSampled int             `json:"seriesSampled"`
	SeriesFailed  int             `json:"seriesFailed"`
	Records       int             `json:"records"`
	ListPayloads  int             `json:"listPayloads"`
	DuplicateKeys []*DuplicateKey `json:"duplicateKeys"`
	Warnings      []string        `json:"warnings,omitempty"`
}

// DuplicateKey is a (season, episode) key of one provider series that carries
// more than one stream id.
type DuplicateKey struct {
	SeriesID      string   `json:"seriesId"`
	SeasonNumber  int64    `json:"seasonNumber"`
	EpisodeNumber int64    `json:"episodeNumber"`
	StreamIDs     []string `json:"streamIds"`
}
