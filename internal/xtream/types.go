package xtream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string or number into its string form.
// Providers send ids as either.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		*f = ""
		return nil
	}
	// Numbers and booleans keep their literal text; 78025.0 becomes 78025.
	s := string(data)
	if n, err := strconv.ParseFloat(s, 64); err == nil && n == float64(int64(n)) {
		s = strconv.FormatInt(int64(n), 10)
	}
	*f = FlexString(s)
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// FlexInt decodes a JSON number or numeric string. Valid is false when the
// value was absent, null, empty or not numeric.
type FlexInt struct {
	Value int64
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = ParseFlexInt(string(s))
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(f.Value, 10)), nil
}

// ParseFlexInt parses "12", "12.0" or " 12 " into a FlexInt.
func ParseFlexInt(s string) FlexInt {
	s = strings.TrimSpace(s)
	if s == "" {
		return FlexInt{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return FlexInt{Value: n, Valid: true}
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		return FlexInt{Value: int64(fl), Valid: true}
	}
	return FlexInt{}
}

// Category is an entry of get_vod_categories or get_series_categories.
type Category struct {
	CategoryID   FlexString `json:"category_id"`
	CategoryName FlexString `json:"category_name"`
	ParentID     FlexString `json:"parent_id"`
}

// VODStream is an entry of get_vod_streams.
type VODStream struct {
	Num                FlexInt    `json:"num"`
	Name               FlexString `json:"name"`
	StreamType         FlexString `json:"stream_type"`
	StreamID           FlexString `json:"stream_id"`
	StreamIcon         FlexString `json:"stream_icon"`
	Rating             FlexString `json:"rating"`
	Added              FlexString `json:"added"`
	CategoryID         FlexString `json:"category_id"`
	ContainerExtension FlexString `json:"container_extension"`
	TmdbID             FlexString `json:"tmdb"`
	Year               FlexString `json:"year"`
	Plot               FlexString `json:"plot"`
	Genre              FlexString `json:"genre"`
}

// Series is an entry of get_series.
type Series struct {
	Num          FlexInt    `json:"num"`
	Name         FlexString `json:"name"`
	SeriesID     FlexString `json:"series_id"`
	Cover        FlexString `json:"cover"`
	Plot         FlexString `json:"plot"`
	Cast         FlexString `json:"cast"`
	Director     FlexString `json:"director"`
	Genre        FlexString `json:"genre"`
	ReleaseDate  FlexString `json:"releaseDate"`
	Year         FlexString `json:"year"`
	Rating       FlexString `json:"rating"`
	CategoryID   FlexString `json:"category_id"`
	TmdbID       FlexString `json:"tmdb"`
	LastModified FlexString `json:"last_modified"`
}

// SeriesInfo is the get_series_info payload. Episodes stay raw: providers send
// either a map keyed by season number or a flat list.
type SeriesInfo struct {
	Info     SeriesDetail    `json:"info"`
	Seasons  json.RawMessage `json:"seasons"`
	Episodes json.RawMessage `json:"episodes"`
}

// SeriesDetail is the info block of get_series_info.
type SeriesDetail struct {
	Name        FlexString `json:"name"`
	Plot        FlexString `json:"plot"`
	Genre       FlexString `json:"genre"`
	ReleaseDate FlexString `json:"releaseDate"`
	Rating      FlexString `json:"rating"`
	TmdbID      FlexString `json:"tmdb"`
	Cover       FlexString `json:"cover"`
	CategoryID  FlexString `json:"category_id"`
}

// VODInfo is the get_vod_info payload.
type VODInfo struct {
	Info      VODDetail    `json:"info"`
	MovieData VODMovieData `json:"movie_data"`
}

// VODMovieData is the movie_data block of get_vod_info.
type VODMovieData struct {
	StreamID           FlexString `json:"stream_id"`
	Name               FlexString `json:"name"`
	ContainerExtension FlexString `json:"container_extension"`
	CategoryID         FlexString `json:"category_id"`
}

// VODDetail is the info block of get_vod_info.
type VODDetail struct {
	TmdbID       FlexString `json:"tmdb_id"`
	ImdbID       FlexString `json:"imdb_id"`
	Name         FlexString `json:"name"`
	Plot         FlexString `json:"plot"`
	Description  FlexString `json:"description"`
	Genre        FlexString `json:"genre"`
	ReleaseDate  FlexString `json:"releasedate"`
	Rating       FlexString `json:"rating"`
	DurationSecs FlexInt    `json:"duration_secs"`
	Duration     FlexString `json:"duration"`
	MovieImage   FlexString `json:"movie_image"`
}

// AuthInfo is the response of an action-less player_api.php request.
type AuthInfo struct {
	UserInfo struct {
		Username       string     `json:"username"`
		Status         string     `json:"status"`
		Auth           FlexInt    `json:"auth"`
		ExpDate        FlexString `json:"exp_date"`
		IsTrial        FlexString `json:"is_trial"`
		ActiveCons     FlexString `json:"active_cons"`
		MaxConnections FlexString `json:"max_connections"`
		Message        string     `json:"message"`
	} `json:"user_info"`
	ServerInfo struct {
		URL            string     `json:"url"`
		Port           FlexString `json:"port"`
		HTTPSPort      FlexString `json:"https_port"`
		ServerProtocol string     `json:"server_protocol"`
		Timezone       string     `json:"timezone"`
	} `json:"server_info"`
}

// Some panels send [] instead of {} for an empty info block.
func isEmptyObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || data[0] != '{'
}

func (d *SeriesDetail) UnmarshalJSON(data []byte) error {
	if isEmptyObject(data) {
		*d = SeriesDetail{}
		return nil
	}
	type plain SeriesDetail
	return json.Unmarshal(data, (*plain)(d))
}

func (d *VODDetail) UnmarshalJSON(data []byte) error {
	if isEmptyObject(data) {
		*d = VODDetail{}
		return nil
	}
	type plain VODDetail
	return json.Unmarshal(data, (*plain)(d))
}

func (d *VODMovieData) UnmarshalJSON(data []byte) error {
	if isEmptyObject(data) {
		*d = VODMovieData{}
		return nil
	}
	type plain VODMovieData
	return json.Unmarshal(data, (*plain)(d))
}
