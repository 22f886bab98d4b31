package vod

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/moistari/rls"

	"github.com/vodsync/vodsync/internal/xtream"
)

// EpisodeRecord is one provider episode stream after normalisation.
type EpisodeRecord struct {
	StreamID           string
	Season             int64
	Episode            int64
	Name               string
	NamePlaceholder    bool
	ContainerExtension string
	Plot               string
	AirDate            string
	Rating             string
	DurationSecs       int64
	TmdbID             string
	ImdbID             string
	Image              string
	Info               json.RawMessage
	Raw                json.RawMessage
}

type rawEpisode struct {
	ID                 xtream.FlexString `json:"id"`
	EpisodeNum         xtream.FlexInt    `json:"episode_num"`
	Season             xtream.FlexInt    `json:"season"`
	SeasonNumber       xtream.FlexInt    `json:"season_number"`
	Title              xtream.FlexString `json:"title"`
	ContainerExtension xtream.FlexString `json:"container_extension"`
	Info               json.RawMessage   `json:"info"`
}

type rawEpisodeInfo struct {
	Plot         xtream.FlexString `json:"plot"`
	ReleaseDate  xtream.FlexString `json:"releasedate"`
	AirDate      xtream.FlexString `json:"air_date"`
	Rating       xtream.FlexString `json:"rating"`
	DurationSecs xtream.FlexInt    `json:"duration_secs"`
	TmdbID       xtream.FlexString `json:"tmdb_id"`
	ImdbID       xtream.FlexString `json:"imdb_id"`
	MovieImage   xtream.FlexString `json:"movie_image"`
}

var seasonEpisodePattern = regexp.MustCompile(`(?i)\bS(\d{1,3})\s*E(\d{1,4})\b`)

// NormalizeEpisodes turns a get_series_info "episodes" value into records.
// The well-formed shape is an object keyed by season number; some providers
// send a flat list instead. Records that cannot be used are dropped and
// described in the returned warnings.
func NormalizeEpisodes(raw json.RawMessage) ([]EpisodeRecord, []string) {
	records, warnings, _ := normalizeEpisodes(raw)
	return records, warnings
}

func normalizeEpisodes(raw json.RawMessage) (records []EpisodeRecord, warnings []string, skipped int) {
	raw = bytes.TrimSpace(raw)
	if isEmptyPayload(raw) {
		return nil, nil, 0
	}

	switch raw[0] {
	case '{':
		var bySeason map[string]json.RawMessage
		if err := json.Unmarshal(raw, &bySeason); err != nil {
			return nil, []string{fmt.Sprintf("episodes payload is not a season map: %v", err)}, 0
		}
		for _, key := range sortedSeasonKeys(bySeason) {
			season, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
			keySeason := xtream.FlexInt{Value: season, Valid: err == nil}
			for _, item := range splitItems(bySeason[key]) {
				rec, warns, ok := normalizeEpisode(item, keySeason)
				warnings = append(warnings, warns...)
				if ok {
					records = append(records, rec)
				} else {
					skipped++
				}
			}
		}
	case '[':
		warnings = append(warnings, "episodes payload is a list instead of a season map")
		for _, item := range splitItems(raw) {
			rec, warns, ok := normalizeEpisode(item, xtream.FlexInt{})
			warnings = append(warnings, warns...)
			if ok {
				records = append(records, rec)
			} else {
				skipped++
			}
		}
	default:
		warnings = append(warnings, fmt.Sprintf("episodes payload has unexpected type: %.40s", string(raw)))
	}

	return records, warnings, skipped
}

// normalizeEpisode decodes one episode object. Scalar fields accept strings
// or numbers so a single odd field never costs the stream its relation.
func normalizeEpisode(item json.RawMessage, keySeason xtream.FlexInt) (EpisodeRecord, []string, bool) {
	var ep rawEpisode
	if err := json.Unmarshal(item, &ep); err != nil {
		return EpisodeRecord{}, []string{fmt.Sprintf("skipping undecodable episode: %v", err)}, false
	}

	rec := EpisodeRecord{
		StreamID:           string(ep.ID),
		ContainerExtension: strings.TrimPrefix(string(ep.ContainerExtension), "."),
		Raw:                item,
	}
	rec.Name, rec.NamePlaceholder = resolveName(string(ep.Title), EpisodeNameNull)

	if rec.StreamID == "" {
		return rec, []string{fmt.Sprintf("skipping episode %q without a stream id", rec.Name)}, false
	}

	var titleSeason, titleEpisode int64
	if !rec.NamePlaceholder {
		titleSeason, titleEpisode = parseSeasonEpisode(rec.Name)
	}

	switch {
	case keySeason.Valid:
		rec.Season = keySeason.Value
	case ep.Season.Valid:
		rec.Season = ep.Season.Value
	case ep.SeasonNumber.Valid:
		rec.Season = ep.SeasonNumber.Value
	case titleSeason > 0:
		rec.Season = titleSeason
	default:
		rec.Season = 1
	}

	var warnings []string
	switch {
	case ep.EpisodeNum.Valid:
		rec.Episode = ep.EpisodeNum.Value
	case titleEpisode > 0:
		rec.Episode = titleEpisode
	default:
		warnings = append(warnings, fmt.Sprintf("episode stream %s has no episode number, using 0", rec.StreamID))
	}

	if info := bytes.TrimSpace(ep.Info); len(info) > 0 && info[0] == '{' {
		var detail rawEpisodeInfo
		if err := json.Unmarshal(info, &detail); err != nil {
			warnings = append(warnings, fmt.Sprintf("episode stream %s has unreadable info, metadata left empty: %v", rec.StreamID, err))
		} else {
			rec.Info = info
			rec.Plot = string(detail.Plot)
			rec.AirDate = firstNonEmpty(string(detail.AirDate), string(detail.ReleaseDate))
			rec.Rating = string(detail.Rating)
			if detail.DurationSecs.Valid {
				rec.DurationSecs = detail.DurationSecs.Value
			}
			rec.TmdbID = cleanExternalID(string(detail.TmdbID))
			rec.ImdbID = cleanExternalID(string(detail.ImdbID))
			rec.Image = string(detail.MovieImage)
		}
	}

	return rec, warnings, true
}

// parseSeasonEpisode extracts SxxEyy from a release style title.
func parseSeasonEpisode(title string) (int64, int64) {
	r := rls.ParseString(title)
	if r.Series > 0 || r.Episode > 0 {
		return int64(r.Series), int64(r.Episode)
	}
	if m := seasonEpisodePattern.FindStringSubmatch(title); m != nil {
		s, _ := strconv.ParseInt(m[1], 10, 64)
		e, _ := strconv.ParseInt(m[2], 10, 64)
		return s, e
	}
	return 0, 0
}

// splitItems returns the objects of a list, or the value itself when a season
// holds a single object.
func splitItems(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '{':
		return []json.RawMessage{raw}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		out := items[:0]
		for _, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) > 0 && item[0] == '{' {
				out = append(out, item)
			}
		}
		return out
	}
	return nil
}

func sortedSeasonKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		if (errA == nil) != (errB == nil) {
			return errA == nil
		}
		return keys[i] < keys[j]
	})
	return keys
}

func isEmptyPayload(raw []byte) bool {
	switch string(raw) {
	case "", "null", `""`, "{}", "[]":
		return true
	}
	return false
}

// cleanExternalID drops the "0" and "null" values providers use for unknown ids.
func cleanExternalID(id string) string {
	id = strings.TrimSpace(id)
	switch strings.ToLower(id) {
	case "", "0", "null", "none":
		return ""
	}
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
