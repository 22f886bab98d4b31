package vod

import (
	"encoding/json"
	"testing"
)

func TestNormalizeEpisodes_SeasonMap(t *testing.T) {
	raw := json.RawMessage(`{
		"2": [{"id": "21", "episode_num": "1", "title": "Two One", "container_extension": ".mkv"}],
		"1": [
			{"id": 11, "episode_num": 1, "title": "One One", "info": {"plot": "p", "tmdb_id": 0, "duration_secs": "1800"}},
			{"id": 12, "episode_num": 2, "title": null}
		]
	}`)

	records, warnings := NormalizeEpisodes(raw)
	if len(warnings) != 0 {
		t.Errorf("NormalizeEpisodes() warnings = %v, want none", warnings)
	}
	if len(records) != 3 {
		t.Fatalf("NormalizeEpisodes() returned %d records, want 3", len(records))
	}

	// Seasons are visited in numeric order.
	first := records[0]
	if first.StreamID != "11" || first.Season != 1 || first.Episode != 1 {
		t.Errorf("records[0] = %s S%dE%d, want 11 S1E1", first.StreamID, first.Season, first.Episode)
	}
	if first.TmdbID != "" {
		t.Errorf("records[0].TmdbID = %q, want empty for provider zero", first.TmdbID)
	}
	if first.DurationSecs != 1800 {
		t.Errorf("records[0].DurationSecs = %d, want 1800", first.DurationSecs)
	}

	if !records[1].NamePlaceholder || records[1].Name != EpisodeNameNull {
		t.Errorf("records[1] name = %q (placeholder %v), want %s", records[1].Name, records[1].NamePlaceholder, EpisodeNameNull)
	}

	last := records[2]
	if last.Season != 2 || last.ContainerExtension != "mkv" {
		t.Errorf("records[2] = S%d ext %q, want S2 ext mkv", last.Season, last.ContainerExtension)
	}
}

func TestNormalizeEpisodes_SingleObjectSeason(t *testing.T) {
	raw := json.RawMessage(`{"4": {"id": "400", "episode_num": 7, "title": "Lonely"}}`)

	records, _ := NormalizeEpisodes(raw)
	if len(records) != 1 {
		t.Fatalf("NormalizeEpisodes() returned %d records, want 1", len(records))
	}
	if records[0].Season != 4 || records[0].Episode != 7 {
		t.Errorf("record = S%dE%d, want S4E7", records[0].Season, records[0].Episode)
	}
}

func TestNormalizeEpisodes_MissingNumbers(t *testing.T) {
	raw := json.RawMessage(`[
		{"id": "1", "title": "Nothing to go on"},
		{"title": "No id"},
		"garbage"
	]`)

	records, warnings, skipped := normalizeEpisodes(raw)
	if len(records) != 1 {
		t.Fatalf("normalizeEpisodes() returned %d records, want 1", len(records))
	}
	if records[0].Season != 1 || records[0].Episode != 0 {
		t.Errorf("record = S%dE%d, want S1E0", records[0].Season, records[0].Episode)
	}
	if skipped != 1 {
		t.Errorf("normalizeEpisodes() skipped = %d, want 1", skipped)
	}
	// list warning, missing number, missing id
	if len(warnings) != 3 {
		t.Errorf("normalizeEpisodes() warnings = %v, want 3", warnings)
	}
}

func TestNormalizeEpisodes_NumericTextFields(t *testing.T) {
	raw := json.RawMessage(`{"1": [
		{"id": "5", "episode_num": 1, "title": 1984},
		{"id": "6", "episode_num": 2, "title": "ok", "container_extension": 4,
		 "info": {"plot": 42, "imdb_id": 1234567, "movie_image": null, "duration_secs": "90"}}
	]}`)

	records, warnings, skipped := normalizeEpisodes(raw)
	if skipped != 0 {
		t.Errorf("normalizeEpisodes() skipped = %d, want 0 (warnings %v)", skipped, warnings)
	}
	if len(records) != 2 {
		t.Fatalf("normalizeEpisodes() returned %d records, want 2", len(records))
	}

	if records[0].Name != "1984" || records[0].NamePlaceholder {
		t.Errorf("records[0].Name = %q (placeholder %v), want 1984", records[0].Name, records[0].NamePlaceholder)
	}

	second := records[1]
	if second.ContainerExtension != "4" {
		t.Errorf("records[1].ContainerExtension = %q, want 4", second.ContainerExtension)
	}
	if second.Plot != "42" || second.ImdbID != "1234567" || second.DurationSecs != 90 {
		t.Errorf("records[1] info = plot %q imdb %q duration %d, want 42 1234567 90", second.Plot, second.ImdbID, second.DurationSecs)
	}
	if len(second.Info) == 0 {
		t.Error("records[1].Info should keep the raw info block")
	}
}

func TestNormalizeEpisodes_UnexpectedShapes(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantWarnings int
	}{
		{"null", `null`, 0},
		{"empty object", `{}`, 0},
		{"empty list", `[]`, 0},
		{"empty string", `""`, 0},
		{"number", `42`, 1},
		{"string", `"oops"`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, warnings := NormalizeEpisodes(json.RawMessage(tt.raw))
			if len(records) != 0 {
				t.Errorf("NormalizeEpisodes(%s) returned %d records, want 0", tt.raw, len(records))
			}
			if len(warnings) != tt.wantWarnings {
				t.Errorf("NormalizeEpisodes(%s) warnings = %v, want %d", tt.raw, warnings, tt.wantWarnings)
			}
		})
	}
}

func TestParseSeasonEpisode(t *testing.T) {
	tests := []struct {
		title       string
		wantSeason  int64
		wantEpisode int64
	}{
		{"MasterChef Junior - S09E02 - Episode 2", 9, 2},
		{"Show.Name.S01E10.1080p.WEB.h264-GRP", 1, 10},
		{"Just a title", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			season, episode := parseSeasonEpisode(tt.title)
			if season != tt.wantSeason || episode != tt.wantEpisode {
				t.Errorf("parseSeasonEpisode(%q) = (%d, %d), want (%d, %d)", tt.title, season, episode, tt.wantSeason, tt.wantEpisode)
			}
		})
	}
}

func TestCleanExternalID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"0", ""},
		{"null", ""},
		{" None ", ""},
		{"tt0944947", "tt0944947"},
		{" 1399 ", "1399"},
	}

	for _, tt := range tests {
		if got := cleanExternalID(tt.in); got != tt.want {
			t.Errorf("cleanExternalID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveName(t *testing.T) {
	tests := []struct {
		name            string
		in              string
		wantName        string
		wantPlaceholder bool
	}{
		{"empty", "", MovieNameNull, true},
		{"blank", "  ", MovieNameNull, true},
		{"named", " Title ", "Title", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, placeholder := resolveName(tt.in, MovieNameNull)
			if got != tt.wantName || placeholder != tt.wantPlaceholder {
				t.Errorf("resolveName() = (%q, %v), want (%q, %v)", got, placeholder, tt.wantName, tt.wantPlaceholder)
			}
		})
	}
}
