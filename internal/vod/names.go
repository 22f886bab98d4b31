package vod

import "strings"

// Placeholders stored when a provider sends a null or blank name.
const (
	MovieNameNull   = "MovieNameNull"
	SeriesNameNull  = "SeriesNameNull"
	EpisodeNameNull = "EpisodeNameNull"
)

// resolveName returns the trimmed name, or placeholder and true when it is
// null or blank.
func resolveName(name string, placeholder string) (string, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return placeholder, true
	}
	return trimmed, false
}
