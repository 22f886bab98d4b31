package streamprobe

import "strings"

// videoCodecNames maps ffprobe codec names to display names.
var videoCodecNames = map[string]string{
	"hevc":       "HEVC",
	"h265":       "HEVC",
	"h264":       "H.264",
	"avc":        "H.264",
	"av1":        "AV1",
	"vp9":        "VP9",
	"vp8":        "VP8",
	"mpeg2video": "MPEG2",
	"mpeg4":      "MPEG4",
	"vc1":        "VC-1",
}

// NormalizeVideoCodec returns the display name of an ffprobe video codec.
func NormalizeVideoCodec(codec string) string {
	lower := strings.ToLower(strings.TrimSpace(codec))
	if name, ok := videoCodecNames[lower]; ok {
		return name
	}
	return codec
}

// FormatChannels formats an audio channel layout.
func FormatChannels(channels int, layout string) string {
	lower := strings.ToLower(strings.TrimSpace(layout))
	switch {
	case strings.HasPrefix(lower, "7.1"):
		return "7.1"
	case strings.HasPrefix(lower, "5.1"):
		return "5.1"
	case lower == "stereo" || lower == "2.0":
		return "2.0"
	case lower == "mono":
		return "1.0"
	}

	switch {
	case channels >= 8:
		return "7.1"
	case channels >= 6:
		return "5.1"
	case channels >= 2:
		return "2.0"
	case channels == 1:
		return "1.0"
	default:
		return ""
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
