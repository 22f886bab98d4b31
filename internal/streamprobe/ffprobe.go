package streamprobe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StreamInfo is the metadata of one probed stream.
type StreamInfo struct {
	Resolution    string  `json:"resolution"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Codec         string  `json:"codec"`
	VideoCodec    string  `json:"videoCodec"`
	BitDepth      int     `json:"bitDepth"`
	DynamicRange  string  `json:"dynamicRange,omitempty"`
	Bitrate       int64   `json:"bitrate"`
	DurationSecs  float64 `json:"durationSecs"`
	FPS           float64 `json:"fps"`
	FileSize      int64   `json:"fileSize"`
	Container     string  `json:"container,omitempty"`
	AudioCodec    string  `json:"audioCodec,omitempty"`
	AudioChannels int     `json:"audioChannels,omitempty"`
	AudioLayout   string  `json:"audioLayout,omitempty"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecType      string            `json:"codec_type"`
	CodecName      string            `json:"codec_name"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	PixFmt         string            `json:"pix_fmt"`
	RFrameRate     string            `json:"r_frame_rate"`
	ColorPrimaries string            `json:"color_primaries"`
	ColorTransfer  string            `json:"color_transfer"`
	Channels       int               `json:"channels"`
	ChannelLayout  string            `json:"channel_layout"`
	SideDataList   []ffprobeSideData `json:"side_data_list"`
}

type ffprobeSideData struct {
	SideDataType string `json:"side_data_type"`
}

// parseFFprobeJSON extracts the first video and audio stream of ffprobe output.
func parseFFprobeJSON(data []byte) (*StreamInfo, error) {
	var output ffprobeOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var video, audio *ffprobeStream
	for i := range output.Streams {
		stream := &output.Streams[i]
		switch stream.CodecType {
		case "video":
			if video == nil {
				video = stream
			}
		case "audio":
			if audio == nil {
				audio = stream
			}
		}
	}
	if video == nil {
		return nil, ErrNoVideoStream
	}

	info := &StreamInfo{
		Resolution:   fmt.Sprintf("%dx%d", video.Width, video.Height),
		Width:        video.Width,
		Height:       video.Height,
		Codec:        orUnknown(video.CodecName),
		VideoCodec:   NormalizeVideoCodec(video.CodecName),
		BitDepth:     detectBitDepth(video.PixFmt),
		Bitrate:      parseInt64(output.Format.BitRate),
		DurationSecs: parseFloat(output.Format.Duration),
		FPS:          parseFrameRate(video.RFrameRate),
		FileSize:     parseInt64(output.Format.Size),
		Container:    output.Format.FormatName,
	}

	hasDV := false
	for _, sd := range video.SideDataList {
		if strings.Contains(strings.ToLower(sd.SideDataType), "dolby vision") {
			hasDV = true
		}
	}
	info.DynamicRange = detectDynamicRange(info.BitDepth, video.ColorPrimaries, video.ColorTransfer, hasDV)

	if audio != nil {
		info.AudioCodec = orUnknown(audio.CodecName)
		info.AudioChannels = audio.Channels
		info.AudioLayout = FormatChannels(audio.Channels, audio.ChannelLayout)
	}
	return info, nil
}

// parseFrameRate evaluates an ffprobe rational such as "30000/1001".
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		return parseFloat(num)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseInt64(s string) int64 {
	if s == "" || s == "N/A" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return int64(parseFloat(s))
	}
	return v
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// detectBitDepth detects bit depth from pixel format string.
func detectBitDepth(pixFmt string) int {
	lower := strings.ToLower(pixFmt)
	switch {
	case strings.Contains(lower, "10le"), strings.Contains(lower, "10be"), strings.Contains(lower, "p010"):
		return 10
	case strings.Contains(lower, "12le"), strings.Contains(lower, "12be"):
		return 12
	default:
		return 8
	}
}

// detectDynamicRange classifies a video stream as SDR or one of the HDR
// flavours that change how variants should be compared.
func detectDynamicRange(bitDepth int, primaries, transfer string, hasDolbyVision bool) string {
	lower := strings.ToLower(primaries + " " + transfer)
	bt2020 := containsAny(lower, "bt2020", "bt.2020")
	switch {
	case hasDolbyVision:
		return "DV"
	case containsAny(lower, "smpte2084", "st2084") && bt2020:
		return "HDR10"
	case containsAny(lower, "arib-std-b67", "hlg"):
		return "HLG"
	case bitDepth >= 10 && bt2020:
		return "HDR"
	default:
		return "SDR"
	}
}
