package vod

import (
	"context"
	"errors"
	"fmt"

	"github.com/vodsync/vodsync/internal/streamprobe"
)

// StreamComparer probes stream URLs and compares them.
type StreamComparer interface {
	CompareTargets(ctx context.Context, targets []streamprobe.Target) (*streamprobe.Comparison, error)
}

// EpisodeComparison is the result of comparing every stream of an episode.
type EpisodeComparison struct {
	Episode    *Episode                `json:"episode"`
	Streams    []*EpisodeStream        `json:"streams"`
	Comparison *streamprobe.Comparison `json:"comparison,omitempty"`
	Message    string                  `json:"message,omitempty"`
}

// CompareEpisodeStreams probes all provider streams of an episode and reports
// whether they are distinct variants or duplicates of one file.
func (s *Service) CompareEpisodeStreams(ctx context.Context, uuid string, comparer StreamComparer) (*EpisodeComparison, error) {
	episode, err := s.GetEpisode(ctx, uuid)
	if err != nil {
		return nil, err
	}
	streams, err := s.EpisodeStreams(ctx, uuid)
	if err != nil {
		return nil, err
	}

	out := &EpisodeComparison{Episode: episode, Streams: streams}
	if len(streams) < 2 {
		out.Message = fmt.Sprintf("episode has %d stream(s), nothing to compare", len(streams))
		return out, nil
	}

	targets := make([]streamprobe.Target, len(streams))
	for i, st := range streams {
		targets[i] = streamprobe.Target{Label: st.StreamID, URL: st.URL}
	}

	s.logger.Info().Str("episode", uuid).Int("streams", len(targets)).Msg("Comparing episode streams")

	cmp, err := comparer.CompareTargets(ctx, targets)
	out.Comparison = cmp
	switch {
	case errors.Is(err, streamprobe.ErrNotEnoughStreams):
		out.Message = "not enough streams could be probed"
	case err != nil:
		return nil, err
	case cmp.Identical:
		out.Message = "all streams appear identical; the provider lists the same file under several stream ids"
	default:
		out.Message = "streams differ; they look like genuine quality variants"
	}
	return out, nil
}
