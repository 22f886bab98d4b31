package diagnostics

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vodsync/vodsync/internal/vod"
	"github.com/vodsync/vodsync/internal/xtream"
)

const (
	defaultSample   = 20
	providerWorkers = 4
)

type rawPayload struct {
	seriesID string
	body     []byte
}

// AnalyzeProvider samples get_series_info payloads of an XC account and
// reports the (season, episode) keys the provider lists under several stream
// ids. Payloads come from the provider or, with SourceCache, from the raw cache
// filled by earlier refreshes.
func (s *Service) AnalyzeProvider(ctx context.Context, accountID int64, opts ProviderOptions) (*ProviderReport, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if opts.Sample <= 0 {
		opts.Sample = defaultSample
	}
	if opts.Source == "" {
		opts.Source = SourceLive
	}

	report := &ProviderReport{
		AccountID:     account.ID,
		AccountName:   account.Name,
		Source:        opts.Source,
		DuplicateKeys: []*DuplicateKey{},
	}

	var payloads []rawPayload
	switch opts.Source {
	case SourceCache:
		payloads, err = s.cachedPayloads(account.ID, opts.Sample, report)
	case SourceLive:
		if !account.IsXtream() {
			return nil, vod.ErrNotXtream
		}
		client := xtream.NewClient(s.xtream, xtream.Credentials{
			ServerURL: account.ServerURL,
			Username:  account.Username,
			Password:  account.Password,
			UserAgent: account.UserAgent,
		}, s.logger)
		payloads, err = s.livePayloads(ctx, client, account.ID, opts.Sample, report)
	default:
		return nil, fmt.Errorf("unknown source %q", opts.Source)
	}
	if err != nil {
		return nil, err
	}

	for _, p := range payloads {
		analyzePayload(p, report)
	}
	report.SeriesSampled = len(payloads)

	s.logger.Info().
		Int64("accountId", account.ID).
		Str("source", string(opts.Source)).
		Int("series", report.SeriesSampled).
		Int("duplicateKeys", len(report.DuplicateKeys)).
		Msg("Provider analysis finished")

	return report, nil
}

func (s *Service) cachedPayloads(accountID int64, sample int, report *ProviderReport) ([]rawPayload, error) {
	if s.cache == nil {
		return nil, ErrNoRawCache
	}
	ids, err := s.cache.ListSeriesIDs(accountID)
	if err != nil {
		return nil, err
	}
	if len(ids) > sample {
		ids = ids[:sample]
	}

	out := make([]rawPayload, 0, len(ids))
	for _, id := range ids {
		entry, err := s.cache.GetSeriesInfo(accountID, id)
		if err != nil {
			report.SeriesFailed++
			report.Warnings = append(report.Warnings, fmt.Sprintf("series %s: %v", id, err))
			continue
		}
		out = append(out, rawPayload{seriesID: id, body: entry.Body})
	}
	return out, nil
}

func (s *Service) livePayloads(ctx context.Context, client *xtream.Client, accountID int64, sample int, report *ProviderReport) ([]rawPayload, error) {
	entries, err := client.GetSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider series: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.SeriesID != "" {
			ids = append(ids, string(e.SeriesID))
		}
	}
	if len(ids) > sample {
		ids = ids[:sample]
	}

	var mu sync.Mutex
	results := make([]rawPayload, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(providerWorkers)
	for i, id := range ids {
		g.Go(func() error {
			body, err := client.GetSeriesInfoRaw(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				mu.Lock()
				report.SeriesFailed++
				report.Warnings = append(report.Warnings, fmt.Sprintf("series %s: %v", id, err))
				mu.Unlock()
				return nil
			}
			if s.cache != nil {
				if err := s.cache.PutSeriesInfo(accountID, id, body); err != nil {
					s.logger.Debug().Err(err).Str("seriesId", id).Msg("Failed to cache series payload")
				}
			}
			results[i] = rawPayload{seriesID: id, body: body}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := results[:0]
	for _, r := range results {
		if r.body != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func analyzePayload(p rawPayload, report *ProviderReport) {
	info, err := xtream.ParseSeriesInfo(p.body)
	if err != nil {
		report.SeriesFailed++
		report.Warnings = append(report.Warnings, fmt.Sprintf("series %s: %v", p.seriesID, err))
		return
	}
	if trimmed := bytes.TrimSpace(info.Episodes); len(trimmed) > 0 && trimmed[0] == '[' {
		report.ListPayloads++
	}

	records, _ := vod.NormalizeEpisodes(info.Episodes)
	report.Records += len(records)

	type key struct{ season, episode int64 }
	byKey := make(map[key][]string)
	var order []key
	for _, rec := range records {
		k := key{rec.Season, rec.Episode}
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], rec.StreamID)
	}
	for _, k := range order {
		ids := byKey[k]
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		report.DuplicateKeys = append(report.DuplicateKeys, &DuplicateKey{
			SeriesID:      p.seriesID,
			SeasonNumber:  k.season,
			EpisodeNumber: k.episode,
			StreamIDs:     ids,
		})
	}
}
