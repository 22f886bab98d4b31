// Package diagnostics inspects the catalog for episode deduplication problems.
package diagnostics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/database/sqlc"
	"github.com/vodsync/vodsync/internal/rawcache"
)

var (
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrNoStreamIDs     = errors.New("at least one stream id is required")
	ErrNoRawCache      = errors.New("raw payload cache is disabled")
)

const defaultLimit = 50

// Service runs diagnostic queries.
type Service struct {
	queries  *sqlc.Queries
	accounts *accounts.Service
	xtream   config.XtreamConfig
	cache    *rawcache.Store
	logger   zerolog.Logger
}

// NewService creates a new diagnostics service.
func NewService(db *sql.DB, accountsSvc *accounts.Service, xcfg config.XtreamConfig, logger zerolog.Logger) *Service {
	return &Service{
		queries:  sqlc.New(db),
		accounts: accountsSvc,
		xtream:   xcfg,
		logger:   logger.With().Str("component", "diagnostics").Logger(),
	}
}

// SetRawCache enables provider analysis from cached payloads.
func (s *Service) SetRawCache(store *rawcache.Store) {
	s.cache = store
}

// Duplicates lists (series, season, episode) keys stored more than once.
func (s *Service) Duplicates(ctx context.Context, limit int) ([]*DuplicateGroup, error) {
	rows, err := s.queries.ListDuplicateEpisodeGroups(ctx, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate episodes: %w", err)
	}
	groups := make([]*DuplicateGroup, len(rows))
	for i, row := range rows {
		groups[i] = &DuplicateGroup{
			SeriesID:      row.SeriesID,
			SeriesName:    row.SeriesName,
			SeasonNumber:  row.SeasonNumber,
			EpisodeNumber: row.EpisodeNumber,
			Count:         row.Count,
		}
	}
	if len(groups) > 0 {
		s.logger.Warn().Int("groups", len(groups)).Msg("Catalog holds duplicate episode keys")
	}
	return groups, nil
}

// MultiStream lists episodes an account relates to through several stream ids,
// with the streams of that account.
func (s *Service) MultiStream(ctx context.Context, limit int) ([]*MultiStreamEpisode, error) {
	rows, err := s.queries.ListMultiStreamEpisodes(ctx, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list multi-stream episodes: %w", err)
	}

	out := make([]*MultiStreamEpisode, 0, len(rows))
	streamsByEpisode := make(map[int64][]*sqlc.EpisodeStreamRow)
	for _, row := range rows {
		streams, ok := streamsByEpisode[row.EpisodeID]
		if !ok {
			streams, err = s.queries.ListEpisodeStreams(ctx, row.EpisodeID)
			if err != nil {
				return nil, fmt.Errorf("failed to list streams of episode %d: %w", row.EpisodeID, err)
			}
			streamsByEpisode[row.EpisodeID] = streams
		}

		ep := &MultiStreamEpisode{
			EpisodeID:     row.EpisodeID,
			EpisodeUUID:   row.EpisodeUuid,
			EpisodeName:   row.EpisodeName,
			SeriesName:    row.SeriesName,
			SeasonNumber:  row.SeasonNumber,
			EpisodeNumber: row.EpisodeNumber,
			AccountID:     row.AccountID,
			AccountName:   row.AccountName,
			StreamCount:   row.StreamCount,
		}
		for _, st := range streams {
			if st.AccountID == row.AccountID {
				ep.Streams = append(ep.Streams, streamRef(st))
			}
		}
		out = append(out, ep)
	}
	return out, nil
}

// RelationStats computes episode relation statistics for every active account.
func (s *Service) RelationStats(ctx context.Context) ([]*RelationStats, error) {
	accts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*RelationStats, 0, len(accts))
	for _, acct := range accts {
		stats, err := s.relationStats(ctx, acct)
		if err != nil {
			return nil, err
		}
		if stats.Mismatch {
			s.logger.Warn().
				Int64("accountId", acct.ID).
				Int64("goDistinct", stats.DistinctEpisodes).
				Int64("sqlDistinct", stats.SQLDistinctEpisodes).
				Msg("Relation grouping mismatch")
		}
		out = append(out, stats)
	}
	return out, nil
}

func (s *Service) relationStats(ctx context.Context, acct *accounts.Account) (*RelationStats, error) {
	pairs, err := s.queries.ListEpisodeRelationPairs(ctx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations of account %d: %w", acct.ID, err)
	}

	perEpisode := make(map[int64]int64)
	for _, p := range pairs {
		perEpisode[p.EpisodeID]++
	}

	stats := &RelationStats{
		AccountID:        acct.ID,
		AccountName:      acct.Name,
		Relations:        int64(len(pairs)),
		DistinctEpisodes: int64(len(perEpisode)),
	}
	for _, n := range perEpisode {
		if n > 1 {
			stats.MultiStreamEpisodes++
		}
		stats.MaxStreamsPerEpisode = max(stats.MaxStreamsPerEpisode, n)
	}

	if stats.SQLDistinctEpisodes, err = s.queries.CountDistinctRelatedEpisodes(ctx, acct.ID); err != nil {
		return nil, fmt.Errorf("failed to count related episodes: %w", err)
	}
	if stats.SQLMultiStream, err = s.queries.CountMultiRelationEpisodes(ctx, acct.ID); err != nil {
		return nil, fmt.Errorf("failed to count multi-relation episodes: %w", err)
	}
	stats.Mismatch = stats.SQLDistinctEpisodes != stats.DistinctEpisodes || stats.SQLMultiStream != stats.MultiStreamEpisodes
	return stats, nil
}

// InspectEpisode returns an episode by numeric id or UUID with its series and streams.
func (s *Service) InspectEpisode(ctx context.Context, ref string) (*EpisodeInspection, error) {
	var (
		row *sqlc.VodEpisode
		err error
	)
	if id, perr := strconv.ParseInt(ref, 10, 64); perr == nil {
		row, err = s.queries.GetEpisode(ctx, id)
	} else {
		row, err = s.queries.GetEpisodeByUUID(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}

	series, err := s.queries.GetSeries(ctx, row.SeriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to get series %d: %w", row.SeriesID, err)
	}

	streams, err := s.queries.ListEpisodeStreams(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episode streams: %w", err)
	}

	out := &EpisodeInspection{
		EpisodeID:     row.ID,
		EpisodeUUID:   row.Uuid,
		Name:          row.Name,
		SeasonNumber:  row.SeasonNumber,
		EpisodeNumber: row.EpisodeNumber,
		SeriesID:      series.ID,
		SeriesUUID:    series.Uuid,
		SeriesName:    series.Name,
		TmdbID:        row.TmdbID.String,
		Streams:       make([]*StreamRef, len(streams)),
	}
	accountsSeen := make(map[int64]bool)
	for i, st := range streams {
		out.Streams[i] = streamRef(st)
		accountsSeen[st.AccountID] = true
	}
	out.Accounts = len(accountsSeen)
	return out, nil
}

// CheckStreamIDs reports which provider stream ids have episode relations.
func (s *Service) CheckStreamIDs(ctx context.Context, ids []string) (*StreamCheck, error) {
	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return nil, ErrNoStreamIDs
	}

	out := &StreamCheck{Found: []*StreamMatch{}, Missing: []string{}}
	episodes := make(map[int64]*sqlc.VodEpisode)
	for _, id := range ids {
		rels, err := s.queries.ListEpisodeRelationsByStreamID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to look up stream %s: %w", id, err)
		}
		if len(rels) == 0 {
			out.Missing = append(out.Missing, id)
			continue
		}
		for _, rel := range rels {
			ep, ok := episodes[rel.EpisodeID]
			if !ok {
				ep, err = s.queries.GetEpisode(ctx, rel.EpisodeID)
				if err != nil {
					return nil, fmt.Errorf("failed to get episode %d: %w", rel.EpisodeID, err)
				}
				episodes[rel.EpisodeID] = ep
			}
			out.Found = append(out.Found, &StreamMatch{
				StreamID:      id,
				AccountID:     rel.AccountID,
				RelationID:    rel.ID,
				EpisodeID:     ep.ID,
				EpisodeUUID:   ep.Uuid,
				SeasonNumber:  ep.SeasonNumber,
				EpisodeNumber: ep.EpisodeNumber,
			})
		}
	}
	return out, nil
}

func streamRef(row *sqlc.EpisodeStreamRow) *StreamRef {
	return &StreamRef{
		RelationID:         row.RelationID,
		AccountID:          row.AccountID,
		AccountName:        row.AccountName,
		StreamID:           row.StreamID,
		ContainerExtension: row.ContainerExtension,
		LastSeenAt:         row.LastSeenAt,
	}
}

// cleanIDs splits comma separated values, trims and dedups them.
func cleanIDs(ids []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range ids {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func limitOrDefault(limit int) int64 {
	if limit <= 0 {
		return defaultLimit
	}
	return int64(limit)
}
