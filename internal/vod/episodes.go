package vod

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/database"
	"github.com/vodsync/vodsync/internal/database/sqlc"
)

type episodeKey struct {
	season  int64
	episode int64
}

func (k episodeKey) String() string {
	return fmt.Sprintf("S%02dE%02d", k.season, k.episode)
}

// episodeFields are the catalog columns a provider record can set.
type episodeFields struct {
	Name             string
	Description      string
	AirDate          string
	Rating           string
	DurationSecs     sql.NullInt64
	TmdbID           sql.NullString
	ImdbID           sql.NullString
	CustomProperties sql.NullString
}

type pendingEpisode struct {
	key      episodeKey
	fields   episodeFields
	existing *sqlc.VodEpisode
	changed  bool
}

type pendingEpisodeRelation struct {
	key episodeKey
	rec *EpisodeRecord
}

// BatchProcessEpisodes imports the get_series_info episodes payload of one
// series for one account.
//
// Every (season, episode) key maps to exactly one catalog episode. A provider
// that lists several streams for the same key (quality variants, mirrors) gets
// one relation per stream, all pointing at that episode.
func (s *Service) BatchProcessEpisodes(ctx context.Context, account *accounts.Account, seriesID int64, payload json.RawMessage, scanStart time.Time) (*BatchResult, error) {
	records, warnings, skipped := normalizeEpisodes(payload)

	result := &BatchResult{Skipped: skipped}
	for _, w := range warnings {
		s.logger.Warn().Int64("accountId", account.ID).Str("account", account.Name).Int64("seriesId", seriesID).Msg(w)
		result.warn(w)
	}

	batch, err := s.ProcessEpisodeRecords(ctx, account, seriesID, records, scanStart)
	if err != nil {
		return nil, err
	}
	result.Add(batch)
	return result, nil
}

// ProcessEpisodeRecords writes already normalised episode records.
//
// Writes run in one transaction: new episodes are inserted (ignoring unique
// key conflicts), changed ones updated, then the ids of every key in the batch
// are read back before any relation is written.
func (s *Service) ProcessEpisodeRecords(ctx context.Context, account *accounts.Account, seriesID int64, records []EpisodeRecord, scanStart time.Time) (*BatchResult, error) {
	result := &BatchResult{}
	if len(records) == 0 {
		return result, nil
	}

	log := s.logger.With().Int64("accountId", account.ID).Str("account", account.Name).Int64("seriesId", seriesID).Logger()

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		q := s.queries.WithTx(tx)

		existing, err := episodesByKey(ctx, q, seriesID)
		if err != nil {
			return err
		}

		batch := make(map[episodeKey]*pendingEpisode)
		var order []*pendingEpisode
		var relations []pendingEpisodeRelation
		seenStreams := make(map[string]episodeKey, len(records))

		for i := range records {
			rec := &records[i]
			key := episodeKey{season: rec.Season, episode: rec.Episode}

			if prev, dup := seenStreams[rec.StreamID]; dup {
				msg := fmt.Sprintf("stream %s listed twice (%s and %s), keeping the first", rec.StreamID, prev, key)
				log.Warn().Str("streamId", rec.StreamID).Msg(msg)
				result.warn(msg)
				result.Skipped++
				continue
			}
			seenStreams[rec.StreamID] = key

			if rec.NamePlaceholder {
				msg := fmt.Sprintf("episode stream %s of account %q has no name, using %s", rec.StreamID, account.Name, EpisodeNameNull)
				log.Warn().Str("streamId", rec.StreamID).Msg(msg)
				result.warn(msg)
			}

			if p, ok := batch[key]; ok {
				// Later variants of the same episode may carry the name the first one lacked.
				if p.fields.Name == EpisodeNameNull && !rec.NamePlaceholder {
					p.fields.Name = rec.Name
					if p.existing != nil {
						p.changed = p.fields != episodeFieldsFromRow(p.existing)
					}
				}
			} else {
				p := &pendingEpisode{key: key, fields: episodeFieldsFromRecord(rec)}
				if row, ok := existing[key]; ok {
					p.existing = row
					p.fields = mergeEpisodeFields(row, p.fields)
					p.changed = p.fields != episodeFieldsFromRow(row)
				}
				batch[key] = p
				order = append(order, p)
			}
			relations = append(relations, pendingEpisodeRelation{key: key, rec: rec})
		}

		for _, p := range order {
			if p.existing != nil {
				continue
			}
			_, err := q.InsertEpisode(ctx, sqlc.InsertEpisodeParams{
				Uuid:             uuid.NewString(),
				SeriesID:         seriesID,
				Name:             p.fields.Name,
				Description:      p.fields.Description,
				AirDate:          p.fields.AirDate,
				Rating:           p.fields.Rating,
				DurationSecs:     p.fields.DurationSecs,
				SeasonNumber:     p.key.season,
				EpisodeNumber:    p.key.episode,
				TmdbID:           p.fields.TmdbID,
				ImdbID:           p.fields.ImdbID,
				CustomProperties: p.fields.CustomProperties,
			})
			if errors.Is(err, sql.ErrNoRows) {
				log.Debug().Str("key", p.key.String()).Msg("Episode created concurrently, reusing it")
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to insert episode %s: %w", p.key, err)
			}
			result.Created++
		}

		for _, p := range order {
			if p.existing == nil || !p.changed {
				continue
			}
			err := q.UpdateEpisode(ctx, sqlc.UpdateEpisodeParams{
				Name:             p.fields.Name,
				Description:      p.fields.Description,
				AirDate:          p.fields.AirDate,
				Rating:           p.fields.Rating,
				DurationSecs:     p.fields.DurationSecs,
				TmdbID:           p.fields.TmdbID,
				ImdbID:           p.fields.ImdbID,
				CustomProperties: p.fields.CustomProperties,
				ID:               p.existing.ID,
			})
			if err != nil {
				return fmt.Errorf("failed to update episode %s: %w", p.key, err)
			}
			result.Updated++
		}

		persisted, err := episodesByKey(ctx, q, seriesID)
		if err != nil {
			return err
		}

		for _, rel := range relations {
			episode, ok := persisted[rel.key]
			if !ok {
				return fmt.Errorf("episode %s of series %d missing after insert", rel.key, seriesID)
			}
			created, err := upsertEpisodeRelation(ctx, q, account.ID, episode.ID, rel.rec, scanStart)
			if err != nil {
				return err
			}
			if created {
				result.RelationsCreated++
			} else {
				result.RelationsUpdated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process episodes: %w", err)
	}

	log.Debug().
		Int("records", len(records)).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("relationsCreated", result.RelationsCreated).
		Int("relationsUpdated", result.RelationsUpdated).
		Msg("Processed episode batch")

	return result, nil
}

func episodesByKey(ctx context.Context, q *sqlc.Queries, seriesID int64) (map[episodeKey]*sqlc.VodEpisode, error) {
	rows, err := q.ListEpisodesBySeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load episodes of series %d: %w", seriesID, err)
	}
	out := make(map[episodeKey]*sqlc.VodEpisode, len(rows))
	for _, row := range rows {
		out[episodeKey{season: row.SeasonNumber, episode: row.EpisodeNumber}] = row
	}
	return out, nil
}

func upsertEpisodeRelation(ctx context.Context, q *sqlc.Queries, accountID, episodeID int64, rec *EpisodeRecord, seenAt time.Time) (bool, error) {
	props := compactJSON(rec.Raw)

	existing, err := q.GetEpisodeRelationByStream(ctx, sqlc.GetEpisodeRelationByStreamParams{
		AccountID: accountID,
		StreamID:  rec.StreamID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		err = q.CreateEpisodeRelation(ctx, sqlc.CreateEpisodeRelationParams{
			AccountID:          accountID,
			EpisodeID:          episodeID,
			StreamID:           rec.StreamID,
			ContainerExtension: rec.ContainerExtension,
			CustomProperties:   props,
			LastSeenAt:         seenAt,
		})
		if err != nil {
			return false, fmt.Errorf("failed to create relation for stream %s: %w", rec.StreamID, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up relation for stream %s: %w", rec.StreamID, err)
	}

	err = q.UpdateEpisodeRelation(ctx, sqlc.UpdateEpisodeRelationParams{
		EpisodeID:          episodeID,
		ContainerExtension: rec.ContainerExtension,
		CustomProperties:   props,
		LastSeenAt:         seenAt,
		ID:                 existing.ID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to update relation for stream %s: %w", rec.StreamID, err)
	}
	return false, nil
}

func episodeFieldsFromRecord(rec *EpisodeRecord) episodeFields {
	return episodeFields{
		Name:             rec.Name,
		Description:      rec.Plot,
		AirDate:          rec.AirDate,
		Rating:           rec.Rating,
		DurationSecs:     nullInt(rec.DurationSecs),
		TmdbID:           nullString(rec.TmdbID),
		ImdbID:           nullString(rec.ImdbID),
		CustomProperties: compactJSON(rec.Info),
	}
}

func episodeFieldsFromRow(row *sqlc.VodEpisode) episodeFields {
	return episodeFields{
		Name:             row.Name,
		Description:      row.Description,
		AirDate:          row.AirDate,
		Rating:           row.Rating,
		DurationSecs:     row.DurationSecs,
		TmdbID:           row.TmdbID,
		ImdbID:           row.ImdbID,
		CustomProperties: row.CustomProperties,
	}
}

// mergeEpisodeFields overlays the non-empty incoming values on the stored row.
// A placeholder never replaces a real name.
func mergeEpisodeFields(row *sqlc.VodEpisode, in episodeFields) episodeFields {
	out := episodeFieldsFromRow(row)
	if in.Name != "" && (in.Name != EpisodeNameNull || out.Name == "") {
		out.Name = in.Name
	}
	if in.Description != "" {
		out.Description = in.Description
	}
	if in.AirDate != "" {
		out.AirDate = in.AirDate
	}
	if in.Rating != "" {
		out.Rating = in.Rating
	}
	if in.DurationSecs.Valid {
		out.DurationSecs = in.DurationSecs
	}
	if in.TmdbID.Valid {
		out.TmdbID = in.TmdbID
	}
	if in.ImdbID.Valid {
		out.ImdbID = in.ImdbID
	}
	if in.CustomProperties.Valid {
		out.CustomProperties = in.CustomProperties
	}
	return out
}

func compactJSON(raw json.RawMessage) sql.NullString {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return sql.NullString{}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: buf.String(), Valid: true}
}
