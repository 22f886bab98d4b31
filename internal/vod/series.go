package vod

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moistari/rls"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/database"
	"github.com/vodsync/vodsync/internal/database/sqlc"
	"github.com/vodsync/vodsync/internal/xtream"
)

type seriesFields struct {
	Name             string
	Description      string
	Year             sql.NullInt64
	Rating           string
	Genre            string
	TmdbID           sql.NullString
	LogoUrl          string
	CustomProperties sql.NullString
}

type pendingSeries struct {
	fields   seriesFields
	existing *sqlc.VodSeries
	changed  bool
	id       int64
}

type pendingSeriesRelation struct {
	series *pendingSeries
	entry  *xtream.Series
}

// BatchProcessSeries imports one batch of get_series entries. Episodes are
// fetched separately per series relation.
func (s *Service) BatchProcessSeries(ctx context.Context, account *accounts.Account, entries []xtream.Series, categories map[string]int64, scanStart time.Time) (*BatchResult, error) {
	result := &BatchResult{}
	if len(entries) == 0 {
		return result, nil
	}

	log := s.logger.With().Int64("accountId", account.ID).Str("account", account.Name).Logger()

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		q := s.queries.WithTx(tx)

		index := newBatchIndex()
		var order []*pendingSeries
		var relations []pendingSeriesRelation
		seen := make(map[string]bool, len(entries))

		for i := range entries {
			entry := &entries[i]
			externalID := string(entry.SeriesID)
			if externalID == "" {
				result.Skipped++
				result.warn("skipping series without a series id")
				log.Warn().Msg("Skipping series without a series id")
				continue
			}
			if seen[externalID] {
				result.Skipped++
				continue
			}
			seen[externalID] = true

			fields, placeholder := seriesFieldsFromEntry(entry)
			if placeholder {
				msg := fmt.Sprintf("series %s of account %q has no name, using %s", externalID, account.Name, SeriesNameNull)
				log.Warn().Str("seriesId", externalID).Msg(msg)
				result.warn(msg)
			}

			nameKey := nameYearKey(fields.Name, fields.Year, placeholder)
			pos, ok := index.match(fields.TmdbID, nameKey)
			if !ok {
				existing, err := s.findExistingSeries(ctx, q, account.ID, externalID, fields, placeholder)
				if err != nil {
					return err
				}
				if existing != nil {
					pos, ok = index.matchRow(existing.ID)
				}
				if !ok {
					p := &pendingSeries{fields: fields}
					if existing != nil {
						p.existing = existing
						p.id = existing.ID
						p.fields = mergeSeriesFields(existing, fields)
						p.changed = p.fields != seriesFieldsFromRow(existing)
					}
					order = append(order, p)
					pos = len(order) - 1
				}
			}
			p := order[pos]
			p.absorb(fields)
			index.add(pos, fields.TmdbID, nameKey, p.id)
			relations = append(relations, pendingSeriesRelation{series: p, entry: entry})
		}

		for _, p := range order {
			switch {
			case p.existing == nil:
				row, err := q.CreateSeries(ctx, sqlc.CreateSeriesParams{
					Uuid:             uuid.NewString(),
					Name:             p.fields.Name,
					Description:      p.fields.Description,
					Year:             p.fields.Year,
					Rating:           p.fields.Rating,
					Genre:            p.fields.Genre,
					TmdbID:           p.fields.TmdbID,
					LogoUrl:          p.fields.LogoUrl,
					CustomProperties: p.fields.CustomProperties,
				})
				if err != nil {
					return fmt.Errorf("failed to create series %q: %w", p.fields.Name, err)
				}
				p.id = row.ID
				result.Created++
			case p.changed:
				err := q.UpdateSeries(ctx, sqlc.UpdateSeriesParams{
					Name:             p.fields.Name,
					Description:      p.fields.Description,
					Year:             p.fields.Year,
					Rating:           p.fields.Rating,
					Genre:            p.fields.Genre,
					TmdbID:           p.fields.TmdbID,
					ImdbID:           p.existing.ImdbID,
					LogoUrl:          p.fields.LogoUrl,
					CustomProperties: p.fields.CustomProperties,
					ID:               p.existing.ID,
				})
				if err != nil {
					return fmt.Errorf("failed to update series %d: %w", p.existing.ID, err)
				}
				result.Updated++
			}
		}

		for _, rel := range relations {
			if rel.series.id == 0 {
				return fmt.Errorf("series %q has no id after insert", rel.series.fields.Name)
			}
			created, err := upsertSeriesRelation(ctx, q, account.ID, rel.series.id, rel.entry, categories, scanStart)
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
		return nil, fmt.Errorf("failed to process series: %w", err)
	}

	log.Debug().
		Int("entries", len(entries)).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("relationsCreated", result.RelationsCreated).
		Msg("Processed series batch")

	return result, nil
}

func (s *Service) findExistingSeries(ctx context.Context, q *sqlc.Queries, accountID int64, externalID string, fields seriesFields, placeholder bool) (*sqlc.VodSeries, error) {
	if fields.TmdbID.Valid {
		row, err := q.GetSeriesByTmdbID(ctx, fields.TmdbID)
		if err == nil {
			return row, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to look up series by tmdb id: %w", err)
		}
	}

	rel, err := q.GetSeriesRelationByExternalID(ctx, sqlc.GetSeriesRelationByExternalIDParams{AccountID: accountID, ExternalSeriesID: externalID})
	if err == nil {
		row, err := q.GetSeries(ctx, rel.SeriesID)
		if err == nil && (placeholder || strings.EqualFold(row.Name, fields.Name)) {
			return row, nil
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to load related series: %w", err)
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up series relation: %w", err)
	}

	if placeholder {
		return nil, nil
	}
	row, err := q.GetSeriesByNameYear(ctx, sqlc.GetSeriesByNameYearParams{Name: fields.Name, Year: fields.Year})
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up series by name: %w", err)
	}
	return nil, nil
}

func upsertSeriesRelation(ctx context.Context, q *sqlc.Queries, accountID, seriesID int64, entry *xtream.Series, categories map[string]int64, seenAt time.Time) (bool, error) {
	externalID := string(entry.SeriesID)
	category := categoryRef(categories, string(entry.CategoryID))
	props := seriesRelationProps(entry)

	existing, err := q.GetSeriesRelationByExternalID(ctx, sqlc.GetSeriesRelationByExternalIDParams{AccountID: accountID, ExternalSeriesID: externalID})
	if errors.Is(err, sql.ErrNoRows) {
		err = q.CreateSeriesRelation(ctx, sqlc.CreateSeriesRelationParams{
			AccountID:        accountID,
			SeriesID:         seriesID,
			CategoryID:       category,
			ExternalSeriesID: externalID,
			CustomProperties: props,
			LastSeenAt:       seenAt,
		})
		if err != nil {
			return false, fmt.Errorf("failed to create relation for series %s: %w", externalID, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up relation for series %s: %w", externalID, err)
	}

	err = q.UpdateSeriesRelation(ctx, sqlc.UpdateSeriesRelationParams{
		SeriesID:         seriesID,
		CategoryID:       category,
		CustomProperties: props,
		LastSeenAt:       seenAt,
		ID:               existing.ID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to update relation for series %s: %w", externalID, err)
	}
	return false, nil
}

func seriesRelationProps(entry *xtream.Series) sql.NullString {
	if entry.LastModified == "" {
		return sql.NullString{}
	}
	b, err := json.Marshal(map[string]string{"last_modified": string(entry.LastModified)})
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func seriesFieldsFromEntry(entry *xtream.Series) (seriesFields, bool) {
	name, placeholder := resolveName(string(entry.Name), SeriesNameNull)
	year := parseYear(string(entry.Year))
	if !year.Valid && len(entry.ReleaseDate) >= 4 {
		year = parseYear(string(entry.ReleaseDate[:4]))
	}
	if !year.Valid && !placeholder {
		if r := rls.ParseString(name); r.Year > 0 {
			year = sql.NullInt64{Int64: int64(r.Year), Valid: true}
		}
	}

	var props sql.NullString
	extra := map[string]string{}
	if v := string(entry.Cast); v != "" {
		extra["cast"] = v
	}
	if v := string(entry.Director); v != "" {
		extra["director"] = v
	}
	if v := string(entry.ReleaseDate); v != "" {
		extra["release_date"] = v
	}
	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			props = sql.NullString{String: string(b), Valid: true}
		}
	}

	return seriesFields{
		Name:             name,
		Description:      string(entry.Plot),
		Year:             year,
		Rating:           strings.TrimSpace(string(entry.Rating)),
		Genre:            string(entry.Genre),
		TmdbID:           nullString(cleanExternalID(string(entry.TmdbID))),
		LogoUrl:          string(entry.Cover),
		CustomProperties: props,
	}, placeholder
}

func seriesFieldsFromRow(row *sqlc.VodSeries) seriesFields {
	return seriesFields{
		Name:             row.Name,
		Description:      row.Description,
		Year:             row.Year,
		Rating:           row.Rating,
		Genre:            row.Genre,
		TmdbID:           row.TmdbID,
		LogoUrl:          row.LogoUrl,
		CustomProperties: row.CustomProperties,
	}
}

func mergeSeriesFields(row *sqlc.VodSeries, in seriesFields) seriesFields {
	out := seriesFieldsFromRow(row)
	if in.Name != "" && (in.Name != SeriesNameNull || out.Name == "") {
		out.Name = in.Name
	}
	if in.Description != "" {
		out.Description = in.Description
	}
	if in.Year.Valid {
		out.Year = in.Year
	}
	if in.Rating != "" {
		out.Rating = in.Rating
	}
	if in.Genre != "" {
		out.Genre = in.Genre
	}
	if in.TmdbID.Valid {
		out.TmdbID = in.TmdbID
	}
	if in.LogoUrl != "" {
		out.LogoUrl = in.LogoUrl
	}
	if in.CustomProperties.Valid {
		out.CustomProperties = in.CustomProperties
	}
	return out
}

func (p *pendingSeries) absorb(in seriesFields) {
	out := fillSeriesFields(p.fields, in)
	if out == p.fields {
		return
	}
	p.fields = out
	if p.existing != nil {
		p.changed = p.fields != seriesFieldsFromRow(p.existing)
	}
}

func fillSeriesFields(dst, in seriesFields) seriesFields {
	if (dst.Name == "" || dst.Name == SeriesNameNull) && in.Name != "" && in.Name != SeriesNameNull {
		dst.Name = in.Name
	}
	if dst.Description == "" {
		dst.Description = in.Description
	}
	if !dst.Year.Valid {
		dst.Year = in.Year
	}
	if dst.Rating == "" {
		dst.Rating = in.Rating
	}
	if dst.Genre == "" {
		dst.Genre = in.Genre
	}
	if !dst.TmdbID.Valid {
		dst.TmdbID = in.TmdbID
	}
	if dst.LogoUrl == "" {
		dst.LogoUrl = in.LogoUrl
	}
	if !dst.CustomProperties.Valid {
		dst.CustomProperties = in.CustomProperties
	}
	return dst
}
