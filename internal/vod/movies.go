package vod

import (
	"context"
	"database/sql"
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

type movieFields struct {
	Name             string
	Description      string
	Year             sql.NullInt64
	Rating           string
	Genre            string
	TmdbID           sql.NullString
	LogoUrl          string
	CustomProperties sql.NullString
}

type pendingMovie struct {
	fields   movieFields
	existing *sqlc.VodMovie
	changed  bool
	id       int64
}

type pendingMovieRelation struct {
	movie  *pendingMovie
	stream *xtream.VODStream
}

// BatchProcessMovies imports one batch of get_vod_streams entries.
// categories maps provider category ids to catalog category ids.
func (s *Service) BatchProcessMovies(ctx context.Context, account *accounts.Account, streams []xtream.VODStream, categories map[string]int64, scanStart time.Time) (*BatchResult, error) {
	result := &BatchResult{}
	if len(streams) == 0 {
		return result, nil
	}

	log := s.logger.With().Int64("accountId", account.ID).Str("account", account.Name).Logger()

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		q := s.queries.WithTx(tx)

		index := newBatchIndex()
		var order []*pendingMovie
		var relations []pendingMovieRelation
		seenStreams := make(map[string]bool, len(streams))

		for i := range streams {
			stream := &streams[i]
			streamID := string(stream.StreamID)
			if streamID == "" {
				result.Skipped++
				result.warn("skipping movie without a stream id")
				log.Warn().Msg("Skipping movie without a stream id")
				continue
			}
			if seenStreams[streamID] {
				result.Skipped++
				continue
			}
			seenStreams[streamID] = true

			fields, placeholder := movieFieldsFromStream(stream)
			if placeholder {
				msg := fmt.Sprintf("movie stream %s of account %q has no name, using %s", streamID, account.Name, MovieNameNull)
				log.Warn().Str("streamId", streamID).Msg(msg)
				result.warn(msg)
			}

			nameKey := nameYearKey(fields.Name, fields.Year, placeholder)
			pos, ok := index.match(fields.TmdbID, nameKey)
			if !ok {
				existing, err := s.findExistingMovie(ctx, q, account.ID, streamID, fields, placeholder)
				if err != nil {
					return err
				}
				if existing != nil {
					pos, ok = index.matchRow(existing.ID)
				}
				if !ok {
					p := &pendingMovie{fields: fields}
					if existing != nil {
						p.existing = existing
						p.id = existing.ID
						p.fields = mergeMovieFields(existing, fields)
						p.changed = p.fields != movieFieldsFromRow(existing)
					}
					order = append(order, p)
					pos = len(order) - 1
				}
			}
			p := order[pos]
			p.absorb(fields)
			index.add(pos, fields.TmdbID, nameKey, p.id)
			relations = append(relations, pendingMovieRelation{movie: p, stream: stream})
		}

		for _, p := range order {
			switch {
			case p.existing == nil:
				row, err := q.CreateMovie(ctx, sqlc.CreateMovieParams{
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
					return fmt.Errorf("failed to create movie %q: %w", p.fields.Name, err)
				}
				p.id = row.ID
				result.Created++
			case p.changed:
				err := q.UpdateMovie(ctx, sqlc.UpdateMovieParams{
					Name:             p.fields.Name,
					Description:      p.fields.Description,
					Year:             p.fields.Year,
					Rating:           p.fields.Rating,
					Genre:            p.fields.Genre,
					DurationSecs:     p.existing.DurationSecs,
					TmdbID:           p.fields.TmdbID,
					ImdbID:           p.existing.ImdbID,
					LogoUrl:          p.fields.LogoUrl,
					CustomProperties: p.fields.CustomProperties,
					ID:               p.existing.ID,
				})
				if err != nil {
					return fmt.Errorf("failed to update movie %d: %w", p.existing.ID, err)
				}
				result.Updated++
			}
		}

		for _, rel := range relations {
			if rel.movie.id == 0 {
				return fmt.Errorf("movie %q has no id after insert", rel.movie.fields.Name)
			}
			created, err := upsertMovieRelation(ctx, q, account.ID, rel.movie.id, rel.stream, categories, scanStart)
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
		return nil, fmt.Errorf("failed to process movies: %w", err)
	}

	log.Debug().
		Int("streams", len(streams)).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("relationsCreated", result.RelationsCreated).
		Msg("Processed movie batch")

	return result, nil
}

// findExistingMovie resolves a provider movie against the catalog by TMDB id,
// then the account's own relation for the stream, then (name, year).
func (s *Service) findExistingMovie(ctx context.Context, q *sqlc.Queries, accountID int64, streamID string, fields movieFields, placeholder bool) (*sqlc.VodMovie, error) {
	if fields.TmdbID.Valid {
		row, err := q.GetMovieByTmdbID(ctx, fields.TmdbID)
		if err == nil {
			return row, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to look up movie by tmdb id: %w", err)
		}
	}

	rel, err := q.GetMovieRelationByStream(ctx, sqlc.GetMovieRelationByStreamParams{AccountID: accountID, StreamID: streamID})
	if err == nil {
		row, err := q.GetMovie(ctx, rel.MovieID)
		if err == nil && (placeholder || strings.EqualFold(row.Name, fields.Name)) {
			return row, nil
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to load related movie: %w", err)
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up movie relation: %w", err)
	}

	if placeholder {
		return nil, nil
	}
	row, err := q.GetMovieByNameYear(ctx, sqlc.GetMovieByNameYearParams{Name: fields.Name, Year: fields.Year})
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up movie by name: %w", err)
	}
	return nil, nil
}

func upsertMovieRelation(ctx context.Context, q *sqlc.Queries, accountID, movieID int64, stream *xtream.VODStream, categories map[string]int64, seenAt time.Time) (bool, error) {
	streamID := string(stream.StreamID)
	ext := strings.TrimPrefix(string(stream.ContainerExtension), ".")
	category := categoryRef(categories, string(stream.CategoryID))

	existing, err := q.GetMovieRelationByStream(ctx, sqlc.GetMovieRelationByStreamParams{AccountID: accountID, StreamID: streamID})
	if errors.Is(err, sql.ErrNoRows) {
		err = q.CreateMovieRelation(ctx, sqlc.CreateMovieRelationParams{
			AccountID:          accountID,
			MovieID:            movieID,
			CategoryID:         category,
			StreamID:           streamID,
			ContainerExtension: ext,
			LastSeenAt:         seenAt,
		})
		if err != nil {
			return false, fmt.Errorf("failed to create relation for movie stream %s: %w", streamID, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up relation for movie stream %s: %w", streamID, err)
	}

	err = q.UpdateMovieRelation(ctx, sqlc.UpdateMovieRelationParams{
		MovieID:            movieID,
		CategoryID:         category,
		ContainerExtension: ext,
		CustomProperties:   existing.CustomProperties,
		LastSeenAt:         seenAt,
		ID:                 existing.ID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to update relation for movie stream %s: %w", streamID, err)
	}
	return false, nil
}

func movieFieldsFromStream(stream *xtream.VODStream) (movieFields, bool) {
	name, placeholder := resolveName(string(stream.Name), MovieNameNull)
	year := parseYear(string(stream.Year))
	if !year.Valid && !placeholder {
		if r := rls.ParseString(name); r.Year > 0 {
			year = sql.NullInt64{Int64: int64(r.Year), Valid: true}
		}
	}
	return movieFields{
		Name:        name,
		Description: string(stream.Plot),
		Year:        year,
		Rating:      strings.TrimSpace(string(stream.Rating)),
		Genre:       string(stream.Genre),
		TmdbID:      nullString(cleanExternalID(string(stream.TmdbID))),
		LogoUrl:     string(stream.StreamIcon),
	}, placeholder
}

func movieFieldsFromRow(row *sqlc.VodMovie) movieFields {
	return movieFields{
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

func mergeMovieFields(row *sqlc.VodMovie, in movieFields) movieFields {
	out := movieFieldsFromRow(row)
	if in.Name != "" && (in.Name != MovieNameNull || out.Name == "") {
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

// absorb fills fields the pending movie still lacks from another stream of
// the same title.
func (p *pendingMovie) absorb(in movieFields) {
	out := fillMovieFields(p.fields, in)
	if out == p.fields {
		return
	}
	p.fields = out
	if p.existing != nil {
		p.changed = p.fields != movieFieldsFromRow(p.existing)
	}
}

func fillMovieFields(dst, in movieFields) movieFields {
	if (dst.Name == "" || dst.Name == MovieNameNull) && in.Name != "" && in.Name != MovieNameNull {
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

func parseYear(s string) sql.NullInt64 {
	v := xtream.ParseFlexInt(s)
	if !v.Valid || v.Value < 1870 || v.Value > 2200 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v.Value, Valid: true}
}

func categoryRef(categories map[string]int64, providerID string) sql.NullInt64 {
	if id, ok := categories[providerID]; ok && providerID != "" {
		return sql.NullInt64{Int64: id, Valid: true}
	}
	return sql.NullInt64{}
}
