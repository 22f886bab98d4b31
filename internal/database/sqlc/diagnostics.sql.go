package sqlc

import (
	"context"
	"time"
)

const listDuplicateEpisodeGroups = `SELECT e.series_id, s.name, e.season_number, e.episode_number, COUNT(*) AS cnt
FROM vod_episodes e
JOIN vod_series s ON s.id = e.series_id
GROUP BY e.series_id, e.season_number, e.episode_number
HAVING COUNT(*) > 1
ORDER BY cnt DESC, e.series_id
LIMIT ?`

type DuplicateEpisodeGroupRow struct {
	SeriesID      int64  `json:"series_id"`
	SeriesName    string `json:"series_name"`
	SeasonNumber  int64  `json:"season_number"`
	EpisodeNumber int64  `json:"episode_number"`
	Count         int64  `json:"count"`
}

func (q *Queries) ListDuplicateEpisodeGroups(ctx context.Context, limit int64) ([]*DuplicateEpisodeGroupRow, error) {
	rows, err := q.db.QueryContext(ctx, listDuplicateEpisodeGroups, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*DuplicateEpisodeGroupRow{}
	for rows.Next() {
		var i DuplicateEpisodeGroupRow
		if err := rows.Scan(&i.SeriesID, &i.SeriesName, &i.SeasonNumber, &i.EpisodeNumber, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, &i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listMultiStreamEpisodes = `SELECT r.episode_id, e.uuid, e.name, s.name, e.season_number, e.episode_number,
       r.account_id, a.name, COUNT(*) AS cnt
FROM m3u_episode_relations r
JOIN vod_episodes e ON e.id = r.episode_id
JOIN vod_series s ON s.id = e.series_id
JOIN m3u_accounts a ON a.id = r.account_id
GROUP BY r.episode_id, r.account_id
HAVING COUNT(*) > 1
ORDER BY cnt DESC, r.episode_id
LIMIT ?`

type MultiStreamEpisodeRow struct {
	EpisodeID     int64  `json:"episode_id"`
	EpisodeUuid   string `json:"episode_uuid"`
	EpisodeName   string `json:"episode_name"`
	SeriesName    string `json:"series_name"`
	SeasonNumber  int64  `json:"season_number"`
	EpisodeNumber int64  `json:"episode_number"`
	AccountID     int64  `json:"account_id"`
	AccountName   string `json:"account_name"`
	StreamCount   int64  `json:"stream_count"`
}

func (q *Queries) ListMultiStreamEpisodes(ctx context.Context, limit int64) ([]*MultiStreamEpisodeRow, error) {
	rows, err := q.db.QueryContext(ctx, listMultiStreamEpisodes, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*MultiStreamEpisodeRow{}
	for rows.Next() {
		var i MultiStreamEpisodeRow
		if err := rows.Scan(
			&i.EpisodeID,
			&i.EpisodeUuid,
			&i.EpisodeName,
			&i.SeriesName,
			&i.SeasonNumber,
			&i.EpisodeNumber,
			&i.AccountID,
			&i.AccountName,
			&i.StreamCount,
		); err != nil {
			return nil, err
		}
		items = append(items, &i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listEpisodeStreams = `SELECT r.id, r.account_id, a.name, a.account_type, a.server_url, a.username, a.password,
       r.stream_id, r.container_extension, r.last_seen_at
FROM m3u_episode_relations r
JOIN m3u_accounts a ON a.id = r.account_id
WHERE r.episode_id = ?
ORDER BY r.account_id, r.stream_id`

type EpisodeStreamRow struct {
	RelationID         int64     `json:"relation_id"`
	AccountID          int64     `json:"account_id"`
	AccountName        string    `json:"account_name"`
	AccountType        string    `json:"account_type"`
	ServerUrl          string    `json:"server_url"`
	Username           string    `json:"username"`
	Password           string    `json:"-"`
	StreamID           string    `json:"stream_id"`
	ContainerExtension string    `json:"container_extension"`
	LastSeenAt         time.Time `json:"last_seen_at"`
}

func (q *Queries) ListEpisodeStreams(ctx context.Context, episodeID int64) ([]*EpisodeStreamRow, error) {
	rows, err := q.db.QueryContext(ctx, listEpisodeStreams, episodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*EpisodeStreamRow{}
	for rows.Next() {
		var i EpisodeStreamRow
		if err := rows.Scan(
			&i.RelationID,
			&i.AccountID,
			&i.AccountName,
			&i.AccountType,
			&i.ServerUrl,
			&i.Username,
			&i.Password,
			&i.StreamID,
			&i.ContainerExtension,
			&i.LastSeenAt,
		); err != nil {
			return nil, err
		}
		items = append(items, &i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listEpisodeRelationPairs = `SELECT episode_id, stream_id FROM m3u_episode_relations
WHERE account_id = ? ORDER BY episode_id, stream_id`

type EpisodeRelationPairRow struct {
	EpisodeID int64  `json:"episode_id"`
	StreamID  string `json:"stream_id"`
}

func (q *Queries) ListEpisodeRelationPairs(ctx context.Context, accountID int64) ([]*EpisodeRelationPairRow, error) {
	rows, err := q.db.QueryContext(ctx, listEpisodeRelationPairs, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*EpisodeRelationPairRow{}
	for rows.Next() {
		var i EpisodeRelationPairRow
		if err := rows.Scan(&i.EpisodeID, &i.StreamID); err != nil {
			return nil, err
		}
		items = append(items, &i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countMultiRelationEpisodes = `SELECT COUNT(*) FROM (
    SELECT episode_id FROM m3u_episode_relations
    WHERE account_id = ?
    GROUP BY episode_id
    HAVING COUNT(*) > 1
)`

func (q *Queries) CountMultiRelationEpisodes(ctx context.Context, accountID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countMultiRelationEpisodes, accountID).Scan(&count)
	return count, err
}

const countDistinctRelatedEpisodes = `SELECT COUNT(DISTINCT episode_id) FROM m3u_episode_relations WHERE account_id = ?`

func (q *Queries) CountDistinctRelatedEpisodes(ctx context.Context, accountID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countDistinctRelatedEpisodes, accountID).Scan(&count)
	return count, err
}

const countEpisodes = `SELECT COUNT(*) FROM vod_episodes`

func (q *Queries) CountEpisodes(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countEpisodes).Scan(&count)
	return count, err
}
