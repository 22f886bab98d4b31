package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/database/sqlc"
	"github.com/vodsync/vodsync/internal/rawcache"
	"github.com/vodsync/vodsync/internal/testutil"
	"github.com/vodsync/vodsync/internal/vod"
)

var scanTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// seriesInfoBody lists S09E02 under stream ids 78025-78029 and S09E03 once.
func seriesInfoBody() []byte {
	var eps []map[string]interface{}
	for id := 78025; id <= 78029; id++ {
		eps = append(eps, map[string]interface{}{
			"id":          strconv.Itoa(id),
			"episode_num": 2,
			"title":       "MasterChef Junior - S09E02 - Episode 2",
		})
	}
	eps = append(eps, map[string]interface{}{"id": "78030", "episode_num": 3, "title": "Episode 3"})
	body, _ := json.Marshal(map[string]interface{}{
		"info":     map[string]string{"name": "MasterChef Junior"},
		"episodes": map[string]interface{}{"9": eps},
	})
	return body
}

type diagFixture struct {
	tdb     *testutil.TestDB
	service *Service
	account *accounts.Account
	episode *sqlc.VodEpisode
}

func newDiagFixture(t *testing.T, serverURL string) *diagFixture {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)

	account := accounts.FromRow(tdb.CreateAccount(t, "Provider A", serverURL))
	accountsSvc := accounts.NewService(tdb.Conn, tdb.Logger)
	vodSvc := vod.NewService(tdb.Conn, tdb.Logger)

	series, err := tdb.Queries.CreateSeries(context.Background(), sqlc.CreateSeriesParams{Uuid: "series-mcj", Name: "MasterChef Junior"})
	require.NoError(t, err)

	var parsed struct {
		Episodes json.RawMessage `json:"episodes"`
	}
	require.NoError(t, json.Unmarshal(seriesInfoBody(), &parsed))
	_, err = vodSvc.BatchProcessEpisodes(context.Background(), account, series.ID, parsed.Episodes, scanTime)
	require.NoError(t, err)

	episode, err := tdb.Queries.GetEpisodeByNumber(context.Background(), sqlc.GetEpisodeByNumberParams{
		SeriesID: series.ID, SeasonNumber: 9, EpisodeNumber: 2,
	})
	require.NoError(t, err)

	return &diagFixture{
		tdb:     tdb,
		service: NewService(tdb.Conn, accountsSvc, config.XtreamConfig{Timeout: 5}, tdb.Logger),
		account: account,
		episode: episode,
	}
}

func TestDuplicates_NoneAfterImport(t *testing.T) {
	f := newDiagFixture(t, "http://provider.example")

	groups, err := f.service.Duplicates(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestMultiStream(t *testing.T) {
	f := newDiagFixture(t, "http://provider.example")

	episodes, err := f.service.MultiStream(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, episodes, 1)

	ep := episodes[0]
	assert.Equal(t, f.episode.ID, ep.EpisodeID)
	assert.Equal(t, int64(5), ep.StreamCount)
	assert.Len(t, ep.Streams, 5)
	assert.Equal(t, "Provider A", ep.AccountName)
	assert.Equal(t, "MasterChef Junior", ep.SeriesName)
}

func TestRelationStats(t *testing.T) {
	f := newDiagFixture(t, "http://provider.example")

	stats, err := f.service.RelationStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)

	got := stats[0]
	assert.Equal(t, int64(6), got.Relations)
	assert.Equal(t, int64(2), got.DistinctEpisodes)
	assert.Equal(t, int64(1), got.MultiStreamEpisodes)
	assert.Equal(t, int64(5), got.MaxStreamsPerEpisode)
	assert.Equal(t, got.DistinctEpisodes, got.SQLDistinctEpisodes)
	assert.Equal(t, got.MultiStreamEpisodes, got.SQLMultiStream)
	assert.False(t, got.Mismatch)
}

func TestInspectEpisode(t *testing.T) {
	f := newDiagFixture(t, "http://provider.example")
	ctx := context.Background()

	for _, ref := range []string{strconv.FormatInt(f.episode.ID, 10), f.episode.Uuid} {
		out, err := f.service.InspectEpisode(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, f.episode.ID, out.EpisodeID)
		assert.Equal(t, "MasterChef Junior", out.SeriesName)
		assert.Len(t, out.Streams, 5)
		assert.Equal(t, 1, out.Accounts)
	}

	_, err := f.service.InspectEpisode(ctx, "99999")
	assert.ErrorIs(t, err, ErrEpisodeNotFound)
}

func TestCheckStreamIDs(t *testing.T) {
	f := newDiagFixture(t, "http://provider.example")

	out, err := f.service.CheckStreamIDs(context.Background(), []string{"78025, 78026", "424242", "78025"})
	require.NoError(t, err)

	require.Len(t, out.Found, 2)
	for _, m := range out.Found {
		assert.Equal(t, f.episode.ID, m.EpisodeID)
		assert.Equal(t, int64(2), m.EpisodeNumber)
	}
	assert.Equal(t, []string{"424242"}, out.Missing)

	_, err = f.service.CheckStreamIDs(context.Background(), []string{" , "})
	assert.ErrorIs(t, err, ErrNoStreamIDs)
}

func TestAnalyzeProvider_Live(t *testing.T) {
	var infoCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "get_series":
			fmt.Fprint(w, `[{"series_id": "3000", "name": "MasterChef Junior"}, {"series_id": "3001", "name": "Broken"}]`)
		case "get_series_info":
			infoCalls.Add(1)
			if r.URL.Query().Get("series_id") == "3001" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(seriesInfoBody())
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	f := newDiagFixture(t, server.URL)
	store, err := rawcache.Open(filepath.Join(t.TempDir(), "raw.db"))
	require.NoError(t, err)
	defer store.Close()
	f.service.SetRawCache(store)

	report, err := f.service.AnalyzeProvider(context.Background(), f.account.ID, ProviderOptions{Sample: 5})
	require.NoError(t, err)

	assert.Equal(t, SourceLive, report.Source)
	assert.Equal(t, 1, report.SeriesSampled)
	assert.Equal(t, 1, report.SeriesFailed)
	assert.Equal(t, 6, report.Records)
	require.Len(t, report.DuplicateKeys, 1)
	assert.Equal(t, "3000", report.DuplicateKeys[0].SeriesID)
	assert.Equal(t, []string{"78025", "78026", "78027", "78028", "78029"}, report.DuplicateKeys[0].StreamIDs)
	assert.Equal(t, int32(2), infoCalls.Load())

	// The live run filled the cache, so a cache run sees the same payload.
	cached, err := f.service.AnalyzeProvider(context.Background(), f.account.ID, ProviderOptions{Source: SourceCache})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, cached.Source)
	assert.Len(t, cached.DuplicateKeys, 1)
	assert.Equal(t, int32(2), infoCalls.Load())
}

func TestAnalyzeProvider_ListPayload(t *testing.T) {
	f := newDiagFixture(t, "http://provider.example")
	store, err := rawcache.Open(filepath.Join(t.TempDir(), "raw.db"))
	require.NoError(t, err)
	defer store.Close()
	f.service.SetRawCache(store)

	body := []byte(`{"episodes": [
		{"id": "1", "season": 1, "episode_num": 1},
		{"id": "2", "season": 1, "episode_num": 1},
		{"id": "3", "season": 1, "episode_num": 2}
	]}`)
	require.NoError(t, store.PutSeriesInfo(f.account.ID, "55", body))

	report, err := f.service.AnalyzeProvider(context.Background(), f.account.ID, ProviderOptions{Source: SourceCache})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ListPayloads)
	require.Len(t, report.DuplicateKeys, 1)
	assert.Equal(t, []string{"1", "2"}, report.DuplicateKeys[0].StreamIDs)
}

func TestAnalyzeProvider_CacheDisabled(t *testing.T) {
	f := newDiagFixture(t, "http://provider.example")

	_, err := f.service.AnalyzeProvider(context.Background(), f.account.ID, ProviderOptions{Source: SourceCache})
	assert.ErrorIs(t, err, ErrNoRawCache)

	_, err = f.service.AnalyzeProvider(context.Background(), 9999, ProviderOptions{})
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}
