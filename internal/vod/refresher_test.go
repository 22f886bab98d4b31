package vod

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/database/sqlc"
	"github.com/vodsync/vodsync/internal/progress"
	"github.com/vodsync/vodsync/internal/rawcache"
	"github.com/vodsync/vodsync/internal/testutil"
)

// fakeProvider serves a mutable catalog over player_api.php.
type fakeProvider struct {
	mu         sync.Mutex
	movies     []map[string]interface{}
	series     []map[string]interface{}
	seriesInfo map[string]json.RawMessage
	failing    map[string]bool
	requests   map[string]int
	gate       chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		seriesInfo: make(map[string]json.RawMessage),
		failing:    make(map[string]bool),
		requests:   make(map[string]int),
	}
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	q := r.URL.Query()
	if r.URL.Path != "/player_api.php" || q.Get("username") != "user" || q.Get("password") != "pass" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	action := q.Get("action")
	p.requests[action]++

	var body interface{}
	switch action {
	case "get_vod_categories":
		body = []map[string]string{{"category_id": "10", "category_name": "Action"}}
	case "get_series_categories":
		body = []map[string]string{{"category_id": "20", "category_name": "Reality"}}
	case "get_vod_streams":
		body = p.movies
	case "get_series":
		body = p.series
	case "get_series_info":
		id := q.Get("series_id")
		if p.failing[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(p.seriesInfo[id])
		return
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (p *fakeProvider) setMovies(movies ...map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.movies = movies
}

func (p *fakeProvider) setSeries(id, name string, episodes json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	found := false
	for _, s := range p.series {
		if s["series_id"] == id {
			found = true
		}
	}
	if !found {
		p.series = append(p.series, map[string]interface{}{"series_id": id, "name": name, "category_id": "20"})
	}
	body, _ := json.Marshal(map[string]interface{}{
		"info":     map[string]string{"name": name},
		"episodes": episodes,
	})
	p.seriesInfo[id] = body
}

// hold blocks every request until the returned release func is called.
func (p *fakeProvider) hold() func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	gate := make(chan struct{})
	p.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.gate = nil
			p.mu.Unlock()
			close(gate)
		})
	}
}

func (p *fakeProvider) setFailing(id string, failing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing[id] = failing
}

type recordedBroadcast struct {
	msgType string
	payload interface{}
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []recordedBroadcast
}

func (b *fakeBroadcaster) Broadcast(msgType string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, recordedBroadcast{msgType: msgType, payload: payload})
	return nil
}

func (b *fakeBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.messages))
	for i, m := range b.messages {
		out[i] = m.msgType
	}
	return out
}

type refreshFixture struct {
	*fixture
	provider  *fakeProvider
	refresher *Refresher
	hub       *fakeBroadcaster
	accounts  *accounts.Service
	clock     time.Time
}

func newRefreshFixture(t *testing.T) *refreshFixture {
	t.Helper()

	provider := newFakeProvider()
	server := httptest.NewServer(provider)
	t.Cleanup(server.Close)

	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	account := accounts.FromRow(tdb.CreateAccount(t, "Provider A", server.URL))

	service := NewService(tdb.Conn, tdb.Logger)
	accountsSvc := accounts.NewService(tdb.Conn, tdb.Logger)
	refresher := NewRefresher(service, accountsSvc,
		config.XtreamConfig{Timeout: 5},
		config.VODConfig{BatchSize: 2, RefreshEpisodes: true, EpisodeWorkers: 2, CleanupOrphans: true},
		tdb.Logger)

	hub := &fakeBroadcaster{}
	refresher.SetBroadcaster(hub)
	refresher.SetProgressManager(progress.NewManager(hub, tdb.Logger))

	f := &refreshFixture{
		fixture:   &fixture{tdb: tdb, service: service, account: account},
		provider:  provider,
		refresher: refresher,
		hub:       hub,
		accounts:  accountsSvc,
		clock:     scan1,
	}
	refresher.now = func() time.Time { return f.clock }
	return f
}

func (f *refreshFixture) refresh(t *testing.T, at time.Time) *RefreshResult {
	t.Helper()
	f.clock = at
	result, err := f.refresher.RefreshAccount(context.Background(), f.account.ID, RefreshOptions{})
	require.NoError(t, err)
	return result
}

func movieEntry(id, name string) map[string]interface{} {
	return map[string]interface{}{
		"stream_id":           id,
		"name":                name,
		"category_id":         "10",
		"container_extension": "mp4",
	}
}

func TestRefreshAccount_FullImport(t *testing.T) {
	f := newRefreshFixture(t)
	ctx := context.Background()

	f.provider.setMovies(movieEntry("100", "Heat"), movieEntry("101", "Ronin"), movieEntry("102", "Alien"))
	f.provider.setSeries("3000", "MasterChef Junior", masterChefPayload())

	result := f.refresh(t, scan1)

	assert.Equal(t, 3, result.Movies.Created)
	assert.Equal(t, 3, result.Movies.RelationsCreated)
	assert.Equal(t, 1, result.Series.Created)
	assert.Equal(t, 1, result.SeriesRefreshed)
	assert.Equal(t, 0, result.SeriesFailed)
	assert.Equal(t, 1, result.Episodes.Created)
	assert.Equal(t, 5, result.Episodes.RelationsCreated)
	assert.True(t, result.ScanStart.Equal(scan1))

	rels, err := f.tdb.Queries.ListEpisodeRelationsByAccount(ctx, f.account.ID)
	require.NoError(t, err)
	require.Len(t, rels, 5)
	for _, rel := range rels {
		assert.Equal(t, rels[0].EpisodeID, rel.EpisodeID)
	}

	cats, err := f.tdb.Queries.ListCategories(ctx, "movie")
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Action", cats[0].Name)

	account, err := f.accounts.Get(ctx, f.account.ID)
	require.NoError(t, err)
	require.NotNil(t, account.LastRefreshedAt)
	assert.True(t, account.LastRefreshedAt.Equal(scan1))

	assert.Contains(t, f.hub.types(), "vod:refreshed")
	assert.False(t, f.refresher.IsRefreshing(f.account.ID))
}

func TestRefreshAccount_RemovesStaleEntries(t *testing.T) {
	f := newRefreshFixture(t)
	ctx := context.Background()

	f.provider.setMovies(movieEntry("100", "Heat"), movieEntry("101", "Ronin"))
	f.provider.setSeries("3000", "MasterChef Junior", masterChefPayload())
	f.refresh(t, scan1)

	// The provider drops one movie and one variant of the episode.
	f.provider.setMovies(movieEntry("100", "Heat"))
	var eps []map[string]interface{}
	for id := 78025; id <= 78028; id++ {
		eps = append(eps, masterChefEpisode(id))
	}
	f.provider.setSeries("3000", "MasterChef Junior", seasonMap("9", eps...))

	result := f.refresh(t, scan2)

	require.NotNil(t, result.Stale)
	assert.Equal(t, int64(1), result.Stale.Movies)
	require.NotNil(t, result.Orphans)
	assert.Equal(t, int64(1), result.Orphans.Movies)
	assert.Equal(t, 4, result.Episodes.RelationsUpdated)

	count, err := f.tdb.Queries.CountMovies(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	rels, err := f.tdb.Queries.ListEpisodeRelationsByAccount(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 4)
	for _, rel := range rels {
		assert.NotEqual(t, "78029", rel.StreamID)
	}
}

func TestRefreshAccount_DroppedSeriesIsCleanedUp(t *testing.T) {
	f := newRefreshFixture(t)
	ctx := context.Background()

	f.provider.setSeries("3000", "MasterChef Junior", masterChefPayload())
	f.provider.setSeries("3001", "Dark", seasonMap("1", map[string]interface{}{"id": "1", "episode_num": 1, "title": "Secrets"}))
	f.refresh(t, scan1)

	f.provider.mu.Lock()
	f.provider.series = f.provider.series[:1]
	f.provider.mu.Unlock()

	result := f.refresh(t, scan2)
	assert.Equal(t, int64(1), result.Stale.Series)
	assert.Equal(t, int64(1), result.Orphans.Series)

	count, err := f.tdb.Queries.CountSeries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	total, err := f.tdb.Queries.CountEpisodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestRefreshAccount_FailedSeriesKeepsEpisodes(t *testing.T) {
	f := newRefreshFixture(t)
	ctx := context.Background()

	f.provider.setSeries("3000", "MasterChef Junior", masterChefPayload())
	f.provider.setSeries("3001", "Dark", seasonMap("1", map[string]interface{}{"id": "1", "episode_num": 1, "title": "Secrets"}))
	f.refresh(t, scan1)

	f.provider.setFailing("3001", true)
	result := f.refresh(t, scan2)

	assert.Equal(t, 1, result.SeriesRefreshed)
	assert.Equal(t, 1, result.SeriesFailed)
	assert.Equal(t, int64(0), result.Stale.Episodes)

	count, err := f.tdb.Queries.CountEpisodeRelationsByAccount(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)
}

func TestRefreshAccount_SkipsEpisodesWhenRequested(t *testing.T) {
	f := newRefreshFixture(t)

	f.provider.setSeries("3000", "MasterChef Junior", masterChefPayload())
	result, err := f.refresher.RefreshAccount(context.Background(), f.account.ID, RefreshOptions{SkipEpisodes: true, SkipMovies: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Series.Created)
	assert.Equal(t, 0, result.SeriesRefreshed)

	f.provider.mu.Lock()
	defer f.provider.mu.Unlock()
	assert.Zero(t, f.provider.requests["get_series_info"])
	assert.Zero(t, f.provider.requests["get_vod_streams"])
}

func TestRefreshAccount_RejectsConcurrentRun(t *testing.T) {
	f := newRefreshFixture(t)

	require.True(t, f.refresher.begin(f.account.ID, "held"))
	assert.True(t, f.refresher.IsRefreshing(f.account.ID))

	_, err := f.refresher.RefreshAccount(context.Background(), f.account.ID, RefreshOptions{})
	assert.ErrorIs(t, err, ErrRefreshRunning)

	f.refresher.end(f.account.ID)
	assert.False(t, f.refresher.IsRefreshing(f.account.ID))
}

func TestRefreshAccount_RejectsNonXtreamAccount(t *testing.T) {
	f := newRefreshFixture(t)

	row, err := f.tdb.Queries.CreateAccount(context.Background(), sqlc.CreateAccountParams{
		Name:                 "Playlist",
		AccountType:          "STD",
		ServerUrl:            "http://playlist.example/list.m3u",
		IsActive:             1,
		RefreshIntervalHours: 24,
	})
	require.NoError(t, err)

	_, err = f.refresher.RefreshAccount(context.Background(), row.ID, RefreshOptions{})
	assert.ErrorIs(t, err, ErrNotXtream)

	_, err = f.refresher.RefreshAccount(context.Background(), 9999, RefreshOptions{})
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestRefreshSeriesEpisodes(t *testing.T) {
	f := newRefreshFixture(t)
	ctx := context.Background()

	store, err := rawcache.Open(filepath.Join(t.TempDir(), "raw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	f.refresher.SetRawCache(store)

	f.provider.setSeries("3000", "MasterChef Junior", masterChefPayload())
	_, err = f.refresher.RefreshAccount(ctx, f.account.ID, RefreshOptions{SkipEpisodes: true})
	require.NoError(t, err)

	rels, err := f.tdb.Queries.ListSeriesRelationsByAccount(ctx, f.account.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)

	f.clock = scan2
	result, err := f.refresher.RefreshSeriesEpisodes(ctx, f.account.ID, rels[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 5, result.RelationsCreated)

	entry, err := store.GetSeriesInfo(f.account.ID, "3000")
	require.NoError(t, err)
	assert.Contains(t, string(entry.Body), "78025")

	rel, err := f.tdb.Queries.GetSeriesRelation(ctx, rels[0].ID)
	require.NoError(t, err)
	require.True(t, rel.LastEpisodeRefreshAt.Valid)
	assert.True(t, rel.LastEpisodeRefreshAt.Time.Equal(scan2))

	assert.Contains(t, f.hub.types(), "vod:series-refreshed")

	_, err = f.refresher.RefreshSeriesEpisodes(ctx, f.account.ID, 9999)
	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

type refreshOutcome struct {
	accountID    int64
	seriesFailed int
	err          error
}

type recordingReporter struct {
	mu       sync.Mutex
	outcomes []refreshOutcome
}

func (r *recordingReporter) RefreshSucceeded(accountID int64, _ string, seriesFailed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, refreshOutcome{accountID: accountID, seriesFailed: seriesFailed})
}

func (r *recordingReporter) RefreshFailed(accountID int64, _ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, refreshOutcome{accountID: accountID, err: err})
}

func TestRefreshAccount_ReportsOutcome(t *testing.T) {
	f := newRefreshFixture(t)
	ctx := context.Background()
	reporter := &recordingReporter{}
	f.refresher.SetRefreshReporter(reporter)

	f.provider.setSeries("3000", "MasterChef Junior", masterChefPayload())
	f.provider.setSeries("3001", "Dark", seasonMap("1", map[string]interface{}{"id": "1", "episode_num": 1, "title": "Secrets"}))
	f.provider.setFailing("3001", true)
	f.refresh(t, scan1)

	wrong := "wrong"
	_, err := f.accounts.Update(ctx, f.account.ID, accounts.UpdateAccountInput{Password: &wrong})
	require.NoError(t, err)
	_, err = f.refresher.RefreshAccount(ctx, f.account.ID, RefreshOptions{})
	require.Error(t, err)

	// Rejected runs are not outcomes.
	require.True(t, f.refresher.begin(f.account.ID, "held"))
	_, err = f.refresher.RefreshAccount(ctx, f.account.ID, RefreshOptions{})
	require.ErrorIs(t, err, ErrRefreshRunning)
	f.refresher.end(f.account.ID)

	require.Len(t, reporter.outcomes, 2)
	assert.Equal(t, f.account.ID, reporter.outcomes[0].accountID)
	assert.Equal(t, 1, reporter.outcomes[0].seriesFailed)
	assert.NoError(t, reporter.outcomes[0].err)
	assert.Error(t, reporter.outcomes[1].err)
}
