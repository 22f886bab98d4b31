package vod

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/database/sqlc"
	"github.com/vodsync/vodsync/internal/progress"
	"github.com/vodsync/vodsync/internal/rawcache"
	"github.com/vodsync/vodsync/internal/xtream"
)

const (
	defaultBatchSize      = 500
	defaultEpisodeWorkers = 4
)

// Broadcaster sends a typed message to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// RefreshReporter receives the outcome of every account refresh.
type RefreshReporter interface {
	RefreshSucceeded(accountID int64, accountName string, seriesFailed int)
	RefreshFailed(accountID int64, accountName string, err error)
}

// RefreshOptions narrows an account refresh.
type RefreshOptions struct {
	SkipMovies   bool `json:"skipMovies"`
	SkipSeries   bool `json:"skipSeries"`
	SkipEpisodes bool `json:"skipEpisodes"`
}

// RefreshResult summarises one account refresh.
type RefreshResult struct {
	AccountID       int64         `json:"accountId"`
	AccountName     string        `json:"accountName"`
	ScanStart       time.Time     `json:"scanStart"`
	Duration        string        `json:"duration"`
	Movies          BatchResult   `json:"movies"`
	Series          BatchResult   `json:"series"`
	Episodes        BatchResult   `json:"episodes"`
	SeriesRefreshed int           `json:"seriesRefreshed"`
	SeriesFailed    int           `json:"seriesFailed"`
	Stale           *StaleResult  `json:"stale,omitempty"`
	Orphans         *OrphanResult `json:"orphans,omitempty"`
}

// Refresher pulls an account's catalog from its provider into the database.
type Refresher struct {
	service  *Service
	accounts *accounts.Service
	xtream   config.XtreamConfig
	cfg      config.VODConfig
	logger   zerolog.Logger

	progress *progress.Manager
	hub      Broadcaster
	cache    *rawcache.Store
	reporter RefreshReporter

	now func() time.Time

	mu     sync.Mutex
	active map[int64]string // accountID -> activityID
}

// NewRefresher creates a refresher.
func NewRefresher(service *Service, accountsSvc *accounts.Service, xcfg config.XtreamConfig, cfg config.VODConfig, logger zerolog.Logger) *Refresher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.EpisodeWorkers <= 0 {
		cfg.EpisodeWorkers = defaultEpisodeWorkers
	}
	return &Refresher{
		service:  service,
		accounts: accountsSvc,
		xtream:   xcfg,
		cfg:      cfg,
		logger:   logger.With().Str("component", "vod-refresh").Logger(),
		now:      time.Now,
		active:   make(map[int64]string),
	}
}

// SetProgressManager enables activity tracking.
func (r *Refresher) SetProgressManager(m *progress.Manager) {
	r.progress = m
}

// SetBroadcaster enables vod:* events.
func (r *Refresher) SetBroadcaster(hub Broadcaster) {
	r.hub = hub
}

// SetRawCache stores every fetched get_series_info payload in store.
func (r *Refresher) SetRawCache(store *rawcache.Store) {
	r.cache = store
}

// SetRefreshReporter receives the outcome of every account refresh.
func (r *Refresher) SetRefreshReporter(reporter RefreshReporter) {
	r.reporter = reporter
}

// IsRefreshing reports whether a refresh is running for the account.
func (r *Refresher) IsRefreshing(accountID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[accountID]
	return ok
}

func (r *Refresher) begin(accountID int64, activityID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[accountID]; ok {
		return false
	}
	r.active[accountID] = activityID
	return true
}

func (r *Refresher) end(accountID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, accountID)
}

// RefreshAccount imports the full VOD catalog of one account.
//
// Relations not seen during this run are removed for every kind that was fully
// listed. Catalog rows left without relations are removed when orphan cleanup
// is enabled.
func (r *Refresher) RefreshAccount(ctx context.Context, accountID int64, opts RefreshOptions) (*RefreshResult, error) {
	account, activityID, err := r.claim(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, account, activityID, opts)
}

// StartRefresh claims the account and runs its refresh in the background.
// Claim errors are returned before anything starts. The returned id names
// the progress activity.
func (r *Refresher) StartRefresh(ctx context.Context, accountID int64, opts RefreshOptions) (string, error) {
	account, activityID, err := r.claim(ctx, accountID)
	if err != nil {
		return "", err
	}
	go func() {
		if _, err := r.run(context.Background(), account, activityID, opts); err != nil {
			r.logger.Error().Err(err).Int64("accountId", account.ID).Msg("Background refresh failed")
		}
	}()
	return activityID, nil
}

// claim loads the account and takes its refresh slot. The caller must run
// the refresh, which releases the slot.
func (r *Refresher) claim(ctx context.Context, accountID int64) (*accounts.Account, string, error) {
	account, err := r.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, "", err
	}
	if !account.IsXtream() {
		return nil, "", ErrNotXtream
	}

	activityID := fmt.Sprintf("refresh-%d-%d", accountID, time.Now().UnixNano())
	if !r.begin(accountID, activityID) {
		return nil, "", ErrRefreshRunning
	}
	return account, activityID, nil
}

func (r *Refresher) run(ctx context.Context, account *accounts.Account, activityID string, opts RefreshOptions) (result *RefreshResult, err error) {
	defer r.end(account.ID)
	defer func() { r.report(account, result, err) }()

	scanStart := r.scanStart()
	started := time.Now()
	result = &RefreshResult{AccountID: account.ID, AccountName: account.Name, ScanStart: scanStart}

	tracker := r.startActivity(activityID, progress.ActivityTypeRefresh, "Refreshing "+account.Name)
	tracker.SetMetadata("accountId", account.ID)

	log := r.logger.With().Int64("accountId", account.ID).Str("account", account.Name).Logger()
	log.Info().Msg("Starting account refresh")

	client := r.client(account)
	kinds := staleKinds{}

	if !opts.SkipMovies {
		tracker.Update("Fetching movies", 5)
		if err := r.refreshMovies(ctx, client, account, scanStart, result, tracker); err != nil {
			tracker.Fail(err)
			return nil, err
		}
		kinds.movies = true
	}

	if !opts.SkipSeries {
		tracker.Update("Fetching series", 30)
		if err := r.refreshSeries(ctx, client, account, scanStart, result, tracker); err != nil {
			tracker.Fail(err)
			return nil, err
		}
		kinds.series = true

		if r.cfg.RefreshEpisodes && !opts.SkipEpisodes {
			if err := r.refreshAllEpisodes(ctx, client, account, scanStart, result, tracker); err != nil {
				tracker.Fail(err)
				return nil, err
			}
			kinds.episodes = result.SeriesFailed == 0
		}
	}

	tracker.Update("Removing stale entries", 95)
	stale, err := r.service.deleteStaleRelations(ctx, account.ID, scanStart, kinds)
	if err != nil {
		tracker.Fail(err)
		return nil, err
	}
	result.Stale = stale

	if r.cfg.CleanupOrphans {
		orphans, err := r.service.CleanupOrphans(ctx)
		if err != nil {
			tracker.Fail(err)
			return nil, err
		}
		result.Orphans = orphans
	}

	if err := r.accounts.MarkRefreshed(ctx, account.ID, scanStart); err != nil {
		log.Warn().Err(err).Msg("Failed to stamp refresh time")
	}

	result.Duration = time.Since(started).Round(time.Millisecond).String()
	tracker.Complete(fmt.Sprintf("%d movies, %d series, %d episodes",
		result.Movies.RelationsCreated+result.Movies.RelationsUpdated,
		result.Series.RelationsCreated+result.Series.RelationsUpdated,
		result.Episodes.RelationsCreated+result.Episodes.RelationsUpdated))
	r.broadcast("vod:refreshed", result)

	log.Info().
		Int("moviesCreated", result.Movies.Created).
		Int("seriesCreated", result.Series.Created).
		Int("episodesCreated", result.Episodes.Created).
		Int("seriesFailed", result.SeriesFailed).
		Int64("staleEpisodeRelations", stale.Episodes).
		Str("duration", result.Duration).
		Msg("Account refresh completed")

	return result, nil
}

// RefreshSeriesEpisodes re-imports the episodes of one series relation.
func (r *Refresher) RefreshSeriesEpisodes(ctx context.Context, accountID, seriesRelationID int64) (*BatchResult, error) {
	account, err := r.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsXtream() {
		return nil, ErrNotXtream
	}

	rel, err := r.service.queries.GetSeriesRelation(ctx, seriesRelationID)
	if err != nil || rel.AccountID != accountID {
		return nil, ErrSeriesNotFound
	}

	activityID := fmt.Sprintf("episodes-%d-%d", seriesRelationID, time.Now().UnixNano())
	if !r.begin(accountID, activityID) {
		return nil, ErrRefreshRunning
	}
	defer r.end(accountID)

	tracker := r.startActivity(activityID, progress.ActivityTypeEpisodeRefresh, "Refreshing episodes")
	tracker.SetMetadata("seriesId", rel.SeriesID)

	result, err := r.refreshSeriesRelation(ctx, r.client(account), account, rel, r.scanStart())
	if err != nil {
		tracker.Fail(err)
		return nil, err
	}
	tracker.Complete(fmt.Sprintf("%d episodes, %d streams", result.Created+result.Updated, result.RelationsCreated+result.RelationsUpdated))
	r.broadcast("vod:series-refreshed", map[string]interface{}{"accountId": accountID, "seriesId": rel.SeriesID})
	return result, nil
}

func (r *Refresher) refreshMovies(ctx context.Context, client *xtream.Client, account *accounts.Account, scanStart time.Time, result *RefreshResult, tracker *progress.Tracker) error {
	cats, err := client.GetVODCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch movie categories: %w", err)
	}
	categories, err := r.upsertCategories(ctx, cats, "movie")
	if err != nil {
		return err
	}

	streams, err := client.GetVODStreams(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch movie streams: %w", err)
	}
	tracker.SetMetadata("movieStreams", len(streams))

	for start := 0; start < len(streams); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(streams))
		batch, err := r.service.BatchProcessMovies(ctx, account, streams[start:end], categories, scanStart)
		if err != nil {
			return err
		}
		result.Movies.Add(batch)
		tracker.Update(fmt.Sprintf("Movies %d/%d", end, len(streams)), progress.Percent(end, len(streams), 5, 30))
	}
	return nil
}

func (r *Refresher) refreshSeries(ctx context.Context, client *xtream.Client, account *accounts.Account, scanStart time.Time, result *RefreshResult, tracker *progress.Tracker) error {
	cats, err := client.GetSeriesCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch series categories: %w", err)
	}
	categories, err := r.upsertCategories(ctx, cats, "series")
	if err != nil {
		return err
	}

	entries, err := client.GetSeries(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch series: %w", err)
	}
	tracker.SetMetadata("series", len(entries))

	for start := 0; start < len(entries); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(entries))
		batch, err := r.service.BatchProcessSeries(ctx, account, entries[start:end], categories, scanStart)
		if err != nil {
			return err
		}
		result.Series.Add(batch)
		tracker.Update(fmt.Sprintf("Series %d/%d", end, len(entries)), progress.Percent(end, len(entries), 30, 45))
	}
	return nil
}

// refreshAllEpisodes fetches get_series_info for every series listed in this
// scan. A failing series is logged and counted; only cancellation aborts.
func (r *Refresher) refreshAllEpisodes(ctx context.Context, client *xtream.Client, account *accounts.Account, scanStart time.Time, result *RefreshResult, tracker *progress.Tracker) error {
	rels, err := r.service.queries.ListSeriesRelationsByAccount(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("failed to list series relations: %w", err)
	}
	current := rels[:0]
	for _, rel := range rels {
		if !rel.LastSeenAt.Before(scanStart) {
			current = append(current, rel)
		}
	}

	var (
		mu     sync.Mutex
		done   atomic.Int64
		failed int
	)
	total := len(current)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.EpisodeWorkers)
	for _, rel := range current {
		g.Go(func() error {
			batch, err := r.refreshSeriesRelation(gctx, client, account, rel, scanStart)
			n := int(done.Add(1))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn().Err(err).
					Int64("accountId", account.ID).
					Str("seriesId", rel.ExternalSeriesID).
					Msg("Failed to refresh series episodes")
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			result.Episodes.Add(batch)
			result.SeriesRefreshed++
			mu.Unlock()
			tracker.Update(fmt.Sprintf("Episodes %d/%d series", n, total), progress.Percent(n, total, 45, 95))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("episode refresh interrupted: %w", err)
	}
	result.SeriesFailed = failed
	return nil
}

func (r *Refresher) refreshSeriesRelation(ctx context.Context, client *xtream.Client, account *accounts.Account, rel *sqlc.M3uSeriesRelation, scanStart time.Time) (*BatchResult, error) {
	body, err := client.GetSeriesInfoRaw(ctx, rel.ExternalSeriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series %s: %w", rel.ExternalSeriesID, err)
	}
	if r.cache != nil {
		if err := r.cache.PutSeriesInfo(account.ID, rel.ExternalSeriesID, body); err != nil {
			r.logger.Warn().Err(err).Str("seriesId", rel.ExternalSeriesID).Msg("Failed to cache series payload")
		}
	}

	info, err := xtream.ParseSeriesInfo(body)
	if err != nil {
		return nil, err
	}

	result, err := r.service.BatchProcessEpisodes(ctx, account, rel.SeriesID, info.Episodes, scanStart)
	if err != nil {
		return nil, err
	}

	// The provider answered, so whatever it no longer lists for this series is gone.
	removed, err := r.service.queries.DeleteStaleEpisodeRelationsForSeries(ctx, sqlc.DeleteStaleEpisodeRelationsForSeriesParams{
		AccountID: account.ID,
		Before:    scanStart,
		SeriesID:  rel.SeriesID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete stale episode relations: %w", err)
	}
	if removed > 0 {
		r.logger.Debug().Int64("removed", removed).Str("seriesId", rel.ExternalSeriesID).Msg("Removed stale episode relations")
	}

	err = r.service.queries.TouchSeriesEpisodeRefresh(ctx, sqlc.TouchSeriesEpisodeRefreshParams{
		LastEpisodeRefreshAt: sqlNullTime(scanStart),
		ID:                   rel.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stamp series refresh: %w", err)
	}
	return result, nil
}

func (r *Refresher) upsertCategories(ctx context.Context, cats []xtream.Category, categoryType string) (map[string]int64, error) {
	out := make(map[string]int64, len(cats))
	for _, cat := range cats {
		id := string(cat.CategoryID)
		if id == "" || cat.CategoryName == "" {
			continue
		}
		catID, err := r.service.queries.UpsertCategory(ctx, sqlc.UpsertCategoryParams{Name: string(cat.CategoryName), CategoryType: categoryType})
		if err != nil {
			return nil, fmt.Errorf("failed to upsert %s category %q: %w", categoryType, cat.CategoryName, err)
		}
		out[id] = catID
	}
	return out, nil
}

func (r *Refresher) client(account *accounts.Account) *xtream.Client {
	return xtream.NewClient(r.xtream, xtream.Credentials{
		ServerURL: account.ServerURL,
		Username:  account.Username,
		Password:  account.Password,
		UserAgent: account.UserAgent,
	}, r.logger)
}

// scanStart is stored with millisecond precision so stale comparisons in SQL
// never see a relation written in this scan as older than the scan itself.
func (r *Refresher) scanStart() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

func (r *Refresher) startActivity(id string, activityType progress.ActivityType, title string) *progress.Tracker {
	if r.progress == nil {
		return nil
	}
	return r.progress.Start(id, activityType, title)
}

func (r *Refresher) report(account *accounts.Account, result *RefreshResult, err error) {
	if r.reporter == nil || errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		r.reporter.RefreshFailed(account.ID, account.Name, err)
		return
	}
	r.reporter.RefreshSucceeded(account.ID, account.Name, result.SeriesFailed)
}

func (r *Refresher) broadcast(msgType string, payload interface{}) {
	if r.hub == nil {
		return
	}
	if err := r.hub.Broadcast(msgType, payload); err != nil {
		r.logger.Debug().Err(err).Str("type", msgType).Msg("Broadcast failed")
	}
}
