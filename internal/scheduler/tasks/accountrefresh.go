package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/scheduler"
	"github.com/vodsync/vodsync/internal/vod"
)

const AccountRefreshTaskID = "account-refresh"

// DueAccountLister lists accounts whose refresh interval has elapsed.
type DueAccountLister interface {
	ListDueForRefresh(ctx context.Context, now time.Time) ([]*accounts.Account, error)
}

// AccountRefresher refreshes the catalog of one account.
type AccountRefresher interface {
	RefreshAccount(ctx context.Context, accountID int64, opts vod.RefreshOptions) (*vod.RefreshResult, error)
}

// AccountRefreshTask refreshes every account that is due, one after another.
type AccountRefreshTask struct {
	accounts  DueAccountLister
	refresher AccountRefresher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAccountRefreshTask creates a new account refresh task.
func NewAccountRefreshTask(lister DueAccountLister, refresher AccountRefresher, logger zerolog.Logger) *AccountRefreshTask {
	return &AccountRefreshTask{
		accounts:  lister,
		refresher: refresher,
		logger:    logger.With().Str("task", AccountRefreshTaskID).Logger(),
		now:       time.Now,
	}
}

// Run refreshes due accounts. Accounts with a refresh already in progress are
// skipped. The last refresh error is returned after all accounts were tried.
func (t *AccountRefreshTask) Run(ctx context.Context) error {
	due, err := t.accounts.ListDueForRefresh(ctx, t.now().UTC())
	if err != nil {
		return err
	}
	if len(due) == 0 {
		t.logger.Debug().Msg("No accounts due for refresh")
		return nil
	}

	t.logger.Info().Int("accounts", len(due)).Msg("Refreshing due accounts")

	var lastErr error
	refreshed := 0
	for _, account := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !account.IsXtream() {
			continue
		}

		_, err := t.refresher.RefreshAccount(ctx, account.ID, vod.RefreshOptions{})
		switch {
		case errors.Is(err, vod.ErrRefreshRunning):
			t.logger.Info().Int64("accountId", account.ID).Msg("Refresh already running, skipping")
		case err != nil:
			t.logger.Warn().Err(err).Int64("accountId", account.ID).Str("account", account.Name).Msg("Account refresh failed")
			lastErr = err
		default:
			refreshed++
		}
	}

	t.logger.Info().Int("refreshed", refreshed).Int("due", len(due)).Msg("Scheduled refresh completed")
	return lastErr
}

// RegisterAccountRefreshTask registers the account refresh task with the scheduler.
func RegisterAccountRefreshTask(sched *scheduler.Scheduler, task *AccountRefreshTask, cron string, runOnStart bool) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          AccountRefreshTaskID,
		Name:        "Account Refresh",
		Description: "Imports the VOD catalog of every account whose refresh interval has elapsed",
		Cron:        cron,
		RunOnStart:  runOnStart,
		Func:        task.Run,
	})
}
