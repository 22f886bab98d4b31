package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/xtream"
)

var (
	ErrItemNotFound    = errors.New("health item not found")
	ErrInvalidCategory = errors.New("invalid health category")
)

// AccountSource lists the provider accounts to check.
type AccountSource interface {
	List(ctx context.Context) ([]*accounts.Account, error)
	Get(ctx context.Context, id int64) (*accounts.Account, error)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ToolChecker reports whether an external binary can be used.
type ToolChecker interface {
	IsAvailable() bool
}

// Checker actively tests tracked items and records the outcome.
type Checker struct {
	health   *Service
	accounts AccountSource
	xtream   config.XtreamConfig
	logger   zerolog.Logger

	db          Pinger
	dataDir     string
	rawCacheDir string
	ffprobe     ToolChecker
}

// NewChecker creates a checker that records into health.
func NewChecker(health *Service, accts AccountSource, xcfg config.XtreamConfig, logger zerolog.Logger) *Checker {
	return &Checker{
		health:   health,
		accounts: accts,
		xtream:   xcfg,
		logger:   logger.With().Str("component", "health-check").Logger(),
	}
}

// SetDatabase enables the database and data directory checks.
func (c *Checker) SetDatabase(db Pinger, dataDir string) {
	c.db = db
	c.dataDir = dataDir
	c.health.RegisterItem(CategoryStorage, ItemDatabase, "Database")
	c.health.RegisterItem(CategoryStorage, ItemDataDir, "Data directory")
}

// SetRawCacheDir enables the raw cache directory check.
func (c *Checker) SetRawCacheDir(dir string) {
	c.rawCacheDir = dir
	c.health.RegisterItem(CategoryStorage, ItemRawCache, "Raw payload cache")
}

// SetProbe enables the ffprobe check.
func (c *Checker) SetProbe(t ToolChecker) {
	c.ffprobe = t
	c.health.RegisterItem(CategoryTools, ItemFFprobe, "ffprobe")
}

// CheckAll tests every active Xtream account, storage and tools. Provider
// items of accounts that no longer exist are dropped.
func (c *Checker) CheckAll(ctx context.Context) error {
	accts, err := c.accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	known := make(map[string]bool, len(accts))
	var failed int
	for _, acct := range accts {
		if err := ctx.Err(); err != nil {
			return err
		}
		known[ProviderID(acct.ID)] = true
		if !acct.IsActive || !acct.IsXtream() {
			continue
		}
		if ok, _ := c.checkProvider(ctx, acct); !ok {
			failed++
		}
	}
	for _, item := range c.health.GetByCategory(CategoryProviders) {
		if !known[item.ID] {
			c.health.UnregisterItem(CategoryProviders, item.ID)
		}
	}

	for _, item := range c.health.GetByCategory(CategoryStorage) {
		if ok, _ := c.checkStorage(ctx, item.ID); !ok {
			failed++
		}
	}
	if c.ffprobe != nil {
		if ok, _ := c.checkFFprobe(); !ok {
			failed++
		}
	}

	c.logger.Debug().Int("accounts", len(accts)).Int("failed", failed).Msg("Health check finished")
	return nil
}

// Test checks one item and returns whether it is healthy with a message.
func (c *Checker) Test(ctx context.Context, category HealthCategory, id string) (bool, string, error) {
	switch category {
	case CategoryProviders:
		accountID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return false, "", ErrItemNotFound
		}
		acct, err := c.accounts.Get(ctx, accountID)
		if errors.Is(err, accounts.ErrAccountNotFound) {
			return false, "", ErrItemNotFound
		}
		if err != nil {
			return false, "", err
		}
		if !acct.IsXtream() {
			return false, "only Xtream accounts can be tested", nil
		}
		ok, msg := c.checkProvider(ctx, acct)
		return ok, msg, nil

	case CategoryStorage:
		if c.health.GetItem(CategoryStorage, id) == nil {
			return false, "", ErrItemNotFound
		}
		ok, msg := c.checkStorage(ctx, id)
		return ok, msg, nil

	case CategoryTools:
		if id != ItemFFprobe || c.ffprobe == nil {
			return false, "", ErrItemNotFound
		}
		ok, msg := c.checkFFprobe()
		return ok, msg, nil

	default:
		return false, "", ErrInvalidCategory
	}
}

func (c *Checker) checkProvider(ctx context.Context, acct *accounts.Account) (bool, string) {
	id := ProviderID(acct.ID)
	c.health.RegisterItem(CategoryProviders, id, acct.Name)

	client := xtream.NewClient(c.xtream, xtream.Credentials{
		ServerURL: acct.ServerURL,
		Username:  acct.Username,
		Password:  acct.Password,
		UserAgent: acct.UserAgent,
	}, c.logger)

	info, err := client.Authenticate(ctx)
	if err != nil {
		c.health.SetError(CategoryProviders, id, err.Error())
		return false, err.Error()
	}

	if status := info.UserInfo.Status; status != "" && !strings.EqualFold(status, "active") {
		msg := "account status is " + status
		c.health.SetWarning(CategoryProviders, id, msg)
		return false, msg
	}

	c.health.ClearStatus(CategoryProviders, id)
	return true, "Credentials verified"
}

func (c *Checker) checkStorage(ctx context.Context, id string) (bool, string) {
	var (
		ok  = true
		msg string
	)
	switch id {
	case ItemDatabase:
		if c.db == nil {
			return true, ""
		}
		if err := c.db.PingContext(ctx); err != nil {
			ok, msg = false, err.Error()
		}
	case ItemDataDir:
		if err := checkDir("data directory", c.dataDir); err != nil {
			ok, msg = false, err.Error()
		}
	case ItemRawCache:
		if err := checkDir("raw cache directory", c.rawCacheDir); err != nil {
			ok, msg = false, err.Error()
		}
	default:
		return false, "unknown storage item"
	}

	if !ok {
		c.health.SetError(CategoryStorage, id, msg)
		return false, msg
	}
	c.health.ClearStatus(CategoryStorage, id)
	return true, "Storage is accessible"
}

func (c *Checker) checkFFprobe() (bool, string) {
	if !c.ffprobe.IsAvailable() {
		msg := "ffprobe not found; stream comparison is disabled"
		c.health.SetError(CategoryTools, ItemFFprobe, msg)
		return false, msg
	}
	c.health.ClearStatus(CategoryTools, ItemFFprobe)
	return true, "ffprobe is available"
}

// checkDir verifies that dir exists and accepts new files by creating and
// removing a scratch file. Errors name the directory by label and path.
func checkDir(label, dir string) error {
	if dir == "" {
		return fmt.Errorf("%s is not configured", label)
	}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%s %s does not exist", label, dir)
	case os.IsPermission(err):
		return fmt.Errorf("%s %s: permission denied", label, dir)
	case err != nil:
		return fmt.Errorf("%s %s: %w", label, dir, err)
	case !info.IsDir():
		return fmt.Errorf("%s %s is not a directory", label, dir)
	}

	scratch := filepath.Join(dir, ".vodsync-health-"+uuid.NewString()[:8])
	if err := os.WriteFile(scratch, []byte("ok"), 0o600); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%s %s is read-only", label, dir)
		}
		return fmt.Errorf("%s %s is not writable: %w", label, dir, err)
	}
	if err := os.Remove(scratch); err != nil {
		return fmt.Errorf("%s %s: cannot remove scratch file: %w", label, dir, err)
	}
	return nil
}
