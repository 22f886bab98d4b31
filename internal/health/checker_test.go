package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/config"
)

type stubAccounts struct {
	accounts []*accounts.Account
}

func (s *stubAccounts) List(context.Context) ([]*accounts.Account, error) {
	return s.accounts, nil
}

func (s *stubAccounts) Get(_ context.Context, id int64) (*accounts.Account, error) {
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, accounts.ErrAccountNotFound
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

type stubTool bool

func (t stubTool) IsAvailable() bool { return bool(t) }

// panelServer answers the player_api.php login call. Users map a username to
// the panel status; unknown users get auth 0.
func panelServer(t *testing.T, users map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, ok := users[r.URL.Query().Get("username")]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			fmt.Fprint(w, `{"user_info":{"auth":0}}`)
			return
		}
		fmt.Fprintf(w, `{"user_info":{"auth":1,"status":%q},"server_info":{}}`, status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func account(id int64, serverURL, username string) *accounts.Account {
	return &accounts.Account{
		ID:          id,
		Name:        fmt.Sprintf("acct-%d", id),
		AccountType: accounts.TypeXtream,
		ServerURL:   serverURL,
		Username:    username,
		Password:    "pass",
		IsActive:    true,
	}
}

func newTestChecker(accts ...*accounts.Account) (*Checker, *Service) {
	svc := NewService(zerolog.Nop())
	c := NewChecker(svc, &stubAccounts{accounts: accts}, config.XtreamConfig{Timeout: 5, MaxRetries: 1}, zerolog.Nop())
	return c, svc
}

func TestChecker_CheckAllProviders(t *testing.T) {
	srv := panelServer(t, map[string]string{"good": "Active", "expired": "Expired"})

	inactive := account(4, srv.URL, "nobody")
	inactive.IsActive = false

	c, svc := newTestChecker(
		account(1, srv.URL, "good"),
		account(2, srv.URL, "expired"),
		account(3, srv.URL, "nobody"),
		inactive,
	)
	svc.RegisterItem(CategoryProviders, "99", "deleted account")

	require.NoError(t, c.CheckAll(context.Background()))

	assert.True(t, svc.IsHealthy(CategoryProviders, "1"))

	expired := svc.GetItem(CategoryProviders, "2")
	require.NotNil(t, expired)
	assert.Equal(t, StatusWarning, expired.Status)
	assert.Contains(t, expired.Message, "Expired")

	rejected := svc.GetItem(CategoryProviders, "3")
	require.NotNil(t, rejected)
	assert.Equal(t, StatusError, rejected.Status)

	assert.Nil(t, svc.GetItem(CategoryProviders, "4"), "inactive accounts are not checked")
	assert.Nil(t, svc.GetItem(CategoryProviders, "99"), "items of deleted accounts are dropped")
}

func TestChecker_Storage(t *testing.T) {
	dir := t.TempDir()
	c, svc := newTestChecker()
	c.SetDatabase(stubPinger{}, dir)
	c.SetRawCacheDir(filepath.Join(dir, "missing"))

	require.NoError(t, c.CheckAll(context.Background()))

	assert.True(t, svc.IsHealthy(CategoryStorage, ItemDatabase))
	assert.True(t, svc.IsHealthy(CategoryStorage, ItemDataDir))

	cache := svc.GetItem(CategoryStorage, ItemRawCache)
	require.NotNil(t, cache)
	assert.Equal(t, StatusError, cache.Status)
	assert.Contains(t, cache.Message, "does not exist")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files are removed")
}

func TestChecker_DatabaseDown(t *testing.T) {
	c, svc := newTestChecker()
	c.SetDatabase(stubPinger{err: errors.New("database is locked")}, t.TempDir())

	ok, msg, err := c.Test(context.Background(), CategoryStorage, ItemDatabase)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "database is locked", msg)
	assert.Equal(t, StatusError, svc.GetItem(CategoryStorage, ItemDatabase).Status)
}

func TestChecker_FFprobe(t *testing.T) {
	c, svc := newTestChecker()
	c.SetProbe(stubTool(false))

	ok, _, err := c.Test(context.Background(), CategoryTools, ItemFFprobe)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StatusError, svc.GetItem(CategoryTools, ItemFFprobe).Status)

	c.SetProbe(stubTool(true))
	ok, _, err = c.Test(context.Background(), CategoryTools, ItemFFprobe)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, svc.IsHealthy(CategoryTools, ItemFFprobe))
}

func TestChecker_TestErrors(t *testing.T) {
	m3u := &accounts.Account{ID: 5, Name: "playlist", AccountType: accounts.TypeStandard}
	c, _ := newTestChecker(m3u)
	ctx := context.Background()

	tests := []struct {
		name     string
		category HealthCategory
		id       string
		wantErr  error
	}{
		{"unknown account", CategoryProviders, "42", ErrItemNotFound},
		{"non numeric account", CategoryProviders, "abc", ErrItemNotFound},
		{"unregistered storage", CategoryStorage, ItemRawCache, ErrItemNotFound},
		{"ffprobe not configured", CategoryTools, ItemFFprobe, ErrItemNotFound},
		{"bad category", HealthCategory("bogus"), "1", ErrInvalidCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := c.Test(ctx, tt.category, tt.id)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	ok, msg, err := c.Test(ctx, CategoryProviders, "5")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, msg, "Xtream")
}

func TestCheckDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cache.db")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		dir     string
		wantErr string
	}{
		{"writable", dir, ""},
		{"not configured", "", "raw cache directory is not configured"},
		{"missing", filepath.Join(dir, "gone"), "raw cache directory " + filepath.Join(dir, "gone") + " does not exist"},
		{"file", file, "raw cache directory " + file + " is not a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkDir("raw cache directory", tt.dir)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("checkDir() error = %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("checkDir() error = %v, want %q", err, tt.wantErr)
			}
		})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only cache.db", len(entries))
	}
}
