package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vodsync/vodsync/internal/api/middleware"
	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/logger"
	"github.com/vodsync/vodsync/internal/scheduler/tasks"
	"github.com/vodsync/vodsync/internal/testutil"
)

type testServer struct {
	*Server
	tdb *testutil.TestDB
}

func setupTestServer(t *testing.T, mutate ...func(cfg *config.Config)) (*testServer, func()) {
	t.Helper()

	tdb := testutil.NewTestDB(t)

	cfg := config.Default()
	for _, fn := range mutate {
		fn(cfg)
	}

	server, err := NewServer(tdb.DB, nil, cfg, tdb.Logger)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	cleanup := func() {
		server.scheduler.Stop()
		if server.rawCache != nil {
			server.rawCache.Close()
		}
		tdb.Close()
	}

	return &testServer{Server: server, tdb: tdb}, cleanup
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	rec := ts.do(http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Errorf("HealthCheck status = %d, want %d", rec.Code, http.StatusOK)
	}

	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if response["status"] != "ok" {
		t.Errorf("HealthCheck status = %q, want %q", response["status"], "ok")
	}
}

func TestGetStatus(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	rec := ts.do(http.MethodGet, "/api/v1/system/status", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("GetStatus status = %d, want %d", rec.Code, http.StatusOK)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	for _, field := range []string{"version", "catalog", "accounts", "schemaVersion", "ffprobeAvailable"} {
		if _, ok := response[field]; !ok {
			t.Errorf("GetStatus missing %s field", field)
		}
	}
	if response["rawCacheEnabled"] != false {
		t.Errorf("GetStatus rawCacheEnabled = %v, want false", response["rawCacheEnabled"])
	}
}

func TestAccountsAPI_Lifecycle(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	body := `{"name": "Provider A", "serverUrl": "http://provider.example/", "username": "user", "password": "pass"}`
	rec := ts.do(http.MethodPost, "/api/v1/accounts", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var created struct {
		ID          int64  `json:"id"`
		AccountType string `json:"accountType"`
		ServerURL   string `json:"serverUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if created.AccountType != "XC" {
		t.Errorf("AccountType = %q, want %q", created.AccountType, "XC")
	}
	if created.ServerURL != "http://provider.example" {
		t.Errorf("ServerURL = %q, want trailing slash trimmed", created.ServerURL)
	}

	rec = ts.do(http.MethodPost, "/api/v1/accounts", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate Create status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = ts.do(http.MethodGet, "/api/v1/accounts", "")
	var list []map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 1 {
		t.Errorf("List len = %d, want 1", len(list))
	}

	rec = ts.do(http.MethodDelete, "/api/v1/accounts/1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("Delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = ts.do(http.MethodGet, "/api/v1/accounts/1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Get after delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAccountsAPI_DeleteDropsCachedPayloads(t *testing.T) {
	ts, cleanup := setupTestServer(t, func(cfg *config.Config) {
		cfg.RawCache.Enabled = true
		cfg.RawCache.Path = filepath.Join(t.TempDir(), "raw.db")
	})
	defer cleanup()

	account := ts.tdb.CreateAccount(t, "Provider A", "http://provider.example")
	if err := ts.rawCache.PutSeriesInfo(account.ID, "3000", []byte(`{"episodes": {}}`)); err != nil {
		t.Fatalf("PutSeriesInfo() error = %v", err)
	}

	rec := ts.do(http.MethodDelete, "/api/v1/accounts/1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	n, err := ts.rawCache.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("cached payloads after delete = %d, want 0", n)
	}
}

func TestRefreshAccount_NotFound(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	rec := ts.do(http.MethodPost, "/api/v1/accounts/42/refresh?wait=true", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Refresh status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"list movies", http.MethodGet, "/api/v1/vod/movies", http.StatusOK},
		{"list series", http.MethodGet, "/api/v1/vod/series", http.StatusOK},
		{"missing movie", http.MethodGet, "/api/v1/vod/movies/unknown", http.StatusNotFound},
		{"missing episode", http.MethodGet, "/api/v1/vod/episodes/unknown/streams", http.StatusNotFound},
		{"duplicates", http.MethodGet, "/api/v1/diagnostics/duplicates", http.StatusOK},
		{"relations", http.MethodGet, "/api/v1/diagnostics/relations", http.StatusOK},
		{"streams without ids", http.MethodGet, "/api/v1/diagnostics/streams", http.StatusBadRequest},
		{"inspect missing episode", http.MethodGet, "/api/v1/diagnostics/episodes/99", http.StatusNotFound},
		{"activities", http.MethodGet, "/api/v1/system/activities", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(tt.method, tt.path, "")
			if rec.Code != tt.status {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, rec.Code, tt.status)
			}
		})
	}
}

func TestSchedulerAPI(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	rec := ts.do(http.MethodGet, "/api/v1/scheduler/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ListTasks status = %d, want %d", rec.Code, http.StatusOK)
	}
	var taskList []struct {
		ID   string `json:"id"`
		Cron string `json:"cron"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &taskList); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(taskList) != 3 {
		t.Fatalf("ListTasks len = %d, want 3", len(taskList))
	}
	if taskList[0].ID != tasks.AccountRefreshTaskID || taskList[1].ID != tasks.CatalogCleanupTaskID || taskList[2].ID != tasks.HealthCheckTaskID {
		t.Errorf("ListTasks ids = %q, %q, %q", taskList[0].ID, taskList[1].ID, taskList[2].ID)
	}
	if taskList[0].Cron != config.Default().Scheduler.RefreshCron {
		t.Errorf("refresh cron = %q, want %q", taskList[0].Cron, config.Default().Scheduler.RefreshCron)
	}

	rec = ts.do(http.MethodGet, "/api/v1/scheduler/tasks/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GetTask unknown status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = ts.do(http.MethodPost, "/api/v1/scheduler/tasks/"+tasks.CatalogCleanupTaskID+"/run", "")
	if rec.Code != http.StatusAccepted {
		t.Errorf("RunTask status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}

type stubLogs struct {
	entries []logger.LogEntry
}

func (s stubLogs) GetRecentLogs() []logger.LogEntry { return s.entries }
func (s stubLogs) GetLogFilePath() string           { return "" }

func TestSystemLogs(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	rec := ts.do(http.MethodGet, "/api/v1/system/logs", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("logs without provider = %d %q, want 200 []", rec.Code, rec.Body.String())
	}

	ts.SetLogsProvider(stubLogs{entries: []logger.LogEntry{
		{Level: "info", Component: "vod", Message: "Account refresh completed"},
		{Level: "warn", Component: "vod", Message: "episodes payload is a list instead of a season map"},
		{Level: "warn", Component: "xtream", Message: "retrying"},
	}})

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?level=warn", 2},
		{"?level=WARN&component=vod", 1},
		{"?limit=1", 1},
	}
	for _, tt := range tests {
		rec := ts.do(http.MethodGet, "/api/v1/system/logs"+tt.query, "")
		var got []logger.LogEntry
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if len(got) != tt.want {
			t.Errorf("logs%s len = %d, want %d", tt.query, len(got), tt.want)
		}
	}

	rec = ts.do(http.MethodGet, "/api/v1/system/logs/download", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("download without log file status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAPIHeaders(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	rec := ts.do(http.MethodGet, "/api/v1/vod/movies", "")

	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "no-store") {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if got := rec.Header().Get(middleware.HeaderVersion); got != config.Version {
		t.Errorf("%s = %q, want %q", middleware.HeaderVersion, got, config.Version)
	}

	rec = ts.do(http.MethodGet, "/health", "")
	if got := rec.Header().Get("Cache-Control"); got != "" {
		t.Errorf("health Cache-Control = %q, want empty", got)
	}
}

func TestCORS(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/accounts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	ts.echo.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("CORS: Missing Access-Control-Allow-Origin header")
	}
}

func TestInvalidJSON(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	rec := ts.do(http.MethodPost, "/api/v1/accounts", `{invalid json}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid JSON status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHealthAPI(t *testing.T) {
	ts, cleanup := setupTestServer(t)
	defer cleanup()

	rec := ts.do(http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GetAll status = %d, want %d", rec.Code, http.StatusOK)
	}
	var all struct {
		Storage []struct {
			ID string `json:"id"`
		} `json:"storage"`
		Tools []struct {
			ID string `json:"id"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(all.Storage) != 2 || all.Storage[0].ID != "dataDir" || all.Storage[1].ID != "database" {
		t.Errorf("storage items = %+v, want dataDir and database", all.Storage)
	}
	if len(all.Tools) != 1 || all.Tools[0].ID != "ffprobe" {
		t.Errorf("tool items = %+v, want ffprobe", all.Tools)
	}

	rec = ts.do(http.MethodPost, "/api/v1/health/storage/database/test", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Errorf("TestItem database = %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(http.MethodPost, "/api/v1/health/providers/999/test", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("TestItem unknown provider status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = ts.do(http.MethodGet, "/api/v1/health/bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GetByCategory bogus status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
