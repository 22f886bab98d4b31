package health

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	payloads []HealthUpdatePayload
}

func (b *recordingBroadcaster) Broadcast(msgType string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msgType == "health:updated" {
		b.payloads = append(b.payloads, payload.(HealthUpdatePayload))
	}
	return nil
}

func newTestService() (*Service, *recordingBroadcaster) {
	s := NewService(zerolog.Nop())
	s.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	b := &recordingBroadcaster{}
	s.SetBroadcaster(b)
	return s, b
}

func TestService_StatusTransitions(t *testing.T) {
	s, b := newTestService()

	s.RegisterItem(CategoryProviders, "1", "Provider A")
	require.True(t, s.IsHealthy(CategoryProviders, "1"))

	s.SetError(CategoryProviders, "1", "provider rejected credentials")
	item := s.GetItem(CategoryProviders, "1")
	require.NotNil(t, item)
	assert.Equal(t, StatusError, item.Status)
	assert.Equal(t, "provider rejected credentials", item.Message)
	require.NotNil(t, item.Timestamp)

	// unchanged status is not broadcast again
	s.SetError(CategoryProviders, "1", "provider rejected credentials")

	s.ClearStatus(CategoryProviders, "1")
	item = s.GetItem(CategoryProviders, "1")
	assert.Equal(t, StatusOK, item.Status)
	assert.Nil(t, item.Timestamp)

	require.Len(t, b.payloads, 3)
	assert.Equal(t, StatusOK, b.payloads[0].Status)
	assert.Equal(t, StatusError, b.payloads[1].Status)
	assert.Equal(t, StatusOK, b.payloads[2].Status)
}

func TestService_RegisterKeepsStatus(t *testing.T) {
	s, _ := newTestService()

	s.RegisterItem(CategoryProviders, "1", "Provider A")
	s.SetError(CategoryProviders, "1", "down")
	s.RegisterItem(CategoryProviders, "1", "Provider A renamed")

	item := s.GetItem(CategoryProviders, "1")
	assert.Equal(t, StatusError, item.Status)
	assert.Equal(t, "Provider A renamed", item.Name)
}

func TestService_BinaryCategoryIgnoresWarning(t *testing.T) {
	s, _ := newTestService()

	s.RegisterItem(CategoryTools, ItemFFprobe, "ffprobe")
	s.SetWarning(CategoryTools, ItemFFprobe, "slow")
	assert.True(t, s.IsHealthy(CategoryTools, ItemFFprobe))

	s.RegisterItem(CategoryProviders, "1", "Provider A")
	s.SetWarning(CategoryProviders, "1", "expiring")
	assert.Equal(t, StatusWarning, s.GetItem(CategoryProviders, "1").Status)
}

func TestService_UnregisteredItemIsIgnored(t *testing.T) {
	s, b := newTestService()

	s.SetError(CategoryStorage, ItemDatabase, "locked")
	assert.Nil(t, s.GetItem(CategoryStorage, ItemDatabase))
	assert.Empty(t, b.payloads)
}

func TestService_Summary(t *testing.T) {
	s, _ := newTestService()

	s.RegisterItem(CategoryProviders, "1", "A")
	s.RegisterItem(CategoryProviders, "2", "B")
	s.RegisterItem(CategoryStorage, ItemDatabase, "Database")
	s.SetWarning(CategoryProviders, "2", "expiring")

	summary := s.GetSummary()
	require.Len(t, summary.Categories, len(AllCategories()))
	assert.True(t, summary.HasIssues)

	providers := summary.Categories[0]
	assert.Equal(t, CategoryProviders, providers.Category)
	assert.Equal(t, 1, providers.OK)
	assert.Equal(t, 1, providers.Warning)
	assert.Equal(t, 2, providers.Total())
	assert.False(t, summary.Categories[1].HasIssues())
}

func TestService_ProvidersOrderedByID(t *testing.T) {
	s, _ := newTestService()

	for _, id := range []string{"10", "2", "1"} {
		s.RegisterItem(CategoryProviders, id, "acct "+id)
	}

	items := s.GetAll().Providers
	require.Len(t, items, 3)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "2", items[1].ID)
	assert.Equal(t, "10", items[2].ID)
}

func TestService_RefreshOutcomes(t *testing.T) {
	s, _ := newTestService()

	s.RefreshFailed(7, "Provider A", errors.New("provider server error: status 502"))
	item := s.GetItem(CategoryProviders, "7")
	require.NotNil(t, item)
	assert.Equal(t, StatusError, item.Status)
	assert.Equal(t, "Provider A", item.Name)

	s.RefreshSucceeded(7, "Provider A", 3)
	item = s.GetItem(CategoryProviders, "7")
	assert.Equal(t, StatusWarning, item.Status)
	assert.Equal(t, "3 series failed to refresh", item.Message)

	s.RefreshSucceeded(7, "Provider A", 0)
	assert.True(t, s.IsHealthy(CategoryProviders, "7"))

	s.RemoveProvider(7)
	assert.Nil(t, s.GetItem(CategoryProviders, "7"))
}

func TestHealthItem_MarshalJSONHidesOKDetails(t *testing.T) {
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	ok, err := HealthItem{ID: "1", Status: StatusOK, Message: "stale", Timestamp: &ts}.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(ok), "timestamp")
	assert.NotContains(t, string(ok), "stale")

	bad, err := HealthItem{ID: "1", Status: StatusError, Message: "down", Timestamp: &ts}.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(bad), `"message":"down"`)
	assert.Contains(t, string(bad), "timestamp")
}
