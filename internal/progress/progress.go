// Package progress tracks long running catalog jobs (account refreshes,
// cleanups, stream comparisons) and broadcasts their state to WebSocket clients.
package progress

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ActivityType identifies the type of activity being tracked.
type ActivityType string

const (
	ActivityTypeRefresh        ActivityType = "account-refresh"
	ActivityTypeEpisodeRefresh ActivityType = "episode-refresh"
	ActivityTypeCleanup        ActivityType = "orphan-cleanup"
	ActivityTypeCompare        ActivityType = "stream-compare"
	ActivityTypeAnalysis       ActivityType = "provider-analysis"
)

// Status represents the current state of an activity.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Activity is a snapshot of one tracked job.
type Activity struct {
	ID          string                 `json:"id"`
	Type        ActivityType           `json:"type"`
	Title       string                 `json:"title"`
	Subtitle    string                 `json:"subtitle"`
	Progress    int                    `json:"progress"` // 0-100, -1 for indeterminate
	Status      Status                 `json:"status"`
	StartedAt   time.Time              `json:"startedAt"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

func (a *Activity) clone() *Activity {
	c := *a
	c.Metadata = make(map[string]interface{}, len(a.Metadata))
	for k, v := range a.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

// EventType identifies the type of progress event.
type EventType string

const (
	EventTypeStarted   EventType = "progress:started"
	EventTypeUpdate    EventType = "progress:update"
	EventTypeCompleted EventType = "progress:completed"
	EventTypeError     EventType = "progress:error"
	EventTypeCancelled EventType = "progress:cancelled"
)

// Broadcaster sends a typed message to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Manager tracks and broadcasts progress for all activities.
type Manager struct {
	hub        Broadcaster
	activities map[string]*Activity
	mu         sync.RWMutex
	logger     zerolog.Logger

	// finished activities stay visible this long
	retention time.Duration
}

// NewManager creates a new progress manager. hub may be nil.
func NewManager(hub Broadcaster, logger zerolog.Logger) *Manager {
	return &Manager{
		hub:        hub,
		activities: make(map[string]*Activity),
		logger:     logger.With().Str("component", "progress").Logger(),
		retention:  10 * time.Second,
	}
}

// Start creates and starts tracking a new activity.
func (m *Manager) Start(id string, activityType ActivityType, title string) *Tracker {
	m.mu.Lock()
	activity := &Activity{
		ID:        id,
		Type:      activityType,
		Title:     title,
		Subtitle:  "Starting...",
		Status:    StatusInProgress,
		StartedAt: time.Now().UTC(),
		Metadata:  make(map[string]interface{}),
	}
	m.activities[id] = activity
	m.broadcastLocked(EventTypeStarted, activity)
	m.mu.Unlock()

	m.logger.Debug().Str("id", id).Str("type", string(activityType)).Str("title", title).Msg("Activity started")
	return &Tracker{manager: m, id: id}
}

func (m *Manager) update(id string, fn func(a *Activity)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, exists := m.activities[id]
	if !exists || activity.Status != StatusInProgress {
		return
	}
	fn(activity)
	m.broadcastLocked(EventTypeUpdate, activity)
}

func (m *Manager) finish(id string, status Status, subtitle string) {
	m.mu.Lock()
	activity, exists := m.activities[id]
	if !exists || activity.Status != StatusInProgress {
		m.mu.Unlock()
		return
	}

	now := time.Now().UTC()
	activity.Status = status
	activity.Subtitle = subtitle
	activity.CompletedAt = &now

	event := EventTypeCompleted
	switch status {
	case StatusCompleted:
		activity.Progress = 100
	case StatusFailed:
		event = EventTypeError
		activity.Metadata["error"] = subtitle
	case StatusCancelled:
		event = EventTypeCancelled
	}
	m.broadcastLocked(event, activity)
	m.mu.Unlock()

	m.logger.Debug().Str("id", id).Str("status", string(status)).Str("subtitle", subtitle).Msg("Activity finished")

	time.AfterFunc(m.retention, func() {
		m.mu.Lock()
		if a, ok := m.activities[id]; ok && a.Status != StatusInProgress {
			delete(m.activities, id)
		}
		m.mu.Unlock()
	})
}

// Get returns a snapshot of an activity, or nil.
func (m *Manager) Get(id string) *Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.activities[id]; ok {
		return a.clone()
	}
	return nil
}

// List returns snapshots of every tracked activity, oldest first.
func (m *Manager) List() []*Activity {
	m.mu.RLock()
	result := make([]*Activity, 0, len(m.activities))
	for _, a := range m.activities {
		result = append(result, a.clone())
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.Before(result[j].StartedAt) })
	return result
}

func (m *Manager) broadcastLocked(eventType EventType, activity *Activity) {
	if m.hub == nil {
		return
	}
	if err := m.hub.Broadcast(string(eventType), activity.clone()); err != nil {
		m.logger.Debug().Err(err).Str("event", string(eventType)).Msg("Failed to broadcast progress")
	}
}

// Tracker reports on one activity. A nil Tracker is a no-op.
type Tracker struct {
	manager *Manager
	id      string
}

// ID returns the activity's ID.
func (t *Tracker) ID() string {
	if t == nil {
		return ""
	}
	return t.id
}

// Update sets the subtitle and percentage.
func (t *Tracker) Update(subtitle string, percent int) {
	if t == nil {
		return
	}
	t.manager.update(t.id, func(a *Activity) {
		a.Subtitle = subtitle
		a.Progress = percent
	})
}

// SetMetadata records a key on the activity.
func (t *Tracker) SetMetadata(key string, value interface{}) {
	if t == nil {
		return
	}
	t.manager.update(t.id, func(a *Activity) {
		a.Metadata[key] = value
	})
}

// Complete marks the activity as completed.
func (t *Tracker) Complete(subtitle string) {
	if t == nil {
		return
	}
	t.manager.finish(t.id, StatusCompleted, subtitle)
}

// Fail marks the activity as failed.
func (t *Tracker) Fail(err error) {
	if t == nil {
		return
	}
	t.manager.finish(t.id, StatusFailed, err.Error())
}

// Cancel marks the activity as cancelled.
func (t *Tracker) Cancel() {
	if t == nil {
		return
	}
	t.manager.finish(t.id, StatusCancelled, "Cancelled")
}

// Percent maps done of total onto 0-100 within the [from, to] band.
func Percent(done, total, from, to int) int {
	if total <= 0 {
		return from
	}
	if done > total {
		done = total
	}
	return from + (to-from)*done/total
}
