package logger

import (
	"encoding/json"
	"sync"
)

// Broadcaster is the interface for broadcasting messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// LogEntry is one decoded zerolog line.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LogBroadcaster is an io.Writer that keeps recent entries and forwards them to a hub.
type LogBroadcaster struct {
	buffer *RingBuffer[LogEntry]
	mu     sync.RWMutex
	hub    Broadcaster
}

// NewLogBroadcaster creates a broadcaster; hub may be nil and set later.
func NewLogBroadcaster(hub Broadcaster, bufferSize int) *LogBroadcaster {
	return &LogBroadcaster{
		buffer: NewRingBuffer[LogEntry](bufferSize),
		hub:    hub,
	}
}

// SetHub sets the broadcaster hub for sending messages.
func (b *LogBroadcaster) SetHub(hub Broadcaster) {
	b.mu.Lock()
	b.hub = hub
	b.mu.Unlock()
}

// Write implements io.Writer. Lines that are not JSON objects are dropped.
func (b *LogBroadcaster) Write(p []byte) (int, error) {
	entry, ok := decodeEntry(p)
	if !ok {
		return len(p), nil
	}

	b.buffer.Push(entry)

	b.mu.RLock()
	hub := b.hub
	b.mu.RUnlock()
	if hub != nil {
		_ = hub.Broadcast("logs:entry", entry)
	}

	return len(p), nil
}

// GetRecentLogs returns all buffered log entries.
func (b *LogBroadcaster) GetRecentLogs() []LogEntry {
	return b.buffer.GetAll()
}

func decodeEntry(data []byte) (LogEntry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, false
	}

	take := func(key string) string {
		v, _ := raw[key].(string)
		delete(raw, key)
		return v
	}

	entry := LogEntry{
		Timestamp: take("time"),
		Level:     take("level"),
		Component: take("component"),
		Message:   take("message"),
	}
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, true
}
