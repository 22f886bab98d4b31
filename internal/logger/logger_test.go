package logger

import (
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

type recordingHub struct {
	types []string
}

func (h *recordingHub) Broadcast(msgType string, _ interface{}) error {
	h.types = append(h.types, msgType)
	return nil
}

func TestRingBuffer_Overwrite(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}

	if rb.Len() != 3 {
		t.Errorf("Len() = %d, want 3", rb.Len())
	}
	if got := rb.GetAll(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("GetAll() = %v, want [3 4 5]", got)
	}
}

func TestLogBroadcaster_Write(t *testing.T) {
	hub := &recordingHub{}
	b := NewLogBroadcaster(hub, 10)

	log := zerolog.New(b)
	log.Warn().Str("component", "vod").Str("streamId", "78025").Msg("placeholder name used")

	entries := b.GetRecentLogs()
	if len(entries) != 1 {
		t.Fatalf("GetRecentLogs() returned %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Level != "warn" || e.Component != "vod" || e.Message != "placeholder name used" {
		t.Errorf("entry = %s/%s/%q, want warn/vod/%q", e.Level, e.Component, e.Message, "placeholder name used")
	}
	if e.Fields["streamId"] != "78025" {
		t.Errorf("Fields[streamId] = %v, want 78025", e.Fields["streamId"])
	}
	if !reflect.DeepEqual(hub.types, []string{"logs:entry"}) {
		t.Errorf("broadcast types = %v, want [logs:entry]", hub.types)
	}
}

func TestLogBroadcaster_IgnoresGarbage(t *testing.T) {
	b := NewLogBroadcaster(nil, 10)

	n, err := b.Write([]byte("not json"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len("not json") {
		t.Errorf("Write() = %d, want %d", n, len("not json"))
	}
	if logs := b.GetRecentLogs(); len(logs) != 0 {
		t.Errorf("GetRecentLogs() = %v, want empty", logs)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
