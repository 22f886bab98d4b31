package main

import (
	"bytes"
	"context"
	"reflect"
	"testing"

	"github.com/vodsync/vodsync/internal/diagnostics"
)

type stubDiagnostics struct {
	calls     []string
	limit     int
	ref       string
	ids       []string
	accountID int64
	opts      diagnostics.ProviderOptions
}

func (s *stubDiagnostics) Duplicates(_ context.Context, limit int) ([]*diagnostics.DuplicateGroup, error) {
	s.calls = append(s.calls, "duplicates")
	s.limit = limit
	return nil, nil
}

func (s *stubDiagnostics) MultiStream(_ context.Context, limit int) ([]*diagnostics.MultiStreamEpisode, error) {
	s.calls = append(s.calls, "multistream")
	s.limit = limit
	return nil, nil
}

func (s *stubDiagnostics) RelationStats(context.Context) ([]*diagnostics.RelationStats, error) {
	s.calls = append(s.calls, "relations")
	return nil, nil
}

func (s *stubDiagnostics) InspectEpisode(_ context.Context, ref string) (*diagnostics.EpisodeInspection, error) {
	s.calls = append(s.calls, "episode")
	s.ref = ref
	return &diagnostics.EpisodeInspection{}, nil
}

func (s *stubDiagnostics) CheckStreamIDs(_ context.Context, ids []string) (*diagnostics.StreamCheck, error) {
	s.calls = append(s.calls, "streams")
	s.ids = ids
	return &diagnostics.StreamCheck{}, nil
}

func (s *stubDiagnostics) AnalyzeProvider(_ context.Context, accountID int64, opts diagnostics.ProviderOptions) (*diagnostics.ProviderReport, error) {
	s.calls = append(s.calls, "provider")
	s.accountID = accountID
	s.opts = opts
	return &diagnostics.ProviderReport{AccountID: accountID}, nil
}

func TestRun_Dispatch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		command string
		args    []string
		limit   int
		wantErr bool
		check   func(t *testing.T, svc *stubDiagnostics)
	}{
		{
			name: "duplicates passes limit", command: "duplicates", limit: 7,
			check: func(t *testing.T, svc *stubDiagnostics) {
				if !reflect.DeepEqual(svc.calls, []string{"duplicates"}) || svc.limit != 7 {
					t.Errorf("calls = %v limit = %d, want [duplicates] 7", svc.calls, svc.limit)
				}
			},
		},
		{name: "episode without ref", command: "episode", wantErr: true},
		{
			name: "episode", command: "episode", args: []string{"42"},
			check: func(t *testing.T, svc *stubDiagnostics) {
				if svc.ref != "42" {
					t.Errorf("ref = %q, want 42", svc.ref)
				}
			},
		},
		{name: "streams without ids", command: "streams", wantErr: true},
		{
			name: "streams", command: "streams", args: []string{"100", "101"},
			check: func(t *testing.T, svc *stubDiagnostics) {
				if !reflect.DeepEqual(svc.ids, []string{"100", "101"}) {
					t.Errorf("ids = %v, want [100 101]", svc.ids)
				}
			},
		},
		{
			name: "provider defaults", command: "provider", args: []string{"3"},
			check: func(t *testing.T, svc *stubDiagnostics) {
				if svc.accountID != 3 || svc.opts.Sample != 20 || svc.opts.Source != diagnostics.SourceLive {
					t.Errorf("provider call = %d %+v, want 3 sample 20 live", svc.accountID, svc.opts)
				}
			},
		},
		{
			name: "provider flags", command: "provider", args: []string{"-sample", "5", "-source", "cache", "9"},
			check: func(t *testing.T, svc *stubDiagnostics) {
				if svc.accountID != 9 || svc.opts.Sample != 5 || svc.opts.Source != diagnostics.SourceCache {
					t.Errorf("provider call = %d %+v, want 9 sample 5 cache", svc.accountID, svc.opts)
				}
			},
		},
		{name: "provider bad account", command: "provider", args: []string{"abc"}, wantErr: true},
		{name: "unknown command", command: "bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubDiagnostics{}
			_, err := run(ctx, svc, tt.command, tt.args, tt.limit)
			if (err != nil) != tt.wantErr {
				t.Fatalf("run(%s) error = %v, wantErr %v", tt.command, err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, svc)
			}
		})
	}
}

func TestYAMLEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc, err := newEncoder("yaml", &buf)
	if err != nil {
		t.Fatalf("newEncoder() error = %v", err)
	}

	v := struct {
		AccountName string   `json:"accountName"`
		StreamID    string   `json:"streamId"`
		Records     int      `json:"records"`
		Warnings    []string `json:"warnings,omitempty"`
	}{AccountName: "main", StreamID: "123", Records: 4}

	if err := enc.Encode(v); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := "accountName: main\nstreamId: \"123\"\nrecords: 4\n"
	if buf.String() != want {
		t.Errorf("Encode() = %q, want %q", buf.String(), want)
	}
}

func TestNewEncoder_UnknownFormat(t *testing.T) {
	if _, err := newEncoder("xml", &bytes.Buffer{}); err == nil {
		t.Error("newEncoder(xml) should fail")
	}
}
