// Package streamprobe inspects provider streams with ffprobe and decides
// whether several stream ids of one episode are distinct quality variants or
// the same file listed more than once.
package streamprobe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vodsync/vodsync/internal/config"
)

var (
	ErrFFprobeNotFound  = errors.New("ffprobe not found")
	ErrNoVideoStream    = errors.New("no video stream found")
	ErrNotEnoughStreams = errors.New("not enough valid streams to compare")
)

const (
	defaultTimeout         = 15 * time.Second
	defaultAnalyzeDuration = 5000000
	defaultProbeSize       = 10000000
	probeConcurrency       = 3
)

// Target is a stream to probe.
type Target struct {
	Label string `json:"label"`
	URL   string `json:"-"`
}

// Result is the outcome of probing one target.
type Result struct {
	Label string      `json:"label"`
	Info  *StreamInfo `json:"info,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Prober runs ffprobe against stream URLs.
type Prober struct {
	binary          string
	timeout         time.Duration
	analyzeDuration int
	probeSize       int
	tolerance       Options
	logger          zerolog.Logger
}

// NewProber creates a prober. The ffprobe binary is looked up once.
func NewProber(cfg config.ProbeConfig, logger zerolog.Logger) *Prober {
	p := &Prober{
		binary:          findExecutable("ffprobe", cfg.FFprobePath),
		timeout:         time.Duration(cfg.Timeout) * time.Second,
		analyzeDuration: cfg.AnalyzeDuration,
		probeSize:       cfg.ProbeSize,
		tolerance: Options{
			BitrateTolerance: cfg.BitrateTolerance,
			SizeTolerance:    cfg.SizeTolerance,
		},
		logger: logger.With().Str("component", "streamprobe").Logger(),
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	if p.analyzeDuration <= 0 {
		p.analyzeDuration = defaultAnalyzeDuration
	}
	if p.probeSize <= 0 {
		p.probeSize = defaultProbeSize
	}

	if p.binary == "" {
		p.logger.Warn().Msg("ffprobe not found, stream comparison is unavailable")
	} else {
		p.logger.Debug().Str("path", p.binary).Msg("Using ffprobe")
	}
	return p
}

// IsAvailable reports whether an ffprobe binary was found.
func (p *Prober) IsAvailable() bool {
	return p.binary != ""
}

// Options returns the configured comparison tolerances.
func (p *Prober) Options() Options {
	return p.tolerance
}

// Probe extracts stream metadata from url.
func (p *Prober) Probe(ctx context.Context, url string) (*StreamInfo, error) {
	if p.binary == "" {
		return nil, ErrFFprobeNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-analyzeduration", fmt.Sprint(p.analyzeDuration),
		"-probesize", fmt.Sprint(p.probeSize),
		url,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("ffprobe timed out after %s", p.timeout)
		}
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, truncate(stderr.String(), 100))
	}

	return parseFFprobeJSON(stdout.Bytes())
}

// ProbeAll probes every target, a few at a time. Results keep the target order;
// a failed probe is reported in its Result instead of aborting the others.
func (p *Prober) ProbeAll(ctx context.Context, targets []Target) []Result {
	results := make([]Result, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for i, target := range targets {
		g.Go(func() error {
			results[i].Label = target.Label
			info, err := p.Probe(gctx, target.URL)
			if err != nil {
				p.logger.Warn().Err(err).Str("stream", target.Label).Msg("Probe failed")
				results[i].Error = err.Error()
				return nil
			}
			results[i].Info = info
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// CompareTargets probes targets and compares the results.
func (p *Prober) CompareTargets(ctx context.Context, targets []Target) (*Comparison, error) {
	return Compare(p.ProbeAll(ctx, targets), p.tolerance)
}

// findExecutable finds an executable by name or explicit path.
func findExecutable(name, explicitPath string) string {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err == nil {
			return explicitPath
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path
	}

	var commonPaths []string
	switch runtime.GOOS {
	case "darwin":
		commonPaths = []string{"/usr/local/bin/" + name, "/opt/homebrew/bin/" + name}
	case "linux":
		commonPaths = []string{"/usr/bin/" + name, "/usr/local/bin/" + name}
	case "windows":
		commonPaths = []string{`C:\ffmpeg\bin\` + name + ".exe"}
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
