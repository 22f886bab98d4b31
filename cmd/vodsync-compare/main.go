// Command vodsync-compare probes stream URLs with ffprobe and reports whether
// they are distinct quality variants or the same file under several ids.
//
//	vodsync-compare URL URL [URL...]
//	vodsync-compare -episode <uuid> [-config vodsync.yaml]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/crypto"
	"github.com/vodsync/vodsync/internal/database"
	"github.com/vodsync/vodsync/internal/database/sqlc"
	"github.com/vodsync/vodsync/internal/streamprobe"
	"github.com/vodsync/vodsync/internal/vod"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	episode := flag.String("episode", "", "Compare every stream of this episode uuid")
	asJSON := flag.Bool("json", false, "Print the comparison as JSON")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] URL URL [URL...]\n       %s [flags] -episode <uuid>\n\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	targets, err := resolveTargets(ctx, cfg, *episode, flag.Args(), logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(targets) < 2 {
		flag.Usage()
		os.Exit(2)
	}

	prober := streamprobe.NewProber(cfg.Probe, logger)
	if !prober.IsAvailable() {
		fmt.Fprintln(os.Stderr, "ffprobe not found; install ffmpeg or set probe.ffprobe_path")
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Probing %d streams...\n", len(targets))
	cmp, err := prober.CompareTargets(ctx, targets)
	if err != nil && !errors.Is(err, streamprobe.ErrNotEnoughStreams) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cmp); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else if err := streamprobe.WriteReport(os.Stdout, cmp); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if errors.Is(err, streamprobe.ErrNotEnoughStreams) {
		os.Exit(1)
	}
}

// resolveTargets returns the streams to probe: the positional URLs, or the
// stored relations of an episode.
func resolveTargets(ctx context.Context, cfg *config.Config, episode string, urls []string, logger zerolog.Logger) ([]streamprobe.Target, error) {
	if episode == "" {
		targets := make([]streamprobe.Target, len(urls))
		for i, u := range urls {
			targets[i] = streamprobe.Target{Label: "stream " + strconv.Itoa(i+1), URL: u}
		}
		return targets, nil
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	secrets, err := crypto.Open(ctx, sqlc.New(db.Conn()), cfg.Security.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load secret key: %w", err)
	}
	svc := vod.NewService(db.Conn(), logger)
	svc.SetSecretStore(secrets)

	streams, err := svc.EpisodeStreams(ctx, episode)
	if err != nil {
		return nil, fmt.Errorf("failed to load streams of episode %s: %w", episode, err)
	}

	targets := make([]streamprobe.Target, len(streams))
	for i, st := range streams {
		targets[i] = streamprobe.Target{
			Label: fmt.Sprintf("%s/%s", st.AccountName, st.StreamID),
			URL:   st.URL,
		}
	}
	return targets, nil
}
