// Command voddiag inspects the catalog database for duplicate episodes,
// multi-stream episodes and provider payloads that repeat an episode key.
//
//	voddiag [flags] duplicates|multistream|relations
//	voddiag [flags] episode <id|uuid>
//	voddiag [flags] streams <stream id>...
//	voddiag [flags] provider [-sample n] [-source live|cache] <account id>
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vodsync/vodsync/internal/accounts"
	"github.com/vodsync/vodsync/internal/config"
	"github.com/vodsync/vodsync/internal/crypto"
	"github.com/vodsync/vodsync/internal/database"
	"github.com/vodsync/vodsync/internal/database/sqlc"
	"github.com/vodsync/vodsync/internal/diagnostics"
	"github.com/vodsync/vodsync/internal/rawcache"
)

const usage = `usage: voddiag [flags] <command> [args]

commands:
  duplicates             episodes sharing a (series, season, episode) key
  multistream            episodes with more than one stream relation
  relations              relation counts per account
  episode <id|uuid>      one episode with all of its relations
  streams <id>...        look up provider stream ids
  provider <account id>  scan raw get_series_info payloads

flags:
`

func main() {
	configPath := flag.String("config", "", "Path to config file")
	format := flag.String("format", "yaml", "Output format: yaml or json")
	limit := flag.Int("limit", 0, "Maximum rows for duplicates and multistream")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

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

	enc, err := newEncoder(*format, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secrets, err := crypto.Open(ctx, sqlc.New(db.Conn()), cfg.Security.SecretKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load secret key: %v\n", err)
		os.Exit(1)
	}
	accountsSvc := accounts.NewService(db.Conn(), logger)
	accountsSvc.SetSecretStore(secrets)

	svc := diagnostics.NewService(db.Conn(), accountsSvc, cfg.Xtream, logger)
	if cfg.RawCache.Enabled {
		store, err := rawcache.Open(cfg.RawCache.Path)
		if err != nil {
			logger.Warn().Err(err).Msg("raw cache unavailable")
		} else {
			defer store.Close()
			svc.SetRawCache(store)
		}
	}

	result, err := run(ctx, svc, flag.Arg(0), flag.Args()[1:], *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
	if err := enc.Encode(result); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Diagnostics is the set of reports the command can print.
type Diagnostics interface {
	Duplicates(ctx context.Context, limit int) ([]*diagnostics.DuplicateGroup, error)
	MultiStream(ctx context.Context, limit int) ([]*diagnostics.MultiStreamEpisode, error)
	RelationStats(ctx context.Context) ([]*diagnostics.RelationStats, error)
	InspectEpisode(ctx context.Context, ref string) (*diagnostics.EpisodeInspection, error)
	CheckStreamIDs(ctx context.Context, ids []string) (*diagnostics.StreamCheck, error)
	AnalyzeProvider(ctx context.Context, accountID int64, opts diagnostics.ProviderOptions) (*diagnostics.ProviderReport, error)
}

func run(ctx context.Context, svc Diagnostics, command string, args []string, limit int) (interface{}, error) {
	switch command {
	case "duplicates":
		return svc.Duplicates(ctx, limit)
	case "multistream":
		return svc.MultiStream(ctx, limit)
	case "relations":
		return svc.RelationStats(ctx)
	case "episode":
		if len(args) != 1 {
			return nil, fmt.Errorf("expected one episode id or uuid")
		}
		return svc.InspectEpisode(ctx, args[0])
	case "streams":
		if len(args) == 0 {
			return nil, fmt.Errorf("expected at least one stream id")
		}
		return svc.CheckStreamIDs(ctx, args)
	case "provider":
		return runProvider(ctx, svc, args)
	default:
		return nil, fmt.Errorf("unknown command %q", command)
	}
}

func runProvider(ctx context.Context, svc Diagnostics, args []string) (interface{}, error) {
	fs := flag.NewFlagSet("provider", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	sample := fs.Int("sample", 20, "Number of series to scan")
	source := fs.String("source", string(diagnostics.SourceLive), "Payload source: live or cache")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("expected one account id")
	}
	accountID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q", fs.Arg(0))
	}
	return svc.AnalyzeProvider(ctx, accountID, diagnostics.ProviderOptions{
		Sample: *sample,
		Source: diagnostics.ProviderSource(*source),
	})
}
