package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is injected at build time via ldflags.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Xtream    XtreamConfig    `mapstructure:"xtream"`
	VOD       VODConfig       `mapstructure:"vod"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RawCache  RawCacheConfig  `mapstructure:"rawcache"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// XtreamConfig holds provider client configuration.
type XtreamConfig struct {
	Timeout           int     `mapstructure:"timeout"` // seconds
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	MaxRetries        int     `mapstructure:"max_retries"`
	UserAgent         string  `mapstructure:"user_agent"`
}

// VODConfig controls catalog refresh behaviour.
type VODConfig struct {
	BatchSize       int  `mapstructure:"batch_size"`
	RefreshEpisodes bool `mapstructure:"refresh_episodes"`
	EpisodeWorkers  int  `mapstructure:"episode_workers"`
	CleanupOrphans  bool `mapstructure:"cleanup_orphans"`
}

// ProbeConfig configures the ffprobe based stream comparison.
type ProbeConfig struct {
	FFprobePath      string  `mapstructure:"ffprobe_path"`
	Timeout          int     `mapstructure:"timeout"` // seconds
	AnalyzeDuration  int     `mapstructure:"analyze_duration"`
	ProbeSize        int     `mapstructure:"probe_size"`
	BitrateTolerance float64 `mapstructure:"bitrate_tolerance"`
	SizeTolerance    float64 `mapstructure:"size_tolerance"`
}

// SchedulerConfig holds cron expressions for background tasks.
type SchedulerConfig struct {
	RefreshCron string `mapstructure:"refresh_cron"`
	CleanupCron string `mapstructure:"cleanup_cron"`
	HealthCron  string `mapstructure:"health_cron"`
	RunOnStart  bool   `mapstructure:"run_on_start"`
}

// RawCacheConfig configures the raw provider payload store.
type RawCacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SecurityConfig holds the key used to encrypt provider passwords at rest.
// An empty key stores passwords in plaintext.
type SecurityConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5656,
		},
		Database: DatabaseConfig{
			Path: "./data/vodsync.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
			BufferSize: 1000,
		},
		Xtream: XtreamConfig{
			Timeout:           30,
			RequestsPerSecond: 5,
			Burst:             5,
			MaxRetries:        3,
			UserAgent:         "vodsync/" + Version,
		},
		VOD: VODConfig{
			BatchSize:       500,
			RefreshEpisodes: false,
			EpisodeWorkers:  4,
			CleanupOrphans:  true,
		},
		Probe: ProbeConfig{
			Timeout:          15,
			AnalyzeDuration:  5000000,
			ProbeSize:        10000000,
			BitrateTolerance: 0.05,
			SizeTolerance:    0.05,
		},
		Scheduler: SchedulerConfig{
			RefreshCron: "0 */6 * * *",
			CleanupCron: "30 3 * * *",
			HealthCron:  "*/30 * * * *",
		},
		RawCache: RawCacheConfig{
			Enabled: false,
			Path:    "./data/rawcache.db",
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.vodsync")
	}

	v.SetEnvPrefix("VODSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults mirrors Default() into viper so env-only overrides still unmarshal.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.buffer_size", d.Logging.BufferSize)

	v.SetDefault("xtream.timeout", d.Xtream.Timeout)
	v.SetDefault("xtream.requests_per_second", d.Xtream.RequestsPerSecond)
	v.SetDefault("xtream.burst", d.Xtream.Burst)
	v.SetDefault("xtream.max_retries", d.Xtream.MaxRetries)
	v.SetDefault("xtream.user_agent", d.Xtream.UserAgent)

	v.SetDefault("vod.batch_size", d.VOD.BatchSize)
	v.SetDefault("vod.refresh_episodes", d.VOD.RefreshEpisodes)
	v.SetDefault("vod.episode_workers", d.VOD.EpisodeWorkers)
	v.SetDefault("vod.cleanup_orphans", d.VOD.CleanupOrphans)

	v.SetDefault("probe.ffprobe_path", d.Probe.FFprobePath)
	v.SetDefault("probe.timeout", d.Probe.Timeout)
	v.SetDefault("probe.analyze_duration", d.Probe.AnalyzeDuration)
	v.SetDefault("probe.probe_size", d.Probe.ProbeSize)
	v.SetDefault("probe.bitrate_tolerance", d.Probe.BitrateTolerance)
	v.SetDefault("probe.size_tolerance", d.Probe.SizeTolerance)

	v.SetDefault("scheduler.refresh_cron", d.Scheduler.RefreshCron)
	v.SetDefault("scheduler.cleanup_cron", d.Scheduler.CleanupCron)
	v.SetDefault("scheduler.health_cron", d.Scheduler.HealthCron)
	v.SetDefault("scheduler.run_on_start", d.Scheduler.RunOnStart)

	v.SetDefault("rawcache.enabled", d.RawCache.Enabled)
	v.SetDefault("rawcache.path", d.RawCache.Path)

	v.SetDefault("security.secret_key", d.Security.SecretKey)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
