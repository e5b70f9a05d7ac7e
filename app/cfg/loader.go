package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/lysyi3m/news-comb/app/apperr"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath    string `long:"db-path" env:"DB_PATH" default:"./data/news.db" description:"SQLite database file"`
	ConfigDir string `long:"config-dir" env:"CONFIG_DIR" default:"./config" description:"Directory containing sources/*.yml and panes.yml seed files"`

	// HTTP server
	Port    string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://news.example.com)"`

	// Background work
	WorkerCount       int `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval int `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler tick in seconds"`
	IngestInterval    int `long:"ingest-interval" env:"INGEST_INTERVAL" default:"300" description:"Seconds between scheduled ingestion runs"`
	ArchiveInterval   int `long:"archive-interval" env:"ARCHIVE_INTERVAL" default:"3600" description:"Seconds between scheduled archive runs"`
	RetentionDays     int `long:"retention-days" env:"RETENTION_DAYS" default:"10" description:"Days items stay in the live table"`
	FetchTimeout      int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-source fetch timeout in seconds"`

	// Secrets
	InternalSecret string `long:"internal-secret" env:"INTERNAL_CRON_SECRET" description:"Bearer secret for /ingest and /archive (required)"`
	JWTSecret      string `long:"jwt-secret" env:"JWT_SECRET" description:"HS256 key for user tokens (required)"`

	// Cold archive export
	ArchiveBucket string `long:"archive-bucket" env:"ARCHIVE_BUCKET" description:"Cloud Storage bucket for archive exports (optional)"`
	ArchiveDir    string `long:"archive-dir" env:"ARCHIVE_DIR" description:"Local directory for archive exports; overrides the bucket"`

	// Alerts
	SoundCooldownMs int `long:"sound-cooldown" env:"SOUND_COOLDOWN_MS" default:"5000" description:"Minimum milliseconds between audible alerts per user"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Research Terminal RSS Reader/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	cfg, err := parse(os.Args[1:])
	if err != nil || cfg == nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return &Cfg{
		DBPath:            raw.DBPath,
		ConfigDir:         raw.ConfigDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		IngestInterval:    raw.IngestInterval,
		ArchiveInterval:   raw.ArchiveInterval,
		RetentionDays:     raw.RetentionDays,
		FetchTimeout:      raw.FetchTimeout,
		InternalSecret:    raw.InternalSecret,
		JWTSecret:         raw.JWTSecret,
		ArchiveBucket:     raw.ArchiveBucket,
		ArchiveDir:        raw.ArchiveDir,
		SoundCooldownMs:   raw.SoundCooldownMs,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}, nil
}

// Validate reports the first setting that makes the service unusable.
func (c *Cfg) Validate() error {
	switch {
	case c.InternalSecret == "":
		return &apperr.ConfigurationError{Setting: "INTERNAL_CRON_SECRET", Reason: "must be set"}
	case c.JWTSecret == "":
		return &apperr.ConfigurationError{Setting: "JWT_SECRET", Reason: "must be set"}
	case c.WorkerCount < 1:
		return &apperr.ConfigurationError{Setting: "WORKER_COUNT", Reason: "must be at least 1"}
	case c.SchedulerInterval < 1 || c.IngestInterval < 1 || c.ArchiveInterval < 1:
		return &apperr.ConfigurationError{Setting: "intervals", Reason: "must be positive"}
	case c.RetentionDays < 1:
		return &apperr.ConfigurationError{Setting: "RETENTION_DAYS", Reason: "must be at least 1"}
	case c.FetchTimeout < 1:
		return &apperr.ConfigurationError{Setting: "FETCH_TIMEOUT", Reason: "must be positive"}
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
