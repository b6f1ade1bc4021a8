// Package config loads fetchpackd settings from FETCHPACK_* environment
// variables, optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

const prefix = "FETCHPACK_"

// Config holds every daemon setting.
type Config struct {
	Addr     string     `validate:"required"`
	LogLevel slog.Level `validate:"-"`

	DownloadRoot string `validate:"required"`
	ArchiveRoot  string `validate:"required"`
	RunsRoot     string `validate:"required"`

	FetchTimeout     time.Duration `validate:"gte=0"`
	DefaultMaxSizeMB int64         `validate:"gte=0"`
	UserAgent        string
	ThrottleRPS      int `validate:"gte=0"`
	ThrottleBurst    int `validate:"required_with=ThrottleRPS,gte=0"`

	// Workspaces older than WorkspaceTTL are swept every SweepInterval.
	// Zero disables sweeping.
	WorkspaceTTL  time.Duration `validate:"gte=0"`
	SweepInterval time.Duration `validate:"required_with=WorkspaceTTL,gte=0"`

	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	IdleTimeout     time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	TLSCertFile string `validate:"required_with=TLSKeyFile"`
	TLSKeyFile  string `validate:"required_with=TLSCertFile"`
}

// Load reads .env files from the working directory, when present, and then
// the environment. Variables already set in the environment win over
// .env values; .env.local overrides both.
func Load() (Config, error) {
	if err := loadEnvFiles(); err != nil {
		return Config{}, fmt.Errorf("loading env files: %w", err)
	}

	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, applying defaults for unset keys.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	p := parser{lookup: lookup}

	cfg := Config{
		Addr:     p.str("ADDR", ":8080"),
		LogLevel: p.level("LOG_LEVEL", slog.LevelInfo),

		DownloadRoot: p.str("DOWNLOAD_ROOT", ""),
		ArchiveRoot:  p.str("ARCHIVE_ROOT", "./data/archives"),
		RunsRoot:     p.str("RUNS_ROOT", "./data/runs"),

		FetchTimeout:     p.duration("FETCH_TIMEOUT", 5*time.Minute),
		DefaultMaxSizeMB: p.num64("DEFAULT_MAX_SIZE_MB", 0),
		UserAgent:        p.str("USER_AGENT", "fetchpack/1.0"),
		ThrottleRPS:      p.num("THROTTLE_RPS", 0),
		ThrottleBurst:    p.num("THROTTLE_BURST", 0),

		WorkspaceTTL:  p.duration("WORKSPACE_TTL", 0),
		SweepInterval: p.duration("SWEEP_INTERVAL", 0),

		ReadTimeout:     p.duration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    p.duration("WRITE_TIMEOUT", 10*time.Minute),
		IdleTimeout:     p.duration("IDLE_TIMEOUT", 2*time.Minute),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 20*time.Second),

		TLSCertFile: p.str("TLS_CERT_FILE", ""),
		TLSKeyFile:  p.str("TLS_KEY_FILE", ""),
	}

	if cfg.DownloadRoot == "" {
		cfg.DownloadRoot = os.TempDir()
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Prepare creates the download, archive and runs roots on fsys.
func (c Config) Prepare(fsys afero.Fs) error {
	for _, dir := range []string{c.DownloadRoot, c.ArchiveRoot, c.RunsRoot} {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	return nil
}

// Throttled reports whether outbound requests are rate limited.
func (c Config) Throttled() bool {
	return c.ThrottleRPS > 0
}

func loadEnvFiles() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return fmt.Errorf("failed to load .env.local: %w", err)
		}
	}

	return nil
}

// parser collects every malformed value so one run reports them all.
type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) raw(key string) (string, bool) {
	v, ok := p.lookup(prefix + key)
	v = strings.TrimSpace(v)

	return v, ok && v != ""
}

func (p *parser) str(key, def string) string {
	if v, ok := p.raw(key); ok {
		return v
	}

	return def
}

func (p *parser) num(key string, def int) int {
	v, ok := p.raw(key)
	if !ok {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %w", prefix, key, err))
		return def
	}

	return n
}

func (p *parser) num64(key string, def int64) int64 {
	v, ok := p.raw(key)
	if !ok {
		return def
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %w", prefix, key, err))
		return def
	}

	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.raw(key)
	if !ok {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %w", prefix, key, err))
		return def
	}

	return d
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	v, ok := p.raw(key)
	if !ok {
		return def
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %w", prefix, key, err))
		return def
	}

	return lvl
}
