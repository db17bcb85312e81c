// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger construction and store opening
// to reduce boilerplate across commands.
package appctx

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lherron/moviesdb/internal/config"
	"github.com/lherron/moviesdb/internal/db"
	"github.com/lherron/moviesdb/internal/domain"
	"github.com/lherron/moviesdb/internal/logger"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration with flag overrides applied
	Config *config.Config

	Log *logger.Logger

	// Source is the read-only SQLite store (nil if NeedsSource is false)
	Source *db.DB

	// Dest is the destination store (nil if NeedsDest is false)
	Dest *db.DB
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.Source != nil {
		a.Source.Close()
		a.Source = nil
	}
	if a.Dest != nil {
		a.Dest.Close()
		a.Dest = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// SetupError marks a failure that happened before any work started:
// invalid configuration or an unreachable store.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string { return e.Err.Error() }

func (e *SetupError) Unwrap() error { return e.Err }

// Options configures the bootstrap behavior.
type Options struct {
	NeedsSource bool
	NeedsDest   bool
}

// DefaultOptions opens both stores.
func DefaultOptions() Options {
	return Options{NeedsSource: true, NeedsDest: true}
}

// DestOnly opens only the destination.
func DestOnly() Options {
	return Options{NeedsDest: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// Stores are closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// LoadConfig loads configuration and applies the global flag overrides
// (--sqlite, --dest-sqlite, --log-level, --batch-size) found on cmd.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, &SetupError{Err: fmt.Errorf("failed to load config: %w", err)}
	}

	if v := flagValue(cmd, "sqlite"); v != "" {
		cfg.SQLitePath = v
	}
	if v := flagValue(cmd, "dest-sqlite"); v != "" {
		cfg.DestinationSQLite = v
	}
	if v := flagValue(cmd, "log-level"); v != "" {
		cfg.LogLevel = v
	}
	if f := cmd.Flag("batch-size"); f != nil && f.Changed {
		n, err := strconv.Atoi(f.Value.String())
		if err != nil {
			return nil, &SetupError{Err: fmt.Errorf("invalid --batch-size: %w", err)}
		}
		cfg.BatchSize = config.BatchSizeOrDefault(n)
	}
	return cfg, nil
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg, opts); err != nil {
		return nil, &SetupError{Err: fmt.Errorf("invalid configuration: %w", err)}
	}

	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return nil, &SetupError{Err: err}
	}
	app := &App{Config: cfg, Log: log}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.NeedsSource {
		source, err := db.OpenSource(ctx, cfg.SQLitePath)
		if err != nil {
			app.Close()
			return nil, &SetupError{Err: err}
		}
		app.Source = source
		log.Debug("source opened", "path", source.Target())
	}

	if opts.NeedsDest {
		dest, err := OpenDestination(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, &SetupError{Err: err}
		}
		app.Dest = dest
		log.Debug("destination opened", "target", dest.Target(), "dialect", dest.Dialect())
	}

	return app, nil
}

// OpenDestination opens the SQLite rehearsal file when configured, and
// Postgres otherwise.
func OpenDestination(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	if cfg.DestinationSQLite != "" {
		dest, err := db.OpenSQLite(ctx, cfg.DestinationSQLite)
		if err != nil {
			return nil, &domain.ConnectionError{Store: db.StoreDestination, Err: err}
		}
		return dest, nil
	}
	return db.OpenPostgres(ctx, cfg.Postgres.DSN(), cfg.Postgres.Redacted())
}

// validate checks only the settings the requested stores need.
func validate(cfg *config.Config, opts Options) error {
	if opts.NeedsSource && opts.NeedsDest {
		return cfg.Validate()
	}
	if opts.NeedsSource && cfg.SQLitePath == "" {
		return fmt.Errorf("sqlite path not set (SQLITE_DB)")
	}
	if opts.NeedsDest && cfg.DestinationSQLite == "" {
		return cfg.Postgres.Validate()
	}
	return nil
}
