// Package commands implements the careradius command tree.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/careradius/internal/app"
	"git.home.luguber.info/inful/careradius/internal/config"
	"git.home.luguber.info/inful/careradius/internal/logfields"
)

// Global is shared state passed to every command.
type Global struct {
	Logger *slog.Logger
	// Out receives user-facing output.
	Out io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config   string           `short:"c" help:"Configuration file path" default:"careradius.yaml" env:"CARERADIUS_CONFIG"`
	Database string           `name:"db" help:"Override database.path from the configuration"`
	Verbose  bool             `short:"v" help:"Enable verbose logging"`
	Version  kong.VersionFlag `name:"version" help:"Show version and exit"`

	Daemon     DaemonCmd     `cmd:"" help:"Run the monitor, recovery jobs and admin API until interrupted"`
	Init       InitCmd       `cmd:"" help:"Write an example configuration file"`
	Zone       ZoneCmd       `cmd:"" help:"Manage zones"`
	Visit      VisitCmd      `cmd:"" help:"Inspect and prune the visit history"`
	Transition TransitionCmd `cmd:"" help:"Deliver an ENTER or EXIT transition for a zone"`
	Reregister ReregisterCmd `cmd:"" help:"Register every persisted zone with the region monitor"`
	Migrate    MigrateCmd    `cmd:"" help:"Migrate the database to the latest schema"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig reads the configuration file, applies the --db override and
// reconfigures logging from the logging section. --verbose still wins.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if c.Database != "" {
		cfg.Database.Path = c.Database
	}
	slog.SetDefault(newLogger(os.Stderr, cfg.Logging, c.Verbose))
	return cfg, nil
}

func newLogger(w io.Writer, lc config.LoggingConfig, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(lc.Level)}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if lc.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// withApp builds the application for a one-shot command and releases it afterwards.
func (c *CLI) withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			slog.Warn("Failed to release resources", logfields.Error(cerr))
		}
	}()
	return fn(ctx, a)
}
