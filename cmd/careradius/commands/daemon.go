package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/careradius/internal/config"
	"git.home.luguber.info/inful/careradius/internal/daemon"
	"git.home.luguber.info/inful/careradius/internal/logfields"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	StopTimeout time.Duration `help:"Grace period for shutdown" default:"30s"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return RunDaemon(cfg, d.StopTimeout)
}

// RunDaemon runs until SIGINT or SIGTERM.
func RunDaemon(cfg *config.Config, stopTimeout time.Duration) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			slog.Warn("Failed to close daemon resources", logfields.Error(cerr))
		}
	}()

	slog.Info("Starting daemon",
		slog.String("database", cfg.Database.Path),
		logfields.Monitor(string(cfg.Monitor.Type)))
	if err := d.Run(ctx, stopTimeout); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}
	slog.Info("Daemon stopped successfully")
	return nil
}
