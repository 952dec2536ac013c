package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trc-project/trc/internal/config"
	"github.com/trc-project/trc/internal/logging"
	"github.com/trc-project/trc/internal/monitor"
	"github.com/trc-project/trc/internal/ratelimit"
	"github.com/trc-project/trc/internal/realdebrid"
	"github.com/trc-project/trc/internal/riven"
	"github.com/trc-project/trc/internal/shutdown"
)

// runDaemon is the long-lived entry point: it builds the daemon from
// configuration and blocks until the monitor exits.
func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n\n", err)
		fmt.Fprintln(os.Stderr, "Please set the required environment variables:")
		fmt.Fprintln(os.Stderr, "  RIVEN_API_KEY - Your Riven API key")
		fmt.Fprintln(os.Stderr, "  RD_API_KEY    - Your Real-Debrid API key")
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Close()

	printBanner()

	logger.Info("starting trc",
		"version", Version,
		"riven_url", cfg.Riven.URL,
		"check_interval_hours", cfg.Monitor.CheckIntervalHours,
		"max_retries", cfg.Monitor.MaxRetries,
		"max_active_downloads", cfg.Debrid.MaxActiveDownloads)
	if cfg.Monitor.SkipRivenRetry {
		logger.Info("skip_riven_retry set: going directly to manual scrape")
	}

	// One gate per external API, registered before any concurrent use.
	gates := ratelimit.NewRegistry(logger)
	gates.Register(riven.GateName, cfg.Riven.RateLimit())
	gates.Register(realdebrid.GateName, cfg.Debrid.RateLimit())

	rivenClient := riven.NewClient(cfg.Riven.URL, cfg.Riven.APIKey, gates, logger)
	debridClient := realdebrid.NewClient(cfg.Debrid.URL, cfg.Debrid.APIKey, gates, logger)

	mon := monitor.New(monitor.OptionsFromConfig(cfg), rivenClient, debridClient, logger)

	coordinator := shutdown.NewCoordinator(logger)
	coordinator.Notify()
	coordinator.SetTask(mon.Stop)

	// Cleanup covers every exit path. Each release is attempted even if
	// an earlier one fails; failures are logged, never fatal.
	defer func() {
		coordinator.ClearTask()
		logger.Info("cleaning up")
		if err := rivenClient.Close(); err != nil {
			logger.Error("closing riven client", "error", err)
		}
		if err := debridClient.Close(); err != nil {
			logger.Error("closing real-debrid client", "error", err)
		}
		logger.Info("trc shutdown complete")
	}()

	return mon.Start(context.Background())
}
