package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/credentials"
	"mercator-hq/relay/pkg/security/secrets"
	"mercator-hq/relay/pkg/server"
	"mercator-hq/relay/pkg/store"
	"mercator-hq/relay/pkg/telemetry/logging"
	"mercator-hq/relay/pkg/telemetry/metrics"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Long: `Start the relay with the specified configuration.

The decryption secret is resolved once at startup from credentials.secret_name
(the DECRYPTION_KEY environment variable by default, or a file in
credentials.secrets_dir). A missing or invalid secret aborts startup.

Examples:
  # Start with defaults
  relay serve

  # Start with a config file
  relay serve --config /etc/relay/config.yaml

  # Override listen address
  relay serve --listen 0.0.0.0:8080

  # Validate config and secret without starting the server
  relay serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config and secret without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if serveFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}

	logger, levelVar, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	manager, fileProvider, err := secrets.NewManagerFromConfig(cfg.Credentials)
	if err != nil {
		return cli.NewConfigError("credentials.secrets_dir", err.Error())
	}
	if fileProvider != nil {
		defer fileProvider.Close()
	}

	secret, err := secrets.LoadDecryptionSecret(ctx, manager, cfg.Credentials.SecretName)
	if err != nil {
		return cli.NewConfigError("credentials.secret_name", err.Error())
	}

	out := cmd.OutOrStdout()

	if serveFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		fmt.Fprintln(out, "✓ Decryption secret resolved")
		return nil
	}

	printBanner(cmd, cfg)

	holder := credentials.NewHolder(secret)
	if fileProvider != nil && cfg.Credentials.Watch {
		fileProvider.OnChange(func() { rotateSecret(ctx, manager, cfg.Credentials.SecretName, holder) })
	}

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, registry)
	}

	client, err := server.NewProviderClient(&cfg.Providers)
	if err != nil {
		return cli.NewConfigError("providers", err.Error())
	}
	defer client.Close()
	fmt.Fprintf(out, "✓ Providers initialized (%d routes)\n", len(config.ProviderNames))

	deps := server.Dependencies{
		Client:  client,
		Secret:  holder,
		Metrics: collector,
	}

	if cfg.Store.Enabled {
		s, err := store.Open(ctx, cfg.Store, store.WithRecorder(collector))
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer s.Close()
		deps.Store = s

		pruner := store.NewPruner(s, cfg.Store.Retention)
		if err := pruner.Start(ctx); err != nil {
			return cli.NewConfigError("store.retention.schedule", err.Error())
		}
		defer pruner.Stop()
		if next := pruner.NextRun(); !next.IsZero() {
			slog.Debug("message pruning scheduled", "next_run", next)
		}
		fmt.Fprintf(out, "✓ Conversation store opened (%s)\n", cfg.Store.Driver)
	}

	if cfgFile != "" {
		go watchConfig(ctx, cfgFile, levelVar)
	}

	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Proxy.ListenAddress)
	if collector != nil {
		fmt.Fprintf(out, "✓ Metrics endpoint: %s\n", cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	srv := server.NewServer(cfg, deps)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// rotateSecret re-resolves the decryption secret after the secrets
// directory changes. An unusable new value is logged and the current secret
// stays in place.
func rotateSecret(ctx context.Context, manager *secrets.Manager, name string, holder *credentials.Holder) {
	if err := manager.Refresh(ctx); err != nil {
		slog.Warn("secret refresh reported errors", "error", err)
	}

	secret, err := secrets.LoadDecryptionSecret(ctx, manager, name)
	if err != nil {
		slog.Error("rotated decryption secret rejected, keeping previous", "error", err)
		return
	}
	holder.Store(secret)
	slog.Info("decryption secret rotated", "name", name)
}

// watchConfig applies log level changes from the config file at runtime.
// Other settings take effect on restart.
func watchConfig(ctx context.Context, path string, levelVar *slog.LevelVar) {
	err := config.Watch(ctx, path, func(cfg *config.Config) {
		config.SetConfig(cfg)

		level, err := logging.ParseLevel(cfg.Telemetry.Logging.Level)
		if err != nil {
			slog.Warn("ignoring invalid log level from reloaded config", "error", err)
			return
		}
		if level != levelVar.Level() {
			levelVar.Set(level)
			slog.Info("log level changed", "level", level.String())
		}
	})
	if err != nil {
		slog.Error("config watcher stopped", "error", err)
	}
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Relay v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)
	}
	fmt.Fprintln(out, "✓ Configuration loaded")
	fmt.Fprintln(out, "✓ Decryption secret resolved")

	slog.Debug("stream settings",
		"idle_timeout", cfg.Stream.IdleTimeout,
		"max_frame_bytes", cfg.Stream.MaxFrameBytes,
	)
}
