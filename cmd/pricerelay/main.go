package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/pricerelay/internal/cmd/client"
	serverrun "github.com/rzbill/pricerelay/internal/cmd/server"
	cfgpkg "github.com/rzbill/pricerelay/internal/config"
	logpkg "github.com/rzbill/pricerelay/pkg/log"
)

func main() {
	// .env never overrides variables that are already set
	if err := cfgpkg.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:           "pricerelay",
		Short:         "Price update relay",
		Long:          "pricerelay consumes price updates from a message bus, keeps the latest one on disk and streams them to HTTP clients.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", os.Getenv(cfgpkg.EnvPrefix+"CONFIG"), "Config file (.json, .yaml)")

	loadConfig := func() (cfgpkg.Config, error) {
		path, _ := rootCmd.PersistentFlags().GetString("config")
		cfg, err := cfgpkg.Load(path)
		if err != nil {
			return cfgpkg.Config{}, err
		}
		if err := cfgpkg.FromEnv(&cfg); err != nil {
			return cfgpkg.Config{}, err
		}
		return cfg, nil
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Run the relay and the HTTP server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyServerFlags(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if err := serverrun.Run(cmd.Context(), serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	f := serverStartCmd.Flags()
	f.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	f.String("http", "", "HTTP listen address (default :8080, or :443 with TLS)")
	f.String("tls-cert", "", "TLS certificate file (PEM)")
	f.String("tls-key", "", "TLS private key file (PEM)")
	f.String("store", "", "Snapshot store: pebble|redis|sqlite")
	f.String("fsync", "", "Fsync mode: always|interval|never")
	f.Int("fsync-interval-ms", 0, "When --fsync=interval, group-commit window in ms")
	f.String("bus", "", "Message bus: nats|redis|kafka|memory")
	f.String("bus-url", "", "NATS server URL")
	f.String("subject", "", "Bus subject to relay")
	f.Bool("no-enrich", false, "Skip the startup geolocation lookup")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	for _, c := range clientcmd.Commands(apiURL, loadConfig) {
		rootCmd.AddCommand(c)
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger := logpkg.NewLogger(logpkg.WithFormatter(&logpkg.TextFormatter{}))
		logger.Error("command failed", logpkg.Err(err))
		os.Exit(1)
	}
}

// applyServerFlags overrides cfg with flags the user set explicitly.
func applyServerFlags(cmd *cobra.Command, cfg *cfgpkg.Config) {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	str("data-dir", &cfg.DataDir)
	str("http", &cfg.HTTP.Addr)
	str("tls-cert", &cfg.HTTP.TLSCert)
	str("tls-key", &cfg.HTTP.TLSKey)
	str("store", &cfg.Store.Driver)
	str("fsync", &cfg.Store.Fsync)
	str("bus", &cfg.Bus.Driver)
	str("bus-url", &cfg.Bus.URL)
	str("subject", &cfg.Bus.Subject)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	if f.Changed("fsync-interval-ms") {
		cfg.Store.FsyncIntervalMs, _ = f.GetInt("fsync-interval-ms")
	}
	if noEnrich, _ := f.GetBool("no-enrich"); noEnrich {
		cfg.Enrich.Enabled = false
	}
}

func apiURL() string {
	if v := os.Getenv(cfgpkg.EnvPrefix + "URL"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
