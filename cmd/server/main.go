package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quentinrf/smartband-edge/internal/config"
)

var (
	configFile string
	settings   *viper.Viper
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	settings = config.New()

	root := &cobra.Command{
		Use:   "smartband-edge",
		Short: "Edge API for ESP32 smart band heart rate readings",
		Long: `smartband-edge ingests heart rate readings from smart bands over HTTP
(and optionally MQTT), stores them, and serves history and statistics.

Run with no subcommand to start the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			setupLogging(settings.GetString(config.KeyLogLevel), settings.GetString(config.KeyLogFormat))
			return nil
		},
		RunE: runServe,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (yaml, json or toml)")
	if err := config.BindFlags(settings, root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newKeepaliveCmd(),
		newSimulateCmd(),
	)
	return root
}

// loadConfig reads the full service configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(settings, configFile)
	if err != nil {
		return nil, err
	}
	// A config file may carry its own log settings
	setupLogging(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

// setupLogging configures the global zerolog logger
func setupLogging(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
