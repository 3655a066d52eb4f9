package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quentinrf/smartband-edge/internal/config"
	"github.com/quentinrf/smartband-edge/pkg/client"
	"github.com/quentinrf/smartband-edge/pkg/tlsconfig"
)

func newKeepaliveCmd() *cobra.Command {
	var (
		apiURL  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "keepalive",
		Short: "Call /keepalive on a running server so its database stays active",
		Long: `keepalive asks a running server to run SELECT 1 against its database.
Schedule it every few minutes to keep a hosted database from pausing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newAPIClient(apiURL, timeout)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			result, err := api.Keepalive(ctx)
			if err != nil {
				return err
			}
			if !result.Alive() {
				return fmt.Errorf("database not reachable: %s", result.Message)
			}

			log.Info().
				Str("database", result.Database).
				Time("server_time", result.Timestamp).
				Msg(result.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "url", "", "base URL of the server (default http://localhost:$PORT)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	return cmd
}

// newAPIClient builds a client for apiURL, trusting TLS_CA when set
func newAPIClient(apiURL string, timeout time.Duration) (*client.Client, error) {
	if configFile != "" {
		settings.SetConfigFile(configFile)
		if err := settings.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if apiURL == "" {
		apiURL = "http://localhost:" + settings.GetString(config.KeyPort)
	}

	opts := []client.Option{client.WithTimeout(timeout)}
	if ca := settings.GetString(config.KeyTLSCA); ca != "" {
		tlsCfg, err := tlsconfig.LoadClientTLS(settings.GetString(config.KeyTLSCert), settings.GetString(config.KeyTLSKey), ca)
		if err != nil {
			return nil, fmt.Errorf("failed to load client TLS config: %w", err)
		}
		opts = append(opts, client.WithTLS(tlsCfg))
	}

	return client.New(apiURL, opts...), nil
}
