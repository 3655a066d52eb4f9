package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	grpcAdapter "github.com/quentinrf/smartband-edge/internal/adapters/grpc"
	httpAdapter "github.com/quentinrf/smartband-edge/internal/adapters/http"
	"github.com/quentinrf/smartband-edge/internal/adapters/mqtt"
	"github.com/quentinrf/smartband-edge/internal/config"
	"github.com/quentinrf/smartband-edge/internal/ports"
	"github.com/quentinrf/smartband-edge/pkg/tlsconfig"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Info().Msg("starting smart band edge service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize repository
	repo, db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database pool")
		}
	}()

	commands := ports.NewRecordHeartRateHandler(repo)
	queries := ports.NewHeartRateQueryHandler(repo)

	// Configure TLS if certificates are provided
	var tlsCfg *tls.Config
	if cfg.TLSEnabled() {
		tlsCfg, err = tlsconfig.LoadServerTLS(cfg.TLSCert, cfg.TLSKey, cfg.TLSCA)
		if err != nil {
			return fmt.Errorf("failed to load TLS config: %w", err)
		}
		log.Info().Bool("mtls", cfg.TLSCA != "").Msg("TLS enabled")
	} else {
		log.Warn().Msg("TLS_CERT not set, serving plain HTTP")
	}

	api := httpAdapter.NewServer(commands, queries, repo, cfg.CORSAllowedOrigins)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		var err error
		if tlsCfg != nil {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Optional gRPC health service
	var grpcServer *grpc.Server
	if cfg.GRPCHealthPort != "" {
		var opts []grpc.ServerOption
		if tlsCfg != nil {
			opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
		}
		srv, hs := grpcAdapter.NewServer(opts...)
		grpcServer = srv

		listener, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC health port: %w", err)
		}
		go func() {
			if err := grpcServer.Serve(listener); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()

		go grpcAdapter.NewHealthWatcher(hs, repo, cfg.HealthProbeInterval).Start(ctx)
		log.Info().Str("port", cfg.GRPCHealthPort).Msg("gRPC health server listening")
	}

	// Optional MQTT ingestion
	var consumer *mqtt.Consumer
	if cfg.MQTT.Broker != "" {
		brokerTLS, err := mqttTLS(cfg)
		if err != nil {
			return fmt.Errorf("failed to load MQTT TLS config: %w", err)
		}
		consumer = mqtt.NewConsumer(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			TLS:      brokerTLS,
		}, commands)
		if err := consumer.Start(ctx); err != nil {
			return err
		}
	}

	printBanner(cfg.Port, tlsCfg != nil)

	// Wait for interrupt signal or a listener failure
	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("server failed, shutting down")
	}

	// Graceful shutdown
	stop()
	if consumer != nil {
		consumer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced HTTP shutdown")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	log.Info().Msg("server stopped")
	return runErr
}

// mqttTLS builds the broker client TLS config for ssl://, tls:// and
// mqtts:// brokers from TLS_CA, TLS_CERT and TLS_KEY. Plain brokers get nil.
func mqttTLS(cfg *config.Config) (*tls.Config, error) {
	scheme, _, _ := strings.Cut(cfg.MQTT.Broker, "://")
	switch strings.ToLower(scheme) {
	case "ssl", "tls", "mqtts", "wss":
		return tlsconfig.LoadClientTLS(cfg.TLSCert, cfg.TLSKey, cfg.TLSCA)
	default:
		return nil, nil
	}
}

func printBanner(port string, secure bool) {
	scheme := "http"
	if secure {
		scheme = "https"
	}

	var b strings.Builder
	b.WriteString("Smart Band Edge Service\n")
	for _, route := range httpAdapter.Routes() {
		fmt.Fprintf(&b, "  %s\n", route)
	}
	fmt.Fprintf(&b, "Listening on %s://0.0.0.0:%s", scheme, port)

	log.Info().Msg(b.String())
}
