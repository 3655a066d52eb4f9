package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quentinrf/smartband-edge/internal/adapters/mock"
	"github.com/quentinrf/smartband-edge/internal/ports"
)

func newSimulateCmd() *cobra.Command {
	var (
		apiURL    string
		bandID    int64
		base      int
		variation int
		spikes    float64
		interval  time.Duration
		count     int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Post synthetic readings from a fake smart band to a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newAPIClient(apiURL, 10*time.Second)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			band := mock.NewFakeBand(bandID, base, variation).WithSpikes(spikes)
			defer band.Close()

			recorded := ports.NewSimulator(band, api, interval, count).Start(ctx)
			log.Info().Int("recorded", recorded).Msg("simulation finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "url", "", "base URL of the server (default http://localhost:$PORT)")
	cmd.Flags().Int64Var(&bandID, "band", 1, "smart band id to report as")
	cmd.Flags().IntVar(&base, "base", 72, "resting pulse")
	cmd.Flags().IntVar(&variation, "variation", 8, "random +/- variation around the resting pulse")
	cmd.Flags().Float64Var(&spikes, "spikes", 0.1, "probability of an exertion spike per reading")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "time between readings")
	cmd.Flags().IntVar(&count, "count", 0, "number of readings to send (0 runs until interrupted)")
	return cmd
}
