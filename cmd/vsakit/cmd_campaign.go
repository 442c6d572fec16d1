package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/23skdu/vsakit/internal/campaign"
	"github.com/23skdu/vsakit/internal/config"
)

var errUnhealthy = errors.New("campaign health checks failed")

func newCampaignCmd(a *app) *cobra.Command {
	var (
		seeds, workers, dims, sparsity   int
		bufferSize, packetSize, erasures int
		startSeed                        uint64
		rate, loss                       float64
		verbose                          bool
		metricsAddr                      string
	)
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Run generators, chaos and integrity checks over a range of seeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			err := a.finish(func(c *config.Config) {
				if flags.Changed("seeds") {
					c.Seeds = seeds
				}
				if flags.Changed("start-seed") {
					c.StartSeed = startSeed
				}
				if flags.Changed("workers") {
					c.Workers = workers
				}
				if flags.Changed("dims") {
					c.Dims = dims
					// an inherited sparsity is capped at an explicit dims
					if !flags.Changed("sparsity") {
						c.Sparsity = min(c.Sparsity, c.Dims)
					}
				}
				if flags.Changed("sparsity") {
					c.Sparsity = sparsity
				}
				if flags.Changed("buffer-size") {
					c.BufferSize = bufferSize
				}
				if flags.Changed("rate") {
					c.ErrorRate = rate
				}
				if flags.Changed("loss") {
					c.LossRate = loss
				}
				if flags.Changed("packet-size") {
					c.PacketSize = packetSize
				}
				if flags.Changed("erasures") {
					c.Erasures = erasures
				}
				if flags.Changed("verbose") {
					c.Verbose = verbose
				}
			})
			if err != nil {
				return err
			}

			if metricsAddr != "" {
				stop, err := serveMetrics(metricsAddr, a.logger)
				if err != nil {
					return err
				}
				defer stop()
			}

			res, err := campaign.Run(cmd.Context(), a.cfg.Campaign(), nil, a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Campaign "+res.RunID))
			fmt.Fprintln(out, renderReport("Health", res.Health, false))
			fmt.Fprintln(out, renderReport("Fault evidence", res.Faults, true))
			fmt.Fprintln(out, renderTiming(res.Timing, res.Metrics))
			if !res.Healthy() {
				return errUnhealthy
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&seeds, "seeds", 0, "number of seeds (default from config)")
	f.Uint64Var(&startSeed, "start-seed", 0, "first seed")
	f.IntVar(&workers, "workers", 0, "concurrent seeds, 0 for GOMAXPROCS")
	f.IntVar(&dims, "dims", 0, "vector dimensionality (default from config)")
	f.IntVar(&sparsity, "sparsity", 0, "target non-zeros (default from config)")
	f.IntVar(&bufferSize, "buffer-size", 0, "noise buffer size in bytes (default from config)")
	f.Float64Var(&rate, "rate", 0, "bit error rate in [0,1] (default from config)")
	f.Float64Var(&loss, "loss", 0, "packet loss rate in [0,1] (default from config)")
	f.IntVar(&packetSize, "packet-size", 0, "packet size in bytes (default from config)")
	f.IntVar(&erasures, "erasures", 0, "erasure draws per seed (default from config)")
	f.BoolVar(&verbose, "verbose", false, "log every failed integrity check")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	return cmd
}

// serveMetrics exposes the default registry until the returned stop func is
// called.
func serveMetrics(addr string, logger zerolog.Logger) (stop func(), err error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info().Str("address", lis.Addr().String()).Msg("Starting metrics server")
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
