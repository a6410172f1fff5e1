package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"notam_parser/internal/app"
	"notam_parser/internal/bus"
	"notam_parser/internal/metrics"
)

func consumeCmd(g *globals) *cobra.Command {
	var (
		offline     bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Process NOTAMs from NATS and publish the results",
		Long: `Subscribes to NATS_SUBJECT_IN, processes each payload (a JSON envelope or
plain NOTAM text) and publishes the result to NATS_SUBJECT_OUT. Results also
go to Kafka when KAFKA_BROKERS is set and to ClickHouse when enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := g.open(ctx, app.Options{Offline: offline})
			if err != nil {
				return err
			}
			defer a.Close()
			cfg := a.Config

			nc, err := bus.Connect(cfg.NATS.URL, appName)
			if err != nil {
				return err
			}
			defer nc.Close()

			m := metrics.New()
			if metricsAddr != "" {
				srv := metrics.NewServer(metricsAddr, prometheus.DefaultGatherer)
				go func() {
					a.Logger.Info("metrics server starting", "addr", metricsAddr)
					if err := srv.Start(); err != nil {
						a.Logger.Error("metrics server failed", "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
					defer cancel()
					if err := srv.Shutdown(shutdownCtx); err != nil {
						a.Logger.Warn("metrics server shutdown", "error", err)
					}
				}()
			}

			opts := []bus.Option{
				bus.WithLogger(a.Logger),
				bus.WithMetrics(m),
			}
			if len(cfg.Kafka.Brokers) > 0 {
				sink := bus.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, a.Logger)
				defer sink.Close()
				opts = append(opts, bus.WithSinks(sink))
			}
			if a.History != nil {
				opts = append(opts, bus.WithHistory(a.History))
			}

			w := bus.NewWorker(a.Engine, nc, cfg.NATS.SubjectIn, cfg.NATS.SubjectOut, opts...)
			if err := w.Run(ctx, nc); err != nil {
				return fmt.Errorf("consume: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Do not call the completion service")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Serve /metrics and /healthz on this address (empty disables)")
	return cmd
}
