// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	ipmi "github.com/vmware/ipmisim"
	"github.com/vmware/ipmisim/config"
)

var Version = "dev"

type options struct {
	ConfigFile string
	Listen     string
	Metrics    string
	LogLevel   string
	LogFormat  string
}

func newLogger(format, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var log zerolog.Logger
	switch format {
	case "json":
		log = zerolog.New(os.Stderr)
	case "console":
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}

	return log.Level(lvl).With().Timestamp().Logger(), nil
}

func loadConfig(opts *options, listenChanged bool) (*config.Config, error) {
	cfg := config.New()
	if opts.ConfigFile != "" {
		var err error
		cfg, err = config.Load(afero.NewOsFs(), opts.ConfigFile)
		if err != nil {
			return nil, err
		}
	}

	if listenChanged || opts.ConfigFile == "" {
		cfg.Listen = opts.Listen
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func serve(ctx context.Context, log zerolog.Logger, cfg *config.Config, metricsAddr string) error {
	addr, err := cfg.Addr()
	if err != nil {
		return err
	}

	simOpts, err := cfg.Options()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	simOpts = append(simOpts, ipmi.WithLogger(log), ipmi.WithMetrics(ipmi.NewMetrics(reg)))
	sim := ipmi.NewSimulator(addr, simOpts...)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sim.ListenAndServe(ctx)
	})

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

		server := &http.Server{
			Addr:              metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 60 * time.Second,
		}

		g.Go(func() error {
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	log.Info().Str("listen", cfg.Listen).Str("metrics", metricsAddr).
		Str("version", Version).Msg("bmcsim started")

	err = g.Wait()
	log.Info().Err(err).Msg("bmcsim stopped")

	return err
}

func serveCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the simulated BMC.",
		Example:      "bmcsim serve --config bmc.yaml --listen :623",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(opts.LogFormat, opts.LogLevel)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(opts, cmd.Flags().Changed("listen"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, log, cfg, opts.Metrics)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "path to the BMC definition (yaml or json)")
	cmd.Flags().StringVar(&opts.Listen, "listen", config.DefaultListen, "UDP address to serve IPMI on")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", ":9623", "HTTP address to serve /metrics on, empty to disable")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.LogFormat, "log-format", "console", "log format (console|json)")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "version: %s\n", Version)
		},
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bmcsim",
		Short: "IPMI BMC simulator",
	}
	cmd.AddCommand(serveCmd(), versionCmd())
	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
