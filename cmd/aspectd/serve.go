package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-aspect-cache/internal/config"
	"github.com/goliatone/go-aspect-cache/pkg/di"
)

const quoteLatency = 50 * time.Millisecond

type configFlags struct {
	path     string
	envFiles []string
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringSliceVar(&f.envFiles, "env-file", []string{".env"}, "dotenv files loaded before environment overrides")
}

func (f *configFlags) load() (*config.Config, error) {
	return config.Load(f.path, f.envFiles...)
}

func newServeCmd() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			logger := cfg.Log.NewLogger(os.Stderr)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, *cfg, logger)
		},
	}
	flags.register(cmd)

	return cmd
}

func newConfigCmd() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
	flags.register(cmd)

	return cmd
}

// serve runs the host until ctx is done, then shuts the server down within the
// configured timeout.
func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	container, err := di.NewContainer(ctx, cfg,
		di.WithLogger(logger),
		di.WithTracer(otel.Tracer("github.com/goliatone/go-aspect-cache/cmd/aspectd")),
	)
	if err != nil {
		return err
	}
	defer container.Close()

	handler := newRouter(routerDeps{
		Layer:       container.FailureLayer(),
		Quotes:      newQuoteService(container, defaultCatalog(), quoteLatency),
		Interceptor: container.Interceptor(),
		Metrics:     promhttp.HandlerFor(container.Registry(), promhttp.HandlerOpts{}),
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("aspectd ready", "addr", cfg.HTTP.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("aspectd stopped")
	return nil
}
