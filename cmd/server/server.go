// Package server implements the server subcommand, the long-running service
// runtime: datastore, job queue, image resolver and the REST API.
package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/carplateapi/carplate-go/internal/api"
	"github.com/carplateapi/carplate-go/internal/conf"
	"github.com/carplateapi/carplate-go/internal/datastore"
	"github.com/carplateapi/carplate-go/internal/imageresolver"
	"github.com/carplateapi/carplate-go/internal/jobqueue"
	"github.com/carplateapi/carplate-go/internal/logging"
	"github.com/carplateapi/carplate-go/internal/observability"
	"github.com/carplateapi/carplate-go/internal/registry"
)

const shutdownTimeout = 10 * time.Second

// Command creates the server command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the carplate registry service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings)
		},
	}
}

// Run starts all service components and blocks until the context is
// cancelled or a termination signal arrives.
func Run(ctx context.Context, settings *conf.Settings) error {
	logger := logging.ForService("server")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := datastore.New(settings)
	if store == nil {
		return errors.New("no database backend enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close datastore", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	source := imageresolver.NewOpenverseSource(settings)
	resolver, err := imageresolver.New(settings, source, metrics.ImageResolver)
	if err != nil {
		return err
	}

	queue := jobqueue.NewJobQueueWithOptions(
		settings.JobQueue.MaxJobs,
		time.Duration(settings.JobQueue.Interval)*time.Second,
	)
	queue.StartWithContext(ctx)
	defer func() {
		if err := queue.StopWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Job queue did not drain in time", "error", err)
		}
	}()

	reg := registry.New(store, resolver, queue, metrics.Registry)
	controller := api.New(settings, reg, metrics)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := controller.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return controller.Shutdown(shutdownCtx)
	})

	logger.Info("Service started",
		"port", settings.WebServer.Port,
		"version", settings.Version)

	return g.Wait()
}
