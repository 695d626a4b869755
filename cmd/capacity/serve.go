package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/capacity-engine/api"
	"github.com/warp/capacity-engine/syncer"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	var addr string
	var noSync bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic directory sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr != "" {
				a.cfg.Addr = addr
			}
			if noSync {
				a.cfg.Sync.Enabled = false
			}
			return runServe(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides the configuration")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Disable the periodic directory sync")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	handler, err := api.NewHandler(a.planner,
		api.WithSyncer(a.sync),
		api.WithRecorder(a.metrics),
		api.WithLogger(a.log),
	)
	if err != nil {
		return err
	}
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: a.cfg.CORS.AllowedOrigins,
		MetricsHandler: a.metrics.Handler(),
	})

	scheduler := syncer.NewScheduler(a.sync, a.log)
	scheduler.Interval = a.cfg.Sync.Interval()
	scheduler.Enabled = a.cfg.Sync.Enabled && a.sync.Configured()
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         a.cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.cfg.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.Info("server stopped")
	return nil
}
