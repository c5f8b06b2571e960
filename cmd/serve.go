package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lumi/internal/server"
	"lumi/internal/weight"
	"lumi/internal/xsec"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve luminosity weights over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	appCtx, appCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer appCancel()

	table := weight.NewSyncTable()
	table.SetScale(config.Weights.Scale)
	watcher, err := xsec.NewWatcher(table, config.Weights.CrossSections, config.Weights.Counts)
	if err != nil {
		return fmt.Errorf("unable to create file watcher: %w", err)
	}
	if err := watcher.Reload(); err != nil {
		return fmt.Errorf("unable to load weights: %w", err)
	}
	if config.Weights.Watch {
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("unable to watch weight files: %w", err)
		}
		defer watcher.Stop()
		slog.Info("Watching weight files", "cross_sections", config.Weights.CrossSections, "counts", config.Weights.Counts)
	}

	servers := []*server.Server{
		server.NewServer(config.Server.Address, server.NewApiV1Router(table).Mux()),
	}
	if config.Server.MetricsAddress != "" {
		servers = append(servers, server.NewServer(config.Server.MetricsAddress, server.NewMetricsRouter()))
	}

	errs := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *server.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("server %s: %w", srv.Address(), err)
			}
		}(srv)
		slog.Info("Server listening " + srv.Address())
	}

	var serveErr error
	select {
	case <-appCtx.Done():
	case serveErr = <-errs:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second*10)
	defer shutdownCancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown", "error", err)
		}
	}
	slog.Info("Server stopped")

	return serveErr
}
