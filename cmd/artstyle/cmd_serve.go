package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-artstyle"
	"github.com/anatolykoptev/go-artstyle/internal/history"
	"github.com/anatolykoptev/go-artstyle/internal/httpapi"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification HTTP API",
		Long: `Serve the classification API. The reference index is loaded or built before
the listener starts; if that fails the server still runs and answers with
fallback classifications.

Set --history-db to "" to disable classification history and metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			cfg, err := s.serviceConfig(cmd)
			if err != nil {
				return err
			}
			logger := cfg.Logger

			opts := httpapi.Options{MaxConcurrent: s.MaxConcurrent, Logger: logger}
			if s.HistoryDB != "" {
				if err := os.MkdirAll(filepath.Dir(s.HistoryDB), 0o755); err != nil {
					return fmt.Errorf("create history directory: %w", err)
				}
				store, err := history.Open(ctx, s.HistoryDB, logger)
				if err != nil {
					return err
				}
				defer store.Close()
				cfg.OnClassification = store.Hook()
				opts.Metrics = store
			}

			svc, err := artstyle.New(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.Warm(ctx); err != nil {
				logger.Warn("artstyle: reference index unavailable, serving fallbacks", "error", err.Error())
			}

			srv := httpapi.New(svc, opts)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(s.Addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("artstyle: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-errCh
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default :8000)")
	cmd.Flags().String("history-db", "", "SQLite file for classification history (default .artstyle/history.db)")
	return cmd
}
