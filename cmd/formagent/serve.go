package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/formagent/formagent/store"
)

// NewServeCmd creates the serve command: the profile store HTTP server.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the profile store server",
		Long: `Serve runs the HTTP profile store backed by SQLite.

The store holds the single profile (GET/POST /data), learned field
mappings per domain, and the form interpreter endpoint.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("db", "formagent-store.db", "SQLite database path")
	cmd.Flags().String("addr", "127.0.0.1:8590", "Listen address")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	logger, _, err := setup(cmd)
	if err != nil {
		return err
	}
	dbPath, _ := cmd.Flags().GetString("db")
	addr, _ := cmd.Flags().GetString("addr")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           store.NewServer(st, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("store: serving", "addr", addr, "db", dbPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("store: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
