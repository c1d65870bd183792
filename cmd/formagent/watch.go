package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/formagent/formagent/bus"
	"github.com/formagent/formagent/cache"
	"github.com/formagent/formagent/filler"
	"github.com/formagent/formagent/mcpserv"
	"github.com/formagent/formagent/store"
)

const version = "0.3.0"

// NewWatchCmd creates the watch command: the long-lived fill daemon.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [url...]",
		Short: "Run the fill daemon",
		Long: `Watch owns the profile cache, a browser, and the message bus.

Configured pages (plus any given as arguments) are opened, filled once,
and watched: when the DOM grows, the page is re-filled after a quiet
interval. Other formagent commands reach this daemon over its bus
address.`,
		Args: cobra.ArbitraryArgs,
		RunE: runWatchCmd,
	}

	cmd.Flags().Bool("mcp", false, "Also serve MCP tools on stdio")

	return cmd
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	logger, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	serveMCP, _ := cmd.Flags().GetBool("mcp")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cache owner: store client, durable fallback, actor.
	client := store.NewClient(cfg.Store.URL,
		store.WithHTTPClient(&http.Client{Timeout: cfg.Store.Timeout()}))
	durable, err := cache.OpenDurable(cfg.State.DBPath)
	if err != nil {
		return err
	}
	defer durable.Close()

	mgr := cache.New(client, durable, logger)
	defer mgr.Close()

	router := bus.New(bus.WithLogger(logger))
	mgr.RegisterBus(router)

	// Browser and fill pipeline.
	browser := filler.NewBrowser(filler.BrowserConfig{
		RemoteURL: cfg.Browser.Remote,
		Headless:  cfg.Browser.Headless(),
		Logger:    logger,
	})
	if err := browser.Start(); err != nil {
		return err
	}
	defer browser.Close()

	fl := filler.New(router,
		filler.WithFillHidden(cfg.Scan.FillHidden),
		filler.WithLogger(logger))
	scanner := filler.NewScanner(browser, fl,
		filler.WithDebounceWindow(cfg.Scan.Debounce()),
		filler.WithScannerLogger(logger))
	defer scanner.Close()
	scanner.RegisterBus(router)

	pages := append([]string{}, cfg.Scan.Pages...)
	pages = append(pages, args...)
	for _, pageURL := range pages {
		if _, err := scanner.Open(ctx, pageURL); err != nil {
			logger.Warn("watch: open page failed", "url", pageURL, "error", err)
		}
	}

	// Bus HTTP surface for the other commands.
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Handle("/msg/*", router)

	srv := &http.Server{
		Addr:              cfg.Listen.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("watch: bus listening", "addr", cfg.Listen.Addr, "pages", len(pages))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if serveMCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "formagent", Version: version}, nil)
		mcpserv.NewService(router,
			mcpserv.WithScanner(scanner),
			mcpserv.WithLogger(logger)).Register(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("watch: mcp server", "error", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("watch: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
