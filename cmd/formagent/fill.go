package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/formagent/formagent/bus"
	"github.com/formagent/formagent/cache"
	"github.com/formagent/formagent/filler"
	"github.com/formagent/formagent/store"
)

// NewFillCmd creates the fill command: open pages, fill them once, exit.
func NewFillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fill url...",
		Short: "Fill one or more pages and exit",
		Long: `Fill opens each URL in its own browser tab, matches the profile
against the form controls, fills what it safely can, and prints the
per-page fill count. It runs self-contained and does not need a
running watch daemon.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFillCmd,
	}
}

func runFillCmd(cmd *cobra.Command, args []string) error {
	logger, cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	var firstErr error
	for _, pageURL := range args {
		page, err := browser.OpenPage(ctx, pageURL)
		if err != nil {
			logger.Error("fill: open page", "url", pageURL, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n, err := fl.FillPage(ctx, page)
		if err != nil {
			logger.Error("fill: fill page", "url", pageURL, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tfilled %d\n", pageURL, n)
	}
	return firstErr
}
