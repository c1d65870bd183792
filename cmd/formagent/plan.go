package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/formagent/formagent/bus"
	"github.com/formagent/formagent/cache"
	"github.com/formagent/formagent/htmlform"
	"github.com/formagent/formagent/store"
)

// NewPlanCmd creates the plan command: parse static HTML and print what
// would be filled, without a browser.
func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [file]",
		Short: "Preview fills against a saved HTML page",
		Long: `Plan parses an HTML document (a file, or stdin when no file is
given), matches the profile against its form controls, and prints the
assignments a fill would make. Nothing is written anywhere.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPlanCmd,
	}
	cmd.Flags().Bool("fill-hidden", false, "Include hidden controls in the plan")
	return cmd
}

func runPlanCmd(cmd *cobra.Command, args []string) error {
	logger, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	fillHidden, _ := cmd.Flags().GetBool("fill-hidden")

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("plan: %w", err)
		}
		defer f.Close()
		in = f
	}

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

	var resp bus.GetProfileResponse
	if err := router.CallJSON(cmd.Context(), bus.MsgGetProfile, nil, &resp); err != nil {
		return fmt.Errorf("plan: load profile: %w", err)
	}
	if resp.Profile == nil || resp.Profile.Len() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no profile available, nothing to plan")
		return nil
	}

	assignments, err := htmlform.Plan(in, resp.Profile, fillHidden)
	if err != nil {
		return err
	}
	if len(assignments) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no fillable controls matched")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, a := range assignments {
		fmt.Fprintf(w, "#%d\t%s\t%s\n", a.Index, a.Key, a.Value)
	}
	return w.Flush()
}
