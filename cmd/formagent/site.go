package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formagent/formagent/bus"
)

// NewSiteCmd creates the site command group.
func NewSiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Enable or disable filling per site",
		Long: `Site toggles form filling for a hostname. The setting lives with the
running watch daemon, which persists it across restarts.`,
	}
	cmd.AddCommand(
		newSiteToggleCmd("disable", "Disable filling on a host", true),
		newSiteToggleCmd("enable", "Re-enable filling on a host", false),
		newSiteStatusCmd(),
	)
	return cmd
}

func newSiteToggleCmd(use, short string, disabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " host",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			router, err := siteBus(cmd)
			if err != nil {
				return err
			}
			var ack bus.AckResponse
			req := bus.SetSiteDisabledRequest{Host: args[0], IsDisabled: disabled}
			if err := router.CallJSON(cmd.Context(), bus.MsgSetSiteDisabled, req, &ack); err != nil {
				return fmt.Errorf("site: is the watch daemon running? %w", err)
			}
			if disabled {
				fmt.Fprintf(cmd.OutOrStdout(), "filling disabled on %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "filling enabled on %s\n", args[0])
			}
			return nil
		},
	}
}

func newSiteStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status host",
		Short: "Show whether filling is enabled on a host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			router, err := siteBus(cmd)
			if err != nil {
				return err
			}
			var resp bus.GetSiteDisabledResponse
			req := bus.GetSiteDisabledRequest{Host: args[0]}
			if err := router.CallJSON(cmd.Context(), bus.MsgGetSiteDisabled, req, &resp); err != nil {
				return fmt.Errorf("site: is the watch daemon running? %w", err)
			}
			if resp.IsDisabled {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: filling disabled\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: filling enabled\n", args[0])
			}
			return nil
		},
	}
}

func siteBus(cmd *cobra.Command) (*bus.Router, error) {
	logger, cfg, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	router := bus.New(bus.WithLogger(logger))
	daemon := "http://" + cfg.Listen.Addr
	router.RegisterRemote(bus.MsgSetSiteDisabled, daemon)
	router.RegisterRemote(bus.MsgGetSiteDisabled, daemon)
	return router, nil
}
