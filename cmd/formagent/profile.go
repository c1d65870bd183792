package main

import (
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/formagent/formagent/bus"
	"github.com/formagent/formagent/settings"
	"github.com/formagent/formagent/store"
)

// NewProfileCmd creates the profile command group.
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit the stored profile",
		Long: `Profile reads and writes the form-filling profile. Edits go through
the running watch daemon when one is reachable, otherwise straight to
the store.`,
	}
	cmd.AddCommand(newProfileShowCmd(), newProfileSetCmd())
	return cmd
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the profile fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := profileController(cmd)
			if err != nil {
				return err
			}
			view, err := ctrl.Load(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			if view.FullName != "" {
				fmt.Fprintf(w, "full name\t%s\n", view.FullName)
			}
			for _, k := range view.Fields.Keys() {
				v, _ := view.Fields.Get(k)
				fmt.Fprintf(w, "%s\t%s\n", k, v)
			}
			return w.Flush()
		},
	}
}

func newProfileSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set key=value...",
		Short: "Update profile fields",
		Long: `Set loads the current profile, applies the given key=value edits,
and writes the result back as a full replacement. Setting a key to an
empty value removes it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := profileController(cmd)
			if err != nil {
				return err
			}
			view, err := ctrl.Load(cmd.Context())
			if err != nil {
				return err
			}
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok || strings.TrimSpace(k) == "" {
					return fmt.Errorf("profile: bad argument %q, want key=value", arg)
				}
				view.Fields.Set(strings.TrimSpace(k), v)
			}

			status := ctrl.Save(cmd.Context(), view.Fields)
			fmt.Fprintln(cmd.OutOrStdout(), status.Message)
			if !status.OK {
				return fmt.Errorf("profile: %s", status.Message)
			}
			return nil
		},
	}
}

// profileController builds a settings controller whose bus routes point
// at the watch daemon and whose fallback is the store itself.
func profileController(cmd *cobra.Command) (*settings.Controller, error) {
	logger, cfg, err := setup(cmd)
	if err != nil {
		return nil, err
	}

	router := bus.New(bus.WithLogger(logger))
	daemon := "http://" + cfg.Listen.Addr
	router.RegisterRemote(bus.MsgGetProfile, daemon)
	router.RegisterRemote(bus.MsgUpdateProfile, daemon)
	router.RegisterRemote(bus.MsgProfileUpdated, daemon)

	client := store.NewClient(cfg.Store.URL,
		store.WithHTTPClient(&http.Client{Timeout: cfg.Store.Timeout()}))
	return settings.New(router, client, settings.WithLogger(logger)), nil
}
