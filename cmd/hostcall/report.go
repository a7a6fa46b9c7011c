package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/funvibe/hostinterop/internal/profile"
)

var reportCmd = &cobra.Command{
	Use:   "report [flags] <profile.db>",
	Short: "Print call-site profiles recorded with --profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().String("site", "", "print the transitions of one site id")
}

func runReport(cmd *cobra.Command, args []string) error {
	siteID, err := cmd.Flags().GetString("site")
	if err != nil {
		return fmt.Errorf("failed to get site flag: %w", err)
	}
	store, err := profile.Open(args[0])
	if err != nil {
		return err
	}
	defer store.Close()
	out := cmd.OutOrStdout()

	if siteID != "" {
		id, err := uuid.Parse(siteID)
		if err != nil {
			return fmt.Errorf("invalid site id: %w", err)
		}
		ts, err := store.Transitions(id)
		if err != nil {
			return err
		}
		if len(ts) == 0 {
			return fmt.Errorf("no transitions recorded for site %s", id)
		}
		headerColor.Fprintf(out, "site %s (%s)\n", id, ts[0].Name)
		for _, t := range ts {
			fmt.Fprintf(out, "  %s %s -> %s  %s %s\n", dimColor.Sprint(t.At.Format("15:04:05.000")),
				t.From, nameColor.Sprint(t.To), t.Method, typeColor.Sprint(t.Shape))
		}
		return nil
	}

	sum, err := store.Summary()
	if err != nil {
		return err
	}
	if len(sum) == 0 {
		fmt.Fprintln(out, "no call sites recorded")
		return nil
	}
	headerColor.Fprintf(out, "%-36s  %-16s %-13s %s\n", "site", "name", "state", "transitions/methods")
	for _, s := range sum {
		fmt.Fprintf(out, "%-36s  %-16s %-13s %d/%d\n", s.Site, nameColor.Sprint(s.Name), s.State, s.Transitions, s.Methods)
	}
	return nil
}
