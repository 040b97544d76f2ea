package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var outagesCmd = &cobra.Command{
	Use:   "outages",
	Short: "List publishers currently in outage",
	RunE:  runOutages,
}

func init() {
	rootCmd.AddCommand(outagesCmd)
}

func runOutages(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx, newLogger())
	if err != nil {
		return err
	}
	defer store.Close()

	pubs, err := store.Publishers.ListInOutage(ctx)
	if err != nil {
		return fmt.Errorf("list outages: %w", err)
	}
	if len(pubs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no publishers in outage")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPUBLISHER\tSINCE\tLAST ERROR")
	for _, p := range pubs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			p.ID, p.DisplayName(), p.Outage.StartedAt.Format(time.RFC3339), p.Outage.LastError)
	}
	return w.Flush()
}
