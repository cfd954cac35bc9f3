package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cgast/gramtest/pkg/history"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		limit   int
		asJSON  bool
		prune   int
		failing bool
	)
	cmd := &cobra.Command{
		Use:   "history [suite]",
		Short: "Show recorded runs",
		Long: `Without arguments, list the suites that have recorded runs. With a suite
name, show its most recent runs, newest first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			store, err := history.Open(e.cfg.History.Path)
			if err != nil {
				return infraError(err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				suites, err := store.Suites()
				if err != nil {
					return infraError(err)
				}
				for _, s := range suites {
					fmt.Fprintln(out, s)
				}
				return nil
			}

			suite := args[0]
			if prune > 0 {
				n, err := store.Prune(suite, prune)
				if err != nil {
					return infraError(err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "pruned %d runs of %s\n", n, suite)
			}

			recs, err := store.List(suite, limit)
			if err != nil {
				return infraError(err)
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}
			if len(recs) == 0 {
				fmt.Fprintf(out, "no runs recorded for %s\n", suite)
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tTOTAL\tPASSED\tFAILED\tERRORED\tDURATION")
			for _, r := range recs {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%s\n", r.Seq, r.StartedAt.Local().Format(time.DateTime),
					r.Total, r.Passed, r.Failed, r.Errored, r.Duration.Round(time.Millisecond))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if failing {
				fmt.Fprintf(out, "\nfailing in run %d:\n", recs[0].Seq)
				for _, id := range recs[0].Failing() {
					fmt.Fprintf(out, "  %s\n", id)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show, 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	cmd.Flags().IntVar(&prune, "prune", 0, "keep only the newest N runs of the suite")
	cmd.Flags().BoolVar(&failing, "failing", false, "list the cases failing in the newest run")
	return cmd
}
