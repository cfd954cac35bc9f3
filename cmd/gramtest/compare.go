package main

import (
	"github.com/spf13/cobra"

	"github.com/cgast/gramtest/pkg/compare"
	"github.com/cgast/gramtest/pkg/report"
)

func newCompareCmd(g *globalFlags) *cobra.Command {
	var (
		style       string
		suggestions string
		window      int
	)
	cmd := &cobra.Command{
		Use:   "compare <baseline> <candidate>",
		Short: "Report drift between two checker outputs",
		Long: `Compare two files of checker markup, one analysed sentence per line, and
report errors found only in the baseline, only in the candidate, or
reported differently. Blank lines are skipped in both files.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			m, err := matcherFor(cmd, e.cfg, suggestions, false)
			if err != nil {
				return infraError(err)
			}

			c := compare.New(compare.WithMatcher(m), compare.WithLogger(e.log))
			res, err := c.CompareFiles(cmd.Context(), args[0], args[1])
			if err != nil {
				return infraError(err)
			}

			if window <= 0 {
				window = e.cfg.Report.Window
			}
			if err := compare.Render(cmd.OutOrStdout(), res, compare.RenderOptions{
				Style:  style,
				Color:  e.color,
				Window: window,
			}); err != nil {
				return infraError(err)
			}
			if code := res.ExitCode(); code != report.ExitOK {
				return &exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&style, "output", "o", "normal", "output style (normal|final|json)")
	cmd.Flags().StringVar(&suggestions, "suggestions", "superset", "suggestion policy (superset|exact|ignore)")
	cmd.Flags().IntVar(&window, "window", 0, "characters of context shown around an error")
	return cmd
}
