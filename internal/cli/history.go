package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List stored sessions or show one result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				result, err := store.GetResult(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(out, result, opts.pretty)
			}

			summaries, err := store.ListResults(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, summaries, opts.pretty)
			}
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No stored sessions")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tSTARTED\tDURATION\tDONE/SKIP/FAIL\tQUESTIONS\tEST. COST")
			for i := range summaries {
				s := &summaries[i]
				status := fmt.Sprintf("%d/%d/%d", s.PhasesCompleted, s.PhasesSkipped, s.PhasesFailed)
				if s.Cancelled {
					status += " (cancelled)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%d\t$%.4f\n",
					s.SessionID, s.StartedAt.Local().Format(time.DateTime),
					s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond),
					status, s.Questions, s.EstimatedCost)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the list as JSON")
	return cmd
}
