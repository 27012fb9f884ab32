package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"interviewer/pkg/foundry"
	"interviewer/pkg/interview"
	"interviewer/pkg/metrics"
)

func newValidateCommand(opts *globalOptions) *cobra.Command {
	var checkConnection bool

	cmd := &cobra.Command{
		Use:   "validate <session.yaml>",
		Short: "Validate a session definition",
		Long: `Parse and validate a YAML session definition and show which phases
would run for its candidate. With --connection the foundry is probed too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := interview.LoadSessionFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printPlan(out, &cfg)

			if !checkConnection {
				return nil
			}
			client := foundry.New(foundry.FileSource(opts.configPath), foundry.WithRecorder(metrics.Nop()))
			status := client.ValidateConnection(cmd.Context())
			if !status.OK {
				return fmt.Errorf("foundry connection check failed: %s", status.Error)
			}
			fmt.Fprintf(out, "\nFoundry reachable (status %d)\n", status.Status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkConnection, "connection", false, "Also check the foundry connection")
	return cmd
}

// printPlan lists the phases of cfg and whether each would run.
func printPlan(w io.Writer, cfg *interview.SessionConfig) {
	id := cfg.SessionID
	if id == "" {
		id = "(assigned at run time)"
	}
	fmt.Fprintf(w, "Session %s: %d phases for %s (%s)\n\n", id, len(cfg.Phases),
		displayName(cfg.Candidate.Name), displayName(string(cfg.Candidate.ExperienceLevel)))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPHASE\tAGENT\tQUESTIONS\tPLAN")
	for i := range cfg.Phases {
		p := &cfg.Phases[i]
		plan := "run"
		if reason := interview.SkipReason(p, &cfg.Candidate, &cfg.Role, &cfg.Company); reason != "" {
			plan = "skip: " + reason
		} else if p.Optional {
			plan = "run (optional)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", i+1, p.ID, p.AgentType, p.QuestionCount, plan)
	}
	_ = tw.Flush()
}

func displayName(s string) string {
	if s == "" {
		return "unspecified"
	}
	return s
}
