package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"interviewer/pkg/metrics"
)

// envPrometheusURL selects the Prometheus server queried by cost.
const envPrometheusURL = "PROMETHEUS_URL"

func newCostCommand(opts *globalOptions) *cobra.Command {
	var prometheusURL string

	cmd := &cobra.Command{
		Use:   "cost <session-id>",
		Short: "Show the estimated usage of a session",
		Long: `Show estimated tokens and cost of a session, broken down by agent
type. With --prometheus (or PROMETHEUS_URL) the figures come from the
metrics scraped off 'interviewctl serve'; otherwise from the result store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if prometheusURL == "" {
				prometheusURL = os.Getenv(envPrometheusURL)
			}

			var (
				cost *metrics.SessionCost
				err  error
			)
			if prometheusURL != "" {
				cost, err = costFromPrometheus(cmd, prometheusURL, args[0])
			} else {
				cost, err = costFromStore(cmd, opts, args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cost, opts.pretty)
		},
	}

	cmd.Flags().StringVar(&prometheusURL, "prometheus", "", "Prometheus server URL")
	return cmd
}

func costFromPrometheus(cmd *cobra.Command, url, sessionID string) (*metrics.SessionCost, error) {
	qs, err := metrics.NewQueryService(url)
	if err != nil {
		return nil, err
	}
	return qs.GetSessionCost(cmd.Context(), sessionID)
}

func costFromStore(cmd *cobra.Command, opts *globalOptions, sessionID string) (*metrics.SessionCost, error) {
	store, err := opts.openStore()
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	// Resolve the session first so an unknown id is an error, not zero cost.
	if _, err := store.GetResult(cmd.Context(), sessionID); err != nil {
		return nil, err
	}
	records, err := store.PhaseRecords(cmd.Context(), sessionID)
	if err != nil {
		return nil, err
	}

	cost := &metrics.SessionCost{SessionID: sessionID, ByAgent: map[string]float64{}}
	for _, rec := range records {
		if rec.Outcome != metrics.OutcomeCompleted {
			continue
		}
		cost.Tokens += int64(rec.Tokens)
		cost.Cost += rec.Cost
		cost.ByAgent[rec.AgentType] += rec.Cost
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("session %s has no stored phases", sessionID)
	}
	return cost, nil
}
