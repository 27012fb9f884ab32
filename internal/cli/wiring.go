package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"interviewer/pkg/agent"
	"interviewer/pkg/foundry"
	"interviewer/pkg/interview"
	"interviewer/pkg/logx"
	"interviewer/pkg/metrics"
	"interviewer/pkg/orchestrator"
	"interviewer/pkg/persistence"
)

// runtime is the wired foundry client and orchestrator of one command.
type runtime struct {
	client       *foundry.Client
	orchestrator *orchestrator.AgentOrchestrator
}

// newRuntime initializes a foundry client from the configured sources and
// builds an orchestrator whose agents share it.
func (o *globalOptions) newRuntime(ctx context.Context, rec metrics.Recorder, estimator interview.Estimator) (*runtime, error) {
	client := foundry.New(foundry.FileSource(o.configPath), foundry.WithRecorder(rec))
	if err := client.Init(ctx, false); err != nil {
		return nil, logx.Errorf("failed to initialize foundry client: %w", err)
	}

	orch := orchestrator.New(agent.NewFactory(client),
		orchestrator.WithEstimator(estimator),
		orchestrator.WithRecorder(rec),
	)
	return &runtime{client: client, orchestrator: orch}, nil
}

func (o *globalOptions) openStore() (*persistence.Store, error) {
	store, err := persistence.Open(o.dbPath)
	if err != nil {
		return nil, logx.Wrap(err, "failed to open result store")
	}
	return store, nil
}

// estimatorFor returns a tokenizer-backed estimator for model, or the flat
// rate table when model is empty.
func estimatorFor(model string) (interview.Estimator, error) {
	if model == "" {
		return interview.DefaultRates(), nil
	}
	est, err := interview.NewTokenEstimator(model, interview.DefaultRates())
	if err != nil {
		return nil, fmt.Errorf("failed to create token estimator for %s: %w", model, err)
	}
	return est, nil
}

// printJSON writes v as JSON, indented when w is a terminal or pretty is set.
func printJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty || isTerminal(w) {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
