package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"interviewer/pkg/interview"
	"interviewer/pkg/logx"
	"interviewer/pkg/metrics"
	"interviewer/pkg/orchestrator"
)

type runOptions struct {
	file            string
	sessionID       string
	candidate       string
	level           string
	years           int
	skills          []string
	role            string
	category        string
	company         string
	industry        string
	excludeIndustry bool
	model           string
	timeout         time.Duration
	noSave          bool
}

func newRunCommand(opts *globalOptions) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an interview session",
		Long: `Run a session from a YAML definition (--file) or build the standard
technical, behavioral and industry session from candidate flags. The
result is printed as JSON and stored unless --no-save is given.
Ctrl-C stops the session before its next phase.`,
		Example: `  interviewctl run --file session.yaml
  interviewctl run --candidate "Ada" --level senior --role "Backend Engineer" --industry fintech`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, opts, ro)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ro.file, "file", "f", "", "YAML session definition")
	f.StringVar(&ro.sessionID, "id", "", "Session id (default: generated)")
	f.StringVar(&ro.candidate, "candidate", "", "Candidate name")
	f.StringVar(&ro.level, "level", string(interview.LevelMid), "Experience level: entry, mid, senior or executive")
	f.IntVar(&ro.years, "years", 0, "Years of experience")
	f.StringSliceVar(&ro.skills, "skills", nil, "Candidate skills")
	f.StringVar(&ro.role, "role", "", "Target role title")
	f.StringVar(&ro.category, "category", "engineering", "Target role category")
	f.StringVar(&ro.company, "company", "", "Company name")
	f.StringVar(&ro.industry, "industry", "", "Company industry")
	f.BoolVar(&ro.excludeIndustry, "exclude-industry", false, "Leave out the industry phase")
	f.StringVar(&ro.model, "model", "", "Estimate usage with the tokenizer of this model instead of flat rates")
	f.DurationVar(&ro.timeout, "timeout", 0, "Overall session timeout (0 for none)")
	f.BoolVar(&ro.noSave, "no-save", false, "Do not store the result")
	return cmd
}

// sessionConfig resolves the session to run from the flags.
func (ro *runOptions) sessionConfig(orch *orchestrator.AgentOrchestrator) (interview.SessionConfig, error) {
	if ro.file != "" {
		cfg, err := interview.LoadSessionFile(ro.file)
		if err != nil {
			return interview.SessionConfig{}, err
		}
		if ro.sessionID != "" {
			cfg.SessionID = ro.sessionID
		}
		if strings.TrimSpace(cfg.SessionID) == "" {
			cfg.SessionID = uuid.NewString()
		}
		return cfg, nil
	}

	level := interview.ExperienceLevel(strings.ToLower(ro.level))
	if !level.Valid() {
		return interview.SessionConfig{}, fmt.Errorf("unknown experience level %q", ro.level)
	}
	return orch.CreateStandardSession(orchestrator.StandardSessionParams{
		SessionID: ro.sessionID,
		Candidate: interview.CandidateProfile{
			Name:            ro.candidate,
			ExperienceLevel: level,
			YearsExperience: ro.years,
			Skills:          ro.skills,
		},
		Role:            interview.TargetRole{Title: ro.role, Category: ro.category},
		Company:         interview.CompanyInfo{Name: ro.company, Industry: ro.industry},
		ExcludeIndustry: ro.excludeIndustry,
		Metadata:        map[string]string{"source": "interviewctl"},
	}), nil
}

func runSession(cmd *cobra.Command, opts *globalOptions, ro *runOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if ro.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ro.timeout)
		defer cancel()
	}

	estimator, err := estimatorFor(ro.model)
	if err != nil {
		return err
	}

	rt, err := opts.newRuntime(ctx, metrics.NewInternalRecorder(), estimator)
	if err != nil {
		return err
	}

	cfg, err := ro.sessionConfig(rt.orchestrator)
	if err != nil {
		return err
	}

	logger := logx.NewLogger("interviewctl")
	logger.Info("Running session %s (%d phases)", cfg.SessionID, len(cfg.Phases))

	result, err := rt.orchestrator.StartSession(ctx, cfg)
	if err != nil {
		return err
	}

	if !ro.noSave {
		store, err := opts.openStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		// Save even when the session was interrupted.
		if err := store.SaveResult(context.WithoutCancel(ctx), result); err != nil {
			return err
		}
	}

	if err := printJSON(cmd.OutOrStdout(), result, opts.pretty); err != nil {
		return err
	}
	if result.Metrics.PhasesCompleted == 0 {
		return fmt.Errorf("session %s completed no phases", result.SessionID)
	}
	return nil
}
