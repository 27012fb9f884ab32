// Package orchestrator drives multi-phase interview sessions.
//
// Phases of one session run strictly in order, because each phase receives the
// questions and agent responses of the phases before it. Separate sessions run
// concurrently; the only shared state is the registry of active sessions.
// A phase failure never aborts a session: it is recorded in the phase result
// and the remaining phases still run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"interviewer/pkg/interview"
	"interviewer/pkg/logx"
	"interviewer/pkg/metrics"
)

// ErrSessionActive is returned when a session id is already running.
var ErrSessionActive = errors.New("session already active")

// Option configures an AgentOrchestrator.
type Option func(*AgentOrchestrator)

// WithEstimator sets the per-phase usage estimator.
func WithEstimator(e interview.Estimator) Option {
	return func(o *AgentOrchestrator) { o.estimator = e }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *AgentOrchestrator) { o.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *logx.Logger) Option {
	return func(o *AgentOrchestrator) { o.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *AgentOrchestrator) { o.now = now }
}

// activeSession is a registry entry. Its state is the last published copy;
// the running session owns the working state.
type activeSession struct {
	state interview.SessionState
}

// AgentOrchestrator runs interview sessions against agents from an injected factory.
//
//nolint:govet // Logical field grouping preferred over memory alignment
type AgentOrchestrator struct {
	factory   interview.AgentFactory
	estimator interview.Estimator
	recorder  metrics.Recorder
	logger    *logx.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*activeSession
}

// New creates an orchestrator that builds agents with factory.
func New(factory interview.AgentFactory, opts ...Option) *AgentOrchestrator {
	o := &AgentOrchestrator{
		factory:   factory,
		estimator: interview.DefaultRates(),
		recorder:  metrics.Nop(),
		logger:    logx.NewLogger("orchestrator"),
		now:       time.Now,
		sessions:  make(map[string]*activeSession),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartSession runs every phase of cfg and returns the result. The error is
// non-nil only when cfg is invalid or its id is already active; phase
// failures are reported in the result.
func (o *AgentOrchestrator) StartSession(ctx context.Context, cfg interview.SessionConfig) (*interview.SessionResult, error) {
	run, err := o.begin(&cfg)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, &cfg, run), nil
}

// StartSessionAsync validates and registers cfg before returning, then runs
// its phases in the background. The channel receives the result once.
func (o *AgentOrchestrator) StartSessionAsync(ctx context.Context, cfg interview.SessionConfig) (<-chan *interview.SessionResult, error) {
	run, err := o.begin(&cfg)
	if err != nil {
		return nil, err
	}
	done := make(chan *interview.SessionResult, 1)
	go func() {
		done <- o.execute(ctx, &cfg, run)
	}()
	return done, nil
}

// sessionRun is the working state of one StartSession call.
type sessionRun struct {
	state interview.SessionState
	entry *activeSession
}

func (o *AgentOrchestrator) begin(cfg *interview.SessionConfig) (*sessionRun, error) {
	if o.factory == nil {
		return nil, fmt.Errorf("orchestrator has no agent factory")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	run := &sessionRun{state: newSessionState(cfg, o.now())}
	entry, err := o.register(&run.state)
	if err != nil {
		return nil, err
	}
	run.entry = entry
	return run, nil
}

func (o *AgentOrchestrator) execute(ctx context.Context, cfg *interview.SessionConfig, run *sessionRun) *interview.SessionResult {
	defer o.unregister(cfg.SessionID, run.entry)

	ctx = logx.WithSessionID(ctx, cfg.SessionID)
	o.logger.Info("Starting session %s with %d phases", cfg.SessionID, len(cfg.Phases))

	result := &interview.SessionResult{
		SessionID:    cfg.SessionID,
		PhaseResults: make([]interview.PhaseResult, 0, len(cfg.Phases)),
		StartedAt:    run.state.StartTime,
	}

	for i := range cfg.Phases {
		if !o.isRegistered(cfg.SessionID, run.entry) || ctx.Err() != nil {
			result.Cancelled = true
			o.logger.Warn("Session %s cancelled before phase %d/%d", cfg.SessionID, i+1, len(cfg.Phases))
			break
		}
		result.PhaseResults = append(result.PhaseResults, o.runPhase(ctx, cfg, &run.state, run.entry, i))
	}

	result.Questions = run.state.Questions
	result.FinishedAt = o.now()
	result.Metrics = summarize(result, len(cfg.Phases))

	o.logger.Info("Session %s finished: %d completed, %d skipped, %d failed (success rate %.2f) in %v",
		cfg.SessionID, result.Metrics.PhasesCompleted, result.Metrics.PhasesSkipped,
		result.Metrics.PhasesFailed, result.Metrics.SuccessRate, result.Metrics.TotalExecutionTime)
	return result
}

// runPhase executes phase i and folds its outcome into state.
func (o *AgentOrchestrator) runPhase(ctx context.Context, cfg *interview.SessionConfig, state *interview.SessionState,
	entry *activeSession, i int,
) interview.PhaseResult {
	phase := cfg.Phases[i]
	phaseStart := o.now()
	pr := interview.PhaseResult{Phase: phase}

	obs := metrics.PhaseObservation{
		SessionID: cfg.SessionID,
		PhaseID:   phase.ID,
		AgentType: string(phase.AgentType),
	}

	if reason := interview.SkipReason(&phase, &cfg.Candidate, &cfg.Role, &cfg.Company); reason != "" {
		o.logger.Info("Skipping optional phase %s for session %s: %s", phase.ID, cfg.SessionID, reason)
		pr.Skipped = true
		pr.SkipReason = reason
		o.advance(state, entry, i, nil)

		obs.Outcome = metrics.OutcomeSkipped
		o.recorder.ObservePhase(obs)
		return pr
	}

	questions, raw, err := o.generate(ctx, cfg, state, i)
	pr.ExecutionTime = o.now().Sub(phaseStart)
	obs.Duration = pr.ExecutionTime

	if err != nil {
		pr.Error = err.Error()
		if phase.Optional {
			o.logger.Info("Optional phase %s of session %s failed: %v", phase.ID, cfg.SessionID, err)
		} else {
			o.logger.Warn("Required phase %s of session %s failed: %v", phase.ID, cfg.SessionID, err)
		}
		o.advance(state, entry, i, nil)

		obs.Outcome = metrics.OutcomeFailed
		o.recorder.ObservePhase(obs)
		return pr
	}

	usage := o.estimator.Estimate(phase.AgentType, questions)
	pr.Success = true
	pr.Questions = questions
	pr.Tokens = usage.Tokens
	pr.Cost = usage.Cost
	o.advance(state, entry, i, &interview.AgentResponse{
		PhaseID:    phase.ID,
		AgentType:  phase.AgentType,
		Questions:  raw,
		ReceivedAt: o.now(),
	}, questions...)

	logx.Debug(ctx, "orchestrator", "phase %s produced %d questions (%d requested)",
		phase.ID, len(questions), phase.QuestionCount)

	obs.Outcome = metrics.OutcomeCompleted
	obs.Questions = len(questions)
	obs.Tokens = usage.Tokens
	obs.Cost = usage.Cost
	o.recorder.ObservePhase(obs)
	return pr
}

// generate creates the phase agent and calls it. It returns the accepted
// (truncated, tagged) questions and the agent's untouched output.
func (o *AgentOrchestrator) generate(ctx context.Context, cfg *interview.SessionConfig, state *interview.SessionState,
	i int,
) (accepted, raw []interview.Question, err error) {
	phase := &cfg.Phases[i]

	agent, err := o.factory.CreateAgent(phase.AgentType, phase.AgentConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s agent: %w", phase.AgentType, err)
	}
	if agent == nil {
		return nil, nil, fmt.Errorf("factory returned no %s agent", phase.AgentType)
	}

	ictx := snapshot(cfg, state, i)

	raw, err = callAgent(ctx, agent, ictx)
	if err != nil {
		return nil, nil, fmt.Errorf("%s agent failed: %w", phase.AgentType, err)
	}

	accepted = slices.Clone(raw)
	if len(accepted) > phase.QuestionCount {
		accepted = accepted[:phase.QuestionCount]
	}
	for j := range accepted {
		if accepted[j].PhaseID == "" {
			accepted[j].PhaseID = phase.ID
		}
		if accepted[j].AgentType == "" {
			accepted[j].AgentType = phase.AgentType
		}
	}
	return accepted, raw, nil
}

// callAgent converts an agent panic into a phase error.
func callAgent(ctx context.Context, agent interview.Agent, ictx interview.InterviewContext) (questions []interview.Question, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panicked: %v", r)
		}
	}()
	return agent.GenerateQuestions(ctx, ictx)
}

// snapshot builds the InterviewContext for phase i from the session state.
func snapshot(cfg *interview.SessionConfig, state *interview.SessionState, i int) interview.InterviewContext {
	history := interview.SessionHistory{
		PreviousQuestions: slices.Clone(state.Questions),
		PreviousResponses: slices.Clone(state.AgentResponses),
		CurrentPhase:      i,
		TotalPhases:       len(cfg.Phases),
	}

	return interview.InterviewContext{
		SessionID:           cfg.SessionID,
		Candidate:           cfg.Candidate,
		Role:                cfg.Role,
		Company:             cfg.Company,
		TargetQuestionCount: cfg.Phases[i].QuestionCount,
		History:             history,
	}
}

// advance marks phase i as processed, appends any accepted output and
// publishes the state while the session is still registered.
func (o *AgentOrchestrator) advance(state *interview.SessionState, entry *activeSession, i int,
	resp *interview.AgentResponse, questions ...interview.Question,
) {
	state.Questions = append(state.Questions, questions...)
	if resp != nil {
		state.AgentResponses = append(state.AgentResponses, *resp)
	}
	state.CurrentPhase = i + 1
	state.LastUpdateTime = o.now()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessions[state.SessionID] == entry {
		entry.state = state.Clone()
	}
}

func newSessionState(cfg *interview.SessionConfig, start time.Time) interview.SessionState {
	return interview.SessionState{
		SessionID:      cfg.SessionID,
		TotalPhases:    len(cfg.Phases),
		Questions:      []interview.Question{},
		AgentResponses: []interview.AgentResponse{},
		StartTime:      start,
		LastUpdateTime: start,
		Metadata:       cloneMetadata(cfg.Metadata),
	}
}

func (o *AgentOrchestrator) register(state *interview.SessionState) (*activeSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.sessions[state.SessionID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, state.SessionID)
	}
	entry := &activeSession{state: state.Clone()}
	o.sessions[state.SessionID] = entry
	return entry, nil
}

// unregister removes entry unless a cancel already did and a new run reused the id.
func (o *AgentOrchestrator) unregister(sessionID string, entry *activeSession) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessions[sessionID] == entry {
		delete(o.sessions, sessionID)
	}
}

// isRegistered reports whether entry is still the registry's entry for the id.
// A cancelled session is no longer registered.
func (o *AgentOrchestrator) isRegistered(sessionID string, entry *activeSession) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[sessionID] == entry
}

// GetSessionState returns a copy of a running session's state.
func (o *AgentOrchestrator) GetSessionState(sessionID string) (interview.SessionState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.sessions[sessionID]
	if !ok {
		return interview.SessionState{}, false
	}
	return s.state.Clone(), true
}

// GetActiveSessions returns the ids of running sessions in sorted order.
func (o *AgentOrchestrator) GetActiveSessions() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]string, 0, len(o.sessions))
	for id := range o.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CancelSession removes a running session from the registry, so it stops
// before its next phase and its id is free again. An agent call already in
// flight is allowed to finish. It returns false for unknown ids.
func (o *AgentOrchestrator) CancelSession(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.sessions[sessionID]; !ok {
		return false
	}
	delete(o.sessions, sessionID)
	o.logger.Info("Cancelled session %s", sessionID)
	return true
}

// summarize computes aggregate metrics over declared phases.
func summarize(result *interview.SessionResult, declared int) interview.SessionMetrics {
	var m interview.SessionMetrics
	for i := range result.PhaseResults {
		pr := &result.PhaseResults[i]
		switch {
		case pr.Skipped:
			m.PhasesSkipped++
		case pr.Success:
			m.PhasesCompleted++
			m.EstimatedCost += pr.Cost
			m.EstimatedTokens += pr.Tokens
		default:
			m.PhasesFailed++
		}
	}
	m.TotalExecutionTime = result.FinishedAt.Sub(result.StartedAt)
	if declared > 0 {
		m.SuccessRate = float64(m.PhasesCompleted) / float64(declared)
	}
	return m
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
