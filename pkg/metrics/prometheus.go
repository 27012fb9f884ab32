package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names shared with QueryService.
const (
	metricPhaseCost   = "interview_phase_cost_total"
	metricPhaseTokens = "interview_phase_tokens_total"
)

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	attemptsTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	retryDelay      *prometheus.HistogramVec
	phasesTotal     *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec
	questionsTotal  *prometheus.CounterVec
	costsTotal      *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
}

// NewPrometheusRecorder registers collectors on reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry or a fresh
// prometheus.NewRegistry() to keep instances isolated.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foundry_requests_total",
				Help: "Total logical foundry requests by method, final status and error kind",
			},
			[]string{"method", "status", "error_kind"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "foundry_request_duration_seconds",
				Help:    "End-to-end duration of logical foundry requests including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foundry_attempts_total",
				Help: "Total HTTP attempts issued to the foundry",
			},
			[]string{"method"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foundry_retries_total",
				Help: "Total retries by cause",
			},
			[]string{"reason"},
		),
		retryDelay: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "foundry_retry_delay_seconds",
				Help:    "Backoff delay slept before a retry",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"reason"},
		),
		phasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_phases_total",
				Help: "Interview phases by agent type and outcome",
			},
			[]string{"agent_type", "outcome"},
		),
		phaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "interview_phase_duration_seconds",
				Help:    "Execution time of interview phases",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent_type"},
		),
		questionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_questions_total",
				Help: "Questions accepted into sessions",
			},
			[]string{"agent_type"},
		),
		costsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPhaseCost,
				Help: "Estimated cost of completed phases",
			},
			[]string{"session_id", "agent_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPhaseTokens,
				Help: "Estimated tokens of completed phases",
			},
			[]string{"session_id", "agent_type"},
		),
	}
}

// ObserveRequest records a logical request.
func (p *PrometheusRecorder) ObserveRequest(obs RequestObservation) {
	status := "none"
	if obs.Status > 0 {
		status = strconv.Itoa(obs.Status)
	}
	p.requestsTotal.WithLabelValues(obs.Method, status, obs.ErrorKind).Inc()
	p.requestDuration.WithLabelValues(obs.Method).Observe(obs.Duration.Seconds())
	p.attemptsTotal.WithLabelValues(obs.Method).Add(float64(obs.Attempts))
}

// ObserveRetry records a retry.
func (p *PrometheusRecorder) ObserveRetry(_, reason string, delay time.Duration) {
	p.retriesTotal.WithLabelValues(reason).Inc()
	p.retryDelay.WithLabelValues(reason).Observe(delay.Seconds())
}

// ObservePhase records a phase. Cost and tokens accrue only for completed phases.
func (p *PrometheusRecorder) ObservePhase(obs PhaseObservation) {
	p.phasesTotal.WithLabelValues(obs.AgentType, obs.Outcome).Inc()
	if obs.Outcome == OutcomeSkipped {
		return
	}
	p.phaseDuration.WithLabelValues(obs.AgentType).Observe(obs.Duration.Seconds())
	if obs.Outcome != OutcomeCompleted {
		return
	}
	p.questionsTotal.WithLabelValues(obs.AgentType).Add(float64(obs.Questions))
	p.costsTotal.WithLabelValues(obs.SessionID, obs.AgentType).Add(obs.Cost)
	p.tokensTotal.WithLabelValues(obs.SessionID, obs.AgentType).Add(float64(obs.Tokens))
}
