package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopRecorderAcceptsEverything(t *testing.T) {
	r := Nop()
	r.ObserveRequest(RequestObservation{Method: http.MethodGet})
	r.ObserveRetry("/x", "status_503", time.Millisecond)
	r.ObservePhase(PhaseObservation{SessionID: "s"})
}

func TestInternalRecorderAggregatesPhases(t *testing.T) {
	r := NewInternalRecorder()
	r.ObservePhase(PhaseObservation{SessionID: "s1", Outcome: OutcomeCompleted, Questions: 4, Tokens: 100, Cost: 0.5})
	r.ObservePhase(PhaseObservation{SessionID: "s1", Outcome: OutcomeCompleted, Questions: 2, Tokens: 50, Cost: 0.25})
	r.ObservePhase(PhaseObservation{SessionID: "s1", Outcome: OutcomeFailed, Questions: 0})
	r.ObservePhase(PhaseObservation{SessionID: "s1", Outcome: OutcomeSkipped})
	r.ObservePhase(PhaseObservation{SessionID: "", Outcome: OutcomeCompleted, Questions: 9})

	usage := r.SessionUsage("s1")
	require.NotNil(t, usage)
	assert.Equal(t, 2, usage.PhasesCompleted)
	assert.Equal(t, 1, usage.PhasesFailed)
	assert.Equal(t, 1, usage.PhasesSkipped)
	assert.Equal(t, 6, usage.Questions)
	assert.Equal(t, int64(150), usage.Tokens)
	assert.InDelta(t, 0.75, usage.Cost, 1e-9)

	assert.Nil(t, r.SessionUsage("missing"))
	assert.Len(t, r.AllSessionUsage(), 1)

	usage.Questions = 999
	assert.Equal(t, 6, r.SessionUsage("s1").Questions, "returned usage must be a copy")
}

func TestInternalRecorderRequests(t *testing.T) {
	r := NewInternalRecorder()
	r.ObserveRequest(RequestObservation{Attempts: 3, Status: 200})
	r.ObserveRequest(RequestObservation{Attempts: 1, ErrorKind: "status"})
	r.ObserveRetry("/a", "status_503", time.Millisecond)

	totals := r.Requests()
	assert.Equal(t, int64(2), totals.Requests)
	assert.Equal(t, int64(1), totals.Failures)
	assert.Equal(t, int64(4), totals.Attempts)
	assert.Equal(t, int64(1), totals.Retries)

	r.Reset()
	assert.Equal(t, RequestTotals{}, r.Requests())
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewInternalRecorder(), NewInternalRecorder()
	m := Multi{a, b}
	m.ObservePhase(PhaseObservation{SessionID: "s", Outcome: OutcomeCompleted, Questions: 1})
	m.ObserveRequest(RequestObservation{Attempts: 1})
	m.ObserveRetry("/", "timeout", 0)

	assert.Equal(t, 1, a.SessionUsage("s").Questions)
	assert.Equal(t, 1, b.SessionUsage("s").Questions)
	assert.Equal(t, int64(1), b.Requests().Retries)
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusRecorder(reg)

	p.ObserveRequest(RequestObservation{Method: http.MethodPost, Status: 200, Attempts: 3, Duration: 10 * time.Millisecond})
	p.ObserveRequest(RequestObservation{Method: http.MethodPost, ErrorKind: "network", Attempts: 1})
	p.ObserveRetry("/v1", "status_503", 100*time.Millisecond)
	p.ObservePhase(PhaseObservation{SessionID: "s1", AgentType: "technical", Outcome: OutcomeCompleted, Questions: 4, Tokens: 200, Cost: 0.04})
	p.ObservePhase(PhaseObservation{SessionID: "s1", AgentType: "industry", Outcome: OutcomeSkipped})

	assert.InDelta(t, 1, testutil.ToFloat64(p.requestsTotal.WithLabelValues(http.MethodPost, "200", "")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(p.requestsTotal.WithLabelValues(http.MethodPost, "none", "network")), 1e-9)
	assert.InDelta(t, 4, testutil.ToFloat64(p.attemptsTotal.WithLabelValues(http.MethodPost)), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(p.retriesTotal.WithLabelValues("status_503")), 1e-9)
	assert.InDelta(t, 4, testutil.ToFloat64(p.questionsTotal.WithLabelValues("technical")), 1e-9)
	assert.InDelta(t, 0.04, testutil.ToFloat64(p.costsTotal.WithLabelValues("s1", "technical")), 1e-9)
	assert.InDelta(t, 200, testutil.ToFloat64(p.tokensTotal.WithLabelValues("s1", "technical")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(p.phasesTotal.WithLabelValues("industry", OutcomeSkipped)), 1e-9)
}

func TestPrometheusRecordersAreIsolatedPerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusRecorder(prometheus.NewRegistry())
		NewPrometheusRecorder(prometheus.NewRegistry())
	})
}

func fakePrometheus(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/api/v1/query") {
			http.NotFound(w, r)
			return
		}
		query := r.FormValue("query")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(query, metricPhaseTokens):
			_, _ = w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000,"350"]}]}}`))
		case strings.Contains(query, metricPhaseCost):
			_, _ = w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[` +
				`{"metric":{"agent_type":"technical"},"value":[1700000000,"0.06"]},` +
				`{"metric":{"agent_type":"behavioral"},"value":[1700000000,"0.04"]}]}}`))
		default:
			_, _ = w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[]}}`))
		}
	}))
}

func TestQueryServiceGetSessionCost(t *testing.T) {
	server := fakePrometheus(t)
	defer server.Close()

	q, err := NewQueryService(server.URL)
	require.NoError(t, err)

	cost, err := q.GetSessionCost(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", cost.SessionID)
	assert.Equal(t, int64(350), cost.Tokens)
	assert.InDelta(t, 0.10, cost.Cost, 1e-9)
	assert.InDelta(t, 0.06, cost.ByAgent["technical"], 1e-9)
}

func TestQueryServiceServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	q, err := NewQueryService(server.URL)
	require.NoError(t, err)

	_, err = q.GetSessionCost(context.Background(), "s1")
	assert.Error(t, err)
}
