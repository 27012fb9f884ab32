package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/foundry"
	"interviewer/pkg/interview"
	"interviewer/pkg/metrics"
	"interviewer/pkg/orchestrator"
	"interviewer/pkg/persistence"
	"interviewer/pkg/testkit"
)

type stubHealth struct{ status foundry.HealthStatus }

func (s stubHealth) ValidateConnection(context.Context) foundry.HealthStatus { return s.status }

func newTestServer(t *testing.T, factory interview.AgentFactory, opts ...Option) (*httptest.Server, *orchestrator.AgentOrchestrator, *Handler) {
	t.Helper()
	o := orchestrator.New(factory)
	h := NewHandler(o, opts...)
	srv := httptest.NewServer(NewRouter(h, map[string]http.Handler{
		"/metrics": http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
	}))
	t.Cleanup(srv.Close)
	return srv, o, h
}

func do(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestStartStandardSession(t *testing.T) {
	srv, o, _ := newTestServer(t, testkit.NewScriptedFactory())

	resp, body := do(t, http.MethodPost, srv.URL+"/sessions", StartRequest{
		Standard: &orchestrator.StandardSessionParams{
			SessionID: "api-1",
			Candidate: interview.CandidateProfile{Name: "Sam", ExperienceLevel: interview.LevelEntry},
			Company:   interview.CompanyInfo{Industry: "Fintech"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "api-1", body["session_id"])

	metrics := body["metrics"].(map[string]any)
	assert.EqualValues(t, 2, metrics["phases_completed"])
	assert.EqualValues(t, 1, metrics["phases_skipped"])
	assert.Len(t, body["questions"], 8)
	testkit.AssertNoActiveSessions(t, o)
}

func TestStartExplicitSessionAssignsID(t *testing.T) {
	srv, _, _ := newTestServer(t, testkit.NewScriptedFactory())

	cfg := testkit.NewSession("").WithPhase("tech", interview.AgentTechnical, 2).Build()
	resp, body := do(t, http.MethodPost, srv.URL+"/sessions", StartRequest{Session: &cfg})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["session_id"])
	assert.Len(t, body["questions"], 2)
}

func TestStartSessionBadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t, testkit.NewScriptedFactory())
	valid := testkit.NewSession("x").WithPhase("tech", interview.AgentTechnical, 1).Build()
	invalid := testkit.NewSession("x").WithPhase("tech", "oracle", 1).Build()

	tests := []struct {
		name string
		body any
	}{
		{"empty", StartRequest{}},
		{"both", StartRequest{Standard: &orchestrator.StandardSessionParams{}, Session: &valid}},
		{"invalid phases", StartRequest{Session: &invalid}},
		{"unknown field", map[string]any{"bogus": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+"/sessions", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}

	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAsyncSessionLifecycle(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	factory := testkit.NewScriptedFactory().
		On(interview.AgentTechnical, func(_ context.Context, ictx interview.InterviewContext) ([]interview.Question, error) {
			close(started)
			<-release
			return testkit.MakeQuestions("tech", ictx.TargetQuestionCount), nil
		})
	srv, o, h := newTestServer(t, factory)

	cfg := testkit.NewSession("async-1").
		WithPhase("tech", interview.AgentTechnical, 2).
		WithPhase("beh", interview.AgentBehavioral, 2).
		Build()
	resp, body := do(t, http.MethodPost, srv.URL+"/sessions", StartRequest{Session: &cfg, Async: true})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "async-1", body["session_id"])

	<-started

	resp, body = do(t, http.MethodGet, srv.URL+"/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"async-1"}, body["sessions"])

	resp, body = do(t, http.MethodGet, srv.URL+"/sessions/async-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["total_phases"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/sessions", StartRequest{Session: &cfg, Async: true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, http.MethodDelete, srv.URL+"/sessions/async-1", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, true, body["cancelled"])

	// Cancelling frees the id right away.
	resp, _ = do(t, http.MethodGet, srv.URL+"/sessions/async-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	close(release)
	h.Wait()
	testkit.AssertNoActiveSessions(t, o)

	resp, _ = do(t, http.MethodGet, srv.URL+"/sessions/async-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, srv.URL+"/sessions/async-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConcurrentAsyncStartsWithSameID(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	var once sync.Once
	factory := testkit.NewScriptedFactory().
		On(interview.AgentTechnical, func(_ context.Context, ictx interview.InterviewContext) ([]interview.Question, error) {
			once.Do(func() { close(started) })
			<-release
			return testkit.MakeQuestions("tech", ictx.TargetQuestionCount), nil
		})
	srv, o, h := newTestServer(t, factory)

	cfg := testkit.NewSession("dup").WithPhase("tech", interview.AgentTechnical, 1).Build()

	const posts = 8
	statuses := make(chan int, posts)
	var wg sync.WaitGroup
	for i := 0; i < posts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, _ := do(t, http.MethodPost, srv.URL+"/sessions", StartRequest{Session: &cfg, Async: true})
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	counts := map[int]int{}
	for status := range statuses {
		counts[status]++
	}
	assert.Equal(t, map[int]int{http.StatusAccepted: 1, http.StatusConflict: posts - 1}, counts)

	<-started
	close(release)
	h.Wait()
	testkit.AssertNoActiveSessions(t, o)
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		status foundry.HealthStatus
		want   int
	}{
		{"healthy", foundry.HealthStatus{OK: true, Status: 200}, http.StatusOK},
		{"not found counts as healthy", foundry.HealthStatus{OK: true, Status: 404}, http.StatusOK},
		{"server error", foundry.HealthStatus{OK: false, Status: 500, Error: "status 500"}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(t, testkit.NewScriptedFactory(), WithHealthChecker(stubHealth{tt.status}))
			resp, body := do(t, http.MethodGet, srv.URL+"/health", nil)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, tt.status.OK, body["ok"])
		})
	}
}

func TestHealthWithoutChecker(t *testing.T) {
	srv, _, _ := newTestServer(t, testkit.NewScriptedFactory())
	resp, _ := do(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMountedHandlers(t *testing.T) {
	srv, _, _ := newTestServer(t, testkit.NewScriptedFactory())
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResultsArePersistedAndServed(t *testing.T) {
	store, err := persistence.Open(persistence.MemoryPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	requests := make(chan *persistence.Request, 8)
	workerDone := make(chan struct{})
	go func() {
		persistence.RunWorker(context.Background(), store, requests)
		close(workerDone)
	}()

	srv, _, _ := newTestServer(t, testkit.NewScriptedFactory(), WithResults(store), WithPersistence(requests))

	cfg := testkit.NewSession("stored-1").WithPhase("tech", interview.AgentTechnical, 3).Build()
	resp, _ := do(t, http.MethodPost, srv.URL+"/sessions", StartRequest{Session: &cfg})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Drain the worker so the write is visible.
	close(requests)
	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("persistence worker did not finish")
	}

	resp, body := do(t, http.MethodGet, srv.URL+"/results/stored-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stored-1", body["session_id"])

	resp, body = do(t, http.MethodGet, srv.URL+"/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["results"], 1)

	resp, _ = do(t, http.MethodGet, srv.URL+"/results/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/results/stored-1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/results/stored-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, srv.URL+"/results/stored-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUsageReportsRecordedPhases(t *testing.T) {
	rec := metrics.NewInternalRecorder()
	o := orchestrator.New(testkit.NewScriptedFactory(), orchestrator.WithRecorder(rec))
	srv := httptest.NewServer(NewRouter(NewHandler(o, WithUsage(rec)), nil))
	defer srv.Close()

	cfg := testkit.NewSession("usage-1").
		WithPhase("tech", interview.AgentTechnical, 3).
		WithPhase("beh", interview.AgentBehavioral, 2).
		Build()
	resp, _ := do(t, http.MethodPost, srv.URL+"/sessions", StartRequest{Session: &cfg})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodGet, srv.URL+"/usage", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessions, ok := body["sessions"].(map[string]any)
	require.True(t, ok)
	usage, ok := sessions["usage-1"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, usage["phases_completed"])
	assert.EqualValues(t, 5, usage["questions"])
}

func TestUsageDisabledWithoutReporter(t *testing.T) {
	srv, _, _ := newTestServer(t, testkit.NewScriptedFactory())
	resp, _ := do(t, http.MethodGet, srv.URL+"/usage", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResultsRoutesDisabledWithoutStore(t *testing.T) {
	srv, _, _ := newTestServer(t, testkit.NewScriptedFactory())
	resp, _ := do(t, http.MethodGet, srv.URL+"/results", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
