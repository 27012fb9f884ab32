// Package testkit provides scripted foundry servers, scripted agents and
// assertions for interview session tests.
package testkit

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Step is one scripted response.
type Step struct {
	Status int           // Defaults to 200
	Body   string        // Written verbatim
	Delay  time.Duration // Wait before responding, cut short if the client goes away
	Hangup bool          // Close the connection without responding
}

// JSON returns a Step with v encoded as the body.
func JSON(status int, v any) Step {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testkit: marshal step body: %v", err))
	}
	return Step{Status: status, Body: string(data)}
}

// Status returns a Step with an empty JSON object body.
func Status(status int) Step {
	return Step{Status: status, Body: "{}"}
}

// RecordedRequest is a request seen by a FoundryServer.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// FoundryServer replays scripted steps in order, then repeats Fallback.
type FoundryServer struct {
	*httptest.Server

	mu       sync.Mutex
	steps    []Step
	fallback Step
	requests []RecordedRequest
}

// NewFoundryServer starts a server that answers with steps, then 200 "{}".
func NewFoundryServer(steps ...Step) *FoundryServer {
	s := &FoundryServer{steps: steps, fallback: Status(http.StatusOK)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Enqueue appends steps to the script.
func (s *FoundryServer) Enqueue(steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, steps...)
}

// SetFallback sets the response used once the script is exhausted.
func (s *FoundryServer) SetFallback(step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = step
}

// Calls returns the number of requests received.
func (s *FoundryServer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of the recorded requests.
func (s *FoundryServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *FoundryServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	step := s.fallback
	if len(s.steps) > 0 {
		step = s.steps[0]
		s.steps = s.steps[1:]
	}
	s.mu.Unlock()

	serveStep(w, r, step)
}

func serveStep(w http.ResponseWriter, r *http.Request, step Step) {
	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if step.Hangup {
		hj, ok := w.(http.Hijacker)
		if !ok {
			panic("testkit: response writer does not support hijacking")
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
		return
	}

	status := step.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, step.Body)
}

// QuestionRequest is the body the question agent posts.
type QuestionRequest struct {
	SessionID     string         `json:"session_id"`
	PhaseIndex    int            `json:"phase_index"`
	TotalPhases   int            `json:"total_phases"`
	QuestionCount int            `json:"question_count"`
	Temperature   *float64       `json:"temperature,omitempty"`
	Model         string         `json:"model,omitempty"`
	Context       map[string]any `json:"context"`
}

// MockQuestionServer emulates the foundry question endpoints
// (POST /v1/agents/{type}/questions). It generates QuestionCount questions
// plus extra, so callers can check truncation. Agent types listed in failing
// answer 500.
func MockQuestionServer(extra int, failing ...string) *httptest.Server {
	fail := make(map[string]bool, len(failing))
	for _, f := range failing {
		fail[f] = true
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && (r.URL.Path == "/" || r.URL.Path == "/health") {
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, `{"status":"ok"}`)
			return
		}

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 4 || parts[0] != "v1" || parts[1] != "agents" || parts[3] != "questions" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		agentType := parts[2]
		if fail[agentType] {
			http.Error(w, `{"error":"agent unavailable"}`, http.StatusInternalServerError)
			return
		}

		var req QuestionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		questions := make([]map[string]any, 0, req.QuestionCount+extra)
		for i := 0; i < req.QuestionCount+extra; i++ {
			questions = append(questions, map[string]any{
				"id":         fmt.Sprintf("%s-%d-%d", agentType, req.PhaseIndex, i+1),
				"text":       fmt.Sprintf("%s question %d for phase %d", agentType, i+1, req.PhaseIndex),
				"category":   agentType,
				"difficulty": "medium",
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"questions": questions,
			"usage":     map[string]any{"input_tokens": 100, "output_tokens": 40 * len(questions)},
		})
	}))
}
