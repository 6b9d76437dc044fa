package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

func TestStdoutEnvelopes(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	ctx := context.Background()

	if err := s.SendResult(ctx, scenario.Result{Scenario: "unlocked", Status: scenario.StatusPassed}); err != nil {
		t.Fatal(err)
	}
	if err := s.SendReport(ctx, scenario.Report{RunID: "run_1"}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: got %d", len(lines))
	}
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "result" || !strings.Contains(string(env.Data), `"scenario":"unlocked"`) {
		t.Errorf("first line: %s", lines[0])
	}
	if err := json.Unmarshal([]byte(lines[1]), &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "report" || !strings.Contains(string(env.Data), `"run_id":"run_1"`) {
		t.Errorf("second line: %s", lines[1])
	}
}

func TestWebhookRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"type":"report"`) {
			t.Errorf("body: %s", body)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	if err := w.SendReport(context.Background(), scenario.Report{RunID: "run_1"}); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls: got %d, want 3", calls.Load())
	}
}

func TestWebhookExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	err := w.SendResult(context.Background(), scenario.Result{Scenario: "x"})
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("got %v", err)
	}
}

type failing struct{ err error }

func (f failing) SendResult(context.Context, scenario.Result) error { return f.err }
func (f failing) SendReport(context.Context, scenario.Report) error { return f.err }
func (f failing) Close() error                                     { return nil }

func TestRouterDeliversToAll(t *testing.T) {
	errA := errors.New("a down")
	var got []string
	cb := NewCallback(func(_ context.Context, res scenario.Result) error {
		got = append(got, res.Scenario)
		return nil
	}, nil)

	r := NewRouter(nil, failing{errA}, cb, failing{errors.New("b down")})
	err := r.SendResult(context.Background(), scenario.Result{Scenario: "locked"})
	if !errors.Is(err, errA) {
		t.Errorf("first error: got %v", err)
	}
	if len(got) != 1 || got[0] != "locked" {
		t.Errorf("callback not reached: %v", got)
	}
	if err := r.SendReport(context.Background(), scenario.Report{}); !errors.Is(err, errA) {
		t.Errorf("report: got %v", err)
	}
	if r.Len() != 3 {
		t.Errorf("Len: %d", r.Len())
	}
}
