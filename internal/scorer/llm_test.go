package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func chatReply(t *testing.T, content string) []byte {
	t.Helper()
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	return encoded
}

func newTestLLM(t *testing.T, handler http.HandlerFunc, opts ...Option) *LLM {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{
		WithHTTPClient(server.Client()),
		WithSleeper(func(time.Duration) {}),
	}, opts...)
	client, err := NewLLM(Config{APIKey: "test-key", BaseURL: server.URL, Model: "test-model"}, opts...)
	if err != nil {
		t.Fatalf("NewLLM: %v", err)
	}
	return client
}

func sampleRequest() Request {
	return Request{
		EntityTitle:  "Dusk Chronicles",
		KnownVersion: "v1.2.0",
		Listings: []Listing{
			{Title: "Dusk Chronicles v1.3.0 REPACK"},
			{Title: "Dusk Chronicles II"},
		},
	}
}

func TestAnalyzeDecodesAssessments(t *testing.T) {
	client := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		content := `{"assessments":[` +
			`{"index":0,"is_update":true,"confidence":0.93,"reason":"newer version token"},` +
			`{"index":1,"is_update":false,"confidence":0.88,"reason":"sequel"}]}`
		_, _ = w.Write(chatReply(t, content))
	})

	verdicts, err := client.Analyze(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 assessments, got %d", len(verdicts))
	}
	if !verdicts[0].IsUpdate || verdicts[0].Confidence != 0.93 {
		t.Fatalf("unexpected first verdict: %+v", verdicts[0])
	}
	if verdicts[1].IsUpdate {
		t.Fatalf("expected sequel verdict to be non-update: %+v", verdicts[1])
	}
}

func TestAnalyzeStripsCodeFences(t *testing.T) {
	client := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		content := "```json\n{\"assessments\":[{\"index\":0,\"is_update\":true,\"confidence\":0.9,\"reason\":\"ok\"}]}\n```"
		_, _ = w.Write(chatReply(t, content))
	})

	verdicts, err := client.Analyze(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(verdicts) != 1 || !verdicts[0].IsUpdate {
		t.Fatalf("unexpected verdicts: %+v", verdicts)
	}
}

func TestAnalyzeDropsOutOfRangeAndClamps(t *testing.T) {
	client := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		content := `{"assessments":[` +
			`{"index":7,"is_update":true,"confidence":0.9,"reason":"bogus"},` +
			`{"index":0,"is_update":true,"confidence":1.4,"reason":"clamped"}]}`
		_, _ = w.Write(chatReply(t, content))
	})

	verdicts, err := client.Analyze(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(verdicts) != 1 {
		t.Fatalf("expected out-of-range verdict dropped, got %d", len(verdicts))
	}
	if verdicts[0].Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", verdicts[0].Confidence)
	}
}

func TestAnalyzeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		content := `{"assessments":[{"index":0,"is_update":true,"confidence":0.9,"reason":"ok"}]}`
		_, _ = w.Write(chatReply(t, content))
	})

	verdicts, err := client.Analyze(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(verdicts) != 1 {
		t.Fatalf("expected 1 assessment, got %d", len(verdicts))
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestAnalyzeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	if _, err := client.Analyze(context.Background(), sampleRequest()); err == nil {
		t.Fatal("expected error for 401 response")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single attempt, got %d", calls.Load())
	}
}

func TestAnalyzeSkipsEmptyListings(t *testing.T) {
	client := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected upstream call")
	})

	verdicts, err := client.Analyze(context.Background(), Request{EntityTitle: "Dusk Chronicles"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if verdicts != nil {
		t.Fatalf("expected nil verdicts, got %+v", verdicts)
	}
}

func TestNewLLMRequiresCredentials(t *testing.T) {
	if _, err := NewLLM(Config{BaseURL: "https://x"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := NewLLM(Config{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base url")
	}
}

func TestNoopReturnsNothing(t *testing.T) {
	verdicts, err := Noop{}.Analyze(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if verdicts != nil {
		t.Fatalf("expected nil verdicts, got %+v", verdicts)
	}
}
