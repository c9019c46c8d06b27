package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"patchwatch/internal/config"
)

type capturedRequest struct {
	Title    string
	Tags     string
	Priority string
	Body     string
}

func newCaptureServer(t *testing.T) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []capturedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, capturedRequest{
			Title:    r.Header.Get("Title"),
			Tags:     r.Header.Get("Tags"),
			Priority: r.Header.Get("Priority"),
			Body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), requests...)
	}
}

func serviceFor(t *testing.T, server *httptest.Server, mutate func(*config.Notifications)) Service {
	t.Helper()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Updates = true
	cfg.Notifications.Pending = true
	cfg.Notifications.Resolved = true
	cfg.Notifications.SweepSummary = true
	cfg.Notifications.Errors = true
	if mutate != nil {
		mutate(&cfg.Notifications)
	}
	return NewService(&cfg)
}

func TestNotifyUpdateCommittedSendsNtfyRequest(t *testing.T) {
	server, captured := newCaptureServer(t)
	svc := serviceFor(t, server, nil)

	if err := svc.NotifyUpdateCommitted(context.Background(), "Dusk Chronicles", "v1.1", "regex_only"); err != nil {
		t.Fatalf("NotifyUpdateCommitted: %v", err)
	}

	requests := captured()
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	got := requests[0]
	if got.Title != "Patchwatch - Update" {
		t.Errorf("unexpected title %q", got.Title)
	}
	if got.Tags != "patchwatch,update,committed" {
		t.Errorf("unexpected tags %q", got.Tags)
	}
	if got.Body != "Update committed: Dusk Chronicles -> v1.1 (regex_only)" {
		t.Errorf("unexpected body %q", got.Body)
	}
}

func TestNotifyPendingCreatedUsesHighPriority(t *testing.T) {
	server, captured := newCaptureServer(t)
	svc := serviceFor(t, server, nil)

	if err := svc.NotifyPendingCreated(context.Background(), "Dusk Chronicles", "score below threshold"); err != nil {
		t.Fatalf("NotifyPendingCreated: %v", err)
	}
	requests := captured()
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	if requests[0].Priority != "high" {
		t.Errorf("expected high priority, got %q", requests[0].Priority)
	}
}

func TestDisabledEventsAreSuppressed(t *testing.T) {
	server, captured := newCaptureServer(t)
	svc := serviceFor(t, server, func(n *config.Notifications) {
		n.Updates = false
		n.Errors = false
	})

	if err := svc.NotifyUpdateCommitted(context.Background(), "Dusk Chronicles", "v1.1", ""); err != nil {
		t.Fatalf("NotifyUpdateCommitted: %v", err)
	}
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "sweep"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if requests := captured(); len(requests) != 0 {
		t.Fatalf("expected no requests, got %d", len(requests))
	}
}

func TestNotifySweepCompletedFormatsSummary(t *testing.T) {
	server, captured := newCaptureServer(t)
	svc := serviceFor(t, server, nil)

	if err := svc.NotifySweepCompleted(context.Background(), 12, 3, 1, 42*time.Second); err != nil {
		t.Fatalf("NotifySweepCompleted: %v", err)
	}
	requests := captured()
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	want := "Checked 12 titles in 42s: 3 updates, 1 pending"
	if requests[0].Body != want {
		t.Errorf("unexpected body %q, want %q", requests[0].Body, want)
	}
}

func TestMissingTopicReturnsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := NewService(&cfg)

	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "sweep"); err != nil {
		t.Fatalf("noop NotifyError: %v", err)
	}
}

func TestNtfyErrorStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	svc := serviceFor(t, server, nil)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 503 response")
	}
}
