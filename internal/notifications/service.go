// Package notifications pushes operator-facing events over ntfy. A missing
// topic configures the noop implementation so callers never branch.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"patchwatch/internal/config"
)

const userAgent = "patchwatch/1.0"

// Service defines the notification surface exposed to sweep and approval
// components.
type Service interface {
	NotifyUpdateCommitted(ctx context.Context, title, version, method string) error
	NotifyPendingCreated(ctx context.Context, title, reason string) error
	NotifyApprovalResolved(ctx context.Context, title, outcome string) error
	NotifySweepCompleted(ctx context.Context, checked, updates, pending int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		events:   cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	events   config.Notifications
}

func (n *ntfyService) NotifyUpdateCommitted(ctx context.Context, title, version, method string) error {
	if !n.events.Updates {
		return nil
	}
	title = strings.TrimSpace(title)
	version = strings.TrimSpace(version)
	message := fmt.Sprintf("Update committed: %s", title)
	if version != "" {
		message = fmt.Sprintf("%s -> %s", message, version)
	}
	if method != "" {
		message = fmt.Sprintf("%s (%s)", message, method)
	}
	data := payload{
		title:   "Patchwatch - Update",
		message: message,
		tags:    []string{"patchwatch", "update", "committed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPendingCreated(ctx context.Context, title, reason string) error {
	if !n.events.Pending {
		return nil
	}
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Needs review: %s", title)
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s\n%s", message, reason)
	}
	data := payload{
		title:    "Patchwatch - Pending Approval",
		message:  message,
		tags:     []string{"patchwatch", "approval", "pending"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyApprovalResolved(ctx context.Context, title, outcome string) error {
	if !n.events.Resolved {
		return nil
	}
	data := payload{
		title:   "Patchwatch - Approval Resolved",
		message: fmt.Sprintf("Approval %s: %s", strings.TrimSpace(outcome), strings.TrimSpace(title)),
		tags:    []string{"patchwatch", "approval", "resolved"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySweepCompleted(ctx context.Context, checked, updates, pending int, duration time.Duration) error {
	if !n.events.SweepSummary {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	data := payload{
		title: "Patchwatch - Sweep Complete",
		message: fmt.Sprintf("Checked %d titles in %s: %d updates, %d pending",
			checked, duration, updates, pending),
		tags: []string{"patchwatch", "sweep", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.events.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "Patchwatch - Error",
		message:  builder.String(),
		tags:     []string{"patchwatch", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Patchwatch - Test",
		message:  "Notification system test",
		tags:     []string{"patchwatch", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyUpdateCommitted(context.Context, string, string, string) error { return nil }
func (noopService) NotifyPendingCreated(context.Context, string, string) error          { return nil }
func (noopService) NotifyApprovalResolved(context.Context, string, string) error        { return nil }
func (noopService) NotifySweepCompleted(context.Context, int, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
