package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shortreel/internal/config"
)

const userAgent = "shortreel/0.1.0"

// Service defines the notification surface exposed to the batch.
type Service interface {
	NotifyBatchStarted(ctx context.Context, mode string, resumeIndex, total int) error
	NotifyUnitCompleted(ctx context.Context, index, total int, output string) error
	NotifyBatchCompleted(ctx context.Context, processed int, duration time.Duration) error
	NotifyFatal(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		unitCompleted: cfg.Notifications.UnitCompleted,
		errors:        cfg.Notifications.Errors,
	}
}

// NewNoop returns a service that drops every notification.
func NewNoop() Service { return noopService{} }

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	unitCompleted bool
	errors        bool
}

func (n *ntfyService) NotifyBatchStarted(ctx context.Context, mode string, resumeIndex, total int) error {
	var message string
	if resumeIndex > 0 {
		message = fmt.Sprintf("Resuming %s batch at unit %d of %d", mode, resumeIndex+1, total)
	} else {
		message = fmt.Sprintf("Started %s batch with %d units", mode, total)
	}
	return n.send(ctx, payload{
		title:   "shortreel - Batch Started",
		message: message,
		tags:    []string{"shortreel", "batch", "started"},
	})
}

func (n *ntfyService) NotifyUnitCompleted(ctx context.Context, index, total int, output string) error {
	if !n.unitCompleted {
		return nil
	}
	message := fmt.Sprintf("Unit %d of %d complete", index+1, total)
	if output = strings.TrimSpace(output); output != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, output)
	}
	return n.send(ctx, payload{
		title:   "shortreel - Video Ready",
		message: message,
		tags:    []string{"shortreel", "unit", "completed"},
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, processed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	return n.send(ctx, payload{
		title:    "shortreel - Batch Complete",
		message:  fmt.Sprintf("Batch complete: %d videos produced in %s", processed, duration),
		tags:     []string{"shortreel", "batch", "completed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyFatal(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Batch aborted")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "shortreel - Error",
		message:  builder.String(),
		tags:     []string{"shortreel", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "shortreel - Test",
		message:  "Notification system test",
		tags:     []string{"shortreel", "test"},
		priority: "low",
	})
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

func (noopService) NotifyBatchStarted(context.Context, string, int, int) error     { return nil }
func (noopService) NotifyUnitCompleted(context.Context, int, int, string) error    { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, time.Duration) error { return nil }
func (noopService) NotifyFatal(context.Context, error, string) error               { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }
