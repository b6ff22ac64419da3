package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nemoship/internal/config"
)

const userAgent = "nemoship/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventDeployStarted   Event = "deploy_started"
	EventDeployCompleted Event = "deploy_completed"
	EventArchiveBuilt    Event = "archive_built"
	EventError           Event = "error"
	EventTest            Event = "test"
)

// Payload carries event fields.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc actually delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventDeployStarted:
		// Started events are noisy for a single-operator tool.
		return message{}, false
	case EventArchiveBuilt:
		return message{
			title: "nemoship - Archive Built",
			body:  fmt.Sprintf("📦 Packaged %s\n%s", payload.str("model"), payload.str("archive")),
			tags:  []string{"nemoship", "archive", "built"},
		}, true
	case EventDeployCompleted:
		body := fmt.Sprintf("🚀 Endpoint %s %s", payload.str("endpoint"), actionVerb(payload.str("action")))
		if elapsed, ok := payload["elapsed"].(time.Duration); ok && elapsed > 0 {
			body = fmt.Sprintf("%s in %s", body, elapsed.Round(time.Second))
		}
		if model := payload.str("model"); model != "" {
			body = fmt.Sprintf("%s\nModel: %s", body, model)
		}
		return message{
			title:    "nemoship - Deployed",
			body:     body,
			tags:     []string{"nemoship", "deploy", "completed"},
			priority: "high",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := payload.str("context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if text := payload.str("error"); text != "" {
			b.WriteString(text)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "nemoship - Error",
			body:     b.String(),
			tags:     []string{"nemoship", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "nemoship - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"nemoship", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func actionVerb(action string) string {
	switch action {
	case "update":
		return "updated"
	case "create":
		return "created"
	case "":
		return "deployed"
	default:
		return action
	}
}

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
