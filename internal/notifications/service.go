package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"reelvault/internal/config"
)

const userAgent = "Reelvault/0.1.0"

// Service fans conversion events out to in-process subscribers and, when
// configured, to an ntfy topic for push notifications.
type Service interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(buffer int) (<-chan Event, func())
	TestNotification(ctx context.Context) error
}

// NewService builds the notification hub. ntfy delivery is enabled only when
// a topic is configured.
func NewService(cfg *config.Config) Service {
	hub := newHub()
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return hub
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hub.ntfy = &ntfySender{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
	return hub
}

// NewNop returns a hub without ntfy delivery; subscribers still receive
// events. Useful in tests and for embedders that only want the SSE feed.
func NewNop() Service {
	return newHub()
}

type hub struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	ntfy        *ntfySender
}

func newHub() *hub {
	return &hub{subscribers: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel function must be called
// to release the subscription. Slow subscribers lose events rather than
// blocking publishers.
func (h *hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if sub, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(sub)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber and pushes terminal events
// to ntfy. The returned error only reflects ntfy delivery.
func (h *hub) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	for _, sub := range h.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
	sender := h.ntfy
	h.mu.Unlock()

	if sender == nil {
		return nil
	}
	data, ok := ntfyPayload(event)
	if !ok {
		return nil
	}
	return sender.send(ctx, data)
}

func (h *hub) TestNotification(ctx context.Context) error {
	h.mu.Lock()
	sender := h.ntfy
	h.mu.Unlock()
	if sender == nil {
		return nil
	}
	return sender.send(ctx, payload{
		title:    "Reelvault - Test",
		message:  "Notification system test",
		tags:     []string{"reelvault", "test"},
		priority: "low",
	})
}

// ntfyPayload maps events to push notifications. Progress and queue chatter
// stay local; only moments a person cares about go to their phone.
func ntfyPayload(event Event) (payload, bool) {
	switch event.Type {
	case EventJobCompleted:
		return payload{
			title:   "Reelvault - Conversion Complete",
			message: fmt.Sprintf("Finished %s (job %d)", event.PresetID, event.JobID),
			tags:    []string{"reelvault", "conversion", "completed"},
		}, true
	case EventJobFailed:
		message := fmt.Sprintf("Conversion failed (job %d)", event.JobID)
		if event.Message != "" {
			message = fmt.Sprintf("%s: %s", message, event.Message)
		}
		return payload{
			title:    "Reelvault - Conversion Failed",
			message:  message,
			tags:     []string{"reelvault", "conversion", "failed"},
			priority: "high",
		}, true
	case EventBatchCompleted:
		title := "Reelvault - Batch Complete"
		if event.Failed > 0 {
			title = "Reelvault - Batch Complete (with errors)"
		}
		return payload{
			title: title,
			message: fmt.Sprintf("Batch %s finished: %d succeeded, %d failed of %d",
				event.BatchID, event.Completed, event.Failed, event.Total),
			tags: []string{"reelvault", "batch", "completed"},
		}, true
	}
	return payload{}, false
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfySender struct {
	endpoint string
	client   *http.Client
}

func (n *ntfySender) send(ctx context.Context, data payload) error {
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
