package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/lookout/pkg/events"
	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/metrics"
)

const (
	// DefaultBaseURL is the public ntfy server
	DefaultBaseURL = "https://ntfy.sh"

	// DefaultPriority is the ntfy priority used when none is configured
	DefaultPriority = "default"

	sendTimeout = 10 * time.Second
)

// Config configures the ntfy notifier
type Config struct {
	// BaseURL of the ntfy server
	BaseURL string `yaml:"base_url"`

	// Topic to publish to. A full http(s) URL is used as is.
	Topic string `yaml:"topic"`

	// Priority for ordinary notifications (min, low, default, high, urgent)
	Priority string `yaml:"priority"`
}

// Enabled reports whether a topic is configured
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Topic) != ""
}

// URL resolves the publish URL for the configured topic
func (c Config) URL() string {
	if strings.HasPrefix(c.Topic, "http://") || strings.HasPrefix(c.Topic, "https://") {
		return c.Topic
	}
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(c.Topic, "/")
}

// Message is one push notification
type Message struct {
	Title    string
	Body     string
	Priority string
	Tags     []string
}

// Notifier publishes supervisor alerts to an ntfy topic
type Notifier struct {
	config Config
	http   *http.Client
	logger zerolog.Logger
}

// New creates a notifier. hc may be nil.
func New(config Config, hc *http.Client) *Notifier {
	if config.Priority == "" {
		config.Priority = DefaultPriority
	}
	if hc == nil {
		hc = &http.Client{Timeout: sendTimeout}
	}
	return &Notifier{
		config: config,
		http:   hc,
		logger: log.WithComponent("notify"),
	}
}

// Send posts msg to the topic
func (n *Notifier) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL(), bytes.NewBufferString(msg.Body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}

	priority := msg.Priority
	if priority == "" {
		priority = n.config.Priority
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", msg.Title)
	req.Header.Set("Priority", priority)
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}

	resp, err := n.http.Do(req)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		metrics.UpdateComponent(metrics.ComponentNotifier, false, err.Error())
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		metrics.NotificationsTotal.WithLabelValues("rejected").Inc()
		metrics.UpdateComponent(metrics.ComponentNotifier, false, resp.Status)
		return fmt.Errorf("ntfy returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	metrics.UpdateComponent(metrics.ComponentNotifier, true, "")
	return nil
}

// Publish sends ev if it is worth a notification. Failures are logged.
// It implements events.Sink, but blocks for the duration of the request;
// use Run to decouple it from the publisher.
func (n *Notifier) Publish(ev *events.Event) {
	msg, ok := MessageFor(ev, n.config.Priority)
	if !ok {
		return
	}

	if err := n.Send(context.Background(), msg); err != nil {
		n.logger.Error().Err(err).Str("event", string(ev.Type)).Msg("Failed to send notification")
		return
	}
	n.logger.Info().Str("event", string(ev.Type)).Msg("Notification sent")
}

// Run forwards events from sub until ctx is done or sub is closed
func (n *Notifier) Run(ctx context.Context, sub events.Subscriber) {
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			n.Publish(ev)
		case <-ctx.Done():
			return
		}
	}
}

// MessageFor maps an event to a notification. Only alerts and command
// failures notify.
func MessageFor(ev *events.Event, priority string) (Message, bool) {
	stamp := ev.Timestamp.Format("15:04:05")

	switch ev.Type {
	case events.EventUnexpectedStop:
		return Message{
			Title:    "Detection stopped unexpectedly",
			Body:     fmt.Sprintf("[%s] %s", stamp, ev.Message),
			Priority: "high",
			Tags:     []string{"warning", "rotating_light"},
		}, true

	case events.EventHeartbeatStale:
		return Message{
			Title:    "Detection heartbeat stale",
			Body:     fmt.Sprintf("[%s] %s", stamp, ev.Message),
			Priority: priority,
			Tags:     []string{"warning", "hourglass"},
		}, true

	case events.EventCommandFailed:
		title := "Session command failed"
		if cmd := ev.Metadata["command"]; cmd != "" {
			title = fmt.Sprintf("Session %s failed", cmd)
		}
		return Message{
			Title:    title,
			Body:     fmt.Sprintf("[%s] %s", stamp, ev.Message),
			Priority: priority,
			Tags:     []string{"x"},
		}, true
	}

	return Message{}, false
}
