package telemetry

import (
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
)

// Client records usage events.
type Client interface {
	// Track queues an event. No-op when telemetry is disabled.
	Track(event string, properties map[string]any)

	// Close flushes pending events.
	Close() error
}

// Properties is a type alias for event properties.
type Properties = map[string]any

// eventSchema lists the properties each event may carry. Anything else is
// dropped before it leaves the process, so titles, user ids and exact
// durations can never be sent by mistake.
var eventSchema = map[string]map[string]bool{
	EventPredictionServed: {"reason": true, "category": true, "samples": true},
	EventModelUpdated:     {"samples": true, "category": true},
	EventTaskCompleted:    {"actual": true, "had_estimate": true, "learn_status": true},
	EventCommandExecuted:  {"command": true},
}

// sanitize keeps the allowed properties of a known event. Unknown events
// are rejected.
func sanitize(event string, properties map[string]any) (posthog.Properties, bool) {
	allowed, ok := eventSchema[event]
	if !ok {
		return nil, false
	}
	props := posthog.NewProperties()
	for k, v := range properties {
		if allowed[k] {
			props.Set(k, v)
		}
	}
	return props, true
}

type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// PostHogClient sends events to PostHog in the background.
type PostHogClient struct {
	mu        sync.RWMutex
	client    enqueuer
	config    *Config
	version   string
	sessionID string
	closed    bool
}

// NewPostHogClient connects to PostHog. endpoint may be empty for PostHog cloud.
func NewPostHogClient(apiKey, endpoint, version string, cfg *Config) (*PostHogClient, error) {
	phConfig := posthog.Config{
		BatchSize: 10,
		Interval:  time.Second,
		// Nothing may reach stdout: the MCP server speaks JSON-RPC there.
		Logger: quietPostHogLogger{},
	}
	if endpoint != "" {
		phConfig.Endpoint = endpoint
	}
	ph, err := posthog.NewWithConfig(apiKey, phConfig)
	if err != nil {
		return nil, err
	}
	return newPostHogClient(ph, cfg, version), nil
}

func newPostHogClient(enq enqueuer, cfg *Config, version string) *PostHogClient {
	return &PostHogClient{
		client:    enq,
		config:    cfg,
		version:   version,
		sessionID: uuid.NewString(),
	}
}

// Track queues event with its allowed properties plus platform fields.
func (c *PostHogClient) Track(event string, properties map[string]any) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed || !c.config.IsEnabled() {
		return
	}
	props, ok := sanitize(event, properties)
	if !ok {
		return
	}
	props.Set("os", runtime.GOOS)
	props.Set("arch", runtime.GOARCH)
	props.Set("app_version", c.version)
	props.Set("$session_id", c.sessionID)
	props.Set("$process_person_profile", false)

	_ = c.client.Enqueue(posthog.Capture{
		DistinctId: c.config.AnonymousID,
		Event:      event,
		Properties: props,
	})
}

// Close flushes the queue. Later calls do nothing.
func (c *PostHogClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// NoopClient discards every event.
type NoopClient struct{}

func (NoopClient) Track(string, map[string]any) {}
func (NoopClient) Close() error                 { return nil }

// NewNoopClient returns a client that does nothing.
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

type quietPostHogLogger struct{}

func (quietPostHogLogger) Debugf(string, ...interface{}) {}
func (quietPostHogLogger) Logf(string, ...interface{})   {}
func (quietPostHogLogger) Warnf(string, ...interface{})  {}
func (quietPostHogLogger) Errorf(string, ...interface{}) {}
