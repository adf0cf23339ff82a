package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/phantasma-ai/specky/internal/model"
	"github.com/phantasma-ai/specky/pkg/metrics"
)

const (
	// StreamName is the name of the session events stream.
	StreamName = "SPECKY_EVENTS"

	// SubjectPrefix is the prefix for all session event subjects.
	SubjectPrefix = "specky"

	// Headers set on every event message.
	HeaderSession   = "Specky-Session"
	HeaderEventType = "Specky-Event-Type"
)

func streamConfig(cfg Config) jetstream.StreamConfig {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	replicas := cfg.Replicas
	if replicas <= 0 {
		replicas = 1
	}

	return jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Chat session turn and completion events",
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      maxAge,
		Duplicates:  DuplicateWindow,
		Storage:     jetstream.FileStorage,
		Replicas:    replicas,
		Compression: jetstream.S2Compression,
	}
}

// EnsureStream creates the events stream or brings an existing one in line
// with the configured settings. It is safe to call repeatedly.
func (c *Client) EnsureStream(ctx context.Context) error {
	if _, err := c.js.CreateOrUpdateStream(ctx, c.stream); err != nil {
		return fmt.Errorf("failed to ensure stream %s: %w", StreamName, err)
	}
	return nil
}

// EventSubject returns the subject for a session event.
func EventSubject(sessionID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, sessionID, eventType)
}

// SessionFilter returns the filter subject for all events of a session.
func SessionFilter(sessionID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, sessionID)
}

// Publish writes an event to the stream and returns its sequence. Events
// carrying an ID are deduplicated by JetStream within DuplicateWindow.
func (c *Client) Publish(ctx context.Context, event *model.TurnEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(EventSubject(event.SessionID, event.Type))
	msg.Data = data
	msg.Header.Set(HeaderSession, event.SessionID)
	msg.Header.Set(HeaderEventType, string(event.Type))

	opts := []jetstream.PublishOpt{jetstream.WithExpectStream(StreamName)}
	if event.ID != "" {
		opts = append(opts, jetstream.WithMsgID(event.ID))
	}

	ack, err := c.js.PublishMsg(ctx, msg, opts...)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(string(event.Type), "error").Inc()
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	status := "ok"
	if ack.Duplicate {
		status = "duplicate"
	}
	metrics.EventsPublished.WithLabelValues(string(event.Type), status).Inc()
	return ack.Sequence, nil
}
