package model

import (
	"time"
)

// EventType represents the type of session event.
type EventType string

const (
	EventTypeTurnAppended     EventType = "turn_appended"
	EventTypeCompletionFailed EventType = "completion_failed"
	EventTypeContextPruned    EventType = "context_pruned"
)

// TurnEvent is published whenever a session's history changes or a
// completion attempt fails.
type TurnEvent struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Type      EventType      `json:"type"`
	Assistant bool           `json:"assistant,omitempty"`
	Text      string         `json:"text,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
