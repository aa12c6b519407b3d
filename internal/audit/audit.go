// Package audit captures key matching actions for downstream consumers. Keep
// events transport-agnostic so sinks (log, Kafka, memory) can fan out.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Action names the audited operation.
type Action string

const (
	ActionMatchCommitted     Action = "match_committed"
	ActionMirrorFailed       Action = "mirror_failed"
	ActionManualMatchCreated Action = "manual_match_created"
	ActionConsumedFlagsReset Action = "consumed_flags_reset"
	ActionDemoDataCleared    Action = "demo_data_cleared"
)

// Event is emitted from the matching engine to capture key actions.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      Action    `json:"action"`
	DonorID     string    `json:"donorId,omitempty"`
	RecipientID string    `json:"recipientId,omitempty"`
	Organ       string    `json:"organ,omitempty"`
	BlockID     string    `json:"blockId,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

// Emitter is the port the engine publishes through. Emission failures must
// never fail the business operation; implementations log and move on.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// LogEmitter writes events to the process logger. The default sink when no
// broker is configured.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(ctx context.Context, event Event) {
	e.logger.InfoContext(ctx, "audit event",
		"action", string(event.Action),
		"donor_id", event.DonorID,
		"recipient_id", event.RecipientID,
		"organ", event.Organ,
		"block_id", event.BlockID,
		"detail", event.Detail,
	)
}

// MemorySink records events for test assertions.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a copy of everything emitted so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

// ByAction filters recorded events by action.
func (s *MemorySink) ByAction(action Action) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, event := range s.events {
		if event.Action == action {
			out = append(out, event)
		}
	}
	return out
}
