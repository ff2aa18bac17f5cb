package domain

import (
	"context"
	"time"
)

// EventKind identifies a host notification.
type EventKind string

const (
	EventGenerationStarted EventKind = "generation_started"
	EventGenerationEnded   EventKind = "generation_ended"
	EventGenerationStopped EventKind = "generation_stopped"
	EventMessageSent       EventKind = "message_sent"
	EventMessageSwiped     EventKind = "message_swiped"
	EventMessageEdited     EventKind = "message_edited"
	EventMessageDeleted    EventKind = "message_deleted"
	EventContextChanged    EventKind = "context_changed"
)

// EventKinds lists every kind a host may raise.
var EventKinds = []EventKind{
	EventGenerationStarted,
	EventGenerationEnded,
	EventGenerationStopped,
	EventMessageSent,
	EventMessageSwiped,
	EventMessageEdited,
	EventMessageDeleted,
	EventContextChanged,
}

// GenerationMode distinguishes a fresh generation from a swipe regeneration.
type GenerationMode string

const (
	GenerationNew   GenerationMode = "new"
	GenerationSwipe GenerationMode = "swipe"
)

// Event is a host notification queued for the lifecycle machine.
type Event struct {
	Kind EventKind `json:"kind" yaml:"kind"`

	// Mode and DryRun only apply to EventGenerationStarted.
	Mode   GenerationMode `json:"mode,omitempty" yaml:"mode,omitempty"`
	DryRun bool           `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`

	// MessageIndex is informational (edited/deleted message).
	MessageIndex int `json:"message_index,omitempty" yaml:"message_index,omitempty"`
}

// Phase is a lifecycle machine state.
type Phase string

const (
	PhaseIdle            Phase = "IDLE"
	PhaseAwaitGeneration Phase = "AWAIT_GENERATION"
	PhaseProcessing      Phase = "PROCESSING"
)

// EventBase contains common fields for all hook events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	BatchID   string    `json:"batch_id,omitempty"`
}

// BatchEvent describes one parse-apply-reconcile cycle.
type BatchEvent struct {
	EventBase
	Promoted int           `json:"promoted"`
	Parsed   int           `json:"parsed"`
	Derived  int           `json:"derived"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration,omitempty"`
}

// CommandEvent is raised after each command, successful or not.
type CommandEvent struct {
	EventBase
	Type     CommandType   `json:"type"`
	Origin   Origin        `json:"origin"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration,omitempty"`
}

// TransitionEvent is raised for every event consumed by the lifecycle machine.
type TransitionEvent struct {
	EventBase
	Event   EventKind `json:"event"`
	From    Phase     `json:"from"`
	To      Phase     `json:"to"`
	Dropped bool      `json:"dropped,omitempty"`
	Err     error     `json:"-"`
}

// Hooks defines callbacks for engine observability. Nil callbacks are skipped.
type Hooks struct {
	OnBatchStart func(context.Context, *BatchEvent)
	OnBatchEnd   func(context.Context, *BatchEvent)
	OnCommand    func(context.Context, *CommandEvent)
	OnTransition func(context.Context, *TransitionEvent)
}

// Merge combines hooks so that both sets are called, h first.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnBatchStart: chain(h.OnBatchStart, other.OnBatchStart),
		OnBatchEnd:   chain(h.OnBatchEnd, other.OnBatchEnd),
		OnCommand:    chain(h.OnCommand, other.OnCommand),
		OnTransition: chain(h.OnTransition, other.OnTransition),
	}
}

func chain[T any](a, b func(context.Context, T)) func(context.Context, T) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, ev T) {
		a(ctx, ev)
		b(ctx, ev)
	}
}
