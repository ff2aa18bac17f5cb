// Package lifecycle serializes host notifications into a one-at-a-time state
// machine over the processing pipeline.
//
// The machine has three phases. IDLE waits for a generation to start,
// AWAIT_GENERATION waits for it to end, and PROCESSING runs one batch over the
// newest message. Events are queued in arrival order and handled by whichever
// caller drained the queue first, so Dispatch is safe from any goroutine.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LynxShu/ST-var-manager/internal/logging"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// Pipeline is the work the machine drives.
type Pipeline interface {
	// ProcessLatest applies the newest message to the state and persists the result.
	ProcessLatest(ctx context.Context) error

	// Resync reloads the latest persisted state from the chat.
	Resync(ctx context.Context) error

	// ReloadForGeneration prepares the state before a generation starts.
	ReloadForGeneration(ctx context.Context, mode domain.GenerationMode) error
}

// Machine is the lifecycle state machine.
type Machine struct {
	pipeline Pipeline
	logger   *slog.Logger
	hooks    domain.Hooks

	mu       sync.Mutex
	phase    domain.Phase
	queue    []domain.Event
	draining bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLifecycleHooks registers transition observers.
func WithLifecycleHooks(hooks domain.Hooks) Option {
	return func(m *Machine) {
		m.hooks = m.hooks.Merge(hooks)
	}
}

// NewMachine creates a machine in the IDLE phase.
func NewMachine(pipeline Pipeline, opts ...Option) *Machine {
	m := &Machine{
		pipeline: pipeline,
		logger:   logging.NewNop(),
		phase:    domain.PhaseIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Phase returns the current phase.
func (m *Machine) Phase() domain.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Dispatch queues ev and, unless another caller is already draining the queue,
// handles queued events until it is empty. Events raised while PROCESSING are
// dropped.
func (m *Machine) Dispatch(ctx context.Context, ev domain.Event) {
	m.mu.Lock()
	if m.phase == domain.PhaseProcessing {
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "event dropped while processing", "event", ev.Kind)
		m.emit(ctx, ev, domain.PhaseProcessing, domain.PhaseProcessing, true, nil)
		return
	}
	m.queue = append(m.queue, ev)
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		m.handle(ctx, next)
	}
}

func (m *Machine) setPhase(p domain.Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

func (m *Machine) handle(ctx context.Context, ev domain.Event) {
	from := m.Phase()

	err := m.transition(ctx, from, ev)
	to := m.Phase()
	if err != nil {
		m.logger.ErrorContext(ctx, "transition failed, resetting to idle", "event", ev.Kind, "phase", from, "error", err)
		m.setPhase(domain.PhaseIdle)
		to = domain.PhaseIdle
	}
	m.emit(ctx, ev, from, to, false, err)
}

// transition runs the side effects for ev in phase from. Panics are turned into errors.
func (m *Machine) transition(ctx context.Context, from domain.Phase, ev domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s handler: %v", ev.Kind, r)
		}
	}()

	switch from {
	case domain.PhaseIdle:
		switch ev.Kind {
		case domain.EventGenerationStarted:
			if ev.DryRun {
				m.logger.DebugContext(ctx, "dry run generation ignored")
				return nil
			}
			mode := ev.Mode
			if mode == "" {
				mode = domain.GenerationNew
			}
			if err := m.pipeline.ReloadForGeneration(ctx, mode); err != nil {
				return err
			}
			m.setPhase(domain.PhaseAwaitGeneration)
			return nil

		case domain.EventMessageSent:
			m.setPhase(domain.PhaseAwaitGeneration)
			return nil

		case domain.EventMessageSwiped, domain.EventMessageEdited, domain.EventMessageDeleted, domain.EventContextChanged:
			return m.pipeline.Resync(ctx)
		}

	case domain.PhaseAwaitGeneration:
		switch ev.Kind {
		case domain.EventGenerationEnded, domain.EventGenerationStopped:
			m.setPhase(domain.PhaseProcessing)
			if err := m.pipeline.ProcessLatest(ctx); err != nil {
				return err
			}
			m.setPhase(domain.PhaseIdle)
			return nil

		case domain.EventContextChanged:
			m.setPhase(domain.PhaseIdle)
			return m.pipeline.Resync(ctx)
		}
	}

	m.logger.DebugContext(ctx, "event ignored", "event", ev.Kind, "phase", from)
	return nil
}

func (m *Machine) emit(ctx context.Context, ev domain.Event, from, to domain.Phase, dropped bool, err error) {
	if m.hooks.OnTransition == nil {
		return
	}
	m.hooks.OnTransition(ctx, &domain.TransitionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now()},
		Event:     ev.Kind,
		From:      from,
		To:        to,
		Dropped:   dropped,
		Err:       err,
	})
}
