package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/google/uuid"
)

// MaxBatchCommands bounds a single batch, including commands derived from EVAL.
const MaxBatchCommands = 4096

// FunctionExecutor runs the function named by an EVAL command against the live
// batch state and returns any commands it derived.
type FunctionExecutor interface {
	Execute(ctx context.Context, name string, args []any, state *domain.State) ([]domain.Command, error)
}

// Engine is the command interpreter. It owns no state: every call to Apply
// works on a private copy of the state it is given.
type Engine struct {
	executor FunctionExecutor
	hooks    domain.Hooks
	logger   *slog.Logger
	clock    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithExecutor sets the EVAL backend. Without one, EVAL reports ErrFunctionNotFound.
func WithExecutor(x FunctionExecutor) EngineOption {
	return func(e *Engine) {
		e.executor = x
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.Hooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the wall clock used for real-time triggers.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.clock = now
		}
	}
}

// NewEngine creates a new engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CommandError records a command that failed inside a batch.
type CommandError struct {
	Command domain.Command
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Command.Type, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Result summarises one applied batch.
type Result struct {
	BatchID  string
	State    *domain.State
	Promoted int
	Parsed   int
	Derived  int
	Errors   []*CommandError
}

// batch is the working set of one Apply call.
type batch struct {
	id      string
	state   *domain.State
	round   int
	now     time.Time
	touched []string
	sweep   bool
}

func (b *batch) touch(path string) {
	if !slices.Contains(b.touched, path) {
		b.touched = append(b.touched, path)
	}
}

// Apply runs one batch: due volatile entries are promoted and executed first,
// then cmds in order, with commands derived from EVAL spliced in right after
// the EVAL that produced them. Touched lists are reconciled at the end.
//
// The input state is never modified. Command failures are contained, logged
// and reported in Result.Errors.
func (e *Engine) Apply(ctx context.Context, state *domain.State, cmds []domain.Command, round int) *Result {
	started := e.clock()
	b := &batch{
		id:    uuid.NewString(),
		state: state.Clone(),
		round: round,
		now:   started,
	}
	log := e.logger.With("batch", b.id)

	promoted := Promote(b.state, round, b.now)
	queue := make([]domain.Command, 0, len(promoted)+len(cmds))
	queue = append(queue, promoted...)
	queue = append(queue, cmds...)

	res := &Result{BatchID: b.id, Promoted: len(promoted), Parsed: len(cmds)}
	if e.hooks.OnBatchStart != nil {
		e.hooks.OnBatchStart(ctx, &domain.BatchEvent{
			EventBase: domain.EventBase{Timestamp: started, BatchID: b.id},
			Promoted:  res.Promoted,
			Parsed:    res.Parsed,
		})
	}

	for i := 0; i < len(queue); i++ {
		cmd := queue[i]
		cmdStart := time.Now()
		derived, err := e.execute(ctx, b, cmd)
		if err != nil {
			res.Errors = append(res.Errors, &CommandError{Command: cmd, Err: err})
			log.WarnContext(ctx, "command failed", "type", cmd.Type, "origin", cmd.Origin, "error", err)
		} else {
			log.DebugContext(ctx, "command applied", "type", cmd.Type, "origin", cmd.Origin)
		}
		if e.hooks.OnCommand != nil {
			e.hooks.OnCommand(ctx, &domain.CommandEvent{
				EventBase: domain.EventBase{Timestamp: cmdStart, BatchID: b.id},
				Type:      cmd.Type,
				Origin:    cmd.Origin,
				Err:       err,
				Duration:  time.Since(cmdStart),
			})
		}

		if len(derived) == 0 {
			continue
		}
		if room := MaxBatchCommands - len(queue); len(derived) > room {
			log.WarnContext(ctx, "batch command limit reached, dropping derived commands",
				"dropped", len(derived)-max(room, 0))
			derived = derived[:max(room, 0)]
		}
		res.Derived += len(derived)
		queue = slices.Insert(queue, i+1, derived...)
	}

	Reconcile(b.state, b.touched, b.sweep)
	res.State = b.state

	if e.hooks.OnBatchEnd != nil {
		e.hooks.OnBatchEnd(ctx, &domain.BatchEvent{
			EventBase: domain.EventBase{Timestamp: e.clock(), BatchID: b.id},
			Promoted:  res.Promoted,
			Parsed:    res.Parsed,
			Derived:   res.Derived,
			Failed:    len(res.Errors),
			Duration:  time.Since(started),
		})
	}
	log.InfoContext(ctx, "batch applied",
		"promoted", res.Promoted, "parsed", res.Parsed, "derived", res.Derived, "failed", len(res.Errors))
	return res
}

// execute dispatches one command, converting handler panics into errors.
func (e *Engine) execute(ctx context.Context, b *batch, cmd domain.Command) (derived []domain.Command, err error) {
	defer func() {
		if r := recover(); r != nil {
			derived = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	h, ok := handlers[cmd.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command type %q", domain.ErrMalformedCommand, cmd.Type)
	}
	return h(ctx, e, b, cmd, params(cmd))
}
