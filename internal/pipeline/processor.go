// Package pipeline connects the chat, the variable store and the batch engine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LynxShu/ST-var-manager/internal/logging"
	"github.com/LynxShu/ST-var-manager/internal/parser"
	"github.com/LynxShu/ST-var-manager/internal/runtime"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/ports"
)

// Processor implements lifecycle.Pipeline.
type Processor struct {
	messages  ports.MessageStore
	vars      ports.VariableStore
	rounds    ports.RoundCounter
	engine    *runtime.Engine
	parser    *parser.Parser
	functions ports.FunctionLoader
	logger    *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithRoundCounter overrides the default round (message count minus one).
func WithRoundCounter(rc ports.RoundCounter) Option {
	return func(p *Processor) {
		if rc != nil {
			p.rounds = rc
		}
	}
}

// WithParser sets the parser, e.g. one configured with legacy markers.
func WithParser(ps *parser.Parser) Option {
	return func(p *Processor) {
		if ps != nil {
			p.parser = ps
		}
	}
}

// WithFunctionLoader installs library functions missing from state.func before each batch.
func WithFunctionLoader(l ports.FunctionLoader) Option {
	return func(p *Processor) {
		p.functions = l
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Processor.
func New(messages ports.MessageStore, vars ports.VariableStore, engine *runtime.Engine, opts ...Option) *Processor {
	p := &Processor{
		messages: messages,
		vars:     vars,
		rounds:   ports.RoundFromCount{Messages: messages},
		engine:   engine,
		parser:   parser.NewParser(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessLatest implements lifecycle.Pipeline.
func (p *Processor) ProcessLatest(ctx context.Context) error {
	_, err := p.Process(ctx)
	return err
}

// Process applies the commands of the newest message to the stored state,
// persists the result and rewrites the message with a fresh state block.
// It returns nil when the newest message was written by the user.
func (p *Processor) Process(ctx context.Context) (*runtime.Result, error) {
	n, err := p.messages.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	index := n - 1
	msg, err := p.messages.Message(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %d: %w", index, err)
	}
	if msg.IsUser {
		p.logger.DebugContext(ctx, "newest message is from the user, nothing to process", "index", index)
		return nil, nil
	}

	base, err := p.vars.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if err := InstallFunctions(ctx, p.functions, base); err != nil {
		p.logger.WarnContext(ctx, "function library unavailable", "error", err)
	}
	round, err := p.rounds.CurrentRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read round: %w", err)
	}

	res := p.engine.Apply(ctx, base, p.parser.Commands(msg.Text), round)

	// The message is written first: a later Resync restores the variable
	// store from it, while the reverse is not possible.
	text, err := p.parser.Embed(msg.Text, res.State)
	if err != nil {
		return res, err
	}
	if text != msg.Text {
		if err := p.messages.SetMessage(ctx, index, text); err != nil {
			return res, fmt.Errorf("failed to rewrite message %d: %w", index, err)
		}
	}
	if err := p.vars.ReplaceState(ctx, res.State); err != nil {
		return res, fmt.Errorf("failed to store state: %w", err)
	}
	return res, nil
}

// Resync implements lifecycle.Pipeline: the state stored in the newest
// assistant message (or the Initial State) replaces the variable store.
func (p *Processor) Resync(ctx context.Context) error {
	n, err := p.messages.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count messages: %w", err)
	}
	return p.load(ctx, n-1)
}

// ReloadForGeneration implements lifecycle.Pipeline. A new generation starts
// from the latest persisted state. A swipe regenerates the answer to the latest
// user message, so it starts from the state persisted before that message.
func (p *Processor) ReloadForGeneration(ctx context.Context, mode domain.GenerationMode) error {
	n, err := p.messages.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count messages: %w", err)
	}
	from := n - 1
	if mode == domain.GenerationSwipe {
		user, err := p.latestUserMessage(ctx, n-1)
		if err != nil {
			return err
		}
		if user >= 0 {
			from = user - 1
		} else {
			from = n - 2
		}
	}
	return p.load(ctx, from)
}

func (p *Processor) load(ctx context.Context, from int) error {
	state, at, err := p.LatestState(ctx, from)
	if err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "state reloaded", "from", from, "found_at", at)
	return p.vars.ReplaceState(ctx, state)
}

// LatestState scans assistant messages from index from down to 0 and returns
// the first persisted state with its index. Without one it returns the Initial
// State and -1. A block that cannot be decoded also yields the Initial State.
func (p *Processor) LatestState(ctx context.Context, from int) (*domain.State, int, error) {
	for i := from; i >= 0; i-- {
		msg, err := p.messages.Message(ctx, i)
		if errors.Is(err, domain.ErrMessageNotFound) {
			continue
		}
		if err != nil {
			return nil, -1, fmt.Errorf("failed to read message %d: %w", i, err)
		}
		if msg.IsUser {
			continue
		}
		state, found, err := p.parser.Extract(msg.Text)
		if !found {
			continue
		}
		var decodeErr *parser.DecodeError
		if errors.As(err, &decodeErr) {
			p.logger.WarnContext(ctx, "unreadable state block, using initial state", "index", i, "error", err)
		}
		return state, i, nil
	}
	return domain.NewState(), -1, nil
}

func (p *Processor) latestUserMessage(ctx context.Context, from int) (int, error) {
	for i := from; i >= 0; i-- {
		msg, err := p.messages.Message(ctx, i)
		if err != nil {
			return -1, fmt.Errorf("failed to read message %d: %w", i, err)
		}
		if msg.IsUser {
			return i, nil
		}
	}
	return -1, nil
}

// InstallFunctions appends the library definitions whose names are missing
// from state.func. A nil loader is a no-op.
func InstallFunctions(ctx context.Context, l ports.FunctionLoader, state *domain.State) error {
	if l == nil {
		return nil
	}
	lib, err := l.Functions(ctx)
	if err != nil {
		return err
	}
	for _, f := range lib {
		if _, exists := state.FindFunc(f.Name); !exists {
			state.Func = append(state.Func, f)
		}
	}
	return nil
}
