package sam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LynxShu/ST-var-manager/internal/logging"
	"github.com/LynxShu/ST-var-manager/internal/parser"
	"github.com/LynxShu/ST-var-manager/internal/pipeline"
	"github.com/LynxShu/ST-var-manager/internal/rules"
	"github.com/LynxShu/ST-var-manager/internal/runtime"
	"github.com/LynxShu/ST-var-manager/internal/sandbox"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/lifecycle"
	"github.com/LynxShu/ST-var-manager/pkg/ports"
	"github.com/LynxShu/ST-var-manager/pkg/registry"
)

// Manager is the high-level entry point of the library. It owns the lifecycle
// machine of one chat and the subscriptions feeding it.
type Manager struct {
	messages  ports.MessageStore
	vars      ports.VariableStore
	rounds    ports.RoundCounter
	functions ports.FunctionLoader
	registry  *registry.Registry
	hooks     domain.Hooks
	logger    *slog.Logger
	clock     func() time.Time

	startMarker, endMarker string

	ruleOpts    []rules.Option
	ruleNames   []string
	noRules     bool
	sandboxOpts []sandbox.Option

	parser    *parser.Parser
	engine    *runtime.Engine
	processor *pipeline.Processor
	machine   *lifecycle.Machine

	mu   sync.Mutex
	subs []func()
}

// Option defines a functional option for configuring the Manager.
type Option func(*Manager)

// WithLifecycleHooks registers observability hooks. Repeated calls accumulate.
func WithLifecycleHooks(hooks domain.Hooks) Option {
	return func(m *Manager) {
		m.hooks = m.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRoundCounter overrides the default round (message count minus one).
func WithRoundCounter(rc ports.RoundCounter) Option {
	return func(m *Manager) {
		m.rounds = rc
	}
}

// WithFunctionLoader installs a function library into every processed state.
func WithFunctionLoader(l ports.FunctionLoader) Option {
	return func(m *Manager) {
		m.functions = l
	}
}

// WithRegistry sets the native function registry. The rule engine registers into it.
func WithRegistry(r *registry.Registry) Option {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithMarkers sets the delimiters of the persisted state block.
func WithMarkers(start, end string) Option {
	return func(m *Manager) {
		m.startMarker, m.endMarker = start, end
	}
}

// WithRuleOptions configures the built-in time and status rules.
func WithRuleOptions(opts ...rules.Option) Option {
	return func(m *Manager) {
		m.ruleOpts = append(m.ruleOpts, opts...)
	}
}

// WithRuleFunctionNames sets the names under which the time advance is callable.
func WithRuleFunctionNames(names ...string) Option {
	return func(m *Manager) {
		m.ruleNames = names
	}
}

// WithoutRules skips registering the built-in rule engine.
func WithoutRules() Option {
	return func(m *Manager) {
		m.noRules = true
	}
}

// WithSandboxOptions tunes the function sandbox (timeouts, step budget, rollback, HTTP client).
func WithSandboxOptions(opts ...sandbox.Option) Option {
	return func(m *Manager) {
		m.sandboxOpts = append(m.sandboxOpts, opts...)
	}
}

// WithClock overrides the wall clock used for real-time schedules.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.clock = now
	}
}

// New wires a Manager over the host's chat and variable store.
func New(messages ports.MessageStore, vars ports.VariableStore, opts ...Option) (*Manager, error) {
	if messages == nil || vars == nil {
		return nil, errors.New("message store and variable store are required")
	}

	m := &Manager{
		messages: messages,
		vars:     vars,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = logging.NewNop()
	}
	if m.registry == nil {
		m.registry = registry.NewRegistry()
	}
	if m.rounds == nil {
		if rc, ok := messages.(ports.RoundCounter); ok {
			m.rounds = rc
		} else {
			m.rounds = ports.RoundFromCount{Messages: messages}
		}
	}

	if !m.noRules {
		ruleOpts := append([]rules.Option{rules.WithLogger(m.logger)}, m.ruleOpts...)
		rules.New(ruleOpts...).Register(m.registry, m.ruleNames...)
	}

	var parserOpts []parser.Option
	if m.startMarker != "" && m.endMarker != "" {
		parserOpts = append(parserOpts, parser.WithMarkers(m.startMarker, m.endMarker))
	}
	m.parser = parser.NewParser(parserOpts...)

	sandboxOpts := append([]sandbox.Option{
		sandbox.WithRegistry(m.registry),
		sandbox.WithLogger(m.logger),
	}, m.sandboxOpts...)

	engineOpts := []runtime.EngineOption{
		runtime.WithExecutor(sandbox.New(sandboxOpts...)),
		runtime.WithLifecycleHooks(m.hooks),
		runtime.WithLogger(m.logger),
	}
	if m.clock != nil {
		engineOpts = append(engineOpts, runtime.WithClock(m.clock))
	}
	m.engine = runtime.NewEngine(engineOpts...)

	m.processor = pipeline.New(messages, vars, m.engine,
		pipeline.WithRoundCounter(m.rounds),
		pipeline.WithParser(m.parser),
		pipeline.WithFunctionLoader(m.functions),
		pipeline.WithLogger(m.logger),
	)
	m.machine = lifecycle.NewMachine(m.processor,
		lifecycle.WithLogger(m.logger),
		lifecycle.WithLifecycleHooks(m.hooks),
	)

	return m, nil
}

// Attach subscribes the Manager to every event kind of src.
// Subscriptions last until Close.
func (m *Manager) Attach(src ports.EventSource) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, kind := range domain.EventKinds {
		unsubscribe := src.Subscribe(kind, func(ev domain.Event) {
			if ev.Kind == "" {
				ev.Kind = kind
			}
			m.Dispatch(context.Background(), ev)
		})
		m.subs = append(m.subs, unsubscribe)
	}
}

// Close removes every subscription made by Attach. It is safe to call twice.
func (m *Manager) Close() error {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	for _, unsubscribe := range subs {
		unsubscribe()
	}
	return nil
}

// Dispatch feeds one host event to the lifecycle machine. Failures are logged
// and reported to hooks, never returned.
func (m *Manager) Dispatch(ctx context.Context, ev domain.Event) {
	m.machine.Dispatch(ctx, ev)
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() domain.Phase {
	return m.machine.Phase()
}

// LatestState returns the newest state persisted in the chat and the index of
// the message holding it (-1 when the chat has none).
func (m *Manager) LatestState(ctx context.Context) (*domain.State, int, error) {
	n, err := m.messages.Count(ctx)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to count messages: %w", err)
	}
	return m.processor.LatestState(ctx, n-1)
}

// Result is the outcome of a one-shot Apply.
type Result struct {
	BatchID string
	State   *domain.State
	// Text is the input with its state block replaced by the new state.
	Text   string
	Diff   *domain.StateDiff
	Errors []error
}

// Apply runs the commands found in text against state outside of the
// lifecycle machine. A nil state is read from the block embedded in text, or
// starts as the Initial State. Nothing is persisted.
func (m *Manager) Apply(ctx context.Context, text string, state *domain.State) (*Result, error) {
	base := state.Clone()
	if state == nil {
		if embedded, found, err := m.parser.Extract(text); found {
			if err != nil {
				m.logger.WarnContext(ctx, "unreadable state block, using initial state", "error", err)
			}
			base = embedded
		}
	}
	if err := pipeline.InstallFunctions(ctx, m.functions, base); err != nil {
		m.logger.WarnContext(ctx, "function library unavailable", "error", err)
	}

	round, err := m.rounds.CurrentRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read round: %w", err)
	}

	before := base.Clone()
	res := m.engine.Apply(ctx, base, m.parser.Commands(text), round)

	out, err := m.parser.Embed(text, res.State)
	if err != nil {
		return nil, err
	}

	errs := make([]error, 0, len(res.Errors))
	for _, e := range res.Errors {
		errs = append(errs, e)
	}
	return &Result{
		BatchID: res.BatchID,
		State:   res.State,
		Text:    out,
		Diff:    domain.Diff(before, res.State),
		Errors:  errs,
	}, nil
}

// Functions returns the names callable by EVAL besides state functions:
// library definitions and native functions.
func (m *Manager) Functions(ctx context.Context) (library []domain.FunctionDefinition, natives []string, err error) {
	if m.functions != nil {
		library, err = m.functions.Functions(ctx)
		if err != nil {
			return nil, nil, err
		}
	}
	return library, m.registry.Names(), nil
}

// Watch returns a channel signaled when the function library changes.
// Returns error if the loader does not support watching.
func (m *Manager) Watch(ctx context.Context) (<-chan struct{}, error) {
	if w, ok := m.functions.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current function loader does not support watching")
}
