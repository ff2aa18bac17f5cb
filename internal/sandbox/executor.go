// Package sandbox runs user-registered functions written in Starlark.
//
// A function body is executed as the body of a Starlark def whose parameters
// are the live state accessor, the "_" helper module, the "fetch" network
// primitive and then the function's own named parameters. Execution is bounded
// by a timeout that cancels the Starlark thread, and by a step budget.
// Mutations made before a failure are kept unless rollback is enabled.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/registry"
	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// DefaultMaxSteps bounds the work a single call may do.
const DefaultMaxSteps = 10_000_000

const entryPoint = "__sam_eval__"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Executor implements runtime.FunctionExecutor.
type Executor struct {
	registry       *registry.Registry
	client         *http.Client
	logger         *slog.Logger
	maxSteps       uint64
	rollback       bool
	defaultTimeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithRegistry makes native functions reachable. State functions win on name clashes.
func WithRegistry(r *registry.Registry) Option {
	return func(x *Executor) {
		x.registry = r
	}
}

// WithHTTPClient sets the client used by fetch.
func WithHTTPClient(c *http.Client) Option {
	return func(x *Executor) {
		if c != nil {
			x.client = c
		}
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Executor) {
		if logger != nil {
			x.logger = logger
		}
	}
}

// WithMaxSteps sets the per-call step budget. Zero disables it.
func WithMaxSteps(n uint64) Option {
	return func(x *Executor) {
		x.maxSteps = n
	}
}

// WithRollback restores the state snapshot taken before a call when it fails.
func WithRollback(enabled bool) Option {
	return func(x *Executor) {
		x.rollback = enabled
	}
}

// WithDefaultTimeout applies to functions that do not declare a timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(x *Executor) {
		if d > 0 {
			x.defaultTimeout = d
		}
	}
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	x := &Executor{
		client:         http.DefaultClient,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxSteps:       DefaultMaxSteps,
		defaultTimeout: domain.DefaultFunctionTimeout,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute runs the function called name against state. Functions defined in
// state.Func are tried first, then the native registry.
func (x *Executor) Execute(ctx context.Context, name string, args []any, state *domain.State) ([]domain.Command, error) {
	def, ok := state.FindFunc(name)
	if !ok {
		if fn, ok := x.registry.Lookup(name); ok {
			return fn(ctx, state, args)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrFunctionNotFound, name)
	}

	var snapshot *domain.State
	if x.rollback {
		snapshot = state.Clone()
	}
	cmds, err := x.run(ctx, def, args, state)
	if err != nil && snapshot != nil {
		*state = *snapshot
		x.logger.DebugContext(ctx, "function failed, state restored", "func", name)
	}
	return cmds, err
}

func (x *Executor) run(ctx context.Context, def domain.FunctionDefinition, args []any, state *domain.State) ([]domain.Command, error) {
	timeout := def.Timeout()
	if def.TimeoutMs <= 0 {
		timeout = x.defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: "eval:" + def.Name,
		Print: func(_ *starlark.Thread, msg string) {
			x.logger.DebugContext(ctx, "function print", "func", def.Name, "msg", msg)
		},
	}
	thread.SetLocal(localContext, runCtx)
	if x.maxSteps > 0 {
		thread.SetMaxExecutionSteps(x.maxSteps)
	}
	stop := context.AfterFunc(runCtx, func() {
		thread.Cancel(runCtx.Err().Error())
	})
	defer stop()

	predeclared := starlark.StringDict{
		"json": starjson.Module,
		"math": starmath.Module,
		"time": startime.Module,
	}
	globals, err := starlark.ExecFileOptions(fileOptions, thread, def.Name+".star", wrap(def), predeclared)
	if err != nil {
		return nil, x.classify(ctx, runCtx, thread, def, timeout, err)
	}

	callArgs := starlark.Tuple{&stateValue{s: state}, utilModule, x.fetchBuiltin(def.NetworkAccess)}
	for i := range def.ParamNames {
		if i < len(args) {
			callArgs = append(callArgs, toStarlark(args[i]))
		} else {
			callArgs = append(callArgs, starlark.None)
		}
	}

	result, err := starlark.Call(thread, globals[entryPoint], callArgs, nil)
	if err != nil {
		return nil, x.classify(ctx, runCtx, thread, def, timeout, err)
	}
	cmds, err := commandsFrom(result)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", def.Name, err)
	}
	x.logger.DebugContext(ctx, "function executed", "func", def.Name, "steps", thread.ExecutionSteps(), "commands", len(cmds))
	return cmds, nil
}

func (x *Executor) classify(ctx, runCtx context.Context, thread *starlark.Thread, def domain.FunctionDefinition, timeout time.Duration, err error) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("function %s: %w", def.Name, ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s after %s", domain.ErrSandboxTimeout, def.Name, timeout)
	case thread.Local(localDenied) != nil:
		return fmt.Errorf("%w: %s", domain.ErrNetworkDisabled, def.Name)
	}
	return fmt.Errorf("function %s: %w", def.Name, err)
}

// wrap turns a function definition into a Starlark module defining entryPoint.
func wrap(def domain.FunctionDefinition) string {
	params := append([]string{"state", "_", "fetch"}, def.ParamNames...)

	var b strings.Builder
	fmt.Fprintf(&b, "def %s(%s):\n", entryPoint, strings.Join(params, ", "))
	body := strings.TrimRight(strings.ReplaceAll(def.Body, "\r\n", "\n"), " \n\t")
	if strings.TrimSpace(body) == "" {
		body = "pass"
	}
	for _, line := range strings.Split(dedent(body), "\n") {
		b.WriteString("    ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// dedent removes the indentation shared by every non-blank line.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}
	if common <= 0 {
		return s
	}
	for i, line := range lines {
		if len(line) >= common {
			lines[i] = line[common:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(lines, "\n")
}
