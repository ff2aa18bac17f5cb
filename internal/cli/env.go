package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	sam "github.com/LynxShu/ST-var-manager"
	"github.com/LynxShu/ST-var-manager/internal/config"
	"github.com/LynxShu/ST-var-manager/internal/logging"
	"github.com/LynxShu/ST-var-manager/internal/rules"
	"github.com/LynxShu/ST-var-manager/internal/sandbox"
	"github.com/LynxShu/ST-var-manager/pkg/adapters/file"
	"github.com/LynxShu/ST-var-manager/pkg/adapters/loam"
	"github.com/LynxShu/ST-var-manager/pkg/adapters/memory"
	"github.com/LynxShu/ST-var-manager/pkg/adapters/redis"
	"github.com/LynxShu/ST-var-manager/pkg/adapters/sqlite"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/metrics"
	"github.com/LynxShu/ST-var-manager/pkg/persistence/middleware"
	"github.com/LynxShu/ST-var-manager/pkg/ports"
)

// Env holds everything a command needs, built from the configuration.
type Env struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Collector

	closers []func() error
}

// NewEnv builds the logger and the metrics collector for cfg.
func NewEnv(cfg *config.Config) (*Env, error) {
	e := &Env{
		Config:  cfg,
		Metrics: metrics.New(),
	}

	opts := logging.Options{Level: logging.ParseLevel(cfg.LogLevel)}
	if cfg.LogJSON != "" {
		f, err := os.OpenFile(cfg.LogJSON, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open json log: %w", err)
		}
		opts.JSON = f
		e.closers = append(e.closers, f.Close)
	}
	e.Logger = logging.NewWithOptions(opts)

	return e, nil
}

// Close releases every resource opened through the Env, newest first.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// Stores opens the configured backend. Backends without a transcript of their
// own are paired with an in-memory chat.
func (e *Env) Stores(ctx context.Context) (ports.Transcript, ports.VariableStore, error) {
	st := e.Config.Store

	var transcript ports.Transcript
	var vars ports.VariableStore

	switch st.Kind {
	case config.StoreMemory:
		transcript, vars = memory.NewChat(), memory.NewStore()
	case config.StoreFile:
		transcript, vars = memory.NewChat(), file.New(st.Path)
	case config.StoreRedis:
		rs := redis.New(st.RedisAddr, "", 0, st.Chat,
			redis.WithPrefix(st.RedisPrefix),
			redis.WithTTL(st.RedisTTL),
		)
		e.closers = append(e.closers, rs.Close)
		transcript, vars = memory.NewChat(), rs
	case config.StoreSQLite:
		db, err := sqlite.Open(st.Path, st.Chat)
		if err != nil {
			return nil, nil, err
		}
		e.closers = append(e.closers, db.Close)
		transcript, vars = db, db
	default:
		return nil, nil, fmt.Errorf("unknown store %q", st.Kind)
	}

	key, err := st.Key()
	if err != nil {
		return nil, nil, err
	}
	if key != nil {
		vars = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(vars)
	}

	e.Logger.DebugContext(ctx, "store opened", "kind", st.Kind, "chat", st.Chat, "encrypted", key != nil)
	return transcript, vars, nil
}

// Library opens the configured function library, or returns nil when none is set.
func (e *Env) Library() (ports.FunctionLoader, error) {
	if e.Config.Library == "" {
		return nil, nil
	}
	return loam.Open(e.Config.Library)
}

// Manager wires a Manager over the given stores with the configured options.
func (e *Env) Manager(messages ports.MessageStore, vars ports.VariableStore) (*sam.Manager, error) {
	cfg := e.Config
	start, end := cfg.Markers.Resolve()

	opts := []sam.Option{
		sam.WithLogger(e.Logger),
		sam.WithLifecycleHooks(e.Metrics.Hooks().Merge(DebugHooks(e.Logger))),
		sam.WithMarkers(start, end),
		sam.WithRuleOptions(rules.WithPaths(cfg.Rules.TimePath, cfg.Rules.EntityPath, cfg.Rules.StatusField)),
		sam.WithRuleFunctionNames(ruleNames(cfg.Rules.FunctionName)...),
		sam.WithSandboxOptions(
			sandbox.WithDefaultTimeout(cfg.Sandbox.Timeout),
			sandbox.WithMaxSteps(cfg.Sandbox.MaxSteps),
			sandbox.WithRollback(cfg.Sandbox.Rollback),
			sandbox.WithLogger(e.Logger),
		),
	}

	lib, err := e.Library()
	if err != nil {
		return nil, err
	}
	if lib != nil {
		opts = append(opts, sam.WithFunctionLoader(lib))
	}

	return sam.New(messages, vars, opts...)
}

func ruleNames(configured string) []string {
	if configured == "" || configured == rules.LegacyFunctionName {
		return []string{rules.DefaultFunctionName, rules.LegacyFunctionName}
	}
	return []string{configured, rules.LegacyFunctionName}
}

// DebugHooks logs every batch, command and transition at debug level.
func DebugHooks(logger *slog.Logger) domain.Hooks {
	return domain.Hooks{
		OnBatchEnd: func(ctx context.Context, e *domain.BatchEvent) {
			logger.DebugContext(ctx, "Batch Applied",
				"batch_id", e.BatchID, "parsed", e.Parsed, "promoted", e.Promoted,
				"derived", e.Derived, "failed", e.Failed, "duration", e.Duration)
		},
		OnCommand: func(ctx context.Context, e *domain.CommandEvent) {
			if e.Err != nil {
				logger.DebugContext(ctx, "Command Failed", "batch_id", e.BatchID, "type", e.Type, "origin", e.Origin, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "Command", "batch_id", e.BatchID, "type", e.Type, "origin", e.Origin)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "Transition", "event", e.Event, "from", e.From, "to", e.To, "dropped", e.Dropped)
		},
	}
}
