package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

type handler func(ctx context.Context, e *Engine, b *batch, cmd domain.Command, p []any) ([]domain.Command, error)

var handlers map[domain.CommandType]handler

func init() {
	handlers = map[domain.CommandType]handler{
		domain.CommandSet:             handleSet,
		domain.CommandAdd:             handleAdd,
		domain.CommandDel:             handleDel,
		domain.CommandRemove:          handleRemove,
		domain.CommandTimedSet:        handleTimedSet,
		domain.CommandCancelSet:       handleCancelSet,
		domain.CommandResponseSummary: handleResponseSummary,
		domain.CommandEval:            handleEval,
	}
}

func malformed(cmd domain.Command, want string) error {
	return fmt.Errorf("%w: %s expects %s", domain.ErrMalformedCommand, cmd.Type, want)
}

// SET path value
func handleSet(_ context.Context, _ *Engine, b *batch, cmd domain.Command, p []any) ([]domain.Command, error) {
	path := asString(param(p, 0))
	if path == "" || len(p) < 2 {
		return nil, malformed(cmd, "path and value")
	}

	var value any
	if cmd.Preparsed {
		value = p[1]
	} else {
		value = Coerce(tail(p, 1))
	}

	if domain.IsUndefined(value) {
		if parent, _ := domain.ParentPath(path); isList(b.state.Static, parent) {
			b.touch(parent)
		}
	}
	if _, ok := value.([]any); ok {
		b.touch(path)
	}
	return nil, domain.SetPath(b.state.Static, path, value)
}

// ADD path value
func handleAdd(_ context.Context, _ *Engine, b *batch, cmd domain.Command, p []any) ([]domain.Command, error) {
	path := asString(param(p, 0))
	if path == "" || len(p) < 2 {
		return nil, malformed(cmd, "path and value")
	}

	var value any
	if cmd.Preparsed {
		value = p[1]
	} else {
		value = decodeJSON(tail(p, 1))
	}

	target, exists := domain.GetPath(b.state.Static, path)
	if list, ok := target.([]any); ok {
		b.touch(path)
		return nil, domain.SetPath(b.state.Static, path, appendItem(list, value))
	}

	if !exists {
		switch v := value.(type) {
		case map[string]any:
			b.touch(path)
			return nil, domain.SetPath(b.state.Static, path, []any{domain.DeepCopy(v)})
		case []any:
			b.touch(path)
			return nil, domain.SetPath(b.state.Static, path, domain.DeepCopy(v))
		}
	}

	inc, ok := number(value)
	if !ok {
		return nil, fmt.Errorf("ADD %s: value %v is not a number", path, value)
	}
	base := 0.0
	if exists && target != nil {
		if base, ok = number(target); !ok {
			return nil, fmt.Errorf("ADD %s: target is neither numeric nor a list", path)
		}
	}
	return nil, domain.SetPath(b.state.Static, path, base+inc)
}

// appendItem pushes value onto list, folding a stackable value into the first
// live item with the same key.
func appendItem(list []any, value any) []any {
	if add, ok := domain.AsStackable(value); ok {
		for _, item := range list {
			existing, ok := item.(map[string]any)
			if !ok || !domain.LooseEqual(existing[domain.KeyField], add[domain.KeyField]) {
				continue
			}
			have, _ := domain.Numeric(existing[domain.CountField])
			n, _ := domain.Numeric(add[domain.CountField])
			existing[domain.CountField] = have + n
			return list
		}
	}
	return append(list, domain.DeepCopy(value))
}

// DEL path index
func handleDel(ctx context.Context, e *Engine, b *batch, cmd domain.Command, p []any) ([]domain.Command, error) {
	path := asString(param(p, 0))
	idx, ok := asInt(param(p, 1))
	if path == "" || !ok {
		return nil, malformed(cmd, "list path and index")
	}

	list, isList := lookupList(b.state.Static, path)
	if !isList || idx < 0 || idx >= len(list) {
		e.logger.DebugContext(ctx, "DEL ignored, no such element", "batch", b.id, "path", path, "index", idx)
		return nil, nil
	}
	list[idx] = domain.Tombstone
	b.touch(path)
	return nil, nil
}

// REMOVE path field match [max]
func handleRemove(ctx context.Context, e *Engine, b *batch, cmd domain.Command, p []any) ([]domain.Command, error) {
	path := asString(param(p, 0))
	field := asString(param(p, 1))
	if path == "" || field == "" || len(p) < 3 {
		return nil, malformed(cmd, "list path, field and match value")
	}

	match := p[2]
	if !cmd.Preparsed {
		match = decodeJSON(asString(match))
	}
	limit, ok := asInt(param(p, 3))
	if !ok || limit <= 0 {
		limit = 0
	}

	list, isList := lookupList(b.state.Static, path)
	if !isList {
		e.logger.DebugContext(ctx, "REMOVE ignored, not a list", "batch", b.id, "path", path)
		return nil, nil
	}
	b.touch(path)

	remaining := float64(limit)
	for i, item := range list {
		if limit > 0 && remaining <= 0 {
			break
		}
		m, ok := item.(map[string]any)
		if !ok || !domain.LooseEqual(m[field], match) {
			continue
		}
		if limit == 0 {
			list[i] = domain.Tombstone
			continue
		}
		if stack, ok := domain.AsStackable(m); ok {
			have, _ := domain.Numeric(stack[domain.CountField])
			if have > remaining {
				stack[domain.CountField] = have - remaining
				remaining = 0
				continue
			}
			list[i] = domain.Tombstone
			remaining -= max(have, 0)
			continue
		}
		list[i] = domain.Tombstone
		remaining--
	}
	return nil, nil
}

// TIMED_SET path value reason isRealTime timeSpec
func handleTimedSet(_ context.Context, _ *Engine, b *batch, cmd domain.Command, p []any) ([]domain.Command, error) {
	path := asString(param(p, 0))
	reason := asString(param(p, 2))
	flag := param(p, 3)
	spec := asString(param(p, 4))
	if len(p) < 5 || path == "" || reason == "" || asString(flag) == "" || spec == "" {
		return nil, malformed(cmd, "path, value, reason, isRealTime and time")
	}

	value := p[1]
	if !cmd.Preparsed {
		value = Coerce(asString(value))
	}
	if domain.IsUndefined(value) {
		value = nil
	}

	entry := domain.TimedEntry{Path: path, Value: value, Reason: reason}
	if v, ok := flag.(bool); ok {
		entry.IsRealTime = v
	} else {
		entry.IsRealTime = strings.EqualFold(strings.TrimSpace(asString(flag)), "true")
	}

	if entry.IsRealTime {
		at, err := domain.ParseTimestamp(spec)
		if err != nil {
			return nil, fmt.Errorf("TIMED_SET %s: %w", path, err)
		}
		entry.TriggerAt = domain.TimeTrigger(at)
	} else {
		offset, ok := number(spec)
		if !ok {
			return nil, fmt.Errorf("TIMED_SET %s: round offset %q is not a number", path, spec)
		}
		entry.TriggerAt = domain.RoundTrigger(b.round + int(offset))
	}

	b.state.Volatile = append(b.state.Volatile, entry)
	return nil, nil
}

// CANCEL_SET identifier
func handleCancelSet(_ context.Context, _ *Engine, b *batch, cmd domain.Command, p []any) ([]domain.Command, error) {
	id := asString(param(p, 0))
	if id == "" {
		return nil, malformed(cmd, "an index or reason")
	}
	idx, byIndex := asInt(param(p, 0))

	kept := b.state.Volatile[:0]
	for i, entry := range b.state.Volatile {
		if (byIndex && i == idx) || entry.Reason == id {
			continue
		}
		kept = append(kept, entry)
	}
	b.state.Volatile = kept
	return nil, nil
}

// RESPONSE_SUMMARY text
func handleResponseSummary(_ context.Context, _ *Engine, b *batch, cmd domain.Command, p []any) ([]domain.Command, error) {
	text := strings.TrimSpace(cmd.Raw)
	if cmd.Preparsed {
		text = strings.TrimSpace(tail(p, 0))
	}
	if text == "" {
		return nil, malformed(cmd, "summary text")
	}
	b.state.AddSummary(text)
	return nil, nil
}

// EVAL name args...
func handleEval(ctx context.Context, e *Engine, b *batch, cmd domain.Command, p []any) ([]domain.Command, error) {
	name := asString(param(p, 0))
	if name == "" {
		return nil, malformed(cmd, "a function name")
	}
	if e.executor == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrFunctionNotFound, name)
	}

	// Functions write to the state directly, so every list is reconciled.
	b.sweep = true

	derived, err := e.executor.Execute(ctx, name, p[1:], b.state)
	if err != nil {
		return nil, fmt.Errorf("EVAL %s: %w", name, err)
	}
	for i := range derived {
		derived[i].Origin = domain.OriginDerived
	}
	return derived, nil
}

// number accepts numbers and numeric strings.
func number(v any) (float64, bool) {
	if n, ok := domain.Numeric(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return domain.ToNumber(s)
	}
	return 0, false
}

func lookupList(root map[string]any, path string) ([]any, bool) {
	v, ok := domain.GetPath(root, path)
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	return list, ok
}

func isList(root map[string]any, path string) bool {
	_, ok := lookupList(root, path)
	return ok
}
