package runtime

import (
	"time"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// Promote removes every due entry from state.Volatile and returns the
// commands that carry them out, in volatile order.
//
// A due entry with a value becomes a SET. A due entry with a null value expires
// the object at its path: when the parent is a list, the item whose "key"
// equals the last path segment is removed; otherwise the key is deleted.
func Promote(state *domain.State, round int, now time.Time) []domain.Command {
	if len(state.Volatile) == 0 {
		return nil
	}

	var promoted []domain.Command
	remaining := make([]domain.TimedEntry, 0, len(state.Volatile))
	for _, entry := range state.Volatile {
		if !entry.Due(round, now) {
			remaining = append(remaining, entry)
			continue
		}
		promoted = append(promoted, promote(state, entry))
	}
	state.Volatile = remaining
	return promoted
}

func promote(state *domain.State, entry domain.TimedEntry) domain.Command {
	if entry.Value != nil {
		return domain.NewCommand(domain.CommandSet, domain.OriginScheduler, entry.Path, domain.DeepCopy(entry.Value))
	}
	parent, last := domain.ParentPath(entry.Path)
	if parent != "" && isList(state.Static, parent) {
		return domain.NewCommand(domain.CommandRemove, domain.OriginScheduler, parent, domain.KeyField, last, 0)
	}
	return domain.NewCommand(domain.CommandSet, domain.OriginScheduler, entry.Path, domain.Undefined)
}
