package ports

import (
	"context"
	"testing"
	"time"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunVariableStoreContract verifies that a VariableStore implementation
// adheres to the interface contract. store must start empty.
func RunVariableStoreContract(t *testing.T, store VariableStore) {
	ctx := context.Background()

	t.Run("Empty Store Yields Initial State", func(t *testing.T) {
		s, err := store.State(ctx)
		require.NoError(t, err)
		assert.Empty(t, s.Static)
		assert.NotNil(t, s.Static)
		assert.NotNil(t, s.Volatile)
		assert.NotNil(t, s.ResponseSummary)
		assert.NotNil(t, s.Func)
	})

	t.Run("Replace and Read", func(t *testing.T) {
		when := time.Date(2031, 5, 6, 7, 8, 9, 0, time.UTC)
		s := domain.NewState()
		s.Static["hero"] = map[string]any{"hp": 10.0, "bag": []any{map[string]any{"key": "gold", "count": 3.0}}}
		s.Volatile = []domain.TimedEntry{
			{Path: "hero.hp", Value: 1.0, TriggerAt: domain.RoundTrigger(4), Reason: "regen"},
			{Path: "hero.curse", IsRealTime: true, TriggerAt: domain.TimeTrigger(when), Reason: "curse"},
		}
		s.ResponseSummary = []string{"the hero woke up"}
		s.Func = []domain.FunctionDefinition{{Name: "heal", ParamNames: []string{"n"}, Body: "pass", TimeoutMs: 500}}

		require.NoError(t, store.ReplaceState(ctx, s))

		loaded, err := store.State(ctx)
		require.NoError(t, err)
		assert.Equal(t, s.Static, loaded.Static)
		require.Len(t, loaded.Volatile, 2)
		assert.Equal(t, 4, loaded.Volatile[0].TriggerAt.Round)
		assert.True(t, when.Equal(loaded.Volatile[1].TriggerAt.Time))
		assert.Equal(t, s.ResponseSummary, loaded.ResponseSummary)
		assert.Equal(t, s.Func, loaded.Func)
	})

	t.Run("Reads Are Copies", func(t *testing.T) {
		first, err := store.State(ctx)
		require.NoError(t, err)
		first.Static["hero"] = "mutated"

		second, err := store.State(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", second.Static["hero"])
	})

	t.Run("Merge", func(t *testing.T) {
		require.NoError(t, store.ReplaceState(ctx, &domain.State{
			Static: map[string]any{"hero": map[string]any{"hp": 10.0, "name": "Ann"}},
		}))
		require.NoError(t, store.MergeState(ctx, &domain.State{
			Static:          map[string]any{"hero": map[string]any{"hp": 4.0}, "day": 2.0},
			ResponseSummary: []string{"a fight happened"},
		}))

		loaded, err := store.State(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"hp": 4.0, "name": "Ann"}, loaded.Static["hero"])
		assert.Equal(t, 2.0, loaded.Static["day"])
		assert.Equal(t, []string{"a fight happened"}, loaded.ResponseSummary)
	})
}

// RunMessageStoreContract verifies that a Transcript implementation adheres to
// the MessageStore contract. store must start empty.
func RunMessageStoreContract(t *testing.T, store Transcript) {
	ctx := context.Background()

	t.Run("Append and Read", func(t *testing.T) {
		i, err := store.Append(ctx, domain.Message{IsUser: true, Text: "hello"})
		require.NoError(t, err)
		assert.Equal(t, 0, i)

		i, err = store.Append(ctx, domain.Message{Text: "<SET :: a :: 1>"})
		require.NoError(t, err)
		assert.Equal(t, 1, i)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		msg, err := store.Message(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, domain.Message{IsUser: true, Text: "hello"}, msg)
	})

	t.Run("SetMessage Keeps Author", func(t *testing.T) {
		require.NoError(t, store.SetMessage(ctx, 0, "hello again"))

		msg, err := store.Message(ctx, 0)
		require.NoError(t, err)
		assert.True(t, msg.IsUser)
		assert.Equal(t, "hello again", msg.Text)
	})

	t.Run("Out Of Range", func(t *testing.T) {
		_, err := store.Message(ctx, 99)
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)

		_, err = store.Message(ctx, -1)
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)

		err = store.SetMessage(ctx, 99, "nope")
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})
}
