package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/LynxShu/ST-var-manager/pkg/adapters/sqlite"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.Transcript    = (*sqlite.Store)(nil)
	_ ports.VariableStore = (*sqlite.Store)(nil)
	_ ports.RoundCounter  = (*sqlite.Store)(nil)
)

func open(t *testing.T, path, chat string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(path, chat)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPathAndChat(t *testing.T) {
	_, err := sqlite.Open("", "c")
	assert.Error(t, err)
	_, err = sqlite.Open(filepath.Join(t.TempDir(), "x.db"), "")
	assert.Error(t, err)
}

func TestSQLite_VariableStoreContract(t *testing.T) {
	ports.RunVariableStoreContract(t, open(t, filepath.Join(t.TempDir(), "sam.db"), "c1"))
}

func TestSQLite_MessageStoreContract(t *testing.T) {
	ports.RunMessageStoreContract(t, open(t, filepath.Join(t.TempDir(), "sam.db"), "c1"))
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sam.db")

	first, err := sqlite.Open(path, "story")
	require.NoError(t, err)
	_, err = first.Append(ctx, domain.Message{Text: "hello"})
	require.NoError(t, err)
	require.NoError(t, first.ReplaceState(ctx, &domain.State{Static: map[string]any{"day": 3.0}}))
	require.NoError(t, first.Close())

	second := open(t, path, "story")
	n, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	r, err := second.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, r)

	s, err := second.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, s.Static["day"])

	other := open(t, path, "other")
	n, err = other.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
