package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "0", "c"}, SplitPath("a.b[0].c"))
	assert.Equal(t, []string{"a", "0", "1"}, SplitPath("a[0][1]"))
	assert.Equal(t, []string{"map", "x.y"}, SplitPath(`map["x.y"]`))
	assert.Nil(t, SplitPath(""))
}

func TestSetPath_CreatesContainers(t *testing.T) {
	root := map[string]any{}

	require.NoError(t, SetPath(root, "hero.stats.hp", 10.0))
	require.NoError(t, SetPath(root, "hero.bag.1", "sword"))

	hp, ok := GetPath(root, "hero.stats.hp")
	require.True(t, ok)
	assert.Equal(t, 10.0, hp)

	bag, ok := GetPath(root, "hero.bag")
	require.True(t, ok)
	assert.Equal(t, []any{nil, "sword"}, bag)
}

func TestSetPath_ReplacesScalar(t *testing.T) {
	root := map[string]any{"a": 5.0}
	require.NoError(t, SetPath(root, "a.b", 1.0))
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1.0}}, root)
}

func TestSetPath_UndefinedDeletes(t *testing.T) {
	root := map[string]any{"a": map[string]any{"b": 1.0, "c": 2.0}}
	require.NoError(t, SetPath(root, "a.b", Undefined))
	assert.Equal(t, map[string]any{"a": map[string]any{"c": 2.0}}, root)
}

func TestSetPath_EmptyPath(t *testing.T) {
	err := SetPath(map[string]any{}, "", 1)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestSetPath_BoundsListPadding(t *testing.T) {
	root := map[string]any{}

	err := SetPath(root, "x.30000000", 1.0)
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.NotContains(t, root, "x")

	require.NoError(t, SetPath(root, "y", []any{"a"}))
	assert.ErrorIs(t, SetPath(root, "y.5000", "b"), ErrInvalidPath)
	assert.Equal(t, []any{"a"}, root["y"])

	require.NoError(t, SetPath(root, "z.1024", true))
	assert.Len(t, root["z"], 1025)
}

func TestDeletePath_TombstonesListSlots(t *testing.T) {
	root := map[string]any{"list": []any{"a", "b", "c"}}

	assert.True(t, DeletePath(root, "list.1"))
	assert.False(t, DeletePath(root, "list.1"), "already tombstoned")
	assert.False(t, DeletePath(root, "list.9"))

	list := root["list"].([]any)
	require.Len(t, list, 3)
	assert.True(t, IsTombstone(list[1]))

	_, ok := GetPath(root, "list.1")
	assert.False(t, ok)
}

func TestGetPath_Missing(t *testing.T) {
	root := map[string]any{"a": map[string]any{"b": []any{1.0}}}

	_, ok := GetPath(root, "a.x")
	assert.False(t, ok)
	_, ok = GetPath(root, "a.b.4")
	assert.False(t, ok)
	_, ok = GetPath(root, "a.b.0.deeper")
	assert.False(t, ok)

	v, ok := GetPath(root, "")
	assert.True(t, ok)
	assert.Equal(t, root, v)
}
