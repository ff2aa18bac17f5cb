package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsStackable(t *testing.T) {
	_, ok := AsStackable(map[string]any{"key": "gold", "count": 3.0})
	assert.True(t, ok)

	_, ok = AsStackable(map[string]any{"key": "gold", "count": "3"})
	assert.False(t, ok, "count must be numeric")

	_, ok = AsStackable(map[string]any{"key": "", "count": 3.0})
	assert.False(t, ok, "key must be non-empty")

	_, ok = AsStackable("gold")
	assert.False(t, ok)
}

func TestLooseEqual(t *testing.T) {
	assert.True(t, LooseEqual(5.0, "5"))
	assert.True(t, LooseEqual("5", 5.0))
	assert.True(t, LooseEqual("gold", "gold"))
	assert.False(t, LooseEqual("gold", "Gold"))
	assert.False(t, LooseEqual(0.0, ""))
	assert.False(t, LooseEqual(true, "true"))
	assert.True(t, LooseEqual(map[string]any{"a": 1.0}, map[string]any{"a": 1}))
}

func TestToNumber(t *testing.T) {
	n, ok := ToNumber(" 4.5 ")
	require.True(t, ok)
	assert.Equal(t, 4.5, n)

	n, ok = ToNumber(nil)
	require.True(t, ok)
	assert.Zero(t, n)

	_, ok = ToNumber("abc")
	assert.False(t, ok)

	_, ok = ToNumber(map[string]any{})
	assert.False(t, ok)
}

func TestSentinelsEncodeAsNull(t *testing.T) {
	b, err := json.Marshal([]any{1, Tombstone, Undefined})
	require.NoError(t, err)
	assert.JSONEq(t, `[1, null, null]`, string(b))
}

func TestDeepCopy_Independent(t *testing.T) {
	src := map[string]any{"list": []any{map[string]any{"a": 1.0}}}
	cp := DeepCopy(src).(map[string]any)

	cp["list"].([]any)[0].(map[string]any)["a"] = 2.0
	assert.Equal(t, 1.0, src["list"].([]any)[0].(map[string]any)["a"])
}
