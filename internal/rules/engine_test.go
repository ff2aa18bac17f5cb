package rules

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const worldJSON = `{
  "world": {"time": "2024-03-01T22:00:00.000Z"},
  "character": {
    "ann": {
      "name": "Ann",
      "hp": 3,
      "poisoned_at": "2024-02-20T00:00:00.000Z",
      "splst": {
        "wounded": {
          "name": "wounded",
          "value": "light",
          "rules": {
            "event_driven_update": {
              "events": [
                {
                  "name": "collapse",
                  "condition": "character.hp < 5 && state.static.world.time != null",
                  "actions": [
                    {"command": "SET", "path": "{{self}}.since", "value": "{{world.time}}"},
                    {"command": "REMOVE", "path": "character.ann.bag", "value": "key", "extra_params": ["potion", 1]}
                  ]
                },
                {"name": "never", "condition": "character.hp > 100", "actions": [{"command": "SET", "path": "x", "value": 1}]}
              ]
            }
          }
        },
        "poison": {
          "name": "poison",
          "value": "fresh",
          "rules": {
            "time_based_update": {
              "mode": "linear",
              "trigger_field": "poisoned_at",
              "stages": [
                {"condition": "progress_days >= 14", "set_value": "chronic"},
                {"condition": "progress_days >= 7", "set_value": "spreading"}
              ]
            }
          }
        },
        "mood": {
          "name": "mood",
          "value": "calm",
          "rules": {
            "time_based_update": {
              "mode": "cyclic",
              "cases": [
                {"condition": "dayOfWeek == 0 || dayOfWeek == 6", "set_value": "weekend"},
                {"condition": "month == 3 && day == 2", "set_value": "festive"}
              ],
              "default": "ordinary"
            }
          }
        }
      }
    }
  }
}`

func newState(t *testing.T) *domain.State {
	t.Helper()
	s := domain.NewState()
	require.NoError(t, json.Unmarshal([]byte(worldJSON), &s.Static))
	return s
}

func TestParseIncrement(t *testing.T) {
	tests := map[string]time.Duration{
		"1h":      time.Hour,
		"30m":     30 * time.Minute,
		"45s":     45 * time.Second,
		"2d":      48 * time.Hour,
		"-1h":     -time.Hour,
		"1d2h30m": 26*time.Hour + 30*time.Minute,
		"3 H":     3 * time.Hour,
	}
	for in, want := range tests {
		got, ok := ParseIncrement(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseIncrement("soon")
	assert.False(t, ok)
}

func TestAdvanceTime(t *testing.T) {
	s := newState(t)

	cmds, err := New().AdvanceTime(context.Background(), s, []any{"3h"})
	require.NoError(t, err)

	now, _ := domain.GetPath(s.Static, "world.time")
	assert.Equal(t, "2024-03-02T01:00:00.000Z", now)

	require.Len(t, cmds, 2)
	assert.Equal(t, domain.CommandSet, cmds[0].Type)
	assert.Equal(t, []any{"character.ann.splst.wounded.since", "2024-03-02T01:00:00.000Z"}, cmds[0].Params)
	assert.True(t, cmds[0].Preparsed)
	assert.Equal(t, domain.CommandRemove, cmds[1].Type)
	assert.Equal(t, []any{"character.ann.bag", "key", "potion", 1.0}, cmds[1].Params)

	// 2024-03-02 is a Saturday.
	mood, _ := domain.GetPath(s.Static, "character.ann.splst.mood.value")
	assert.Equal(t, "weekend", mood)

	// Ten days after the poisoning.
	poison, _ := domain.GetPath(s.Static, "character.ann.splst.poison.value")
	assert.Equal(t, "spreading", poison)
}

func TestAdvanceTime_CyclicDefault(t *testing.T) {
	s := newState(t)
	require.NoError(t, domain.SetPath(s.Static, "world.time", "2024-03-05T10:00:00.000Z"))

	_, err := New().AdvanceTime(context.Background(), s, []any{"1h"})
	require.NoError(t, err)

	mood, _ := domain.GetPath(s.Static, "character.ann.splst.mood.value")
	assert.Equal(t, "ordinary", mood)
}

func TestAdvanceTime_LinearHoldsWithoutMatch(t *testing.T) {
	s := newState(t)
	require.NoError(t, domain.SetPath(s.Static, "character.ann.poisoned_at", "2024-03-01T00:00:00Z"))

	_, err := New().AdvanceTime(context.Background(), s, []any{"1h"})
	require.NoError(t, err)

	poison, _ := domain.GetPath(s.Static, "character.ann.splst.poison.value")
	assert.Equal(t, "fresh", poison)
}

func TestAdvanceTime_LinearDefaultWithoutStart(t *testing.T) {
	s := newState(t)
	domain.DeletePath(s.Static, "character.ann.poisoned_at")
	require.NoError(t, domain.SetPath(s.Static, "character.ann.splst.poison.rules.time_based_update.default", "none"))

	_, err := New().AdvanceTime(context.Background(), s, []any{"1h"})
	require.NoError(t, err)

	poison, _ := domain.GetPath(s.Static, "character.ann.splst.poison.value")
	assert.Equal(t, "none", poison)
}

func TestAdvanceTime_Errors(t *testing.T) {
	_, err := New().AdvanceTime(context.Background(), domain.NewState(), nil)
	assert.ErrorIs(t, err, domain.ErrMalformedCommand)

	_, err = New().AdvanceTime(context.Background(), domain.NewState(), []any{"1h"})
	assert.ErrorContains(t, err, "no current time")

	s := domain.NewState()
	s.Static["world"] = map[string]any{"time": "not a date"}
	_, err = New().AdvanceTime(context.Background(), s, []any{"1h"})
	assert.ErrorContains(t, err, "invalid time")
}

func TestAdvanceTime_CustomPaths(t *testing.T) {
	s := domain.NewState()
	s.Static["clock"] = "2024-01-01T00:00:00Z"
	s.Static["npcs"] = map[string]any{
		"bob": map[string]any{"effects": map[string]any{
			"sleep": map[string]any{"value": "awake", "rules": map[string]any{
				"time_based_update": map[string]any{"mode": "cyclic", "cases": []any{
					map[string]any{"condition": "year == 2024", "set_value": "asleep"},
				}},
			}},
		}},
	}

	_, err := New(WithPaths("clock", "npcs", "effects")).AdvanceTime(context.Background(), s, []any{"30m"})
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01T00:30:00.000Z", s.Static["clock"])
	v, _ := domain.GetPath(s.Static, "npcs.bob.effects.sleep.value")
	assert.Equal(t, "asleep", v)
}

func TestRegister(t *testing.T) {
	reg := registry.NewRegistry()
	New().Register(reg)
	assert.Equal(t, []string{LegacyFunctionName, DefaultFunctionName}, reg.Names())
}
