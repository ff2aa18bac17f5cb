package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		old      *State
		new      *State
		wantDiff *StateDiff // nil means we expect no diff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new: &State{
				Static:          map[string]any{"a": 1.0, "b": map[string]any{"c": "x"}},
				ResponseSummary: []string{"hello"},
			},
			wantDiff: &StateDiff{
				Static:          map[string]any{"a": 1.0, "b.c": "x"},
				SummaryAppended: []string{"hello"},
			},
		},
		{
			name: "No Changes",
			old:  &State{Static: map[string]any{"a": 1.0}},
			new:  &State{Static: map[string]any{"a": 1.0}},
		},
		{
			name: "Static Added & Modified",
			old:  &State{Static: map[string]any{"a": 1.0, "b": "old"}},
			new:  &State{Static: map[string]any{"a": 1.0, "b": "new", "c": true}},
			wantDiff: &StateDiff{
				Static: map[string]any{"b": "new", "c": true},
			},
		},
		{
			name: "Nested Deletion",
			old:  &State{Static: map[string]any{"hero": map[string]any{"hp": 3.0, "mp": 1.0}}},
			new:  &State{Static: map[string]any{"hero": map[string]any{"hp": 3.0}}},
			wantDiff: &StateDiff{
				Static: map[string]any{"hero.mp": nil},
			},
		},
		{
			name: "Volatile Promoted",
			old: &State{Volatile: []TimedEntry{
				{Path: "flag", Value: true, Reason: "t1", TriggerAt: RoundTrigger(2)},
			}},
			new: &State{Static: map[string]any{"flag": true}},
			wantDiff: &StateDiff{
				Static: map[string]any{"flag": true},
				VolatileRemoved: []TimedEntry{
					{Path: "flag", Value: true, Reason: "t1", TriggerAt: RoundTrigger(2)},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if tt.wantDiff == nil {
				if got != nil {
					t.Errorf("Diff() = %v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("Diff() = nil, want %v", tt.wantDiff)
			}
			if !reflect.DeepEqual(got.Static, tt.wantDiff.Static) {
				t.Errorf("Diff().Static = %v, want %v", got.Static, tt.wantDiff.Static)
			}
			if !reflect.DeepEqual(got.VolatileRemoved, tt.wantDiff.VolatileRemoved) {
				t.Errorf("Diff().VolatileRemoved = %v, want %v", got.VolatileRemoved, tt.wantDiff.VolatileRemoved)
			}
			if !reflect.DeepEqual(got.SummaryAppended, tt.wantDiff.SummaryAppended) {
				t.Errorf("Diff().SummaryAppended = %v, want %v", got.SummaryAppended, tt.wantDiff.SummaryAppended)
			}
		})
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	t.Run("Deletions as Null", func(t *testing.T) {
		s1 := &State{Static: map[string]any{"a": 1, "b": 2}}
		s2 := &State{Static: map[string]any{"a": 1}} // 'b' deleted
		diff := Diff(s1, s2)

		if diff == nil {
			t.Fatal("Expected diff, got nil")
		}

		bytes, _ := json.Marshal(diff)
		if !strings.Contains(string(bytes), `"b":null`) {
			t.Errorf("JSON should contain 'b':null for deletion, got: %s", string(bytes))
		}
		if strings.Contains(string(bytes), `"volatile_added"`) {
			t.Errorf("JSON should not contain empty volatile delta, got: %s", string(bytes))
		}
	})
}
