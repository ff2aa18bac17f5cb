package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestGraphCommand(t *testing.T) {
	out := run(t, "", "graph", "--current", "idle")
	assert.True(t, strings.HasPrefix(out, "graph TD"))
	assert.Contains(t, out, "class IDLE current;")
}

func TestApplyCommand_JSON(t *testing.T) {
	out := run(t, "<SET :: hero.hp :: 12>", "apply", "--json", "--log-level", "error")

	var state domain.State
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	hp, ok := domain.GetPath(state.Static, "hero.hp")
	require.True(t, ok)
	assert.Equal(t, 12.0, hp)
}

func TestVersionCommand(t *testing.T) {
	out := run(t, "", "version")
	assert.Contains(t, out, "samctl version")
}
