package loam

import (
	"context"
	"testing"

	"github.com/LynxShu/ST-var-manager/internal/testutils"
	"github.com/LynxShu/ST-var-manager/pkg/ports"
	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.FunctionLoader = (*Library)(nil)
	_ ports.Watchable      = (*Library)(nil)
)

func TestLibrary_Functions(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t, loam.WithVersioning(false))
	testutils.WriteFiles(t, tmpDir, map[string]string{
		"heal.md": `---
name: heal
params: [hp, amount]
timeout: 500
---
return hp + amount;`,
		"combat/damage.md": `---
params: [hp]
network_access: true
---
return hp - 1;`,
	})

	lib := New(loam.NewTypedRepository[FunctionMetadata](repo))
	defs, err := lib.Functions(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "damage", defs[0].Name, "name should default to the file name")
	assert.Equal(t, []string{"hp"}, defs[0].ParamNames)
	assert.True(t, defs[0].NetworkAccess)
	assert.Equal(t, "return hp - 1;", defs[0].Body)

	assert.Equal(t, "heal", defs[1].Name)
	assert.Equal(t, []string{"hp", "amount"}, defs[1].ParamNames)
	assert.Equal(t, 500, defs[1].TimeoutMs)
	assert.Equal(t, "return hp + amount;", defs[1].Body)
}

func TestLibrary_Functions_DetectsCollisions(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t, loam.WithVersioning(false))
	testutils.WriteFiles(t, tmpDir, map[string]string{
		"a.md": "---\nname: twice\n---\nreturn 1;",
		"b.md": "---\nname: twice\n---\nreturn 2;",
	})

	lib := New(loam.NewTypedRepository[FunctionMetadata](repo))
	_, err := lib.Functions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestLibrary_Functions_RejectsEmptyBody(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t, loam.WithVersioning(false))
	testutils.WriteFiles(t, tmpDir, map[string]string{
		"empty.md": "---\nname: empty\n---\n",
	})

	lib := New(loam.NewTypedRepository[FunctionMetadata](repo))
	_, err := lib.Functions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty body")
}

func TestTrimExtension(t *testing.T) {
	assert.Equal(t, "combat/damage", trimExtension("combat/damage.md"))
	assert.Equal(t, "plain", trimExtension("plain"))
}
