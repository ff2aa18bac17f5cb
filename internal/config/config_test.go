package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 2*time.Second, cfg.Sandbox.Timeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
sandbox:
  timeout: 500ms
  rollback: true
rules:
  time_path: clock.now
store:
  kind: file
  path: /tmp/state.json
`), 0o644))
	t.Setenv("SAM_LOG_LEVEL", "warn")
	t.Setenv("SAM_MAX_STEPS", "1000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.Sandbox.Timeout)
	assert.True(t, cfg.Sandbox.Rollback)
	assert.Equal(t, uint64(1000), cfg.Sandbox.MaxSteps)
	assert.Equal(t, "clock.now", cfg.Rules.TimePath)
	assert.Equal(t, "character", cfg.Rules.EntityPath)
	assert.Equal(t, StoreFile, cfg.Store.Kind)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Kind = "etcd"
	assert.ErrorContains(t, cfg.Validate(), "unknown store")

	cfg = Default()
	cfg.Store.Kind = StoreSQLite
	assert.ErrorContains(t, cfg.Validate(), "needs a path")

	cfg = Default()
	cfg.Store.EncryptionKey = "abcd"
	assert.ErrorContains(t, cfg.Validate(), "16, 24 or 32")

	cfg = Default()
	cfg.Store.EncryptionKey = "00112233445566778899aabbccddeeff"
	key, err := cfg.Store.Key()
	require.NoError(t, err)
	assert.Len(t, key, 16)
}

func TestMarkers_Resolve(t *testing.T) {
	start, end := Markers{Start: "a", End: "b", Legacy: true}.Resolve()
	assert.Equal(t, domain.LegacyStartMarker, start)
	assert.Equal(t, domain.LegacyEndMarker, end)
}
