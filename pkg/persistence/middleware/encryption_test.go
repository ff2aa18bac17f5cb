package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/persistence/middleware"
	"github.com/LynxShu/ST-var-manager/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunVariableStoreContract(t, mw(NewMockStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := NewMockStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)

	ctx := context.Background()
	original := domain.NewState()
	original.Static["secret"] = "my-secret-sauce"
	original.ResponseSummary = []string{"hidden line"}

	require.NoError(t, secure.ReplaceState(ctx, original))

	raw, err := underlying.State(ctx)
	require.NoError(t, err)
	assert.NotContains(t, raw.Static, "secret")
	assert.Contains(t, raw.Static, "__encrypted__")
	assert.Empty(t, raw.ResponseSummary)

	loaded, err := secure.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Static["secret"])
	assert.Equal(t, []string{"hidden line"}, loaded.ResponseSummary)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	original := domain.NewState()
	original.Static["data"] = "encrypted-with-old-key"
	require.NoError(t, secureOld.ReplaceState(ctx, original))

	secureNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := secureNew.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", loaded.Static["data"])

	loaded.Static["data"] = "encrypted-with-new-key"
	require.NoError(t, secureNew.ReplaceState(ctx, loaded))

	_, err = secureOld.State(ctx)
	assert.Error(t, err, "old key alone must not decrypt new data")
}

func TestEncryptionMiddleware_PlainStateIsRejected(t *testing.T) {
	underlying := NewMockStore()
	require.NoError(t, underlying.ReplaceState(context.Background(), &domain.State{Static: map[string]any{"plain": 1.0}}))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.State(context.Background())
	assert.ErrorContains(t, err, "envelope")
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}
