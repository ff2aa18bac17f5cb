package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/ports"
)

// envelopeField holds the ciphertext inside the stored state.
const envelopeField = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 16, 24 or 32 bytes (AES-128, AES-192 or AES-256).
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables key rotation without rewriting every chat.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.VariableStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that stores the state as an
// AES-GCM envelope. It panics on an invalid active key size.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	switch len(config.ActiveKey) {
	case 16, 24, 32:
	default:
		panic("active key must be 16, 24 or 32 bytes")
	}
	return func(next ports.VariableStore) ports.VariableStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) State(ctx context.Context) (*domain.State, error) {
	envelope, err := m.next.State(ctx)
	if err != nil {
		return nil, err
	}

	// An untouched store holds the Initial State, not an envelope.
	if len(envelope.Static) == 0 {
		return domain.NewState(), nil
	}
	encoded, ok := envelope.Static[envelopeField].(string)
	if !ok {
		return nil, errors.New("state is missing encrypted data envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt state: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(plainText, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted state: %w", err)
	}
	return &state, nil
}

func (m *encryptionMiddleware) ReplaceState(ctx context.Context, state *domain.State) error {
	plainText, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	envelope := domain.NewState()
	envelope.Static[envelopeField] = base64.StdEncoding.EncodeToString(ciphertext)
	return m.next.ReplaceState(ctx, envelope)
}

// MergeState cannot merge ciphertexts, so it decrypts, merges and re-encrypts.
func (m *encryptionMiddleware) MergeState(ctx context.Context, partial *domain.State) error {
	current, err := m.State(ctx)
	if err != nil {
		return err
	}
	current.Merge(partial)
	return m.ReplaceState(ctx, current)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
