package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "sam:state:"

// mergeLockTTL bounds how long a crashed writer can block merges.
const mergeLockTTL = 5 * time.Second

// Store implements ports.VariableStore for one chat using Redis.
type Store struct {
	client *backend.Client
	chat   string
	prefix string
	ttl    time.Duration
	locker ports.Locker
}

type Option func(*Store)

// WithTTL sets the expiration of the stored state. Zero means no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithLocker replaces the lock used by MergeState.
func WithLocker(locker ports.Locker) Option {
	return func(s *Store) {
		s.locker = locker
	}
}

// New creates a Redis store for chat with options.
func New(address, password string, db int, chat string, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, chat, opts...)
}

// NewFromClient creates a Redis store for chat from an existing client.
func NewFromClient(client *backend.Client, chat string, opts ...Option) *Store {
	store := &Store{
		client: client,
		chat:   chat,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	if store.locker == nil {
		store.locker = NewLocker(client, store.prefix)
	}
	return store
}

func (s *Store) key() string {
	return s.prefix + s.chat
}

// State retrieves the state. A missing key yields the Initial State.
func (s *Store) State(ctx context.Context) (*domain.State, error) {
	val, err := s.client.Get(ctx, s.key()).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.NewState(), nil
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// ReplaceState stores the state as JSON.
func (s *Store) ReplaceState(ctx context.Context, state *domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// MergeState merges under the chat lock so concurrent writers do not lose updates.
func (s *Store) MergeState(ctx context.Context, partial *domain.State) (err error) {
	unlock, err := s.locker.Lock(ctx, s.chat, mergeLockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil && err == nil {
			err = fmt.Errorf("failed to release lock: %w", uerr)
		}
	}()

	current, err := s.State(ctx)
	if err != nil {
		return err
	}
	current.Merge(partial)
	return s.ReplaceState(ctx, current)
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
