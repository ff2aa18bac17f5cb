package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	sam "github.com/LynxShu/ST-var-manager"
	"github.com/LynxShu/ST-var-manager/internal/logging"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed process can hold a chat.
const DefaultLockTTL = 30 * time.Second

// Factory builds the Manager of a chat on first use.
type Factory func(ctx context.Context, chatID string) (*sam.Manager, error)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Hub owns one Manager per chat.
// It uses reference counting to garbage collect unused locks.
type Hub struct {
	factory Factory

	mu       sync.Mutex
	locks    map[string]*lockEntry
	managers map[string]*sam.Manager

	locker  ports.Locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Hub.
type Option func(*Hub)

// WithLocker enables cross-process locking of chats.
func WithLocker(locker ports.Locker, ttl time.Duration) Option {
	return func(h *Hub) {
		h.locker = locker
		if ttl > 0 {
			h.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Hub.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates a Hub that builds managers with factory.
func NewHub(factory Factory, opts ...Option) *Hub {
	h := &Hub{
		factory:  factory,
		locks:    make(map[string]*lockEntry),
		managers: make(map[string]*sam.Manager),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(chatID) after unlocking.
func (h *Hub) acquire(chatID string) *lockEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, exists := h.locks[chatID]
	if !exists {
		entry = &lockEntry{}
		h.locks[chatID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (h *Hub) release(chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, exists := h.locks[chatID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(h.locks, chatID)
	}
}

// Dispatch delivers ev to the Manager of chatID, creating it if needed.
func (h *Hub) Dispatch(ctx context.Context, chatID string, ev domain.Event) error {
	return h.WithChat(ctx, chatID, func(ctx context.Context, mgr *sam.Manager) error {
		mgr.Dispatch(ctx, ev)
		return nil
	})
}

// WithChat runs fn with the Manager of chatID while holding the chat lock.
func (h *Hub) WithChat(ctx context.Context, chatID string, fn func(context.Context, *sam.Manager) error) error {
	return h.withLock(ctx, chatID, func(ctx context.Context) error {
		mgr, err := h.manager(ctx, chatID)
		if err != nil {
			return err
		}
		return fn(ctx, mgr)
	})
}

// Forget closes the Manager of chatID. The next event builds a fresh one.
func (h *Hub) Forget(ctx context.Context, chatID string) error {
	return h.withLock(ctx, chatID, func(ctx context.Context) error {
		h.mu.Lock()
		mgr, ok := h.managers[chatID]
		delete(h.managers, chatID)
		h.mu.Unlock()

		if !ok {
			return nil
		}
		return mgr.Close()
	})
}

// Chats lists the chats with a live Manager, sorted.
func (h *Hub) Chats() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.managers))
	for id := range h.managers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every Manager.
func (h *Hub) Close() error {
	h.mu.Lock()
	managers := h.managers
	h.managers = make(map[string]*sam.Manager)
	h.mu.Unlock()

	var errs []error
	for _, mgr := range managers {
		errs = append(errs, mgr.Close())
	}
	return errors.Join(errs...)
}

func (h *Hub) manager(ctx context.Context, chatID string) (*sam.Manager, error) {
	h.mu.Lock()
	mgr, ok := h.managers[chatID]
	h.mu.Unlock()
	if ok {
		return mgr, nil
	}

	mgr, err := h.factory(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat %q: %w", chatID, err)
	}

	h.mu.Lock()
	h.managers[chatID] = mgr
	h.mu.Unlock()

	h.logger.DebugContext(ctx, "chat opened", "chat", chatID)
	return mgr, nil
}

func (h *Hub) withLock(ctx context.Context, chatID string, fn func(context.Context) error) error {
	entry := h.acquire(chatID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		h.release(chatID)
	}()

	if h.locker != nil {
		unlock, err := h.locker.Lock(ctx, chatID, h.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				h.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"chat", chatID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
