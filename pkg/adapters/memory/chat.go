package memory

import (
	"context"
	"sync"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// Chat implements ports.Transcript and ports.RoundCounter in memory.
type Chat struct {
	mu       sync.RWMutex
	messages []domain.Message
}

// NewChat creates a chat holding msgs.
func NewChat(msgs ...domain.Message) *Chat {
	return &Chat{messages: append([]domain.Message(nil), msgs...)}
}

func (c *Chat) Message(ctx context.Context, index int) (domain.Message, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.messages) {
		return domain.Message{}, domain.ErrMessageNotFound
	}
	return c.messages[index], nil
}

func (c *Chat) SetMessage(ctx context.Context, index int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.messages) {
		return domain.ErrMessageNotFound
	}
	c.messages[index].Text = text
	return nil
}

func (c *Chat) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages), nil
}

func (c *Chat) Append(ctx context.Context, msg domain.Message) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return len(c.messages) - 1, nil
}

// Delete removes the message at index, shifting later messages down.
func (c *Chat) Delete(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.messages) {
		return domain.ErrMessageNotFound
	}
	c.messages = append(c.messages[:index], c.messages[index+1:]...)
	return nil
}

// CurrentRound is the message count minus one.
func (c *Chat) CurrentRound(ctx context.Context) (int, error) {
	n, _ := c.Count(ctx)
	return n - 1, nil
}

// Messages returns a snapshot of the transcript.
func (c *Chat) Messages() []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Message(nil), c.messages...)
}
