package ports

import (
	"context"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// MessageStore gives indexed access to the chat transcript.
type MessageStore interface {
	// Message returns the message at index.
	// Returns domain.ErrMessageNotFound when the index is outside the chat.
	Message(ctx context.Context, index int) (domain.Message, error)

	// SetMessage replaces the text of the message at index.
	SetMessage(ctx context.Context, index int, text string) error

	// Count returns the number of messages in the chat.
	Count(ctx context.Context) (int, error)
}

// Transcript is a MessageStore that can grow. Hosts usually append on their
// own; the CLI and the tests need to do it explicitly.
type Transcript interface {
	MessageStore

	// Append adds a message and returns its index.
	Append(ctx context.Context, msg domain.Message) (int, error)
}

// RoundCounter returns the current round, a monotonically increasing proxy for
// conversation progress.
type RoundCounter interface {
	CurrentRound(ctx context.Context) (int, error)
}

// RoundFromCount derives the round from a message store: message count minus one.
type RoundFromCount struct {
	Messages MessageStore
}

// CurrentRound implements RoundCounter.
func (r RoundFromCount) CurrentRound(ctx context.Context) (int, error) {
	n, err := r.Messages.Count(ctx)
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}
