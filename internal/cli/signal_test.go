package cli

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterrupt_StopWithoutSignal(t *testing.T) {
	in := WithInterrupt(context.Background())
	in.Stop()
	in.Stop()

	<-in.Done()
	assert.ErrorIs(t, in.Err(), context.Canceled)
	assert.Nil(t, in.Signal())
}

func TestInterrupt_ParentCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	in := WithInterrupt(parent)
	defer in.Stop()

	cancel()
	<-in.Done()
	assert.Nil(t, in.Signal())
}

func TestSignalError(t *testing.T) {
	err := error(&SignalError{Signal: syscall.SIGTERM})
	var se *SignalError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "interrupted by terminated", err.Error())
}
