package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalError is the cancellation cause recorded when a signal arrives.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string { return "interrupted by " + e.Signal.String() }

// Interrupt is a context cancelled by SIGINT or SIGTERM.
// Batches in flight still run to completion; a second signal exits with 130.
type Interrupt struct {
	context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
	once   sync.Once
}

// WithInterrupt starts watching for termination signals until Stop is called.
func WithInterrupt(parent context.Context) *Interrupt {
	ctx, cancel := context.WithCancelCause(parent)
	in := &Interrupt{Context: ctx, cancel: cancel, done: make(chan struct{})}

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			cancel(&SignalError{Signal: sig})
		case <-ctx.Done():
			return
		case <-in.done:
			return
		}
		select {
		case <-ch:
			os.Exit(130)
		case <-in.done:
		}
	}()
	return in
}

// Stop releases the signal handler and cancels the context.
func (in *Interrupt) Stop() {
	in.once.Do(func() {
		close(in.done)
		in.cancel(nil)
	})
}

// Signal reports the signal that cancelled the context, if any.
func (in *Interrupt) Signal() os.Signal {
	var se *SignalError
	if errors.As(context.Cause(in.Context), &se) {
		return se.Signal
	}
	return nil
}
