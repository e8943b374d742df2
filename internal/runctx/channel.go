// Package runctx holds the channel helpers shared by the long-running loops:
// the session watcher and the terminal UI event pumps.
package runctx

import (
	"context"

	"zerostack-chat/internal/logging"
)

// RecvOrDone waits for the next value on in. It reports false once ctx is
// done or in is closed.
func RecvOrDone[T any](ctx context.Context, name string, logger *logging.Logger, in <-chan T) (T, bool) {
	if logger == nil {
		panic("runctx.RecvOrDone: logger must not be nil")
	}
	select {
	case <-ctx.Done():
		logger.Debug("stopping "+name+": context canceled", logging.Field("error", ctx.Err()))
		var zero T
		return zero, false
	case v, ok := <-in:
		if !ok {
			logger.Debug("stopping " + name + ": input channel closed")
		}
		return v, ok
	}
}

func SendOrDone[T any](ctx context.Context, name string, logger *logging.Logger, out chan<- T, value T) bool {
	if logger == nil {
		panic("runctx.SendOrDone: logger must not be nil")
	}
	select {
	case <-ctx.Done():
		logger.Debug("stopping "+name+": context canceled before send", logging.Field("error", ctx.Err()))
		return false
	case out <- value:
		return true
	}
}

// SendLatest never blocks: when out is full the oldest queued value is
// dropped to make room. It reports false if value itself could not be
// queued because a concurrent sender refilled the channel.
func SendLatest[T any](out chan T, value T) bool {
	select {
	case out <- value:
		return true
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- value:
		return true
	default:
		return false
	}
}
