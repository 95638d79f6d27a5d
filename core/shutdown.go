package core

import (
	"context"
	"io"
)

// ShutdownFunc is a cleanup step run during graceful shutdown. It should
// honor ctx's deadline and be safe to call more than once.
type ShutdownFunc func(ctx context.Context) error

// CloserFunc adapts an io.Closer, such as the history database, to a
// ShutdownFunc.
func CloserFunc(c io.Closer) ShutdownFunc {
	return func(context.Context) error {
		return c.Close()
	}
}

// StopFunc adapts a stop method with no result, such as Tracker.Stop.
func StopFunc(stop func()) ShutdownFunc {
	return func(context.Context) error {
		stop()
		return nil
	}
}
