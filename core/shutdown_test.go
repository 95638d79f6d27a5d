package core

import (
	"context"
	"errors"
	"testing"
)

type closerStub struct {
	calls int
	err   error
}

func (c *closerStub) Close() error {
	c.calls++
	return c.err
}

func TestCloserFunc(t *testing.T) {
	boom := errors.New("boom")
	closer := &closerStub{err: boom}

	fn := CloserFunc(closer)
	if err := fn(context.Background()); !errors.Is(err, boom) {
		t.Errorf("CloserFunc() error = %v, want %v", err, boom)
	}
	if closer.calls != 1 {
		t.Errorf("Close called %d times, want 1", closer.calls)
	}
}

func TestStopFunc(t *testing.T) {
	stopped := false
	fn := StopFunc(func() { stopped = true })

	if err := fn(context.Background()); err != nil {
		t.Errorf("StopFunc() error = %v", err)
	}
	if !stopped {
		t.Error("stop was not called")
	}
}
