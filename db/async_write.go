package db

import (
	"context"
	"sync"
	"time"
)

// Async writer defaults.
const (
	DefaultChannelCapacity = 64
	DefaultDrainTimeout    = 5 * time.Second
)

// WriteOperation is one queued write.
type WriteOperation struct {
	Data     any
	QueuedAt time.Time
}

// WriteHandler performs a queued write. Its error goes to the writer's
// ErrorHandler.
type WriteHandler func(ctx context.Context, op WriteOperation) error

// ErrorHandler receives failed writes.
type ErrorHandler func(op WriteOperation, err error)

// AsyncWriter moves writes off the caller's goroutine through a buffered
// channel drained by one background goroutine.
type AsyncWriter struct {
	queue   chan WriteOperation
	handler WriteHandler
	onError ErrorHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// AsyncWriterConfig holds configuration for the async writer.
type AsyncWriterConfig struct {
	ChannelCapacity int
	OnError         ErrorHandler
}

// DefaultAsyncWriterConfig returns the default configuration.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{ChannelCapacity: DefaultChannelCapacity}
}

// NewAsyncWriter creates a stopped writer; call Start before Write.
func NewAsyncWriter(handler WriteHandler, config AsyncWriterConfig) *AsyncWriter {
	if config.ChannelCapacity <= 0 {
		config.ChannelCapacity = DefaultChannelCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &AsyncWriter{
		queue:   make(chan WriteOperation, config.ChannelCapacity),
		handler: handler,
		onError: config.OnError,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the background goroutine. It is a no-op after the first
// call.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.closed {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.process()
}

// IsStarted reports whether Start was called and the writer is not closed.
func (w *AsyncWriter) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started && !w.closed
}

// Write queues data without blocking. It returns false when the queue is
// full or the writer is closed.
func (w *AsyncWriter) Write(data any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}

	select {
	case w.queue <- WriteOperation{Data: data, QueuedAt: time.Now()}:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued writes.
func (w *AsyncWriter) Pending() int {
	return len(w.queue)
}

// Close stops accepting writes and waits up to timeout for queued writes
// to finish. It reports whether the drain completed in time.
func (w *AsyncWriter) Close(timeout time.Duration) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return true
	}
	w.closed = true
	started := w.started
	close(w.queue)
	w.mu.Unlock()

	if !started {
		w.cancel()
		return true
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancel()
		return true
	case <-time.After(timeout):
		w.cancel()
		return false
	}
}

func (w *AsyncWriter) process() {
	defer w.wg.Done()

	for op := range w.queue {
		if err := w.handler(w.ctx, op); err != nil && w.onError != nil {
			w.onError(op, err)
		}
	}
}
