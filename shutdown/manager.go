package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"digitizer/core"
	"digitizer/logging"
)

// Manager turns SIGINT/SIGTERM into context cancellation and runs the
// registered cleanup steps on Shutdown. A second signal exits immediately.
//
// Usage:
//
//	manager := shutdown.NewManager(logger)
//	manager.Register("stop-tracking", shutdown.PriorityStopTracking, core.StopFunc(tracker.Stop))
//	manager.Start()
//	defer manager.Shutdown()
//
//	view, err := tracker.Wait(manager.Context())
type Manager struct {
	logger  *logging.Logger
	timeout time.Duration
	exit    func(code int)

	ctx    context.Context
	cancel context.CancelFunc

	registry *Registry
	signals  *SignalCounter
	sigChan  chan os.Signal

	mu       sync.Mutex
	started  bool
	shutdown bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout bounds the cleanup steps. Default 10 seconds.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithExitFunc replaces os.Exit for the forced exit on a second signal.
func WithExitFunc(exit func(code int)) ManagerOption {
	return func(m *Manager) {
		m.exit = exit
	}
}

// NewManager creates a Manager. It does not listen for signals until Start.
func NewManager(logger *logging.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		logger:   logger.Named("shutdown"),
		timeout:  10 * time.Second,
		exit:     os.Exit,
		ctx:      ctx,
		cancel:   cancel,
		registry: NewRegistry(),
		sigChan:  make(chan os.Signal, 2),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.signals = NewSignalCounter(2, func(first os.Signal) {
		m.logger.Warn("second signal received, forcing exit")
		m.exit(core.ExitCodeForSignal(first))
	})
	return m
}

// Context is cancelled by the first signal or by Shutdown.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup step; see the Priority constants.
func (m *Manager) Register(name string, priority int, fn core.ShutdownFunc) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("registered shutdown step",
		zap.String("name", name),
		zap.Int("priority", priority))
}

// Start listens for SIGINT and SIGTERM. Calling it twice is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.handleSignal(sig)
		}
	}()
}

func (m *Manager) handleSignal(sig os.Signal) {
	if m.signals.Record(sig) == 1 {
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		m.cancel()
	}
}

// Signal returns the first signal received, or nil.
func (m *Manager) Signal() os.Signal {
	return m.signals.First()
}

// ExitCode returns the conventional exit code for the first signal, or
// core.ExitCodeSuccess when none arrived.
func (m *Manager) ExitCode() int {
	if sig := m.signals.First(); sig != nil {
		return core.ExitCodeForSignal(sig)
	}
	return core.ExitCodeSuccess
}

// Shutdown cancels the context and runs the cleanup steps within the
// configured timeout. Only the first call does anything.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	m.cancel()
	if started {
		signal.Stop(m.sigChan)
		close(m.sigChan)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.logger.Debug("running shutdown steps", zap.Strings("steps", m.registry.Names()))
	err := m.registry.Run(ctx)
	if err != nil {
		m.logger.Error("shutdown completed with errors",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return err
	}

	m.logger.Debug("shutdown completed", zap.Duration("duration", time.Since(start)))
	return nil
}

// IsShuttingDown reports whether Shutdown was called or a signal arrived.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown || m.ctx.Err() != nil
}
