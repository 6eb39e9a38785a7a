// Package shutdown coordinates interrupt handling for the CLI. An interrupt
// cancels the context of any in-flight backend request, then registered
// cleanups (closing backends, flushing the background log) run in reverse order.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"taskbridge/internal/utils"
)

// CleanupFunc performs cleanup on shutdown. The context is cancelled when
// the shutdown deadline passes.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager handles graceful shutdown coordination.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry
	shutdown bool
	signaled os.Signal

	shutdownCh chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	waitOnce   sync.Once
	stopSignal func()
}

// NewManager creates a shutdown manager whose context derives from parent.
func NewManager(parent context.Context) *Manager {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		stopSignal: func() {},
	}
}

// RegisterCleanup registers a cleanup function. Cleanups run in LIFO order.
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// ListenForSignals triggers Shutdown on SIGINT or SIGTERM until Stop is called.
func (m *Manager) ListenForSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			m.mu.Lock()
			m.signaled = sig
			m.mu.Unlock()
			utils.Debugf("Received %s, cancelling in-flight requests", sig)
			m.Shutdown()
		case <-done:
		}
	}()

	var stopOnce sync.Once
	m.mu.Lock()
	m.stopSignal = func() {
		stopOnce.Do(func() {
			signal.Stop(sigCh)
			close(done)
		})
	}
	m.mu.Unlock()
}

// Stop releases signal handlers without running cleanups.
func (m *Manager) Stop() {
	m.mu.Lock()
	stop := m.stopSignal
	m.mu.Unlock()
	stop()
}

// Shutdown cancels the manager context. Only the first call has effect.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		m.mu.Unlock()

		m.cancel()
		close(m.shutdownCh)
	})
}

// Done is closed once Shutdown has been called.
func (m *Manager) Done() <-chan struct{} {
	return m.shutdownCh
}

func (m *Manager) runCleanups(ctx context.Context) {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i].fn(ctx); err != nil {
			utils.Warnf("Cleanup %q failed: %v", cleanups[i].name, err)
		}
	}
}

// Wait runs the registered cleanups once and returns ctx.Err() if they do
// not finish before ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	var err error
	m.waitOnce.Do(func() {
		m.Stop()
		done := make(chan struct{})
		go func() {
			m.runCleanups(ctx)
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

// IsShutdown returns true if shutdown has been initiated.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Signal returns the signal that triggered shutdown, or nil.
func (m *Manager) Signal() os.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signaled
}

// Context returns a context that is cancelled when shutdown is initiated.
func (m *Manager) Context() context.Context {
	return m.ctx
}
