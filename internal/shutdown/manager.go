// Package shutdown turns SIGINT/SIGTERM into context cancellation and closes
// registered resources in reverse order.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gap-navigator/internal/logger"
)

const defaultTimeout = 10 * time.Second

type component struct {
	name   string
	closer io.Closer
}

type Manager struct {
	components []component
	logger     logger.Logger
	timeout    time.Duration
	mu         sync.Mutex
	done       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	err        error
}

func NewManager(parent context.Context, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		logger:  log,
		timeout: defaultTimeout,
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetTimeout bounds how long each component may take to close.
func (m *Manager) SetTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = d
}

// Register adds a resource closed by Shutdown. Later registrations close first.
func (m *Manager) Register(name string, c io.Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component{name: name, closer: c})
}

// Listen cancels the context on the first SIGINT or SIGTERM. The returned
// function stops listening.
func (m *Manager) Listen() (stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			m.logger.Info("ShutdownManager", "shutdown signal received", map[string]interface{}{
				"signal": sig.String(),
			})
			m.cancel()
		case <-m.ctx.Done():
		}
	}()

	return func() { signal.Stop(sigChan) }
}

// Shutdown cancels the context and closes every component. It is idempotent;
// later calls return the first call's result.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
		return m.err
	default:
		close(m.done)
	}

	m.logger.Info("ShutdownManager", "shutdown sequence initiated", map[string]interface{}{
		"components": len(m.components),
	})
	m.cancel()

	var errs []error
	for i := len(m.components) - 1; i >= 0; i-- {
		c := m.components[i]

		result := make(chan error, 1)
		go func() { result <- c.closer.Close() }()

		select {
		case err := <-result:
			if err != nil {
				m.logger.Error("ShutdownManager", err, map[string]interface{}{"component": c.name})
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			}
		case <-time.After(m.timeout):
			m.logger.Warning("ShutdownManager", "component shutdown timeout", map[string]interface{}{
				"component": c.name,
			})
			errs = append(errs, fmt.Errorf("%s: close timed out after %v", c.name, m.timeout))
		}
	}

	m.err = errors.Join(errs...)
	m.logger.Info("ShutdownManager", "shutdown sequence completed", nil)
	return m.err
}

// Context is cancelled by a signal or by Shutdown.
func (m *Manager) Context() context.Context {
	return m.ctx
}

func (m *Manager) Done() <-chan struct{} {
	return m.done
}
