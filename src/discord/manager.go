package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Discord accepts one IDENTIFY per bucket every five seconds.
const (
	DefaultIdentifyInterval = 5 * time.Second
	DefaultStopTimeout      = 10 * time.Second
)

// Connection is a gateway shard with an open/close lifecycle.
type Connection interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

type ManagerConfig struct {
	// IdentifyInterval spaces out shard logins. Zero disables the wait.
	IdentifyInterval time.Duration
	// StopTimeout bounds how long one connection may take to close.
	StopTimeout time.Duration
}

// Manager opens shard connections one identify window apart and closes them
// in reverse, never waiting on a single connection longer than StopTimeout.
type Manager struct {
	cfg     ManagerConfig
	log     *zap.Logger
	mu      sync.Mutex
	conns   []Connection
	started bool
}

func NewManager(cfg ManagerConfig, log *zap.Logger) *Manager {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{cfg: cfg, log: log}
}

// Add registers another shard before Start.
func (m *Manager) Add(conn Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("cannot add %s: shards already started", conn.Name())
	}
	m.conns = append(m.conns, conn)
	return nil
}

// Start logs every shard in. If one fails or ctx ends while waiting for the
// next identify window, the shards already open are closed again.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("shards already started")
	}

	opened := make([]Connection, 0, len(m.conns))
	rollback := func() {
		for i := len(opened) - 1; i >= 0; i-- {
			m.stop(opened[i])
		}
	}
	for i, conn := range m.conns {
		if i > 0 && m.cfg.IdentifyInterval > 0 {
			timer := time.NewTimer(m.cfg.IdentifyInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				rollback()
				return fmt.Errorf("waiting to identify %s: %w", conn.Name(), ctx.Err())
			case <-timer.C:
			}
		}
		if err := conn.Start(ctx); err != nil {
			rollback()
			return fmt.Errorf("%s failed: %w", conn.Name(), err)
		}
		m.log.Info("shard connection opened", zap.String("connection", conn.Name()))
		opened = append(opened, conn)
	}

	m.started = true
	return nil
}

// Stop closes every shard in reverse order.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	for i := len(m.conns) - 1; i >= 0; i-- {
		m.stop(m.conns[i])
	}
	m.started = false
}

func (m *Manager) stop(conn Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.StopTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.Stop(ctx)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.log.Warn("shard connection did not close in time",
			zap.String("connection", conn.Name()),
			zap.Duration("timeout", m.cfg.StopTimeout))
	}
}
