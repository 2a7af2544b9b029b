// Package health provides reachability monitoring for the Pokéchat backend.
// The chat UI's status bar reflects the latest probe so the user knows why a
// send might fail before attempting one.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pokedex-chat/console/internal/interfaces"
	"github.com/pokedex-chat/console/internal/logging"
)

// Status is the coarse backend reachability state.
type Status string

const (
	StatusChecking Status = "checking"
	StatusReady    Status = "ready"
	StatusOffline  Status = "offline"
)

// Snapshot captures one point-in-time probe result.
type Snapshot struct {
	Timestamp    time.Time
	Status       Status
	ResponseTime time.Duration
	Error        string
}

const (
	// DefaultInterval between periodic probes.
	DefaultInterval = 30 * time.Second

	probeTimeout   = 5 * time.Second
	maxHistorySize = 20
)

// Monitor probes the backend root endpoint on a fixed interval.
type Monitor struct {
	transport interfaces.Transport
	logger    *logging.Logger

	mu      sync.RWMutex
	current Snapshot
	history []Snapshot
	cancel  context.CancelFunc
}

// NewMonitor creates a monitor probing through tr.
func NewMonitor(tr interfaces.Transport) *Monitor {
	return &Monitor{
		transport: tr,
		logger:    logging.GetHealthLogger(),
		current:   Snapshot{Status: StatusChecking, Timestamp: time.Now()},
	}
}

// Start begins periodic probing until ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	probeCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		m.Check(probeCtx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-probeCtx.Done():
				return
			case <-ticker.C:
				m.Check(probeCtx)
			}
		}
	}()
}

// Stop halts periodic probing.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Check performs one probe and records the result.
func (m *Monitor) Check(ctx context.Context) Snapshot {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	_, err := m.transport.Execute(probeCtx, interfaces.RequestDescriptor{
		Method: http.MethodGet,
		Path:   "/",
		Exempt: true,
	})
	elapsed := time.Since(start)

	snapshot := Snapshot{
		Timestamp:    time.Now(),
		Status:       StatusReady,
		ResponseTime: elapsed,
	}
	if err != nil {
		snapshot.Status = StatusOffline
		snapshot.Error = err.Error()
	}
	m.logger.LogHealthCheck(string(snapshot.Status), elapsed, err)

	m.mu.Lock()
	m.current = snapshot
	m.history = append(m.history, snapshot)
	if len(m.history) > maxHistorySize {
		m.history = m.history[len(m.history)-maxHistorySize:]
	}
	m.mu.Unlock()

	return snapshot
}

// Current returns the latest probe result.
func (m *Monitor) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// History returns the recent probe results, oldest first.
func (m *Monitor) History() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Snapshot(nil), m.history...)
}
