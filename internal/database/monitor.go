package database

import (
	"context"
	"sync"
	"time"
)

// Events are the connection observers. Nil handlers are skipped.
type Events struct {
	// Disconnected fires once when a healthy connection stops answering probes
	Disconnected func()

	// Error fires for every failed probe
	Error func(err error)

	// Reconnected fires when probes succeed again after a disconnect
	Reconnected func()
}

// monitor probes the database at a fixed interval and publishes state changes
type monitor struct {
	ping     func(context.Context) error
	interval time.Duration
	timeout  time.Duration

	mu          sync.Mutex
	subscribers []Events
	healthy     bool

	cancel context.CancelFunc
	done   chan struct{}
}

func newMonitor(ping func(context.Context) error, interval, timeout time.Duration) *monitor {
	return &monitor{
		ping:     ping,
		interval: interval,
		timeout:  timeout,
		healthy:  true,
	}
}

func (m *monitor) subscribe(e Events) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, e)
}

func (m *monitor) start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

// stop waits for the probe loop to exit. Safe to call when the monitor was never started.
func (m *monitor) stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// probe runs one health check and notifies subscribers of the outcome
func (m *monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.ping(probeCtx)
	cancel()

	// a probe cut short by stop is not a disconnect
	if ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	wasHealthy := m.healthy
	m.healthy = err == nil
	subscribers := make([]Events, len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.Unlock()

	for _, s := range subscribers {
		switch {
		case err != nil:
			if wasHealthy && s.Disconnected != nil {
				s.Disconnected()
			}
			if s.Error != nil {
				s.Error(err)
			}
		case !wasHealthy && s.Reconnected != nil:
			s.Reconnected()
		}
	}
}
