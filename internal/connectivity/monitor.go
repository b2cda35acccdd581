package connectivity

import (
	"context"
	"log"
	"net"
	"sync/atomic"
	"time"
)

// Monitor tracks whether the device currently has network reach to the
// recognition endpoint. The scan loop consults Online on every tick; a
// transition to offline gates new attempts, a transition back to online
// re-enables them on the next tick.
type Monitor struct {
	addr     string
	interval time.Duration
	dialer   net.Dialer
	online   atomic.Bool
}

// NewMonitor probes addr (host:port) every interval. The flag starts
// offline until the first successful probe.
func NewMonitor(addr string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		addr:     addr,
		interval: interval,
		dialer:   net.Dialer{Timeout: 3 * time.Second},
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool { return m.online.Load() }

// SetOnline overrides the flag. Used by tests and by platforms that deliver
// their own connectivity events.
func (m *Monitor) SetOnline(v bool) { m.online.Store(v) }

// Run probes until ctx is cancelled, logging transitions.
func (m *Monitor) Run(ctx context.Context) {
	m.probe(ctx)
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
}

func (m *Monitor) probe(ctx context.Context) {
	conn, err := m.dialer.DialContext(ctx, "tcp", m.addr)
	now := err == nil
	if conn != nil {
		conn.Close()
	}
	if was := m.online.Swap(now); was != now {
		if now {
			log.Println("connectivity: back online")
		} else {
			log.Printf("connectivity: offline (%v)", err)
		}
	}
}
