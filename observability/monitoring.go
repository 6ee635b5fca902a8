// Package observability aggregates counters describing the health of
// the synchronization core: connection lifecycle, event delivery, and
// reconciliation outcomes. Everything is updated lock-free from the
// hot paths; Snapshot assembles a consistent view for display.
package observability

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"chat-sync/contract"

	"github.com/shirou/gopsutil/process"
)

// Stats aggregates all metrics for the status view.
type Stats struct {
	State                string `json:"state"`
	Reconnects           uint64 `json:"reconnects"`
	EventsReceived       uint64 `json:"events_received"`
	EventsDroppedForeign uint64 `json:"events_dropped_foreign"`
	ConfirmedInPlace     uint64 `json:"confirmed_in_place"`
	DedupHits            uint64 `json:"dedup_hits"`
	Appended             uint64 `json:"appended"`
	DeleteNoops          uint64 `json:"delete_noops"`
	RssMb                uint64 `json:"rss_mb"`
}

// Manager collects runtime telemetry. All methods are safe on a nil
// receiver so components can run without monitoring wired in.
type Manager struct {
	log *slog.Logger

	mu    sync.RWMutex
	state contract.ConnectionState

	reconnects           atomic.Uint64
	eventsReceived       atomic.Uint64
	eventsDroppedForeign atomic.Uint64
	confirmedInPlace     atomic.Uint64
	dedupHits            atomic.Uint64
	appended             atomic.Uint64
	deleteNoops          atomic.Uint64
}

func NewManager(log *slog.Logger) *Manager {
	return &Manager{log: log, state: contract.StateDisconnected}
}

func (m *Manager) SetState(s contract.ConnectionState) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Add(1)
}

func (m *Manager) EventReceived() {
	if m == nil {
		return
	}
	m.eventsReceived.Add(1)
}

func (m *Manager) EventDroppedForeign() {
	if m == nil {
		return
	}
	m.eventsDroppedForeign.Add(1)
}

func (m *Manager) ConfirmedInPlace() {
	if m == nil {
		return
	}
	m.confirmedInPlace.Add(1)
}

func (m *Manager) DedupHit() {
	if m == nil {
		return
	}
	m.dedupHits.Add(1)
}

func (m *Manager) Appended() {
	if m == nil {
		return
	}
	m.appended.Add(1)
}

func (m *Manager) DeleteNoop() {
	if m == nil {
		return
	}
	m.deleteNoops.Add(1)
}

// Snapshot assembles the current counters plus the process RSS.
// Memory lookup failures are logged and leave RssMb at zero.
func (m *Manager) Snapshot() Stats {
	if m == nil {
		return Stats{State: string(contract.StateDisconnected)}
	}
	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()

	stats := Stats{
		State:                string(state),
		Reconnects:           m.reconnects.Load(),
		EventsReceived:       m.eventsReceived.Load(),
		EventsDroppedForeign: m.eventsDroppedForeign.Load(),
		ConfirmedInPlace:     m.confirmedInPlace.Load(),
		DedupHits:            m.dedupHits.Load(),
		Appended:             m.appended.Load(),
		DeleteNoops:          m.deleteNoops.Load(),
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfo(); err == nil {
			stats.RssMb = mem.RSS / (1024 * 1024)
		} else if m.log != nil {
			m.log.Debug("Error while reading process memory", "err", err)
		}
	}
	return stats
}
