// Package connectivity keeps the single online/offline signal of the client.
//
// The host link state (LinkUp/LinkDown) only says whether a network exists;
// reachability of the server is confirmed by probes run on LinkUp and on every
// Tick. State changes are delivered to subscribers in the order they happen.
package connectivity

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/logging"
)

type State string

const (
	Offline State = "offline"
	Probing State = "probing"
	Online  State = "online"
)

// Prober checks that the server answers. It must honour ctx.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

type transition struct {
	from, to State
}

type Monitor struct {
	prober  Prober
	timeout time.Duration
	log     logging.Logger

	mu      sync.Mutex
	state   State
	gen     uint64
	probing bool
	subs    []func(from, to State)
	pending []transition

	notifyMu sync.Mutex
}

// New returns a monitor that starts Offline when the link is down and
// Probing otherwise; the first Tick confirms a Probing start.
func New(prober Prober, probeTimeout time.Duration, linkUp bool, log logging.Logger) *Monitor {
	state := Offline
	if linkUp {
		state = Probing
	}
	return &Monitor{
		prober:  prober,
		timeout: probeTimeout,
		log:     log.With("module", "connectivity"),
		state:   state,
	}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) Online() bool {
	return m.State() == Online
}

// Subscribe registers fn for transitions. fn must not call back into the
// monitor's input methods.
func (m *Monitor) Subscribe(fn func(from, to State)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// LinkDown reports that the host lost its network link.
func (m *Monitor) LinkDown(ctx context.Context) {
	m.mu.Lock()
	m.setLocked(Offline)
	m.mu.Unlock()
	m.flush()
}

// LinkUp reports that the host link came back and probes the server.
func (m *Monitor) LinkUp(ctx context.Context) {
	m.mu.Lock()
	if m.state == Offline {
		m.setLocked(Probing)
	}
	m.mu.Unlock()
	m.flush()

	m.probe(ctx)
}

// Tick is the periodic probe: Offline moves to Probing, and both Probing and
// Online are re-checked.
func (m *Monitor) Tick(ctx context.Context) {
	m.mu.Lock()
	if m.state == Offline {
		m.setLocked(Probing)
	}
	m.mu.Unlock()
	m.flush()

	m.probe(ctx)
}

// probe runs one reachability check unless another is already running. The
// result is dropped if the state moved on while the probe was out.
func (m *Monitor) probe(ctx context.Context) {
	m.mu.Lock()
	if m.probing || m.state == Offline {
		m.mu.Unlock()
		return
	}
	m.probing = true
	gen := m.gen
	m.mu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.prober.Probe(pctx)
	cancel()

	m.mu.Lock()
	m.probing = false
	if gen == m.gen {
		if err != nil {
			m.log.Debug(ctx, "probe failed", "error", err)
			m.setLocked(Offline)
		} else {
			m.setLocked(Online)
		}
	}
	m.mu.Unlock()
	m.flush()
}

func (m *Monitor) setLocked(to State) {
	if m.state == to {
		return
	}
	m.pending = append(m.pending, transition{from: m.state, to: to})
	m.state = to
	m.gen++
}

// flush delivers queued transitions in order, one deliverer at a time.
func (m *Monitor) flush() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return
		}
		t := m.pending[0]
		m.pending = m.pending[1:]
		subs := slices.Clone(m.subs)
		m.mu.Unlock()

		m.log.Info(context.Background(), "connectivity changed", "from", t.from, "to", t.to)
		for _, fn := range subs {
			fn(t.from, t.to)
		}
	}
}
