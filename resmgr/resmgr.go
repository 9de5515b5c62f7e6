// Package resmgr implements the resource manager from spec.md §4.I: a
// periodic task that samples the pending-work counter and toggles the
// OFFLOAD flag with hysteresis, logging every transition. Grounded on
// original_source/manager.c's RM_LOG_TIMESTAMP_ONBOARD/OFFLOAD macros.
package resmgr

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/cpmech/mpcctl/shm"
)

// fsmState mirrors the two-state FSM from spec.md §4.I.
type fsmState int

const (
	stateLocal fsmState = iota
	stateOffloaded
)

// DefaultThreshold is the reference consecutive-empty-sample count (K=10,
// spec.md §4.I) before OFFLOADED reverts to LOCAL.
const DefaultThreshold = 10

// DefaultPeriod is the reference sampling period (spec.md §4.I).
const DefaultPeriod = 10 * time.Millisecond

// Transition records one FSM state change for the CSV log.
type Transition struct {
	Time time.Time
	To   string // "ONBOARD" or "OFFLOAD", matching the original macro names
}

// Manager runs the periodic policy against a region's flags word and a
// pending-work counter.
type Manager struct {
	region    *shm.Region
	pending   *shm.PendingCounter
	period    time.Duration
	threshold int

	state      fsmState
	emptyCount int
	log        *csv.Writer
}

// New builds a Manager with the reference period and threshold; use the
// With* options to override either for tests.
func New(region *shm.Region, pending *shm.PendingCounter, logWriter io.Writer) *Manager {
	w := csv.NewWriter(logWriter)
	return &Manager{region: region, pending: pending, period: DefaultPeriod, threshold: DefaultThreshold, state: stateLocal, log: w}
}

// WithPeriod and WithThreshold override the defaults (used by resmgr's own
// tests to run the hysteresis scenario without a real 10ms clock).
func (m *Manager) WithPeriod(d time.Duration) *Manager    { m.period = d; return m }
func (m *Manager) WithThreshold(k int) *Manager           { m.threshold = k; return m }

// Run loops forever on m.period, calling Tick each time, until stop is
// closed.
func (m *Manager) Run(stop <-chan struct{}) error {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			m.log.Flush()
			return m.log.Error()
		case <-ticker.C:
			if err := m.Tick(); err != nil {
				return err
			}
		}
	}
}

// Tick samples the pending counter once and advances the FSM, logging a
// transition if one occurred. Exported separately from Run so tests can
// drive the FSM deterministically with synthetic pending-value sequences
// (spec.md §8 scenario 4) instead of a real semaphore and clock.
func (m *Manager) Tick() error {
	p, err := m.pending.Value()
	if err != nil {
		return err
	}
	return m.advance(p, time.Now())
}

// TickAt is Tick with an explicit pending value and timestamp, used by
// tests to replay the literal scenario from spec.md §8.4 without a real
// SysV semaphore.
func (m *Manager) TickAt(pending int, now time.Time) error {
	return m.advance(pending, now)
}

func (m *Manager) advance(pending int, now time.Time) error {
	switch m.state {
	case stateLocal:
		if pending > 0 {
			m.region.SetFlags(m.region.Flags() | shm.FlagOffload)
			m.state = stateOffloaded
			m.emptyCount = 0
			return m.writeTransition(now, "OFFLOAD")
		}
	case stateOffloaded:
		if pending > 0 {
			m.emptyCount = 0
			return nil
		}
		m.emptyCount++
		if m.emptyCount >= m.threshold {
			m.region.SetFlags(m.region.Flags() &^ shm.FlagOffload)
			m.state = stateLocal
			m.emptyCount = 0
			return m.writeTransition(now, "ONBOARD")
		}
	}
	return nil
}

func (m *Manager) writeTransition(t time.Time, to string) error {
	if m.log == nil {
		return nil
	}
	if err := m.log.Write([]string{strconv.FormatInt(t.UnixNano(), 10), to}); err != nil {
		return err
	}
	m.log.Flush()
	return m.log.Error()
}

// IsOffloaded reports the manager's current FSM state, mainly for tests.
func (m *Manager) IsOffloaded() bool { return m.state == stateOffloaded }
