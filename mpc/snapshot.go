package mpc

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/mpcctl/simplex"
)

// SolverStatus is the snapshot block from spec.md §3: state, input, time
// budget, steps budget, primal status, dual status, row-basis-status
// vector, column-basis-status vector — one owned []byte buffer with typed
// accessors, never an aliased struct cast (spec.md §9 design note).
type SolverStatus struct {
	n, m, rows, cols int
	buf              []byte
}

const (
	statusHeaderAfterIO = 8 + 4 + 1 + 1 // time budget, steps budget, primal, dual
)

func (s *SolverStatus) offInput() int       { return 8 * s.n }
func (s *SolverStatus) offTimeBudget() int  { return 8 * (s.n + s.m) }
func (s *SolverStatus) offStepsBudget() int { return s.offTimeBudget() + 8 }
func (s *SolverStatus) offPrimal() int      { return s.offStepsBudget() + 4 }
func (s *SolverStatus) offDual() int        { return s.offPrimal() + 1 }
func (s *SolverStatus) offRowStatus() int   { return s.offDual() + 1 }
func (s *SolverStatus) offColStatus() int   { return s.offRowStatus() + s.rows }

// Size returns the block's fixed wire length in bytes, computed from
// (n, m, rows, cols) — spec.md §3: "two peers using the same Plant agree on
// size exactly."
func Size(n, m, rows, cols int) int {
	return 8*(n+m) + statusHeaderAfterIO + rows + cols
}

// SnapshotAlloc allocates a Solver Status block sized from the problem's
// current number of rows and columns (spec.md §4.D).
func (p *Problem) SnapshotAlloc() *SolverStatus {
	n, m := p.N, p.M
	rows, cols := p.LP.NumRows(), p.LP.NumCols()
	return &SolverStatus{n: n, m: m, rows: rows, cols: cols, buf: make([]byte, Size(n, m, rows, cols))}
}

// NewSolverStatusFromBytes wraps an externally received buffer (the offload
// wire payload) whose shape was already agreed by both peers.
func NewSolverStatusFromBytes(n, m, rows, cols int, buf []byte) (*SolverStatus, error) {
	want := Size(n, m, rows, cols)
	if len(buf) != want {
		return nil, chk.Err("mpc: solver status buffer has %d bytes, want %d", len(buf), want)
	}
	return &SolverStatus{n: n, m: m, rows: rows, cols: cols, buf: buf}, nil
}

// Bytes exposes the raw wire buffer, e.g. for offload.Client to send as-is.
func (s *SolverStatus) Bytes() []byte { return s.buf }

func (s *SolverStatus) State() []float64      { return readDoubles(s.buf, 0, s.n) }
func (s *SolverStatus) SetState(x []float64)  { writeDoubles(s.buf, 0, x) }
func (s *SolverStatus) Input() []float64      { return readDoubles(s.buf, s.offInput(), s.m) }
func (s *SolverStatus) SetInput(u []float64)  { writeDoubles(s.buf, s.offInput(), u) }

func (s *SolverStatus) TimeBudget() time.Duration {
	secs := math.Float64frombits(binary.LittleEndian.Uint64(s.buf[s.offTimeBudget():]))
	return time.Duration(secs * float64(time.Second))
}
func (s *SolverStatus) SetTimeBudget(d time.Duration) {
	binary.LittleEndian.PutUint64(s.buf[s.offTimeBudget():], math.Float64bits(d.Seconds()))
}

func (s *SolverStatus) StepsBudget() int {
	return int(int32(binary.LittleEndian.Uint32(s.buf[s.offStepsBudget():])))
}
func (s *SolverStatus) SetStepsBudget(n int) {
	binary.LittleEndian.PutUint32(s.buf[s.offStepsBudget():], uint32(int32(n)))
}

func (s *SolverStatus) PrimalStatus() simplex.FeasibilityStatus {
	return simplex.FeasibilityStatus(s.buf[s.offPrimal()])
}
func (s *SolverStatus) SetPrimalStatus(v simplex.FeasibilityStatus) { s.buf[s.offPrimal()] = byte(v) }

func (s *SolverStatus) DualStatus() simplex.FeasibilityStatus {
	return simplex.FeasibilityStatus(s.buf[s.offDual()])
}
func (s *SolverStatus) SetDualStatus(v simplex.FeasibilityStatus) { s.buf[s.offDual()] = byte(v) }

func (s *SolverStatus) RowStatuses() []simplex.Status {
	return statusesFromBytes(s.buf[s.offRowStatus() : s.offRowStatus()+s.rows])
}
func (s *SolverStatus) SetRowStatuses(v []simplex.Status) {
	bytesFromStatuses(s.buf[s.offRowStatus():s.offRowStatus()+s.rows], v)
}
func (s *SolverStatus) ColStatuses() []simplex.Status {
	return statusesFromBytes(s.buf[s.offColStatus() : s.offColStatus()+s.cols])
}
func (s *SolverStatus) SetColStatuses(v []simplex.Status) {
	bytesFromStatuses(s.buf[s.offColStatus():s.offColStatus()+s.cols], v)
}

func statusesFromBytes(b []byte) []simplex.Status {
	out := make([]simplex.Status, len(b))
	for i, v := range b {
		out[i] = simplex.Status(v)
	}
	return out
}

func bytesFromStatuses(dst []byte, v []simplex.Status) {
	for i, s := range v {
		dst[i] = byte(s)
	}
}

func readDoubles(buf []byte, off, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off+8*i:]))
	}
	return out
}

func writeDoubles(buf []byte, off int, v []float64) {
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[off+8*i:], math.Float64bits(x))
	}
}

// SnapshotSave copies input[0..m], primal/dual status, and per-row/per-col
// basis status into st (spec.md §4.D). out is the Outcome of the Solve (or
// Warmup) call that produced the current basis.
func (p *Problem) SnapshotSave(st *SolverStatus, out simplex.Outcome) {
	st.SetInput(p.ExtractInput())
	st.SetPrimalStatus(out.Primal)
	st.SetDualStatus(out.Dual)
	st.SetRowStatuses(p.LP.RowStatuses())
	st.SetColStatuses(p.LP.ColStatuses())
}

// SnapshotSetX0 copies st.state into x0 and refreshes the LP without
// touching the basis — the fast path used "when the problem is identical
// except for x0" (spec.md §4.D).
func (p *Problem) SnapshotSetX0(st *SolverStatus) {
	p.UpdateX0(st.State())
}

// SnapshotResume copies budgets, calls SnapshotSetX0, and restores the
// row/column basis status from st (spec.md §4.D).
func (p *Problem) SnapshotResume(st *SolverStatus) simplex.Budget {
	budget := clampBudget(st.StepsBudget(), st.TimeBudget())
	p.SnapshotSetX0(st)
	p.LP.SetStatuses(st.RowStatuses(), st.ColStatuses())
	return budget
}

// clampBudget implements spec.md §9: "Budgets arrive from the wire as (int
// steps, double seconds). Implementations must clamp negative values to
// zero on receive."
func clampBudget(steps int, d time.Duration) simplex.Budget {
	if steps < 0 {
		steps = 0
	}
	if d < 0 {
		d = 0
	}
	return simplex.Budget{MaxIter: steps, MaxTime: d}
}

// ReportConsumedBudget replaces st's budgets with the solver's consumed
// iterations/seconds, per spec.md §4.D's "the driver reports residual
// budget by replacing the block's budgets with consumed iterations/
// seconds" failure path.
func ReportConsumedBudget(st *SolverStatus, out simplex.Outcome) {
	st.SetStepsBudget(out.IterConsumed)
	st.SetTimeBudget(out.TimeConsumed)
}
