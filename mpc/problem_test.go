package mpc

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/mpcctl/simplex"
)

// jsonModel builds a minimal spec.md §6 JSON model for tests, overriding
// only the fields each scenario cares about.
type jsonModel struct {
	StateNum     int         `json:"state_num"`
	InputNum     int         `json:"input_num"`
	LenHorizon   int         `json:"len_horizon"`
	LenCtrl      int         `json:"len_ctrl"`
	StateAd      []float64   `json:"state_Ad"`
	InputBd      []float64   `json:"input_Bd"`
	InputBounds  [][]float64 `json:"input_bounds"`
	InputRateMax []float64   `json:"input_rate_max,omitempty"`
	StateWeight  []float64   `json:"state_weight"`
	StateBounds  [][]float64 `json:"state_bounds"`
	StateInit    []float64   `json:"state_init"`
	CostModel    struct {
		Type        string    `json:"type"`
		Coef        float64   `json:"coef"`
		InputWeight []float64 `json:"input_weight,omitempty"`
	} `json:"cost_model"`
}

const noBound = 1e300

func wideBounds(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = []float64{-noBound, noBound}
	}
	return out
}

func marshal(tst *testing.T, m jsonModel) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		tst.Fatalf("marshal fixture: %v", err)
	}
	return data
}

// Test_scenario1_single_integrator is spec.md §8 scenario 1: the optimal
// first input drives x0=2 toward zero as fast as the input bound allows.
func Test_scenario1_single_integrator(tst *testing.T) {
	var m jsonModel
	m.StateNum, m.InputNum = 1, 1
	m.LenHorizon, m.LenCtrl = 3, 1
	m.StateAd = []float64{1.0}
	m.InputBd = []float64{1.0}
	m.InputBounds = [][]float64{{-1, 1}}
	m.StateWeight = []float64{1}
	m.StateBounds = wideBounds(1)
	m.StateInit = []float64{2}
	m.CostModel.Type = "min_steps_to_zero"
	m.CostModel.Coef = 1

	p, err := Build(marshal(tst, m))
	if err != nil {
		tst.Fatalf("Build: %v", err)
	}
	// Warmup solves at x0=0; the scenario's x0=2 is applied afterwards, as
	// the controller does on every tick.
	out := p.Warmup(simplex.Unbounded())
	if out.Primal != simplex.Feasible {
		tst.Fatalf("primal status = %v, want Feasible", out.Primal)
	}
	p.UpdateX0(m.StateInit)
	out = p.Solve(simplex.Unbounded())
	if out.Primal != simplex.Feasible {
		tst.Fatalf("primal status at x0=%v = %v, want Feasible", m.StateInit, out.Primal)
	}
	u := p.ExtractInput()
	chk.Scalar(tst, "U_0(0)", 1e-8, u[0], -1.0)
}

// Test_scenario2_oscillator is spec.md §8 scenario 2: a two-state harmonic
// oscillator discretized at tau=0.1 (Ad/Bd given in closed form, since the
// continuous A has complex eigenvalues and falls outside InitFromEigen's
// real-eigendecomposition path). The LP must be feasible and the first
// input must respect the unit bound.
func Test_scenario2_oscillator(tst *testing.T) {
	cos, sin := math.Cos(0.1), math.Sin(0.1)
	var m jsonModel
	m.StateNum, m.InputNum = 2, 1
	m.LenHorizon, m.LenCtrl = 10, 3
	m.StateAd = []float64{cos, sin, -sin, cos}
	m.InputBd = []float64{1 - cos, sin}
	m.InputBounds = [][]float64{{-1, 1}}
	m.StateWeight = []float64{1, 1}
	m.StateBounds = wideBounds(2)
	m.StateInit = []float64{1, 0}
	m.CostModel.Type = "min_steps_to_zero"
	m.CostModel.Coef = 1

	p, err := Build(marshal(tst, m))
	if err != nil {
		tst.Fatalf("Build: %v", err)
	}
	out := p.Warmup(simplex.Unbounded())
	if out.Primal != simplex.Feasible {
		tst.Fatalf("primal status = %v, want Feasible", out.Primal)
	}
	p.UpdateX0(m.StateInit)
	out = p.Solve(simplex.Unbounded())
	if out.Primal != simplex.Feasible {
		tst.Fatalf("primal status at x0=%v = %v, want Feasible", m.StateInit, out.Primal)
	}
	u := p.ExtractInput()
	if math.Abs(u[0]) > 1.0+1e-8 {
		tst.Fatalf("U_0(0)=%v exceeds the unit input bound", u[0])
	}
}

// Test_scenario5_warmup_feasible_at_zero is spec.md §8 scenario 5.
func Test_scenario5_warmup_feasible_at_zero(tst *testing.T) {
	var m jsonModel
	m.StateNum, m.InputNum = 1, 1
	m.LenHorizon, m.LenCtrl = 3, 1
	m.StateAd = []float64{1.0}
	m.InputBd = []float64{1.0}
	m.InputBounds = [][]float64{{-1, 1}}
	m.StateWeight = []float64{1}
	m.StateBounds = wideBounds(1)
	m.StateInit = []float64{0}
	m.CostModel.Type = "min_steps_to_zero"
	m.CostModel.Coef = 1

	p, err := Build(marshal(tst, m))
	if err != nil {
		tst.Fatalf("Build: %v", err)
	}
	out := p.Warmup(simplex.Unbounded())
	if out.Primal != simplex.Feasible {
		tst.Fatalf("primal status = %v, want Feasible", out.Primal)
	}
	if out.Dual != simplex.Feasible {
		tst.Fatalf("dual status = %v, want Feasible", out.Dual)
	}
}

// Test_scenario6_weight_zero_sentinel is spec.md §8 scenario 6: the middle
// state component is weightless, so its norm rows must carry the >=1e10
// sentinel bound on both sides, and the solution must not depend on it.
func Test_scenario6_weight_zero_sentinel(tst *testing.T) {
	var m jsonModel
	m.StateNum, m.InputNum = 3, 1
	m.LenHorizon, m.LenCtrl = 2, 0
	m.StateAd = []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
	m.InputBd = []float64{1, 0, 1}
	m.InputBounds = [][]float64{{-1, 1}}
	m.StateWeight = []float64{1, 0, 1}
	m.StateBounds = wideBounds(3)
	m.StateInit = []float64{2, 777, 2}
	m.CostModel.Type = "min_steps_to_zero"
	m.CostModel.Coef = 1

	p, err := Build(marshal(tst, m))
	if err != nil {
		tst.Fatalf("Build: %v", err)
	}

	for i := 1; i <= p.H; i++ {
		rowUp := p.IDNorm + 2*(i-1)*p.N
		rowLo := rowUp + p.N
		k := 1 // the weightless component
		up := p.LP.RowBound(rowUp + k)
		lo := p.LP.RowBound(rowLo + k)
		if up.Kind != simplex.BoundUpper || up.Up < bigSentinel {
			tst.Fatalf("step %d: row_up[k=1] bound = %+v, want UpperBound(>=%v)", i, up, bigSentinel)
		}
		if lo.Kind != simplex.BoundUpper || lo.Up < bigSentinel {
			tst.Fatalf("step %d: row_lo[k=1] bound = %+v, want UpperBound(>=%v)", i, lo, bigSentinel)
		}
	}

	out := p.Warmup(simplex.Unbounded())
	if out.Primal != simplex.Feasible {
		tst.Fatalf("primal status = %v, want Feasible", out.Primal)
	}

	// Solve at the scenario's x0 (Warmup solved at x0=0), then re-solve after
	// perturbing only the weightless component of x0 — the optimal first
	// input must be unchanged.
	p.UpdateX0(m.StateInit)
	out = p.Solve(simplex.Unbounded())
	if out.Primal != simplex.Feasible {
		tst.Fatalf("primal status at x0=%v = %v, want Feasible", m.StateInit, out.Primal)
	}
	u1 := p.ExtractInput()
	p.UpdateX0([]float64{2, -999, 2})
	out = p.Solve(simplex.Unbounded())
	if out.Primal != simplex.Feasible {
		tst.Fatalf("primal status after perturbing x0[1] = %v, want Feasible", out.Primal)
	}
	u2 := p.ExtractInput()
	chk.Scalar(tst, "U_0(0)", 1e-8, u2[0], u1[0])
}

// Test_boundary_p_zero_no_rate_rows is spec.md §8's "p=0 (no free controls)
// yields a single U(0) and no rate rows" boundary case.
func Test_boundary_p_zero_no_rate_rows(tst *testing.T) {
	var m jsonModel
	m.StateNum, m.InputNum = 1, 1
	m.LenHorizon, m.LenCtrl = 2, 0
	m.StateAd = []float64{1.0}
	m.InputBd = []float64{1.0}
	m.InputBounds = [][]float64{{-1, 1}}
	m.InputRateMax = []float64{0.1}
	m.StateWeight = []float64{1}
	m.StateBounds = wideBounds(1)
	m.StateInit = []float64{0}
	m.CostModel.Type = "min_steps_to_zero"
	m.CostModel.Coef = 1

	p, err := Build(marshal(tst, m))
	if err != nil {
		tst.Fatalf("Build: %v", err)
	}
	chk.IntAssert(p.nDeltaURows, 0)
	if p.IDDeltaU != -1 {
		tst.Fatalf("IDDeltaU = %d, want -1 (no rate rows when p=0)", p.IDDeltaU)
	}
	chk.IntAssert(p.LP.NumCols(), p.M*(p.P+1)+p.H) // U columns + Z columns only
}

// Test_infinite_bounds_select_correct_kind is spec.md §8's "infinite bound
// sides select GLP_FR/LO/UP/DB correctly" boundary case.
func Test_infinite_bounds_select_correct_kind(tst *testing.T) {
	var m jsonModel
	m.StateNum, m.InputNum = 1, 2
	m.LenHorizon, m.LenCtrl = 1, 0
	m.StateAd = []float64{1.0}
	m.InputBd = []float64{1.0, 1.0}
	m.InputBounds = [][]float64{{-noBound, noBound}, {0, noBound}}
	m.StateWeight = []float64{1}
	m.StateBounds = wideBounds(1)
	m.StateInit = []float64{0}
	m.CostModel.Type = "min_steps_to_zero"
	m.CostModel.Coef = 1

	p, err := Build(marshal(tst, m))
	if err != nil {
		tst.Fatalf("Build: %v", err)
	}
	free := p.LP.ColBound(p.colU(0, 0))
	if free.Kind != simplex.BoundFree {
		tst.Fatalf("input_bounds[0]=[-inf,inf] -> bound kind = %v, want BoundFree", free.Kind)
	}
	lowerOnly := p.LP.ColBound(p.colU(0, 1))
	if lowerOnly.Kind != simplex.BoundLower {
		tst.Fatalf("input_bounds[1]=[0,inf] -> bound kind = %v, want BoundLower", lowerOnly.Kind)
	}
}

// Test_snapshot_round_trip_preserves_solution covers spec.md §8's "After
// snapshot_save immediately followed by snapshot_resume ... a subsequent
// solve produces the same primal input as without the round-trip" and
// scenario 3's offload-equivalence property, without going through a real
// UDP socket.
func Test_snapshot_round_trip_preserves_solution(tst *testing.T) {
	var m jsonModel
	m.StateNum, m.InputNum = 1, 1
	m.LenHorizon, m.LenCtrl = 3, 1
	m.StateAd = []float64{1.0}
	m.InputBd = []float64{1.0}
	m.InputBounds = [][]float64{{-1, 1}}
	m.StateWeight = []float64{1}
	m.StateBounds = wideBounds(1)
	m.StateInit = []float64{2}
	m.CostModel.Type = "min_steps_to_zero"
	m.CostModel.Coef = 1
	data := marshal(tst, m)

	local, err := Build(data)
	if err != nil {
		tst.Fatalf("Build: %v", err)
	}
	local.Warmup(simplex.Unbounded())
	local.UpdateX0([]float64{2})
	local.Solve(simplex.Unbounded())
	wantU := local.ExtractInput()[0]

	remote, err := Build(data)
	if err != nil {
		tst.Fatalf("Build: %v", err)
	}
	remote.Warmup(simplex.Unbounded())

	st := remote.SnapshotAlloc()
	st.SetState([]float64{2})
	st.SetTimeBudget(365 * 24 * time.Hour)
	st.SetStepsBudget(1 << 30)
	st.SetPrimalStatus(simplex.Infeasible)
	st.SetDualStatus(simplex.Feasible)

	budget := remote.SnapshotResume(st)
	out := remote.Solve(budget)
	if out.Primal != simplex.Feasible {
		tst.Fatalf("primal status after resume = %v, want Feasible", out.Primal)
	}
	remote.SnapshotSave(st, out)

	if st.PrimalStatus() != out.Primal {
		tst.Fatalf("st.PrimalStatus() = %v after SnapshotSave, want %v", st.PrimalStatus(), out.Primal)
	}
	if st.DualStatus() != out.Dual {
		tst.Fatalf("st.DualStatus() = %v after SnapshotSave, want %v", st.DualStatus(), out.Dual)
	}

	gotU := st.Input()[0]
	chk.Scalar(tst, "U_0(0) after offload round-trip", 1e-8, gotU, wantU)
}
