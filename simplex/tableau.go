package simplex

import "math"

// tableau is the dense canonical-form working storage for one Solve call:
// t.rows[r] holds the coefficients of every variable in the equation that
// currently defines basis[r] in terms of the non-basic variables, i.e.
// t.rows[r][basis[r]] == 1 and t.rows[r][v] == 0 for every other basic v.
// The defining system stays homogeneous (sum_v t.rows[r][v]*z_v == 0)
// because every "RHS" in the spec is really a row or column bound, not a
// literal constant.
type tableau struct {
	p      *Problem
	nv     int
	rows   [][]float64 // nRows x nv
	basis  []int       // len nRows
	status []Status    // len nv
	value  []float64   // len nv, meaningful for non-basic entries
}

const pivotEps = 1e-9

// newTableau builds the starting canonical tableau: M = [I | -A] in the
// [rowVars, colVars] variable ordering, seeded from p.status when it
// already names a full basis (warm start) or the natural all-rows-basic
// start otherwise.
func newTableau(p *Problem) *tableau {
	nv := p.numVars()
	t := &tableau{p: p, nv: nv, rows: make([][]float64, p.nRows)}
	for i := 0; i < p.nRows; i++ {
		row := make([]float64, nv)
		row[i] = 1
		for j := 0; j < p.nCols; j++ {
			row[p.nRows+j] = -p.a[i][j]
		}
		t.rows[i] = row
	}

	t.status = make([]Status, nv)
	t.value = make([]float64, nv)
	if basisFromStatus := basisList(p.status, p.nRows); basisFromStatus != nil {
		t.basis = basisFromStatus
		copy(t.status, p.status)
		for v := 0; v < nv; v++ {
			if t.status[v] == StatusBasic {
				continue
			}
			t.value[v] = valueForStatus(t.status[v], p.boundOf(v))
		}
		t.restoreCanonicalForm()
		return t
	}

	// Cold start: every row variable basic, every column at its natural
	// bound (lower if finite, else upper; 0 for free, the fixed value for
	// fixed).
	t.basis = make([]int, p.nRows)
	for i := 0; i < p.nRows; i++ {
		t.basis[i] = i
		t.status[i] = StatusBasic
	}
	for j := 0; j < p.nCols; j++ {
		v := p.nRows + j
		t.status[v], t.value[v] = naturalNonBasic(p.colBnd[j])
	}
	return t
}

// basisList collects the variable indices marked StatusBasic in status, in
// index order, and returns nil unless there are exactly want of them (no
// stored status yet, or a corrupt snapshot) so the caller falls back to a
// cold start.
func basisList(status []Status, want int) []int {
	if status == nil {
		return nil
	}
	basis := make([]int, 0, want)
	for v, s := range status {
		if s == StatusBasic {
			basis = append(basis, v)
		}
	}
	if len(basis) != want {
		return nil
	}
	return basis
}

// naturalNonBasic picks the initial non-basic status/value for a bound.
func naturalNonBasic(b Bound) (Status, float64) {
	switch b.Kind {
	case BoundFree:
		return StatusNonBasicFree, 0
	case BoundLower:
		return StatusNonBasicLower, b.Lo
	case BoundUpper:
		return StatusNonBasicUpper, b.Up
	case BoundFixed:
		return StatusNonBasicFixed, b.Lo
	default: // BoundDouble
		return StatusNonBasicLower, b.Lo
	}
}

// valueForStatus re-derives a non-basic variable's value from its current
// bound and its persisted side (lower/upper/free/fixed), the warm-start
// analogue of naturalNonBasic: a snapshot's status records which side of
// the bound a variable rests on, but the bound itself may have just
// changed (mpc.UpdateX0 calls SetRowBound on every tick), so the value has
// to be recomputed, never copied verbatim from the last commit.
func valueForStatus(s Status, b Bound) float64 {
	switch s {
	case StatusNonBasicLower:
		if lo, ok := boundLo(b); ok {
			return lo
		}
	case StatusNonBasicUpper:
		if up, ok := boundUp(b); ok {
			return up
		}
	case StatusNonBasicFixed:
		return b.Lo
	}
	return 0
}

// restoreCanonicalForm re-derives Gauss-Jordan canonical form for an
// arbitrary basis read back from a snapshot, by pivoting each basis
// variable into its row in turn. This is what makes snapshot_resume valid
// even though the stored basis is an unordered set, not a pivot history.
func (t *tableau) restoreCanonicalForm() {
	used := make([]bool, len(t.rows))
	for want, bv := range t.basis {
		// find a row whose current coefficient on bv is non-zero and
		// not yet claimed by an earlier basis entry.
		pivotRow := -1
		for r := 0; r < len(t.rows); r++ {
			if used[r] {
				continue
			}
			if math.Abs(t.rows[r][bv]) > pivotEps {
				pivotRow = r
				break
			}
		}
		if pivotRow == -1 {
			// degenerate snapshot: fall back to identity row `want`.
			pivotRow = want
		}
		t.pivot(pivotRow, bv)
		used[pivotRow] = true
		t.basis[pivotRow] = bv
	}
}

// pivot performs the Gauss-Jordan elimination that brings variable `col`
// into the basis in place of whatever currently occupies `row`.
func (t *tableau) pivot(row, col int) {
	pv := t.rows[row][col]
	if math.Abs(pv) < pivotEps {
		return
	}
	inv := 1 / pv
	for j := 0; j < t.nv; j++ {
		t.rows[row][j] *= inv
	}
	for r := 0; r < len(t.rows); r++ {
		if r == row {
			continue
		}
		factor := t.rows[r][col]
		if factor == 0 {
			continue
		}
		for j := 0; j < t.nv; j++ {
			t.rows[r][j] -= factor * t.rows[row][j]
		}
	}
	t.status[t.basis[row]] = nonBasicStatusAfterLeaving(t.p.boundOf(t.basis[row]))
	t.basis[row] = col
	t.status[col] = StatusBasic
}

// nonBasicStatusAfterLeaving assigns a plausible resting status to a
// variable that just left the basis; callers overwrite value/status
// precisely during ratio tests. Used only as a safe default.
func nonBasicStatusAfterLeaving(b Bound) Status {
	s, _ := naturalNonBasic(b)
	return s
}

// basicValue computes the current value of the variable basic in row r:
// z_basis[r] = - sum_{v non-basic} rows[r][v] * value[v].
func (t *tableau) basicValue(r int) float64 {
	sum := 0.0
	row := t.rows[r]
	for v := 0; v < t.nv; v++ {
		if t.status[v] == StatusBasic {
			continue
		}
		if row[v] == 0 {
			continue
		}
		sum += row[v] * t.value[v]
	}
	return -sum
}

// reducedCost computes cbar_v = c_v - sum_r c_basis[r] * rows[r][v].
func (t *tableau) reducedCost(v int) float64 {
	c := t.p.costOf(v)
	for r, bv := range t.basis {
		cb := t.p.costOf(bv)
		if cb == 0 {
			continue
		}
		c -= cb * t.rows[r][v]
	}
	return c
}

// commit writes the tableau's status/value back onto the Problem so the
// next Solve/Snapshot call sees it. The basis itself is not stored
// separately: it is exactly the set of variables marked StatusBasic.
func (t *tableau) commit() {
	t.p.status = append([]Status(nil), t.status...)
	for r, bv := range t.basis {
		t.value[bv] = t.basicValue(r)
	}
	t.p.value = append([]float64(nil), t.value...)
}

func boundLo(b Bound) (float64, bool) {
	switch b.Kind {
	case BoundLower, BoundDouble, BoundFixed:
		return b.Lo, true
	default:
		return 0, false
	}
}

func boundUp(b Bound) (float64, bool) {
	switch b.Kind {
	case BoundUpper, BoundDouble, BoundFixed:
		return b.Up, true
	default:
		return 0, false
	}
}
