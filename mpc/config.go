// Package mpc builds and drives the per-tick Model-Predictive-Control LP:
// variables for the stacked input sequence, auxiliary variables bounding
// input magnitude and state norm, rate and state-box rows, and the x0
// refresh that is the hot path of every control tick. It sits on top of
// package simplex the way gofem's fem package sits on top of la/mat: the
// builder owns the domain semantics, the solver package owns the numerics.
package mpc

import (
	"encoding/json"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/mpcctl/dyn"
)

// Bound is a [lo, up] pair as read from JSON; either side may be a
// non-finite sentinel meaning "no bound" (spec.md §6: "non-finite = no
// bound").
type Bound struct {
	Lo, Up float64
}

// isFinite mirrors simplex.isFinite's threshold so JSON-decoded bounds and
// solver bounds agree on what "no bound" means.
func isFinite(v float64) bool { return v > -1e100 && v < 1e100 }

// config is the decoded form of the JSON model described in spec.md §6.
// Field names follow gofem/inp/sim.go's convention: exported Go fields with
// lowercase json tags matching the spec's key names verbatim.
type config struct {
	StateNum    int         `json:"state_num"`
	InputNum    int         `json:"input_num"`
	LenHorizon  int         `json:"len_horizon"`
	LenCtrl     int         `json:"len_ctrl"`
	StateAd     []float64   `json:"state_Ad"`
	InputBd     []float64   `json:"input_Bd"`
	InputBounds [][]float64 `json:"input_bounds"`
	InputRateMax []float64  `json:"input_rate_max"`
	StateWeight []float64   `json:"state_weight"`
	StateBounds [][]float64 `json:"state_bounds"`
	StateInit   []float64   `json:"state_init"`
	CostModel   struct {
		Type        string    `json:"type"`
		Coef        float64   `json:"coef"`
		InputWeight []float64 `json:"input_weight"`
	} `json:"cost_model"`
}

// ParseConfig decodes a JSON model per spec.md §6. Errors are wrapped with
// the offending field name, matching the "print the field name and the
// failing index" policy in §7.
func ParseConfig(data []byte) (*config, error) {
	var c config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, chk.Err("mpc: invalid JSON model: %v", err)
	}
	if c.StateNum <= 0 {
		return nil, chk.Err("mpc: state_num must be positive, got %d", c.StateNum)
	}
	if c.InputNum <= 0 {
		return nil, chk.Err("mpc: input_num must be positive, got %d", c.InputNum)
	}
	if c.LenHorizon <= 0 {
		return nil, chk.Err("mpc: len_horizon must be positive, got %d", c.LenHorizon)
	}
	if c.LenCtrl < 0 || c.LenCtrl > c.LenHorizon {
		return nil, chk.Err("mpc: len_ctrl=%d out of range [0,%d]", c.LenCtrl, c.LenHorizon)
	}
	n, m := c.StateNum, c.InputNum
	if len(c.StateAd) != n*n {
		return nil, chk.Err("mpc: state_Ad has length %d, want %d", len(c.StateAd), n*n)
	}
	if len(c.InputBd) != n*m {
		return nil, chk.Err("mpc: input_Bd has length %d, want %d", len(c.InputBd), n*m)
	}
	if len(c.InputBounds) != m {
		return nil, chk.Err("mpc: input_bounds has %d entries, want %d", len(c.InputBounds), m)
	}
	if c.InputRateMax != nil && len(c.InputRateMax) != m {
		return nil, chk.Err("mpc: input_rate_max has %d entries, want %d", len(c.InputRateMax), m)
	}
	if len(c.StateWeight) != n {
		return nil, chk.Err("mpc: state_weight has %d entries, want %d", len(c.StateWeight), n)
	}
	if len(c.StateBounds) != n {
		return nil, chk.Err("mpc: state_bounds has %d entries, want %d", len(c.StateBounds), n)
	}
	if len(c.StateInit) != n {
		return nil, chk.Err("mpc: state_init has length %d, want %d", len(c.StateInit), n)
	}
	for i, pair := range c.InputBounds {
		if len(pair) != 2 {
			return nil, chk.Err("mpc: input_bounds[%d] must be a [lo,up] pair", i)
		}
	}
	for i, pair := range c.StateBounds {
		if len(pair) != 2 {
			return nil, chk.Err("mpc: state_bounds[%d] must be a [lo,up] pair", i)
		}
	}
	switch c.CostModel.Type {
	case "min_steps_to_zero":
	case "min_state_input_norms":
		if len(c.CostModel.InputWeight) != m {
			return nil, chk.Err("mpc: cost_model.input_weight has %d entries, want %d", len(c.CostModel.InputWeight), m)
		}
	default:
		return nil, chk.Err("mpc: unknown cost_model.type %q", c.CostModel.Type)
	}
	return &c, nil
}

// CostModel is the tagged variant from spec.md §9: cost-model selection via
// string type is modeled as {MinStepsToZero, MinStateInputNorms} instead of
// a magic string compared at build time.
type CostModel interface {
	isCostModel()
}

// MinStepsToZero minimizes Σ c^(i-1)·Z_i over the horizon.
type MinStepsToZero struct {
	Coef float64
}

// MinStateInputNorms adds Σ w_j·|U_j(i)| to MinStepsToZero's objective.
type MinStateInputNorms struct {
	Coef        float64
	InputWeight []float64
}

func (MinStepsToZero) isCostModel()     {}
func (MinStateInputNorms) isCostModel() {}

func (c *config) costModel() CostModel {
	switch c.CostModel.Type {
	case "min_state_input_norms":
		return MinStateInputNorms{Coef: c.CostModel.Coef, InputWeight: append([]float64(nil), c.CostModel.InputWeight...)}
	default:
		return MinStepsToZero{Coef: c.CostModel.Coef}
	}
}

// buildPlant constructs the dyn.Plant from the config's discrete form (the
// JSON model always carries Ad/Bd directly, never the continuous A/B/eigen
// form — that path is only reachable from Go callers via dyn.InitFromEigen
// directly, per spec.md §4.B's "required: discrete form").
func (c *config) buildPlant() *dyn.Plant {
	return dyn.InitFromDiscrete(c.StateNum, c.InputNum, c.LenHorizon, c.StateAd, c.InputBd)
}

func boundsOf(pairs [][]float64) []Bound {
	out := make([]Bound, len(pairs))
	for i, p := range pairs {
		out[i] = Bound{Lo: p[0], Up: p[1]}
	}
	return out
}
