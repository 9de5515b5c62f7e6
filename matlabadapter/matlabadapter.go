// Package matlabadapter is the Go-side contract for the Matlab/mex
// translator from spec.md §6: writes state into the rendezvous region,
// posts STATE_WRITTEN, waits on INPUT_WRITTEN, returns input and stats. No
// cgo/mex binding is implemented (spec.md §1 Non-goals: "out of scope"); a
// real mex shim would call into exactly this function.
package matlabadapter

import (
	"time"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/mpcctl/offload"
	"github.com/cpmech/mpcctl/shm"
)

// Options configures one Compute call.
type Options struct {
	// ByteSwap normalizes each double individually for a heterogeneous-
	// endian deployment (spec.md §9: the Matlab vector path always
	// byteswaps, unlike the solver-state UDP path, which never does).
	ByteSwap bool
}

// Compute implements `[input, time, offloaded] = mpc_matlab(state)`
// (spec.md §6): writes state, posts STATE, waits INPUT, reads stats.
func Compute(region *shm.Region, state []float64, opts Options) (input []float64, elapsed time.Duration, offloaded bool, err error) {
	if len(state) != region.N {
		return nil, 0, false, chk.Err("matlabadapter: state has length %d, want %d", len(state), region.N)
	}

	wire := append([]float64(nil), state...)
	if opts.ByteSwap {
		swapVector(wire)
	}
	region.SetState(wire)

	if err := region.PostState(); err != nil {
		return nil, 0, false, chk.Err("matlabadapter: PostState: %v", err)
	}
	if err := region.WaitInput(); err != nil {
		return nil, 0, false, chk.Err("matlabadapter: WaitInput: %v", err)
	}

	input = region.Input()
	if opts.ByteSwap {
		swapVector(input)
	}
	elapsed = time.Duration(region.StatsElapsed() * float64(time.Second))
	offloaded = region.StatsOffloaded()
	return input, elapsed, offloaded, nil
}

// swapVector byteswaps every element of v in place via offload.SwapDoubles,
// round-tripping through the 8-byte wire encoding it already implements.
func swapVector(v []float64) {
	for i, x := range v {
		b := offload.BytesFromFloat64(x)
		offload.SwapDoubles(b)
		v[i] = offload.Float64FromBytes(b)
	}
}
