// Package ctrl implements the control loop from spec.md §4.F: the
// INIT -> RUNNING -> TERMINATING state machine that rendezvous with the
// plant over shared memory, dispatches each tick to the local solver or an
// offload server, and republishes the resulting input.
package ctrl

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/cpmech/mpcctl/mpc"
	"github.com/cpmech/mpcctl/offload"
	"github.com/cpmech/mpcctl/shm"
	"github.com/cpmech/mpcctl/simplex"
)

// State is the controller's lifecycle state (spec.md §4.F).
type State int

const (
	StateInit State = iota
	StateRunning
	StateTerminating
)

// ResumeMode selects between snapshot_set_x0 (x0-only) and full
// snapshot_resume on the local-solve path, a controller-side flag so it can
// be paired against solverserver.Mode for the offload path explicitly
// (SPEC_FULL.md §4.H).
type ResumeMode int

const (
	// ResumeX0Only uses SnapshotSetX0 and keeps the basis untouched — the
	// common case where only x0 changed since the last tick.
	ResumeX0Only ResumeMode = iota
	// ResumeFull uses SnapshotResume, restoring basis status from the
	// snapshot too (needed after an offloaded tick handed back a basis).
	ResumeFull
)

// Controller drives the six-step tick body over one Region and one local
// Problem, optionally offloading to a remote solverserver.
type Controller struct {
	region *shm.Region
	prob   *mpc.Problem
	client *offload.Client
	resume ResumeMode

	state State
}

// New builds a controller bound to region and prob. client may be nil if
// offload is never enabled via the region's flags word.
func New(region *shm.Region, prob *mpc.Problem, client *offload.Client, resume ResumeMode) *Controller {
	return &Controller{region: region, prob: prob, client: client, resume: resume, state: StateInit}
}

// Run executes Warmup, then the RUNNING loop, until a termination signal
// arrives or a tick returns an error. It always unmaps and removes the
// shared region before returning (spec.md §4.F: "Termination ... unmap and
// remove the shared region, then exit").
func (c *Controller) Run() error {
	c.prob.Warmup(simplex.Unbounded())
	c.state = StateRunning

	// SIGSEGV is registered per spec.md §7 but is best-effort: the Go
	// runtime handles most segfaults itself before a signal handler could
	// run cleanly, so this only catches the cases the runtime forwards.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGPIPE, syscall.SIGSEGV)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() { done <- c.loop(sigCh) }()

	err := <-done
	c.state = StateTerminating
	closeErr := c.region.Close()
	if err != nil {
		return err
	}
	return closeErr
}

func (c *Controller) loop(sigCh <-chan os.Signal) error {
	for {
		select {
		case sig := <-sigCh:
			io.Pf("ctrl: received %v, terminating\n", sig)
			return nil
		default:
		}
		if err := c.tick(); err != nil {
			return err
		}
	}
}

// tick is the six-step body from spec.md §4.F.
func (c *Controller) tick() error {
	// 1. Wait on STATE_WRITTEN.
	if err := c.region.WaitState(); err != nil {
		return chk.Err("ctrl: WaitState: %v", err)
	}
	// 2. Timestamp t0.
	t0 := time.Now()

	// 3. Copy shared state into the snapshot; unbounded budgets; declare
	// the fast-path assumption (primal infeasible, dual feasible).
	st := c.prob.SnapshotAlloc()
	st.SetState(c.region.State())
	st.SetStepsBudget(1 << 30)
	st.SetTimeBudget(365 * 24 * time.Hour)
	st.SetPrimalStatus(simplex.Infeasible)
	st.SetDualStatus(simplex.Feasible)

	offloaded := c.region.Flags()&shm.FlagOffload != 0 && c.client != nil
	if offloaded {
		// 4 (offload): serialize to socket, await one reply in place.
		if err := c.client.Exchange(st.Bytes()); err != nil {
			return chk.Err("ctrl: offload exchange: %v", err)
		}
	} else {
		// 4 (local): x0-only fast path or full resume, then solve.
		var out simplex.Outcome
		if c.resume == ResumeFull {
			budget := c.prob.SnapshotResume(st)
			out = c.prob.Solve(budget)
		} else {
			c.prob.SnapshotSetX0(st)
			out = c.prob.Solve(simplex.Unbounded())
		}
		c.prob.SnapshotSave(st, out)
	}

	// 5. Timestamp t1; stats.
	elapsed := time.Since(t0)
	c.region.SetStatsElapsed(elapsed.Seconds())
	c.region.SetStatsOffloaded(offloaded)

	// 6. Publish input, post INPUT_WRITTEN.
	c.region.SetInput(st.Input())
	if err := c.region.PostInput(); err != nil {
		return chk.Err("ctrl: PostInput: %v", err)
	}
	return nil
}
