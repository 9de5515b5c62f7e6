package shm

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

// testKey is a SysV key private to this package's tests.
const testKey = 0x6d706375

func Test_create_round_trip_state_input(tst *testing.T) {
	r, err := Create(testKey, 3, 2)
	if err != nil {
		tst.Fatalf("Create: %v", err)
	}
	defer r.Close()

	chk.IntAssert(r.N, 3)
	chk.IntAssert(r.M, 2)

	x := []float64{1.5, -2.25, 3.0}
	r.SetState(x)
	got := r.State()
	for i := range x {
		chk.Scalar(tst, "state", 1e-15, got[i], x[i])
	}

	u := []float64{-0.5, 0.25}
	r.SetInput(u)
	gotU := r.Input()
	for i := range u {
		chk.Scalar(tst, "input", 1e-15, gotU[i], u[i])
	}
}

func Test_flags_round_trip(tst *testing.T) {
	r, err := Create(testKey+1, 1, 1)
	if err != nil {
		tst.Fatalf("Create: %v", err)
	}
	defer r.Close()

	if r.Flags() != 0 {
		tst.Fatalf("fresh region Flags() = %#x, want 0", r.Flags())
	}
	r.SetFlags(FlagOffload)
	if r.Flags()&FlagOffload == 0 {
		tst.Fatalf("FlagOffload bit did not survive SetFlags/Flags round trip")
	}
	r.SetFlags(r.Flags() | FlagPredictive)
	if r.Flags()&FlagOffload == 0 || r.Flags()&FlagPredictive == 0 {
		tst.Fatalf("Flags() = %#x, want both FlagOffload and FlagPredictive set", r.Flags())
	}
}

func Test_stats_round_trip(tst *testing.T) {
	r, err := Create(testKey+2, 1, 1)
	if err != nil {
		tst.Fatalf("Create: %v", err)
	}
	defer r.Close()

	r.SetStatsOffloaded(true)
	if !r.StatsOffloaded() {
		tst.Fatalf("StatsOffloaded() = false after SetStatsOffloaded(true)")
	}
	r.SetStatsElapsed(0.0042)
	chk.Scalar(tst, "stats elapsed", 1e-15, r.StatsElapsed(), 0.0042)
}

func Test_attach_validates_shape(tst *testing.T) {
	r, err := Create(testKey+3, 2, 1)
	if err != nil {
		tst.Fatalf("Create: %v", err)
	}
	defer r.Close()

	if _, err := Attach(testKey+3, 3, 1); err == nil {
		tst.Fatalf("Attach with mismatched state_num: want error, got nil")
	}

	attached, err := Attach(testKey+3, 2, 1)
	if err != nil {
		tst.Fatalf("Attach with matching shape: %v", err)
	}
	defer attached.Close()
	chk.IntAssert(attached.N, 2)
	chk.IntAssert(attached.M, 1)
}

// Test_rendezvous_semaphores_single_process exercises PostState/WaitState
// and PostInput/WaitInput in sequence within one process: each pair is a
// counting semaphore, so a post followed immediately by a wait must not
// block.
func Test_rendezvous_semaphores_single_process(tst *testing.T) {
	r, err := Create(testKey+4, 1, 1)
	if err != nil {
		tst.Fatalf("Create: %v", err)
	}
	defer r.Close()

	if err := r.PostState(); err != nil {
		tst.Fatalf("PostState: %v", err)
	}
	if err := r.WaitState(); err != nil {
		tst.Fatalf("WaitState: %v", err)
	}

	if err := r.PostInput(); err != nil {
		tst.Fatalf("PostInput: %v", err)
	}
	if err := r.WaitInput(); err != nil {
		tst.Fatalf("WaitInput: %v", err)
	}
}

func Test_pending_counter_round_trip(tst *testing.T) {
	c, err := CreatePendingCounter(testKey + 5)
	if err != nil {
		tst.Fatalf("CreatePendingCounter: %v", err)
	}
	defer c.Close()

	v, err := c.Value()
	if err != nil {
		tst.Fatalf("Value: %v", err)
	}
	chk.IntAssert(v, 0)

	if err := c.Post(); err != nil {
		tst.Fatalf("Post: %v", err)
	}
	if err := c.Post(); err != nil {
		tst.Fatalf("Post: %v", err)
	}
	v, err = c.Value()
	if err != nil {
		tst.Fatalf("Value: %v", err)
	}
	chk.IntAssert(v, 2)

	if err := c.Take(); err != nil {
		tst.Fatalf("Take: %v", err)
	}
	v, err = c.Value()
	if err != nil {
		tst.Fatalf("Value: %v", err)
	}
	chk.IntAssert(v, 1)
}
