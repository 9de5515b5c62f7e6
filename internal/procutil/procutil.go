// Package procutil provides the two OS-process knobs spec.md §5 calls for
// directly — CPU pinning and real-time scheduling priority — neither of
// which has a stdlib equivalent, only golang.org/x/sys/unix.
package procutil

import (
	"unsafe"

	"github.com/cpmech/gosl/chk"
	"golang.org/x/sys/unix"
)

// schedFIFO matches Linux's SCHED_FIFO policy constant.
const schedFIFO = 1

// schedParam mirrors struct sched_param from <sched.h>: a single int
// priority field, which is all SCHED_FIFO/SCHED_RR use.
type schedParam struct {
	priority int32
}

// PinCPU restricts the calling process to a single CPU core (spec.md §5:
// "cmd/server ... pins itself to a CPU disjoint from the controller
// process").
func PinCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return chk.Err("procutil: SchedSetaffinity(cpu=%d): %v", cpu, err)
	}
	return nil
}

// SetRealtimePriority raises the calling process to SCHED_FIFO at the
// given priority (1-99). There is no x/sys/unix wrapper for
// sched_setscheduler, so this goes through unix.Syscall directly — the
// one justified direct syscall in the whole tree (SPEC_FULL.md §5).
func SetRealtimePriority(priority int) error {
	param := schedParam{priority: int32(priority)}
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, schedFIFO, uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		return chk.Err("procutil: sched_setscheduler(SCHED_FIFO, %d): %v", priority, errno)
	}
	return nil
}
