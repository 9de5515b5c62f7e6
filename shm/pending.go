package shm

import (
	"github.com/cpmech/gosl/chk"
	"golang.org/x/sys/unix"
)

// PendingCounter is the separate shared region from spec.md §3: "a counting
// semaphore whose value equals the number of queued requests in the worker
// pool; read-only from the manager." cmd/workload creates it;
// workqueue.Releaser posts on every new request and each workqueue.Pool
// worker takes (decrements) one when it claims a request, before
// processing it; resmgr only ever samples its current value.
type PendingCounter struct {
	semID int
	owner bool
}

// CreatePendingCounter allocates a new single-semaphore set at key, value 0.
func CreatePendingCounter(key int) (*PendingCounter, error) {
	semID, err := unix.Semget(key, 1, unix.IPC_CREAT|unix.IPC_EXCL|0600)
	if err != nil {
		return nil, chk.Err("shm: pending counter key %d already in use: %v", key, err)
	}
	return &PendingCounter{semID: semID, owner: true}, nil
}

// AttachPendingCounter opens an already-created pending-work counter.
func AttachPendingCounter(key int) (*PendingCounter, error) {
	semID, err := unix.Semget(key, 1, 0600)
	if err != nil {
		return nil, chk.Err("shm: pending counter key %d not found: %v", key, err)
	}
	return &PendingCounter{semID: semID}, nil
}

// Post increments the pending-work count (a new request was queued).
func (c *PendingCounter) Post() error {
	return unix.Semop(c.semID, []unix.Sembuf{{SemNum: 0, SemOp: 1, SemFlg: 0}})
}

// Take blocks until at least one pending request is available and
// decrements the count (a worker claimed one).
func (c *PendingCounter) Take() error {
	return unix.Semop(c.semID, []unix.Sembuf{{SemNum: 0, SemOp: -1, SemFlg: 0}})
}

// Value samples the current count without blocking (resmgr's read path,
// spec.md §4.I). It uses GETVAL, which never blocks or mutates the count.
func (c *PendingCounter) Value() (int, error) {
	v, err := unix.Semctl(c.semID, 0, unix.GETVAL, unix.Semun{})
	if err != nil {
		return 0, chk.Err("shm: pending counter GETVAL failed: %v", err)
	}
	return v, nil
}

// Close removes the semaphore set if this handle created it.
func (c *PendingCounter) Close() error {
	if !c.owner {
		return nil
	}
	_, err := unix.Semctl(c.semID, 0, unix.IPC_RMID, unix.Semun{})
	return err
}
