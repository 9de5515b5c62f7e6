// Package shm implements the rendezvous region (spec.md §3/§5/§6): a
// process-wide SysV shared-memory segment carrying the plant state/input
// arrays, a flags word, and stats slots, synchronized by a pair of counting
// semaphores (STATE_WRITTEN, INPUT_WRITTEN). golang.org/x/sys/unix is the
// direct Go analogue of the original's shmget/shmat/sem_init/sem_post/
// sem_wait, grounded on the same dependency janpfeifer-go-highway already
// carries for CPU affinity.
package shm

import (
	"encoding/binary"
	"math"

	"github.com/cpmech/gosl/chk"
	"golang.org/x/sys/unix"
)

// Header field byte offsets (spec.md §6): two semaphore ids live in a
// separate System V semaphore set, not in the shared segment itself — the
// segment only carries the sizes, flags, stats, and the two double arrays.
const (
	offStateNum = 0
	offInputNum = 8
	offStatsInt = 16 // one int64: 1 if the last tick was offloaded
	offStatsDbl = 24 // one float64: elapsed seconds of the last tick
	offFlags    = 32
	offScratchU = 40 // reserved scratch double (spec.md §6 header layout)
	headerSize  = 48
)

// RegionKey and PendingKey are the fixed SysV keys the controller, the
// Matlab adapter, and the workload driver must all agree on (spec.md §6:
// "controller creates with a fixed SysV key; collisions fail controller
// startup"). A real deployment would derive these from a project-wide
// ftok() path; a literal constant is the direct equivalent for a
// single-plant, single-controller install.
const (
	RegionKey  = 0x4d504301
	PendingKey = 0x4d504302
)

// Flag bits in the header's flags word.
const (
	FlagOffload    uint32 = 1 << 0
	FlagPredictive uint32 = 1 << 1
)

// Semaphore indices within the two-semaphore SysV set.
const (
	semStateWritten = 0
	semInputWritten = 1
)

// Region is one attached rendezvous segment: header + state[n] + input[m],
// contiguous, plus the semaphore set id used for STATE_WRITTEN/
// INPUT_WRITTEN rendezvous. All field access goes through explicit offset
// arithmetic (spec.md §9: "must be accessed via explicit offset arithmetic
// that both controller and adapter agree on") — never an aliased struct
// cast over the byte slice.
type Region struct {
	N, M  int
	mem   []byte
	shmID int
	semID int
	owner bool // true for the controller, which creates and later removes the region
}

// Create allocates a new shared segment and semaphore set for a plant with
// state dimension n and input dimension m, keyed by key (spec.md §6:
// "controller creates with a fixed SysV key; collisions fail controller
// startup").
func Create(key int, n, m int) (*Region, error) {
	size := headerSize + 8*(n+m)
	shmID, err := unix.SysvShmGet(key, size, unix.IPC_CREAT|unix.IPC_EXCL|0600)
	if err != nil {
		return nil, chk.Err("shm: region key %d already in use or shmget failed: %v", key, err)
	}
	mem, err := unix.SysvShmAttach(shmID, 0, 0)
	if err != nil {
		return nil, chk.Err("shm: shmat failed: %v", err)
	}
	semID, err := unix.Semget(key, 2, unix.IPC_CREAT|unix.IPC_EXCL|0600)
	if err != nil {
		_ = unix.SysvShmDetach(mem)
		return nil, chk.Err("shm: semget failed: %v", err)
	}
	r := &Region{N: n, M: m, mem: mem, shmID: shmID, semID: semID, owner: true}
	binary.LittleEndian.PutUint64(r.mem[offStateNum:], uint64(n))
	binary.LittleEndian.PutUint64(r.mem[offInputNum:], uint64(m))
	return r, nil
}

// Attach opens an already-created region by key (the Matlab adapter's
// path, spec.md §6: "Matlab adapter attaches read/write"). It validates
// that the stored n, m match what the caller expects.
func Attach(key int, n, m int) (*Region, error) {
	size := headerSize + 8*(n+m)
	shmID, err := unix.SysvShmGet(key, size, 0600)
	if err != nil {
		return nil, chk.Err("shm: attach: region key %d not found: %v", key, err)
	}
	mem, err := unix.SysvShmAttach(shmID, 0, 0)
	if err != nil {
		return nil, chk.Err("shm: attach: shmat failed: %v", err)
	}
	semID, err := unix.Semget(key, 2, 0600)
	if err != nil {
		_ = unix.SysvShmDetach(mem)
		return nil, chk.Err("shm: attach: semget failed: %v", err)
	}
	r := &Region{N: n, M: m, mem: mem, shmID: shmID, semID: semID}
	gotN := int(binary.LittleEndian.Uint64(r.mem[offStateNum:]))
	gotM := int(binary.LittleEndian.Uint64(r.mem[offInputNum:]))
	if gotN != n || gotM != m {
		_ = unix.SysvShmDetach(mem)
		return nil, chk.Err("shm: attach: region shape %dx%d does not match expected %dx%d", gotN, gotM, n, m)
	}
	return r, nil
}

// Close detaches the region; if this Region created the segment it also
// removes the shared memory and semaphore set (spec.md §3: "destroyed on
// any terminating signal").
func (r *Region) Close() error {
	err := unix.SysvShmDetach(r.mem)
	if r.owner {
		var dsRm unix.SysvShmDesc
		_, _ = unix.SysvShmCtl(r.shmID, unix.IPC_RMID, &dsRm)
		_, _ = unix.Semctl(r.semID, 0, unix.IPC_RMID, unix.Semun{})
	}
	return err
}

func (r *Region) stateOffset() int { return headerSize }
func (r *Region) inputOffset() int { return headerSize + 8*r.N }

// State copies the n state doubles out of the region.
func (r *Region) State() []float64 { return readDoubles(r.mem, r.stateOffset(), r.N) }

// SetState writes the n state doubles into the region.
func (r *Region) SetState(x []float64) { writeDoubles(r.mem, r.stateOffset(), x) }

// Input copies the m input doubles out of the region.
func (r *Region) Input() []float64 { return readDoubles(r.mem, r.inputOffset(), r.M) }

// SetInput writes the m input doubles into the region.
func (r *Region) SetInput(u []float64) { writeDoubles(r.mem, r.inputOffset(), u) }

// Flags reads the flags word (OFFLOAD / PREDICTIVE bits).
func (r *Region) Flags() uint32 { return binary.LittleEndian.Uint32(r.mem[offFlags:]) }

// SetFlags writes the flags word; owned by the resource manager
// (spec.md §5: "written by the resource manager, read by the controller").
func (r *Region) SetFlags(f uint32) { binary.LittleEndian.PutUint32(r.mem[offFlags:], f) }

// StatsOffloaded and SetStatsOffloaded carry the last tick's offload bit.
func (r *Region) StatsOffloaded() bool {
	return binary.LittleEndian.Uint64(r.mem[offStatsInt:]) != 0
}
func (r *Region) SetStatsOffloaded(v bool) {
	var n uint64
	if v {
		n = 1
	}
	binary.LittleEndian.PutUint64(r.mem[offStatsInt:], n)
}

// StatsElapsed and SetStatsElapsed carry the last tick's wall time.
func (r *Region) StatsElapsed() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(r.mem[offStatsDbl:]))
}
func (r *Region) SetStatsElapsed(seconds float64) {
	binary.LittleEndian.PutUint64(r.mem[offStatsDbl:], math.Float64bits(seconds))
}

// WaitState blocks until the plant has posted STATE_WRITTEN (spec.md §4.F
// step 1).
func (r *Region) WaitState() error { return r.semWait(semStateWritten) }

// PostState posts STATE_WRITTEN; called by the plant/adapter side.
func (r *Region) PostState() error { return r.semPost(semStateWritten) }

// WaitInput blocks until the controller has posted INPUT_WRITTEN.
func (r *Region) WaitInput() error { return r.semWait(semInputWritten) }

// PostInput posts INPUT_WRITTEN; called by the controller after publishing
// the new input (spec.md §4.F step 6).
func (r *Region) PostInput() error { return r.semPost(semInputWritten) }

func (r *Region) semWait(idx uint16) error {
	op := []unix.Sembuf{{SemNum: idx, SemOp: -1, SemFlg: 0}}
	return unix.Semop(r.semID, op)
}

func (r *Region) semPost(idx uint16) error {
	op := []unix.Sembuf{{SemNum: idx, SemOp: 1, SemFlg: 0}}
	return unix.Semop(r.semID, op)
}

func readDoubles(mem []byte, off, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(mem[off+8*i:]))
	}
	return out
}

func writeDoubles(mem []byte, off int, v []float64) {
	for i, x := range v {
		binary.LittleEndian.PutUint64(mem[off+8*i:], math.Float64bits(x))
	}
}
