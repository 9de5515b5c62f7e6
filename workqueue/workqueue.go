// Package workqueue ports the worker pool from
// original_source/scheduling/app_workload.{c,h}: a releaser that posts
// batches of pending requests on a schedule, and a pool of workers that
// claim and "process" them, decrementing the same pending-work counter
// resmgr samples (spec.md §3's "pending-work counter").
package workqueue

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/mpcctl/shm"
)

// Pool runs n worker goroutines, each looping: claim one pending request,
// simulate work for workTime, repeat. The original's APP_DUMMY_ITER_NUM
// busy loop is replaced by a configurable sleep (SPEC_FULL.md Non-goals:
// the shape of pending-work generation is what resmgr's hysteresis test
// exercises, not the exact busy-loop arithmetic).
type Pool struct {
	pending  *shm.PendingCounter
	workers  int
	workTime time.Duration
}

// NewPool builds a pool of n workers against the given pending-work
// counter, each taking workTime to "process" one request.
func NewPool(pending *shm.PendingCounter, n int, workTime time.Duration) *Pool {
	return &Pool{pending: pending, workers: n, workTime: workTime}
}

// Run starts all workers and blocks until ctx is canceled.
func (p *Pool) Run(ctx context.Context) {
	done := make(chan struct{})
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx, done)
	}
	for i := 0; i < p.workers; i++ {
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) worker(ctx context.Context, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	for {
		if err := p.pending.Take(); err != nil {
			return // semaphore removed out from under us at shutdown
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.workTime):
		}
	}
}

// ReleaseBatch is one row of the requests.csv format from spec.md §6: Count
// requests posted, then a wait of Separation before the next row.
type ReleaseBatch struct {
	Count      int
	Separation time.Duration
}

// Releaser posts pending requests on the schedule read from a
// `count,separation_seconds` CSV, mirroring app_workload.c's release loop.
type Releaser struct {
	pending *shm.PendingCounter
	batches []ReleaseBatch
}

// ParseReleaseSchedule reads the requests.csv format (spec.md §6: "each row
// is count,separation_seconds").
func ParseReleaseSchedule(r io.Reader) ([]ReleaseBatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	records, err := cr.ReadAll()
	if err != nil {
		return nil, chk.Err("workqueue: requests.csv: %v", err)
	}
	out := make([]ReleaseBatch, len(records))
	for i, rec := range records {
		count, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, chk.Err("workqueue: requests.csv row %d: bad count %q", i, rec[0])
		}
		secs, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, chk.Err("workqueue: requests.csv row %d: bad separation %q", i, rec[1])
		}
		out[i] = ReleaseBatch{Count: count, Separation: time.Duration(secs * float64(time.Second))}
	}
	return out, nil
}

// NewReleaser builds a Releaser that will post batches against pending.
func NewReleaser(pending *shm.PendingCounter, batches []ReleaseBatch) *Releaser {
	return &Releaser{pending: pending, batches: batches}
}

// Run posts every batch in order, sleeping Separation between them, until
// ctx is canceled or the schedule is exhausted.
func (r *Releaser) Run(ctx context.Context) error {
	for _, b := range r.batches {
		for i := 0; i < b.Count; i++ {
			if err := r.pending.Post(); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Separation):
		}
	}
	return nil
}
