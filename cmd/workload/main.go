package main

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/cpmech/mpcctl/shm"
	"github.com/cpmech/mpcctl/workqueue"
)

// workerFlag, when passed as the sole argument, turns this same binary into
// a single worker process instead of the releaser (spec.md §5: "processes,
// not threads, are the unit of concurrency" — exec.Command re-invokes this
// binary rather than spawning goroutines).
const workerFlag = "-worker"

const defaultWorkTime = 50 * time.Millisecond

func main() {
	defer func() {
		if err := recover(); err != nil {
			chk.Verbose = true
			for i := 8; i > 3; i-- {
				chk.CallerInfo(i)
			}
			io.PfRed("ERROR: %v\n", err)
			os.Exit(1)
		}
	}()

	if len(os.Args) > 1 && os.Args[1] == workerFlag {
		runWorker()
		return
	}

	requestsPath, _ := io.ArgToFilename(0, "", ".csv", true)
	numWorkers := io.ArgToInt(1, 4)
	forkManager := io.ArgToBool(2, false)

	io.PfWhite("\nmpcctl app -- workload driver\n\n")
	io.Pf("\n%v\n", io.ArgsTable(
		"release schedule CSV", "requestsPath", requestsPath,
		"worker process count", "numWorkers", numWorkers,
		"fork resource manager", "forkManager", forkManager,
	))

	pending, err := shm.CreatePendingCounter(shm.PendingKey)
	if err != nil {
		chk.Panic("failed to create pending-work counter: %v", err)
	}
	defer pending.Close()

	self, err := os.Executable()
	if err != nil {
		chk.Panic("cannot resolve own executable path: %v", err)
	}

	children := make([]*exec.Cmd, 0, numWorkers+1)
	for i := 0; i < numWorkers; i++ {
		cmd := exec.Command(self, workerFlag)
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		if err := cmd.Start(); err != nil {
			chk.Panic("failed to spawn worker %d: %v", i, err)
		}
		children = append(children, cmd)
	}

	if forkManager {
		mgrPath := filepath.Join(filepath.Dir(self), "manager")
		cmd := exec.Command(mgrPath)
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		if err := cmd.Start(); err != nil {
			io.Pfyel("warning: failed to fork resource manager (%q): %v\n", mgrPath, err)
		} else {
			children = append(children, cmd)
		}
	}

	f, err := os.Open(requestsPath)
	if err != nil {
		chk.Panic("cannot open %q: %v", requestsPath, err)
	}
	batches, err := workqueue.ParseReleaseSchedule(f)
	f.Close()
	if err != nil {
		chk.Panic("failed to parse release schedule: %v", err)
	}
	releaser := workqueue.NewReleaser(pending, batches)

	ctx, cancel := contextCancelledBySignal()
	defer cancel()

	if err := releaser.Run(ctx); err != nil {
		io.Pf("app: release schedule ended: %v\n", err)
	}

	for _, c := range children {
		_ = c.Process.Kill()
	}
}

func runWorker() {
	pending, err := shm.AttachPendingCounter(shm.PendingKey)
	if err != nil {
		chk.Panic("worker: failed to attach pending-work counter: %v", err)
	}
	ctx, cancel := contextCancelledBySignal()
	defer cancel()
	pool := workqueue.NewPool(pending, 1, defaultWorkTime)
	pool.Run(ctx)
}

// contextCancelledBySignal returns a context canceled on SIGINT/SIGTERM, the
// shared shutdown path for both the releaser and each spawned worker
// process.
func contextCancelledBySignal() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
