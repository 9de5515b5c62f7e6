package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/cpmech/mpcctl/resmgr"
	"github.com/cpmech/mpcctl/shm"
)

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

	stateNum := io.ArgToInt(0, 0)
	inputNum := io.ArgToInt(1, 0)
	logPath := io.ArgToString(2, "")

	io.PfWhite("\nmpcctl manager -- resource manager\n\n")
	io.Pf("\n%v\n", io.ArgsTable(
		"plant state dimension n", "stateNum", stateNum,
		"plant input dimension m", "inputNum", inputNum,
		"transition log path (empty = stdout)", "logPath", logPath,
	))
	if stateNum <= 0 || inputNum <= 0 {
		chk.Panic("manager requires the controller's n and m to attach the shared region")
	}

	region, err := shm.Attach(shm.RegionKey, stateNum, inputNum)
	if err != nil {
		chk.Panic("failed to attach shared region: %v", err)
	}
	pending, err := shm.AttachPendingCounter(shm.PendingKey)
	if err != nil {
		chk.Panic("failed to attach pending-work counter: %v", err)
	}

	logWriter := os.Stdout
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			chk.Panic("cannot create log file %q: %v", logPath, err)
		}
		defer f.Close()
		mgr := resmgr.New(region, pending, f)
		run(mgr)
		return
	}
	mgr := resmgr.New(region, pending, logWriter)
	run(mgr)
}

func run(mgr *resmgr.Manager) {
	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		close(stop)
	}()
	if err := mgr.Run(stop); err != nil {
		chk.Panic("manager stopped with error: %v", err)
	}
}
