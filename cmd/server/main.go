package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/cpmech/mpcctl/internal/procutil"
	"github.com/cpmech/mpcctl/solverserver"
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

	jsonPath, _ := io.ArgToFilename(0, "", ".json", true)
	alwaysResume := io.ArgToBool(1, false)
	cpu := io.ArgToInt(2, -1)

	io.PfWhite("\nmpcctl server -- offload solve server\n\n")
	io.Pf("\n%v\n", io.ArgsTable(
		"plant/problem JSON model", "jsonPath", jsonPath,
		"always resume+solve (vs conditional)", "alwaysResume", alwaysResume,
		"pin to CPU (-1 = no pinning)", "cpu", cpu,
	))

	if cpu >= 0 {
		if err := procutil.PinCPU(cpu); err != nil {
			io.Pfyel("warning: %v\n", err)
		}
	}

	data, err := io.ReadFile(jsonPath)
	if err != nil {
		chk.Panic("cannot read json model %q: %v", jsonPath, err)
	}

	mode := solverserver.ModeConditionalResume
	if alwaysResume {
		mode = solverserver.ModeAlwaysResume
	}

	srv, err := solverserver.Listen(":"+solverserver.DefaultPort, data, mode)
	if err != nil {
		chk.Panic("failed to start solver server: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigCh
		io.Pf("server: received termination signal, closing\n")
		_ = srv.Close()
	}()

	if err := srv.Serve(); err != nil {
		io.Pf("server: stopped: %v\n", err)
	}
}
