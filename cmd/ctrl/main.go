package main

import (
	"os"
	"time"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/cpmech/mpcctl/ctrl"
	"github.com/cpmech/mpcctl/mpc"
	"github.com/cpmech/mpcctl/offload"
	"github.com/cpmech/mpcctl/shm"
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
	serverAddr := io.ArgToString(1, "")

	io.PfWhite("\nmpcctl ctrl -- real-time MPC controller\n\n")
	io.Pf("\n%v\n", io.ArgsTable(
		"plant/problem JSON model", "jsonPath", jsonPath,
		"offload server address (empty = local only)", "serverAddr", serverAddr,
	))

	data, err := io.ReadFile(jsonPath)
	if err != nil {
		chk.Panic("cannot read json model %q: %v", jsonPath, err)
	}
	prob, err := mpc.Build(data)
	if err != nil {
		chk.Panic("failed to build MPC problem: %v", err)
	}

	region, err := shm.Create(shm.RegionKey, prob.N, prob.M)
	if err != nil {
		chk.Panic("failed to create shared region: %v", err)
	}

	var client *offload.Client
	if serverAddr != "" {
		addr := serverAddr
		if !hasPort(addr) {
			addr = addr + ":" + solverserver.DefaultPort
		}
		client, err = offload.Dial(addr, 2*time.Second)
		if err != nil {
			_ = region.Close()
			chk.Panic("failed to dial offload server %q: %v", addr, err)
		}
		defer client.Close()
	}

	c := ctrl.New(region, prob, client, ctrl.ResumeX0Only)
	if err := c.Run(); err != nil {
		chk.Panic("ctrl terminated with error: %v", err)
	}
}

// hasPort reports whether addr already carries a ":port" suffix, so a bare
// host argument on the command line gets solverserver.DefaultPort appended.
func hasPort(addr string) bool {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return true
		}
		if addr[i] == ']' {
			return false
		}
	}
	return false
}
