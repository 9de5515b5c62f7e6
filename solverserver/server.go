// Package solverserver implements the UDP echo-solve server from
// spec.md §4.H: same numerics as mpc's local solver driver, exposed over
// the wire so ctrl can offload a single tick's solve. CPU pinning is done
// by cmd/server, and only when it is given a CPU index; Serve runs until
// its socket is closed.
package solverserver

import (
	"net"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/cpmech/mpcctl/mpc"
	"github.com/cpmech/mpcctl/simplex"
)

// DefaultPort is the fixed UDP port cmd/server binds and cmd/ctrl dials
// when no explicit server-ip:port is given on the controller's command
// line (spec.md §6: "Binds to a fixed UDP port").
const DefaultPort = "9090"

// Mode selects which of the two server variants from spec.md §4.G the
// server runs: both are acceptable provided the client chooses the
// matching mode, so the pairing is an explicit CLI flag rather than
// implicit per-request heuristics.
type Mode int

const (
	// ModeConditionalResume resumes and solves only when the incoming
	// snapshot reports a non-feasible primal or dual status AND both
	// budgets are positive; otherwise it zeroes the budgets and echoes.
	ModeConditionalResume Mode = iota
	// ModeAlwaysResume unconditionally applies SnapshotSetX0 then Solve.
	ModeAlwaysResume
)

// Server is one bound UDP socket serving solve requests for a single
// Problem (spec.md §4.H: "same numerics as 4.D").
type Server struct {
	conn *net.UDPConn
	prob *mpc.Problem
	mode Mode
	n, m, rows, cols int
}

// Listen binds to addr (host:port) and builds the LP from jsonModel.
func Listen(addr string, jsonModel []byte, mode Mode) (*Server, error) {
	prob, err := mpc.Build(jsonModel)
	if err != nil {
		return nil, err
	}
	prob.Warmup(simplex.Unbounded())

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, chk.Err("solverserver: invalid bind address %q: %v", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, chk.Err("solverserver: bind %q failed: %v", addr, err)
	}
	return &Server{
		conn: conn, prob: prob, mode: mode,
		n: prob.N, m: prob.M, rows: prob.LP.NumRows(), cols: prob.LP.NumCols(),
	}, nil
}

// Close releases the socket.
func (s *Server) Close() error { return s.conn.Close() }

// Serve blocks forever, handling one request at a time (spec.md §4.H: "one
// outstanding request"). It returns only on a read error (typically the
// socket being closed by the caller during shutdown).
func (s *Server) Serve() error {
	size := mpc.Size(s.n, s.m, s.rows, s.cols)
	buf := make([]byte, size)
	for {
		n, raddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return chk.Err("solverserver: recv failed: %v", err)
		}
		if n != size {
			io.Pfred("solverserver: dropping malformed request of %d bytes (want %d)\n", n, size)
			continue
		}
		if err := s.handle(buf); err != nil {
			io.Pfred("solverserver: %v\n", err)
			continue
		}
		if _, err := s.conn.WriteToUDP(buf, raddr); err != nil {
			io.Pfred("solverserver: reply send failed: %v\n", err)
		}
	}
}

// handle implements both server variants over the request/response buffer
// in place (spec.md §4.G).
func (s *Server) handle(buf []byte) error {
	st, err := mpc.NewSolverStatusFromBytes(s.n, s.m, s.rows, s.cols, buf)
	if err != nil {
		return err
	}

	switch s.mode {
	case ModeAlwaysResume:
		s.prob.SnapshotSetX0(st)
		out := s.prob.Solve(simplex.Unbounded())
		s.prob.SnapshotSave(st, out)
		mpc.ReportConsumedBudget(st, out)

	default: // ModeConditionalResume
		needsSolve := st.PrimalStatus() != simplex.Feasible || st.DualStatus() != simplex.Feasible
		if needsSolve && st.StepsBudget() > 0 && st.TimeBudget() > 0 {
			budget := s.prob.SnapshotResume(st)
			out := s.prob.Solve(budget)
			s.prob.SnapshotSave(st, out)
			mpc.ReportConsumedBudget(st, out)
		} else {
			st.SetStepsBudget(0)
			st.SetTimeBudget(0)
		}
	}
	return nil
}
