// Package offload implements the UDP offload transport from spec.md §4.G:
// one Solver Status block per datagram, sent exactly as mpc.SolverStatus
// encodes it (every field little-endian) with no byteswap on the
// solver-state path, and a per-double byteswap helper reserved for the Matlab adapter's
// vector path, which the spec documents as the one place this deployment
// byteswaps (spec.md §9 open question on endianness).
package offload

import (
	"encoding/binary"
	"math"
	"net"
	"time"

	"github.com/cpmech/gosl/chk"
)

// Client sends one Solver Status block per tick to a remote solver server
// and blocks for exactly one reply datagram, per spec.md §4.G/§1's
// "single outstanding request per tick" Non-goal (no receive-window
// reordering is needed because there is never more than one in flight).
type Client struct {
	conn    *net.UDPConn
	timeout time.Duration
}

// Dial opens a UDP socket to addr (host:port). timeout bounds the blocking
// recv so a lost datagram does not hang the controller forever in tests;
// the reference treats transport loss as "not handled" in production
// (spec.md §7), so timeout may be zero to block indefinitely there.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, chk.Err("offload: invalid server address %q: %v", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, chk.Err("offload: dial %q failed: %v", addr, err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Exchange sends req and overwrites it in place with the single reply
// datagram — the wire payload is the Solver Status block verbatim, so the
// caller's buffer IS the request and, after this call, the response
// (spec.md §4.G: "payload is the Solver Status block verbatim").
func (c *Client) Exchange(buf []byte) error {
	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return chk.Err("offload: set deadline: %v", err)
		}
	}
	if _, err := c.conn.Write(buf); err != nil {
		return chk.Err("offload: send failed: %v", err)
	}
	n, err := c.conn.Read(buf)
	if err != nil {
		return chk.Err("offload: recv failed: %v", err)
	}
	if n != len(buf) {
		return chk.Err("offload: reply size %d, want %d", n, len(buf))
	}
	return nil
}

// Close releases the socket.
func (c *Client) Close() error { return c.conn.Close() }

// SwapDoubles byteswaps every 8-byte float64 in place. It is used only by
// the Matlab adapter path, which exchanges a single n- or m-double vector
// rather than a whole status block and therefore must normalize endianness
// explicitly per host (spec.md §4.G/§9) — the solver-state path never calls
// this.
func SwapDoubles(buf []byte) {
	if len(buf)%8 != 0 {
		chk.Panic("offload: SwapDoubles: buffer length %d is not a multiple of 8", len(buf))
	}
	for off := 0; off+8 <= len(buf); off += 8 {
		v := binary.LittleEndian.Uint64(buf[off:])
		binary.BigEndian.PutUint64(buf[off:], v)
	}
}

// Float64FromBytes and BytesFromFloat64 are the single-value little-endian
// helpers the Matlab adapter uses around SwapDoubles.
func Float64FromBytes(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func BytesFromFloat64(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}
