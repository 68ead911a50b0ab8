package mstp

import (
	"sync"

	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// Driver is the surface the protocol core calls out through to mirror
// computed state into the kernel or hardware. Implementations must
// return quickly; a flush that completes asynchronously is reported
// back through Bridge.FIDsFlushed.
type Driver interface {
	// SetPortState pushes the forwarding state for one (port, tree)
	// pair and returns the state the driver actually installed.
	SetPortState(ifindex int, mstid protocol.MSTID, state protocol.PortState) protocol.PortState

	// FlushFIDs asks the driver to flush the filtering database
	// entries of the given tree learned on the given port.
	// Fire-and-forget; completion arrives as a FIDsFlushed event.
	FlushFIDs(ifindex int, mstid protocol.MSTID)

	// SetAgeingTime pushes the bridge ageing time. The driver may
	// round the value up and returns what it installed.
	SetAgeingTime(ifindex int, seconds uint32) uint32

	// CreateMSTI and DeleteMSTI mirror MSTI lifecycle into drivers
	// that keep per-instance state. A false return is logged, the
	// core proceeds regardless.
	CreateMSTI(bridgeIfindex int, mstid protocol.MSTID) bool
	DeleteMSTI(bridgeIfindex int, mstid protocol.MSTID) bool
}

// Transmitter sends an encoded BPDU payload out of a port. The frame
// header (destination MAC, LLC) is added by the packet layer.
type Transmitter interface {
	SendBPDU(ifindex int, payload []byte)
}

// DriverCall records one driver invocation made by the loopback
// driver, for tests and diagnostics.
type DriverCall struct {
	Op      string
	Ifindex int
	MSTID   protocol.MSTID
	State   protocol.PortState
}

// LoopbackDriver is a Driver that installs nothing: it echoes every
// requested state and records the calls. Used by tests.
type LoopbackDriver struct {
	mu    sync.Mutex
	calls []DriverCall
}

func NewLoopbackDriver() *LoopbackDriver {
	return &LoopbackDriver{}
}

func (d *LoopbackDriver) SetPortState(ifindex int, mstid protocol.MSTID, state protocol.PortState) protocol.PortState {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, DriverCall{Op: "set_port_state", Ifindex: ifindex, MSTID: mstid, State: state})
	return state
}

func (d *LoopbackDriver) FlushFIDs(ifindex int, mstid protocol.MSTID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, DriverCall{Op: "flush_fids", Ifindex: ifindex, MSTID: mstid})
}

func (d *LoopbackDriver) SetAgeingTime(ifindex int, seconds uint32) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, DriverCall{Op: "set_ageing_time", Ifindex: ifindex})
	return seconds
}

func (d *LoopbackDriver) CreateMSTI(bridgeIfindex int, mstid protocol.MSTID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, DriverCall{Op: "create_msti", Ifindex: bridgeIfindex, MSTID: mstid})
	return true
}

func (d *LoopbackDriver) DeleteMSTI(bridgeIfindex int, mstid protocol.MSTID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, DriverCall{Op: "delete_msti", Ifindex: bridgeIfindex, MSTID: mstid})
	return true
}

// Calls returns a copy of the recorded driver invocations.
func (d *LoopbackDriver) Calls() []DriverCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DriverCall, len(d.calls))
	copy(out, d.calls)
	return out
}

// Reset discards the recorded invocations.
func (d *LoopbackDriver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}
