package mstp

import (
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// Port Information machine states, 802.1Q 13.35
type pimState uint8

const (
	pimDisabled pimState = iota
	pimAged
	pimUpdate
	pimCurrent
	pimReceive
	pimSuperiorDesignated
	pimRepeatedDesignated
	pimInferiorDesignated
	pimNotDesignated
	pimOther
)

// Port Role Transitions machine states, 802.1Q 13.37. One enum covers
// the per-role sub-machines; which block is active follows from the
// selected role.
type prtState uint8

const (
	prtInitPort prtState = iota

	prtDisablePort
	prtDisabledPort

	prtRootPort
	prtRootProposed
	prtRootAgreed
	prtReRoot
	prtRootForward
	prtRootLearn
	prtReRooted

	prtDesignatedPort
	prtDesignatedPropose
	prtDesignatedSynced
	prtDesignatedRetired
	prtDesignatedForward
	prtDesignatedLearn
	prtDesignatedDiscard

	prtAlternatePort
	prtAlternateProposed
	prtAlternateAgreed
	prtBlockPort
	prtBackupPort

	prtMasterPort
	prtMasterProposed
	prtMasterAgreed
	prtMasterSynced
	prtMasterRetired
	prtMasterForward
	prtMasterLearn
	prtMasterDiscard
)

// Port State Transitions machine states, 802.1Q 13.38
type pstState uint8

const (
	pstDiscarding pstState = iota
	pstLearning
	pstForwarding
)

// Topology Change machine states, 802.1Q 13.39
type tcmState uint8

const (
	tcmInactive tcmState = iota
	tcmLearning
	tcmDetected
	tcmNotifiedTCN
	tcmNotifiedTC
	tcmPropagating
	tcmAcknowledged
	tcmActive
)

// perTreePort is the state a port keeps for one spanning tree. All
// machine variables live here; machines communicate by reading these
// fields through the owning bridge's arena, never by holding
// cross-links.
type perTreePort struct {
	port *port
	tree *tree

	// portID is the port identifier advertised on this tree; the
	// priority nibble is configurable per tree.
	portID protocol.PortID

	// adminIntPathCost is the configured internal path cost, 0 for
	// automatic; intPathCost is the operative value.
	adminIntPathCost uint32
	intPathCost      uint32

	// portPriority/portTimes hold the spanning tree information in
	// effect on the port; designatedPriority/designatedTimes what
	// role selection computed for it.
	portPriority       protocol.PriorityVector
	portTimes          protocol.Times
	designatedPriority protocol.PriorityVector
	designatedTimes    protocol.Times

	// msgPriority/msgTimes/msgFlags carry the last received spanning
	// tree message, staged by the receive machine for PIM.
	msgPriority protocol.PriorityVector
	msgTimes    protocol.Times
	msgFlags    uint8
	msgRole     uint8

	role         protocol.Role
	selectedRole protocol.Role
	state        protocol.PortState
	infoIs       protocol.InfoIs
	rcvdInfo     protocol.RcvdInfo

	// Machine coupling variables
	agree      bool
	agreed     bool
	proposed   bool
	proposing  bool
	sync       bool
	synced     bool
	reRoot     bool
	reselect   bool
	selected   bool
	updtInfo   bool
	forward    bool
	forwarding bool
	learn      bool
	learning   bool
	disputed   bool
	rcvdMsg    bool
	rcvdTc     bool
	rcvdTcn    bool
	rcvdTcAck  bool
	tcProp     bool
	fdbFlush   bool

	// statePushed is cleared when the state transitions machine
	// changes the forwarding state; the scheduler pushes the final
	// value to the driver once per quiescence drive. flushPending
	// marks an FDB flush handed to the driver and not yet completed.
	statePushed  bool
	flushPending bool

	// Timers
	fdWhile       timer
	rrWhile       timer
	rbWhile       timer
	tcWhile       timer
	rcvdInfoWhile timer

	pim pimState
	prt prtState
	pst pstState
	tcm tcmState
}

// newPerTreePort initializes the per-tree state of a port to the
// Disabled/Discarding resting point.
func newPerTreePort(p *port, t *tree) *perTreePort {
	ptp := &perTreePort{
		port:   p,
		tree:   t,
		portID: protocol.MakePortID(DefaultPortPriority, p.portNumber),
		role:   protocol.RoleDisabled,
		state:  protocol.StateDiscarding,
		infoIs: protocol.InfoDisabled,
		pim:    pimDisabled,
		prt:    prtInitPort,
		pst:    pstDiscarding,
		tcm:    tcmInactive,
	}
	ptp.updatePathCost()
	return ptp
}

// updatePathCost recomputes the operative internal path cost from the
// admin override and the link speed.
func (ptp *perTreePort) updatePathCost() {
	if ptp.adminIntPathCost != 0 {
		ptp.intPathCost = ptp.adminIntPathCost
		return
	}
	ptp.intPathCost = pathCostFromSpeed(ptp.port.speedMbps)
}

// isCIST reports whether this per-tree port belongs to the CIST.
func (ptp *perTreePort) isCIST() bool {
	return ptp.tree.mstid == protocol.CIST
}

// cist returns the CIST per-tree state of the same port.
func (ptp *perTreePort) cist() *perTreePort {
	return ptp.port.trees[0]
}

// onBoundary reports whether the owning port sits on the edge of the
// MST region: its CIST information was received from another region.
func (ptp *perTreePort) onBoundary() bool {
	cist := ptp.cist()
	return cist.infoIs == protocol.InfoReceived && !ptp.port.infoInternal
}

// tickTimers advances the per-tree countdown timers by one second.
func (ptp *perTreePort) tickTimers() {
	ptp.fdWhile.tick()
	ptp.rrWhile.tick()
	ptp.rbWhile.tick()
	ptp.tcWhile.tick()
	ptp.rcvdInfoWhile.tick()
}
