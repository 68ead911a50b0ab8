package mstp

import (
	"net"

	"github.com/thelastdreamer/GoMSTP/pkg/bpdu"
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// Protocol Migration machine states, 802.1Q 13.32
type ppmState uint8

const (
	ppmCheckingRSTP ppmState = iota
	ppmSelectingSTP
	ppmSensing
)

// Bridge Detection machine states, 802.1Q 13.31
type bdmState uint8

const (
	bdmEdge bdmState = iota
	bdmNotEdge
)

// PortCounters are the per-port frame and transition counters exposed
// over the control surface.
type PortCounters struct {
	NumRxBPDU         uint32
	NumRxTCN          uint32
	NumTxBPDU         uint32
	NumTxTCN          uint32
	NumRxBPDUFiltered uint32
	NumTransFwd       uint32
	NumTransBlk       uint32
}

// port is the per-port state shared by all trees: link facts, admin
// configuration, the per-port machines (PRX, PTX, PPM, BDM) and the
// per-tree array indexed in lockstep with the bridge's tree table.
type port struct {
	bridge *Bridge

	ifindex    int
	name       string
	macAddr    net.HardwareAddr
	portNumber uint16

	// Link facts reported by the kernel
	adminUp   bool
	operUp    bool
	speedMbps uint32
	duplex    bool

	config PortConfig

	// bpduGuardError is latched when a guarded port receives a BPDU;
	// it keeps the port error-disabled until the operator clears it.
	bpduGuardError bool

	// Operative derived state
	extPathCost  uint32
	operP2P      bool
	operEdge     bool
	infoInternal bool

	// Protocol migration
	sendRSTP bool
	rcvdSTP  bool
	rcvdRSTP bool
	mcheck   bool

	// Receive/transmit coupling
	rcvdBpdu    bool
	rxBpdu      *bpdu.BPDU
	newInfo     bool
	newInfoMsti bool
	tcAck       bool
	txCount     uint8

	// Per-port timers
	helloWhen      timer
	mdelayWhile    timer
	edgeDelayWhile timer

	counters PortCounters

	ppm ppmState
	bdm bdmState

	// trees is indexed in lockstep with bridge.trees; index 0 is
	// always the CIST.
	trees []*perTreePort
}

// enabled reports whether the port participates in the protocol:
// administratively up, carrier present, not error-disabled.
func (p *port) enabled() bool {
	return p.adminUp && p.operUp && !p.bpduGuardError
}

// updateOperFacts recomputes the speed- and duplex-derived state.
func (p *port) updateOperFacts() {
	if p.config.AdminExtPathCost != 0 {
		p.extPathCost = p.config.AdminExtPathCost
	} else {
		p.extPathCost = pathCostFromSpeed(p.speedMbps)
	}
	switch p.config.AdminP2P {
	case protocol.P2PForceTrue:
		p.operP2P = true
	case protocol.P2PForceFalse:
		p.operP2P = false
	default:
		p.operP2P = p.duplex
	}
	for _, ptp := range p.trees {
		ptp.updatePathCost()
	}
}

// edgeDelay is the time a port must go without BPDUs before auto edge
// detection declares it an edge: MigrateTime on point-to-point links,
// MaxAge otherwise.
func (p *port) edgeDelay() uint8 {
	if p.operP2P {
		return MigrateTime
	}
	return p.bridge.config.MaxAge
}

// cist returns the CIST per-tree state of this port.
func (p *port) cist() *perTreePort {
	return p.trees[0]
}

// tickTimers advances the per-port timers and the transmit credit.
func (p *port) tickTimers() {
	p.helloWhen.tick()
	p.mdelayWhile.tick()
	p.edgeDelayWhile.tick()
	if p.txCount > 0 {
		p.txCount--
	}
	for _, ptp := range p.trees {
		ptp.tickTimers()
	}
}

// initPort resets the per-port machines to their begin states. Called
// when the port is created and whenever it is re-enabled.
func (p *port) initPort() {
	p.updateOperFacts()
	p.sendRSTP = p.bridge.config.ForceProtocolVersion >= protocol.VersionRSTP
	p.rcvdSTP = false
	p.rcvdRSTP = false
	p.mcheck = false
	p.rcvdBpdu = false
	p.rxBpdu = nil
	p.newInfo = true
	p.newInfoMsti = true
	p.txCount = 0
	p.helloWhen.stop()
	p.mdelayWhile.start(MigrateTime)
	p.edgeDelayWhile.stop()
	p.ppm = ppmCheckingRSTP
	p.operEdge = p.config.AdminEdge
	if p.operEdge {
		p.bdm = bdmEdge
	} else {
		p.bdm = bdmNotEdge
	}
	for _, ptp := range p.trees {
		initTreePort(ptp)
	}
}

// initTreePort resets one per-tree port to the machine begin states.
func initTreePort(ptp *perTreePort) {
	ptp.role = protocol.RoleDisabled
	ptp.selectedRole = protocol.RoleDisabled
	ptp.infoIs = protocol.InfoDisabled
	ptp.portPriority = protocol.PriorityVector{}
	ptp.portTimes = protocol.Times{}
	ptp.agree = false
	ptp.agreed = false
	ptp.proposed = false
	ptp.proposing = false
	ptp.sync = true
	ptp.synced = false
	ptp.reRoot = true
	ptp.reselect = true
	ptp.selected = false
	ptp.updtInfo = false
	ptp.forward = false
	ptp.learn = false
	ptp.disputed = false
	ptp.rcvdMsg = false
	ptp.rcvdTc = false
	ptp.rcvdTcn = false
	ptp.rcvdTcAck = false
	ptp.tcProp = false
	ptp.fdbFlush = false
	ptp.fdWhile.start(ptp.port.bridge.config.MaxAge)
	ptp.rrWhile.start(ptp.port.bridge.config.ForwardDelay)
	ptp.rbWhile.stop()
	ptp.tcWhile.stop()
	ptp.rcvdInfoWhile.stop()
	ptp.pim = pimDisabled
	ptp.prt = prtInitPort
	ptp.tcm = tcmInactive
	ptp.updatePathCost()
}
