package mstp

import (
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// runTCM is the Topology Change machine: detection on non-edge ports
// entering Forwarding, propagation across the tree, FDB flushing and
// the legacy TCN/TCAck handshake.
func (ptp *perTreePort) runTCM() bool {
	activeRole := ptp.role == protocol.RoleRoot ||
		ptp.role == protocol.RoleDesignated ||
		ptp.role == protocol.RoleMaster

	switch ptp.tcm {
	case tcmInactive:
		if ptp.learn && !ptp.fdbFlush {
			ptp.tcm = tcmLearning
			ptp.clearTcSignals()
			return true
		}

	case tcmLearning:
		if activeRole && ptp.forward && !ptp.port.operEdge && !ptp.port.config.RestrictedTCN {
			ptp.tcm = tcmDetected
			ptp.newTcWhile()
			ptp.setTcPropTree()
			ptp.tcm = tcmActive
			return true
		}
		if ptp.rcvdTc || ptp.rcvdTcn || ptp.rcvdTcAck || ptp.tcProp {
			ptp.clearTcSignals()
			return true
		}
		if !activeRole && !ptp.learn && !ptp.learning {
			ptp.tcm = tcmInactive
			ptp.fdbFlush = true
			ptp.tcWhile.stop()
			ptp.port.tcAck = false
			return true
		}

	case tcmActive:
		if !activeRole || ptp.port.operEdge {
			ptp.tcm = tcmLearning
			return true
		}
		if ptp.rcvdTcn {
			ptp.tcm = tcmNotifiedTCN
			ptp.newTcWhile()
			ptp.tcm = tcmNotifiedTC
			ptp.notifiedTc()
			ptp.tcm = tcmActive
			return true
		}
		if ptp.rcvdTc {
			ptp.tcm = tcmNotifiedTC
			ptp.notifiedTc()
			ptp.tcm = tcmActive
			return true
		}
		if ptp.tcProp && !ptp.port.operEdge {
			ptp.tcm = tcmPropagating
			ptp.newTcWhile()
			ptp.fdbFlush = true
			ptp.tcProp = false
			ptp.tcm = tcmActive
			return true
		}
		if ptp.rcvdTcAck {
			ptp.tcm = tcmAcknowledged
			ptp.tcWhile.stop()
			ptp.rcvdTcAck = false
			ptp.tcm = tcmActive
			return true
		}
	}
	return false
}

func (ptp *perTreePort) clearTcSignals() {
	ptp.rcvdTc = false
	ptp.rcvdTcn = false
	ptp.rcvdTcAck = false
	ptp.tcProp = false
}

// notifiedTc handles a received topology change: acknowledge legacy
// notifications on designated ports and propagate across the tree.
func (ptp *perTreePort) notifiedTc() {
	ptp.rcvdTcn = false
	ptp.rcvdTc = false
	if ptp.role == protocol.RoleDesignated && !ptp.port.sendRSTP {
		ptp.port.tcAck = true
		ptp.setNewInfo()
	}
	ptp.setTcPropTree()
}

// newTcWhile starts the topology change timer and schedules
// transmission of the TC indication. Ports with restricted TCN never
// originate one.
func (ptp *perTreePort) newTcWhile() {
	if ptp.tcWhile.running() || ptp.port.config.RestrictedTCN {
		return
	}
	cfg := &ptp.port.bridge.config
	if ptp.port.sendRSTP {
		// The port's own hello interval, not the root path's: a port
		// overriding hello times its TC window accordingly.
		hello := ptp.designatedTimes.HelloTime
		if hello == 0 {
			hello = cfg.HelloTime
		}
		ptp.tcWhile.start(hello + 1)
		ptp.setNewInfo()
	} else {
		ptp.tcWhile.start(ptp.tree.rootTimes.MaxAge + cfg.ForwardDelay)
		ptp.port.newInfo = true
	}
	ptp.tree.markTopologyChange(ptp.port.ifindex)
}

// setTcPropTree marks every other port of the tree for topology
// change propagation.
func (ptp *perTreePort) setTcPropTree() {
	for _, p := range ptp.port.bridge.ports {
		other := p.trees[ptp.tree.idx]
		if other == ptp {
			continue
		}
		other.tcProp = true
	}
}
