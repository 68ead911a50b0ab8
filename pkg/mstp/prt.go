package mstp

import (
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// runPRT is the Port Role Transitions machine: the role-specific
// sub-machine selected by selectedRole. It drives forward, learn,
// sync, reRoot, proposed and agree; the scheduler re-runs it until no
// transition fires.
func (ptp *perTreePort) runPRT() bool {
	if !ptp.selected || ptp.updtInfo {
		return false
	}
	switch ptp.selectedRole {
	case protocol.RoleDisabled:
		return ptp.prtDisabledBlock()
	case protocol.RoleRoot:
		return ptp.prtRootBlock()
	case protocol.RoleDesignated:
		return ptp.prtDesignatedBlock()
	case protocol.RoleAlternate, protocol.RoleBackup:
		return ptp.prtAlternateBlock()
	case protocol.RoleMaster:
		return ptp.prtMasterBlock()
	}
	return false
}

// inBlock reports whether the current PRT state belongs to the given
// sub-machine.
func (ptp *perTreePort) inBlock(lo, hi prtState) bool {
	return ptp.prt >= lo && ptp.prt <= hi
}

func (ptp *perTreePort) prtDisabledBlock() bool {
	if !ptp.inBlock(prtDisablePort, prtDisabledPort) {
		ptp.prt = prtDisablePort
		ptp.role = protocol.RoleDisabled
		ptp.learn = false
		ptp.forward = false
		return true
	}
	if ptp.prt == prtDisablePort && !ptp.learning && !ptp.forwarding {
		ptp.prt = prtDisabledPort
		return ptp.disabledPortEntry() || true
	}
	if ptp.prt == prtDisabledPort {
		return ptp.disabledPortEntry()
	}
	return false
}

// disabledPortEntry holds the DISABLED_PORT resting point: synced, no
// pending sync or reroot, ageing parked at MaxAge.
func (ptp *perTreePort) disabledPortEntry() bool {
	maxAge := ptp.port.bridge.config.MaxAge
	if ptp.fdWhile == timer(maxAge) && ptp.synced && !ptp.sync && !ptp.reRoot && ptp.rrWhile.expired() {
		return false
	}
	ptp.fdWhile.start(maxAge)
	ptp.synced = true
	ptp.rrWhile.stop()
	ptp.sync = false
	ptp.reRoot = false
	return true
}

func (ptp *perTreePort) prtRootBlock() bool {
	cfg := &ptp.port.bridge.config
	rstp := cfg.ForceProtocolVersion >= protocol.VersionRSTP

	if !ptp.inBlock(prtRootPort, prtReRooted) {
		ptp.prt = prtRootPort
		ptp.role = protocol.RoleRoot
		ptp.rrWhile.start(cfg.ForwardDelay)
		return true
	}

	if ptp.proposed && !ptp.agree {
		ptp.prt = prtRootProposed
		ptp.setSyncTree()
		ptp.proposed = false
		ptp.prt = prtRootPort
		return true
	}
	if (ptp.allSynced() && !ptp.agree) || (ptp.proposed && ptp.agree) {
		ptp.prt = prtRootAgreed
		ptp.proposed = false
		ptp.sync = false
		ptp.agree = true
		ptp.setNewInfo()
		ptp.prt = prtRootPort
		return true
	}
	if !ptp.forward && !ptp.reRoot {
		ptp.prt = prtReRoot
		ptp.setReRootTree()
		ptp.prt = prtRootPort
		return true
	}
	if ptp.rrWhile != timer(cfg.ForwardDelay) {
		ptp.rrWhile.start(cfg.ForwardDelay)
		return true
	}
	if ptp.reRoot && ptp.forward {
		ptp.prt = prtReRooted
		ptp.reRoot = false
		ptp.prt = prtRootPort
		return true
	}

	rapid := ptp.reRooted() && ptp.rbWhile.expired() && rstp
	if (ptp.fdWhile.expired() || rapid) && !ptp.learn {
		ptp.prt = prtRootLearn
		ptp.fdWhile.start(cfg.ForwardDelay)
		ptp.learn = true
		ptp.prt = prtRootPort
		return true
	}
	if (ptp.fdWhile.expired() || rapid) && ptp.learn && !ptp.forward {
		ptp.prt = prtRootForward
		ptp.fdWhile.stop()
		ptp.forward = true
		ptp.prt = prtRootPort
		return true
	}
	return false
}

func (ptp *perTreePort) prtDesignatedBlock() bool {
	cfg := &ptp.port.bridge.config
	p := ptp.port

	if !ptp.inBlock(prtDesignatedPort, prtDesignatedDiscard) {
		ptp.prt = prtDesignatedPort
		ptp.role = protocol.RoleDesignated
		return true
	}

	if !ptp.forward && !ptp.agreed && !ptp.proposing && !p.operEdge {
		ptp.prt = prtDesignatedPropose
		ptp.proposing = true
		p.edgeDelayWhile.start(p.edgeDelay())
		ptp.setNewInfo()
		ptp.prt = prtDesignatedPort
		return true
	}
	if (!ptp.learning && !ptp.forwarding && !ptp.synced) ||
		(ptp.agreed && !ptp.synced) ||
		(p.operEdge && !ptp.synced) ||
		(ptp.sync && ptp.synced) {
		ptp.prt = prtDesignatedSynced
		ptp.rrWhile.stop()
		ptp.synced = true
		ptp.sync = false
		ptp.prt = prtDesignatedPort
		return true
	}
	if ptp.reRoot && ptp.rrWhile.expired() {
		ptp.prt = prtDesignatedRetired
		ptp.reRoot = false
		ptp.prt = prtDesignatedPort
		return true
	}
	if ((ptp.sync && !ptp.synced) || (ptp.reRoot && ptp.rrWhile.running()) || ptp.disputed) &&
		!p.operEdge && (ptp.learn || ptp.forward) {
		ptp.prt = prtDesignatedDiscard
		ptp.learn = false
		ptp.forward = false
		ptp.disputed = false
		ptp.fdWhile.start(cfg.ForwardDelay)
		ptp.prt = prtDesignatedPort
		return true
	}

	ready := (ptp.fdWhile.expired() || ptp.agreed || p.operEdge) &&
		ptp.rrWhile.expired() && !ptp.sync
	if ready && !ptp.learn {
		ptp.prt = prtDesignatedLearn
		ptp.learn = true
		ptp.fdWhile.start(cfg.ForwardDelay)
		ptp.prt = prtDesignatedPort
		return true
	}
	if ready && ptp.learn && !ptp.forward {
		ptp.prt = prtDesignatedForward
		ptp.forward = true
		ptp.fdWhile.stop()
		ptp.prt = prtDesignatedPort
		return true
	}
	return false
}

func (ptp *perTreePort) prtAlternateBlock() bool {
	cfg := &ptp.port.bridge.config

	if !ptp.inBlock(prtAlternatePort, prtBackupPort) || ptp.role != ptp.selectedRole {
		ptp.prt = prtBlockPort
		ptp.role = ptp.selectedRole
		ptp.learn = false
		ptp.forward = false
		return true
	}
	if ptp.prt == prtBlockPort {
		if ptp.learning || ptp.forwarding {
			return false
		}
		ptp.prt = prtAlternatePort
		return ptp.alternatePortEntry() || true
	}

	if ptp.proposed && !ptp.agree {
		ptp.prt = prtAlternateProposed
		ptp.setSyncTree()
		ptp.proposed = false
		ptp.prt = prtAlternatePort
		return true
	}
	if (ptp.allSynced() && !ptp.agree) || (ptp.proposed && ptp.agree) {
		ptp.prt = prtAlternateAgreed
		ptp.proposed = false
		ptp.agree = true
		ptp.setNewInfo()
		ptp.prt = prtAlternatePort
		return true
	}
	if ptp.role == protocol.RoleBackup && ptp.rbWhile != timer(2*cfg.HelloTime) {
		ptp.prt = prtBackupPort
		ptp.rbWhile.start(2 * cfg.HelloTime)
		ptp.prt = prtAlternatePort
		return true
	}
	return ptp.alternatePortEntry()
}

// alternatePortEntry holds the ALTERNATE_PORT resting point.
func (ptp *perTreePort) alternatePortEntry() bool {
	fwdDelay := ptp.port.bridge.config.ForwardDelay
	if ptp.fdWhile == timer(fwdDelay) && ptp.synced && !ptp.sync && !ptp.reRoot && ptp.rrWhile.expired() {
		return false
	}
	ptp.fdWhile.start(fwdDelay)
	ptp.synced = true
	ptp.rrWhile.stop()
	ptp.sync = false
	ptp.reRoot = false
	return true
}

func (ptp *perTreePort) prtMasterBlock() bool {
	cfg := &ptp.port.bridge.config
	p := ptp.port

	if !ptp.inBlock(prtMasterPort, prtMasterDiscard) {
		ptp.prt = prtMasterPort
		ptp.role = protocol.RoleMaster
		return true
	}

	if ptp.proposed && !ptp.agree {
		ptp.prt = prtMasterProposed
		ptp.setSyncTree()
		ptp.proposed = false
		ptp.prt = prtMasterPort
		return true
	}
	if (ptp.allSynced() && !ptp.agree) || (ptp.proposed && ptp.agree) {
		ptp.prt = prtMasterAgreed
		ptp.proposed = false
		ptp.sync = false
		ptp.agree = true
		ptp.prt = prtMasterPort
		return true
	}
	if (!ptp.learning && !ptp.forwarding && !ptp.synced) ||
		(ptp.agreed && !ptp.synced) ||
		(p.operEdge && !ptp.synced) ||
		(ptp.sync && ptp.synced) {
		ptp.prt = prtMasterSynced
		ptp.rrWhile.stop()
		ptp.synced = true
		ptp.sync = false
		ptp.prt = prtMasterPort
		return true
	}
	if ptp.reRoot && ptp.rrWhile.expired() {
		ptp.prt = prtMasterRetired
		ptp.reRoot = false
		ptp.prt = prtMasterPort
		return true
	}
	if ((ptp.sync && !ptp.synced) || (ptp.reRoot && ptp.rrWhile.running()) || ptp.disputed) &&
		!p.operEdge && (ptp.learn || ptp.forward) {
		ptp.prt = prtMasterDiscard
		ptp.learn = false
		ptp.forward = false
		ptp.disputed = false
		ptp.fdWhile.start(cfg.ForwardDelay)
		ptp.prt = prtMasterPort
		return true
	}

	ready := (ptp.fdWhile.expired() || ptp.agreed || p.operEdge) &&
		ptp.rrWhile.expired() && !ptp.sync
	if ready && !ptp.learn {
		ptp.prt = prtMasterLearn
		ptp.learn = true
		ptp.fdWhile.start(cfg.ForwardDelay)
		ptp.prt = prtMasterPort
		return true
	}
	if ready && ptp.learn && !ptp.forward {
		ptp.prt = prtMasterForward
		ptp.forward = true
		ptp.fdWhile.stop()
		ptp.prt = prtMasterPort
		return true
	}
	return false
}

// allSynced reports whether every other port of the tree is synced,
// the precondition for sending an agreement.
func (ptp *perTreePort) allSynced() bool {
	for _, p := range ptp.port.bridge.ports {
		other := p.trees[ptp.tree.idx]
		if other == ptp {
			continue
		}
		if !other.synced {
			return false
		}
	}
	return true
}

// reRooted reports whether no other port of the tree is still a
// recent root (rrWhile running).
func (ptp *perTreePort) reRooted() bool {
	for _, p := range ptp.port.bridge.ports {
		other := p.trees[ptp.tree.idx]
		if other == ptp {
			continue
		}
		if other.rrWhile.running() {
			return false
		}
	}
	return true
}

// setSyncTree asks every port of the tree to bring itself to a synced
// state.
func (ptp *perTreePort) setSyncTree() {
	for _, p := range ptp.port.bridge.ports {
		p.trees[ptp.tree.idx].sync = true
	}
}

// setReRootTree marks every port of the tree for the reroot
// handshake.
func (ptp *perTreePort) setReRootTree() {
	for _, p := range ptp.port.bridge.ports {
		p.trees[ptp.tree.idx].reRoot = true
	}
}
