package mstp

import (
	"github.com/thelastdreamer/GoMSTP/pkg/bpdu"
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// runPIM is the Port Information machine for one (port, tree). It
// owns portPriority/portTimes, classifies received spanning tree
// messages and requests role recomputation through reselect.
func (ptp *perTreePort) runPIM() bool {
	p := ptp.port

	// DISABLED
	if !p.enabled() {
		if ptp.infoIs == protocol.InfoDisabled && !ptp.rcvdMsg {
			return false
		}
		ptp.pim = pimDisabled
		ptp.rcvdMsg = false
		ptp.proposing = false
		ptp.proposed = false
		ptp.agree = false
		ptp.agreed = false
		ptp.rcvdInfoWhile.stop()
		ptp.infoIs = protocol.InfoDisabled
		ptp.reselect = true
		ptp.selected = false
		return true
	}

	// Leaving DISABLED once the port comes up: age the (absent)
	// information so role selection claims the port as Designated.
	if ptp.pim == pimDisabled {
		ptp.pim = pimAged
		ptp.infoIs = protocol.InfoAged
		ptp.reselect = true
		ptp.selected = false
		return true
	}

	// UPDATE
	if ptp.selected && ptp.updtInfo {
		ptp.pim = pimUpdate
		ptp.proposing = false
		ptp.proposed = false
		ptp.agreed = ptp.agreed && ptp.betterOrSameInfoMine()
		ptp.synced = ptp.synced && ptp.agreed
		ptp.portPriority = ptp.designatedPriority
		ptp.portTimes = ptp.designatedTimes
		ptp.updtInfo = false
		ptp.infoIs = protocol.InfoMine
		ptp.setNewInfo()
		ptp.pim = pimCurrent
		return true
	}

	// AGED
	if ptp.infoIs == protocol.InfoReceived && ptp.rcvdInfoWhile.expired() &&
		!ptp.updtInfo && !ptp.rcvdMsg {
		ptp.pim = pimAged
		ptp.infoIs = protocol.InfoAged
		ptp.reselect = true
		ptp.selected = false
		return true
	}

	// RECEIVE
	if ptp.rcvdMsg && !ptp.updtInfo {
		ptp.pim = pimReceive
		ptp.rcvdInfo = ptp.classifyMsg()
		switch ptp.rcvdInfo {
		case protocol.SuperiorDesignatedInfo:
			ptp.pim = pimSuperiorDesignated
			ptp.agreed = ptp.agreed && ptp.msgPriority.BetterOrSame(&ptp.portPriority)
			ptp.agree = ptp.agree && ptp.msgPriority.BetterOrSame(&ptp.portPriority)
			ptp.synced = ptp.synced && ptp.agreed
			ptp.proposing = false
			ptp.recordProposal()
			ptp.setTcFlags()
			ptp.portPriority = ptp.msgPriority
			ptp.portTimes = ptp.msgTimes
			ptp.updtRcvdInfoWhile()
			ptp.infoIs = protocol.InfoReceived
			ptp.reselect = true
			ptp.selected = false
			ptp.disputed = false
		case protocol.RepeatedDesignatedInfo:
			ptp.pim = pimRepeatedDesignated
			ptp.recordProposal()
			ptp.setTcFlags()
			ptp.updtRcvdInfoWhile()
		case protocol.InferiorDesignatedInfo:
			ptp.pim = pimInferiorDesignated
			ptp.recordDispute()
		case protocol.InferiorRootAlternateInfo:
			ptp.pim = pimNotDesignated
			ptp.recordAgreement()
			ptp.setTcFlags()
		default:
			ptp.pim = pimOther
		}
		ptp.rcvdMsg = false
		ptp.pim = pimCurrent
		return true
	}

	return false
}

// classifyMsg implements rcvInfo: the received message against the
// information currently in effect on the port.
func (ptp *perTreePort) classifyMsg() protocol.RcvdInfo {
	cmp := ptp.msgPriority.Compare(&ptp.portPriority)
	if ptp.msgRole == bpdu.EncodedRoleDesignated {
		switch {
		case cmp == protocol.Better,
			ptp.msgPriority.SameSource(&ptp.portPriority) &&
				(cmp != protocol.Same || !ptp.msgTimes.Equal(ptp.portTimes)):
			return protocol.SuperiorDesignatedInfo
		case cmp == protocol.Same && ptp.msgTimes.Equal(ptp.portTimes):
			return protocol.RepeatedDesignatedInfo
		default:
			return protocol.InferiorDesignatedInfo
		}
	}
	if cmp != protocol.Better {
		return protocol.InferiorRootAlternateInfo
	}
	return protocol.OtherInfo
}

// betterOrSameInfoMine reports whether the newly computed designated
// information is at least as good as what the port holds.
func (ptp *perTreePort) betterOrSameInfoMine() bool {
	return ptp.infoIs == protocol.InfoMine &&
		ptp.designatedPriority.BetterOrSame(&ptp.portPriority)
}

// recordProposal notes a designated neighbor asking for rapid
// transition agreement.
func (ptp *perTreePort) recordProposal() {
	if ptp.msgRole == bpdu.EncodedRoleDesignated && ptp.msgFlags&bpdu.FlagProposal != 0 {
		ptp.proposed = true
	}
}

// recordAgreement accepts an agreement flag from a point-to-point
// RSTP/MSTP neighbor.
func (ptp *perTreePort) recordAgreement() {
	p := ptp.port
	rstp := p.bridge.config.ForceProtocolVersion >= protocol.VersionRSTP
	if rstp && p.operP2P && ptp.msgFlags&bpdu.FlagAgreement != 0 {
		ptp.agreed = true
		ptp.proposing = false
	} else {
		ptp.agreed = false
	}
}

// recordDispute notes an inferior designated message from a neighbor
// that is still learning: a count-to-infinity risk, the port must
// step back to discarding.
func (ptp *perTreePort) recordDispute() {
	if ptp.msgFlags&bpdu.FlagLearning != 0 {
		ptp.disputed = true
		ptp.agreed = false
	}
}

// setTcFlags latches topology change indications from the received
// message for the Topology Change machine.
func (ptp *perTreePort) setTcFlags() {
	if ptp.msgFlags&bpdu.FlagTC != 0 {
		ptp.rcvdTc = true
	}
	if ptp.msgFlags&bpdu.FlagTCAck != 0 {
		ptp.rcvdTcAck = true
	}
}

// updtRcvdInfoWhile restarts the ageing timer of received
// information. The age comparison uses the received times: outside
// the region messageAge against maxAge, inside the remaining hop
// count.
func (ptp *perTreePort) updtRcvdInfoWhile() {
	fresh := false
	if ptp.isCIST() && !ptp.port.infoInternal {
		fresh = ptp.portTimes.MessageAge < ptp.portTimes.MaxAge
	} else {
		fresh = ptp.portTimes.RemainingHops > 1
	}
	if fresh {
		hello := ptp.portTimes.HelloTime
		if hello == 0 {
			hello = DefaultHelloTime
		}
		ptp.rcvdInfoWhile.start(3 * hello)
	} else {
		ptp.rcvdInfoWhile.stop()
	}
}

// setNewInfo requests transmission of updated information on the
// owning port.
func (ptp *perTreePort) setNewInfo() {
	if ptp.isCIST() {
		ptp.port.newInfo = true
	} else {
		ptp.port.newInfoMsti = true
	}
}
