package mstp

import (
	"github.com/thelastdreamer/GoMSTP/pkg/bpdu"
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// runPRX is the Port Receive machine: it demarshals one pending BPDU
// into uniform per-tree spanning tree messages and hands them to the
// Port Information machines. CIST always receives the message; MSTIs
// only when the BPDU came from inside our region.
func (p *port) runPRX() bool {
	if !p.rcvdBpdu || !p.enabled() {
		return false
	}
	rx := p.rxBpdu
	p.rcvdBpdu = false
	p.rxBpdu = nil

	// Any BPDU proves the LAN has another bridge on it.
	p.edgeDelayWhile.start(p.edgeDelay())
	if !p.config.AdminEdge {
		p.operEdge = false
		p.bdm = bdmNotEdge
	}

	if rx.IsTCN() {
		p.rcvdSTP = true
		p.cist().rcvdTcn = true
		return true
	}

	if rx.Version >= protocol.VersionRSTP {
		p.rcvdRSTP = true
	} else {
		p.rcvdSTP = true
	}

	internal := rx.Version == protocol.VersionMSTP && rx.ConfigID == p.bridge.mstConfigID
	p.infoInternal = internal

	cist := p.cist()
	if internal {
		cist.msgPriority = protocol.PriorityVector{
			RootID:             rx.RootID,
			ExtRootPathCost:    rx.ExtPathCost,
			RegionalRootID:     rx.RegionalRootID,
			IntRootPathCost:    rx.IntPathCost,
			DesignatedBridgeID: rx.BridgeID,
			DesignatedPortID:   rx.PortID,
		}
		cist.msgTimes = rx.Times
		cist.msgTimes.RemainingHops = rx.RemainingHops
	} else {
		// Information from outside the region: the sender's bridge
		// field doubles as its regional root, internal cost resets
		// at the boundary.
		cist.msgPriority = protocol.PriorityVector{
			RootID:             rx.RootID,
			ExtRootPathCost:    rx.ExtPathCost,
			RegionalRootID:     rx.RegionalRootID,
			DesignatedBridgeID: rx.RegionalRootID,
			DesignatedPortID:   rx.PortID,
		}
		cist.msgTimes = rx.Times
		cist.msgTimes.RemainingHops = p.bridge.config.MaxHops
	}
	cist.msgFlags = rx.Flags
	cist.msgRole = bpdu.RoleFromFlags(rx.Flags)
	if rx.Version == protocol.VersionSTP {
		// Config BPDUs carry no role bits; they always convey
		// designated information.
		cist.msgRole = bpdu.EncodedRoleDesignated
	}
	cist.rcvdMsg = true

	if internal {
		p.deliverMSTIMessages(rx)
	}
	return true
}

// deliverMSTIMessages stages the per-MSTI configuration messages of
// an intra-region MST BPDU on the matching trees.
func (p *port) deliverMSTIMessages(rx *bpdu.BPDU) {
	srcMAC := rx.BridgeID.MAC()
	for i := range rx.MSTIRecords {
		rec := &rx.MSTIRecords[i]
		mstid := rec.RegionalRootID.SystemID()
		t := p.bridge.treeByMSTID(mstid)
		if t == nil || t.mstid == protocol.CIST {
			continue
		}
		ptp := p.trees[t.idx]
		ptp.msgPriority = protocol.PriorityVector{
			RegionalRootID:     rec.RegionalRootID,
			IntRootPathCost:    rec.IntPathCost,
			DesignatedBridgeID: protocol.MakeBridgeID(uint16(rec.BridgePriority&0xf0)<<8, mstid, srcMAC),
			DesignatedPortID:   protocol.MakePortID(rec.PortPriority&0xf0, rx.PortID.Number()),
		}
		ptp.msgTimes = p.cist().msgTimes
		ptp.msgTimes.RemainingHops = rec.RemainingHops
		ptp.msgFlags = rec.Flags
		ptp.msgRole = bpdu.RoleFromFlags(rec.Flags)
		ptp.rcvdMsg = true
	}
}
