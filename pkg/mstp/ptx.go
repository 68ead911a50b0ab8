package mstp

import (
	"github.com/thelastdreamer/GoMSTP/pkg/bpdu"
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// runPTX is the Port Transmit machine: rate-limited to txHoldCount
// BPDUs per hello interval, choosing the legacy Config/TCN encoding,
// RST, or MST with per-instance records depending on migration state
// and the forced protocol version.
func (p *port) runPTX() bool {
	if !p.enabled() || p.config.DontTxmt || p.config.BPDUFilter {
		return false
	}
	for _, ptp := range p.trees {
		if !ptp.selected || ptp.updtInfo {
			return false
		}
	}
	cist := p.cist()
	cfg := &p.bridge.config

	if p.helloWhen.expired() {
		// TRANSMIT_PERIODIC
		if cist.role == protocol.RoleDesignated ||
			(cist.role == protocol.RoleRoot && cist.tcWhile.running()) {
			p.newInfo = true
		}
		for _, ptp := range p.trees[1:] {
			if ptp.role == protocol.RoleDesignated || ptp.role == protocol.RoleMaster ||
				(ptp.role == protocol.RoleRoot && ptp.tcWhile.running()) {
				p.newInfoMsti = true
			}
		}
		p.helloWhen.start(cfg.HelloTime)
		return true
	}

	if p.txCount >= cfg.TxHoldCount {
		return false
	}

	switch {
	case p.sendRSTP && (p.newInfo || p.newInfoMsti):
		p.txRSTP()
		p.newInfo = false
		p.newInfoMsti = false
		p.txCount++
		p.tcAck = false
		return true
	case !p.sendRSTP && p.newInfo && cist.role == protocol.RoleRoot:
		p.txTCN()
		p.newInfo = false
		p.txCount++
		return true
	case !p.sendRSTP && p.newInfo && cist.role == protocol.RoleDesignated:
		p.txConfig()
		p.newInfo = false
		p.txCount++
		p.tcAck = false
		return true
	case !p.sendRSTP && (p.newInfo || p.newInfoMsti):
		// Nothing a legacy blocked port could say.
		p.newInfo = false
		p.newInfoMsti = false
		return true
	}
	return false
}

// cistFlags assembles the CIST flags octet for an RST/MST BPDU.
func (p *port) cistFlags() uint8 {
	cist := p.cist()
	flags := bpdu.RoleToFlags(bpdu.EncodeRole(cist.role))
	if cist.tcWhile.running() {
		flags |= bpdu.FlagTC
	}
	if cist.proposing {
		flags |= bpdu.FlagProposal
	}
	if cist.agree {
		flags |= bpdu.FlagAgreement
	}
	if cist.learning {
		flags |= bpdu.FlagLearning
	}
	if cist.forwarding {
		flags |= bpdu.FlagForwarding
	}
	return flags
}

// txRSTP transmits an RST BPDU, or an MST BPDU with one configuration
// message per instantiated MSTI when the bridge runs MSTP.
func (p *port) txRSTP() {
	cist := p.cist()
	dp := &cist.designatedPriority

	b := bpdu.BPDU{
		Type:        bpdu.TypeRST,
		Flags:       p.cistFlags(),
		RootID:      dp.RootID,
		ExtPathCost: dp.ExtRootPathCost,
		PortID:      cist.portID,
		Times:       cist.designatedTimes,
	}

	if p.bridge.config.ForceProtocolVersion >= protocol.VersionMSTP {
		b.Version = protocol.VersionMSTP
		b.RegionalRootID = dp.RegionalRootID
		b.ConfigID = p.bridge.mstConfigID
		b.IntPathCost = dp.IntRootPathCost
		b.BridgeID = dp.DesignatedBridgeID
		b.RemainingHops = cist.designatedTimes.RemainingHops
		for _, ptp := range p.trees[1:] {
			b.MSTIRecords = append(b.MSTIRecords, ptp.mstiConfigMsg())
		}
	} else {
		b.Version = protocol.VersionRSTP
		b.RegionalRootID = dp.DesignatedBridgeID
	}

	p.bridge.tx.SendBPDU(p.ifindex, b.Encode())
	p.counters.NumTxBPDU++
}

// mstiConfigMsg builds this tree port's 16-byte record of an outgoing
// MST BPDU.
func (ptp *perTreePort) mstiConfigMsg() bpdu.MSTIConfigMsg {
	dp := &ptp.designatedPriority
	flags := bpdu.RoleToFlags(bpdu.EncodeRole(ptp.role))
	if ptp.tcWhile.running() {
		flags |= bpdu.FlagTC
	}
	if ptp.proposing {
		flags |= bpdu.FlagProposal
	}
	if ptp.agree {
		flags |= bpdu.FlagAgreement
	}
	if ptp.learning {
		flags |= bpdu.FlagLearning
	}
	if ptp.forwarding {
		flags |= bpdu.FlagForwarding
	}
	if ptp.role == protocol.RoleMaster {
		flags |= bpdu.FlagTCAck // Master bit in MSTI records
	}
	return bpdu.MSTIConfigMsg{
		Flags:          flags,
		RegionalRootID: dp.RegionalRootID,
		IntPathCost:    dp.IntRootPathCost,
		BridgePriority: ptp.tree.bridgeID[0] & 0xf0,
		PortPriority:   ptp.portID.Priority(),
		RemainingHops:  ptp.designatedTimes.RemainingHops,
	}
}

// txConfig transmits a legacy Config BPDU.
func (p *port) txConfig() {
	cist := p.cist()
	dp := &cist.designatedPriority

	var flags uint8
	if cist.tcWhile.running() {
		flags |= bpdu.FlagTC
	}
	if p.tcAck {
		flags |= bpdu.FlagTCAck
	}
	b := bpdu.BPDU{
		Version:        protocol.VersionSTP,
		Type:           bpdu.TypeConfig,
		Flags:          flags,
		RootID:         dp.RootID,
		ExtPathCost:    dp.ExtRootPathCost,
		RegionalRootID: dp.DesignatedBridgeID,
		PortID:         cist.portID,
		Times:          cist.designatedTimes,
	}
	p.bridge.tx.SendBPDU(p.ifindex, b.Encode())
	p.counters.NumTxBPDU++
}

// txTCN transmits a legacy topology change notification.
func (p *port) txTCN() {
	b := bpdu.BPDU{Version: protocol.VersionSTP, Type: bpdu.TypeTCN}
	p.bridge.tx.SendBPDU(p.ifindex, b.Encode())
	p.counters.NumTxTCN++
}
