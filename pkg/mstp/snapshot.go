package mstp

import (
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// CISTBridgeStatus is the control surface snapshot of a bridge's CIST
// state.
type CISTBridgeStatus struct {
	Name                 string                   `json:"name"`
	Ifindex              int                      `json:"ifindex"`
	BridgeID             string                   `json:"bridge_id"`
	DesignatedRoot       string                   `json:"designated_root"`
	RegionalRoot         string                   `json:"regional_root"`
	RootPathCost         uint32                   `json:"root_path_cost"`
	InternalPathCost     uint32                   `json:"internal_path_cost"`
	RootPort             string                   `json:"root_port"`
	IsRoot               bool                     `json:"is_root"`
	MaxAge               uint8                    `json:"max_age"`
	HelloTime            uint8                    `json:"hello_time"`
	ForwardDelay         uint8                    `json:"forward_delay"`
	MaxHops              uint8                    `json:"max_hops"`
	TxHoldCount          uint8                    `json:"tx_hold_count"`
	AgeingTime           uint32                   `json:"ageing_time"`
	ForceProtocolVersion protocol.ProtocolVersion `json:"force_protocol_version"`
	TopologyChangeCount  uint32                   `json:"topology_change_count"`
	TimeSinceTC          uint32                   `json:"time_since_topology_change"`
	TopologyChangePort   int                      `json:"topology_change_port"`
	LastTCPort           int                      `json:"last_topology_change_port"`
	MSTConfigName        string                   `json:"mst_config_name"`
	MSTConfigRevision    uint16                   `json:"mst_config_revision"`
	MSTConfigDigest      [16]byte                 `json:"mst_config_digest"`
}

// TreeStatus is the per-MSTI bridge snapshot.
type TreeStatus struct {
	MSTID               protocol.MSTID `json:"mstid"`
	BridgeID            string         `json:"bridge_id"`
	RegionalRoot        string         `json:"regional_root"`
	InternalPathCost    uint32         `json:"internal_path_cost"`
	RootPort            string         `json:"root_port"`
	IsRoot              bool           `json:"is_root"`
	TopologyChangeCount uint32         `json:"topology_change_count"`
	TimeSinceTC         uint32         `json:"time_since_topology_change"`
}

// TreePortStatus is the per-(port, tree) snapshot.
type TreePortStatus struct {
	Port             string             `json:"port"`
	Ifindex          int                `json:"ifindex"`
	MSTID            protocol.MSTID     `json:"mstid"`
	PortID           string             `json:"port_id"`
	Role             protocol.Role      `json:"role"`
	State            protocol.PortState `json:"state"`
	Disputed         bool               `json:"disputed"`
	DesignatedRoot   string             `json:"designated_root"`
	DesignatedBridge string             `json:"designated_bridge"`
	DesignatedPort   string             `json:"designated_port"`
	InternalPathCost uint32             `json:"internal_path_cost"`
}

// PortStatus is the per-port CIST snapshot including link facts,
// admin configuration and counters.
type PortStatus struct {
	TreePortStatus
	ExternalPathCost uint32       `json:"external_path_cost"`
	Enabled          bool         `json:"enabled"`
	OperUp           bool         `json:"oper_up"`
	SpeedMbps        uint32       `json:"speed_mbps"`
	OperP2P          bool         `json:"oper_p2p"`
	OperEdge         bool         `json:"oper_edge"`
	SendRSTP         bool         `json:"send_rstp"`
	BPDUGuardError   bool         `json:"bpdu_guard_error"`
	Config           PortConfig   `json:"config"`
	Counters         PortCounters `json:"counters"`
}

// CISTStatus snapshots the CIST bridge state.
func (br *Bridge) CISTStatus() CISTBridgeStatus {
	cist := br.trees[0]
	return CISTBridgeStatus{
		Name:                 br.name,
		Ifindex:              br.ifindex,
		BridgeID:             cist.bridgeID.String(),
		DesignatedRoot:       cist.rootPriority.RootID.String(),
		RegionalRoot:         cist.rootPriority.RegionalRootID.String(),
		RootPathCost:         cist.rootPriority.ExtRootPathCost,
		InternalPathCost:     cist.rootPriority.IntRootPathCost,
		RootPort:             cist.rootPortID.String(),
		IsRoot:               cist.isRoot(),
		MaxAge:               br.config.MaxAge,
		HelloTime:            br.config.HelloTime,
		ForwardDelay:         br.config.ForwardDelay,
		MaxHops:              br.config.MaxHops,
		TxHoldCount:          br.config.TxHoldCount,
		AgeingTime:           br.config.AgeingTime,
		ForceProtocolVersion: br.config.ForceProtocolVersion,
		TopologyChangeCount:  cist.topologyChangeCount,
		TimeSinceTC:          cist.timeSinceTC,
		TopologyChangePort:   cist.topologyChangePort,
		LastTCPort:           cist.lastTopologyChangePort,
		MSTConfigName:        br.mstConfigID.NameString(),
		MSTConfigRevision:    br.mstConfigID.Revision,
		MSTConfigDigest:      br.mstConfigID.Digest,
	}
}

// TreeStatusOf snapshots one MSTI.
func (br *Bridge) TreeStatusOf(mstid protocol.MSTID) (TreeStatus, error) {
	t := br.treeByMSTID(mstid)
	if t == nil {
		return TreeStatus{}, ErrNoSuchTree
	}
	return TreeStatus{
		MSTID:               t.mstid,
		BridgeID:            t.bridgeID.String(),
		RegionalRoot:        t.rootPriority.RegionalRootID.String(),
		InternalPathCost:    t.rootPriority.IntRootPathCost,
		RootPort:            t.rootPortID.String(),
		IsRoot:              t.isRoot(),
		TopologyChangeCount: t.topologyChangeCount,
		TimeSinceTC:         t.timeSinceTC,
	}, nil
}

func (ptp *perTreePort) snapshot() TreePortStatus {
	return TreePortStatus{
		Port:             ptp.port.name,
		Ifindex:          ptp.port.ifindex,
		MSTID:            ptp.tree.mstid,
		PortID:           ptp.portID.String(),
		Role:             ptp.role,
		State:            ptp.state,
		Disputed:         ptp.disputed,
		DesignatedRoot:   ptp.portPriority.RootID.String(),
		DesignatedBridge: ptp.portPriority.DesignatedBridgeID.String(),
		DesignatedPort:   ptp.portPriority.DesignatedPortID.String(),
		InternalPathCost: ptp.intPathCost,
	}
}

// PortStatusOf snapshots one port's CIST state.
func (br *Bridge) PortStatusOf(ifindex int) (PortStatus, error) {
	p := br.portByIfindex(ifindex)
	if p == nil {
		return PortStatus{}, ErrNoSuchPort
	}
	return PortStatus{
		TreePortStatus:   p.cist().snapshot(),
		ExternalPathCost: p.extPathCost,
		Enabled:          p.enabled(),
		OperUp:           p.operUp,
		SpeedMbps:        p.speedMbps,
		OperP2P:          p.operP2P,
		OperEdge:         p.operEdge,
		SendRSTP:         p.sendRSTP,
		BPDUGuardError:   p.bpduGuardError,
		Config:           p.config,
		Counters:         p.counters,
	}, nil
}

// PortStatuses snapshots every port of the bridge.
func (br *Bridge) PortStatuses() []PortStatus {
	out := make([]PortStatus, 0, len(br.ports))
	for _, p := range br.ports {
		s, _ := br.PortStatusOf(p.ifindex)
		out = append(out, s)
	}
	return out
}

// TreePortStatusOf snapshots one (port, tree) pair.
func (br *Bridge) TreePortStatusOf(ifindex int, mstid protocol.MSTID) (TreePortStatus, error) {
	p := br.portByIfindex(ifindex)
	if p == nil {
		return TreePortStatus{}, ErrNoSuchPort
	}
	t := br.treeByMSTID(mstid)
	if t == nil {
		return TreePortStatus{}, ErrNoSuchTree
	}
	return p.trees[t.idx].snapshot(), nil
}

// PortIfindexByName resolves a port name on this bridge.
func (br *Bridge) PortIfindexByName(name string) (int, error) {
	for _, p := range br.ports {
		if p.name == name {
			return p.ifindex, nil
		}
	}
	return 0, ErrNoSuchPort
}

// PortIfindexes returns the ifindex of every attached port.
func (br *Bridge) PortIfindexes() []int {
	out := make([]int, 0, len(br.ports))
	for _, p := range br.ports {
		out = append(out, p.ifindex)
	}
	return out
}
