package mstp

import (
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// tree is one spanning tree instance of a bridge: the CIST (index 0)
// or an MSTI. Per-port state lives in the ports' perTreePort entries
// at the same index.
type tree struct {
	bridge *Bridge

	mstid protocol.MSTID

	// idx is the tree's position in bridge.trees and every
	// port.trees slice.
	idx int

	// bridgeID is the identifier this bridge advertises on the tree;
	// the system id extension equals the MSTID.
	bridgeID protocol.BridgeID

	// bridgePriority is the vector the bridge would advertise as
	// root of this tree.
	bridgePriority protocol.PriorityVector
	bridgeTimes    protocol.Times

	// Election results maintained by role selection
	rootPriority protocol.PriorityVector
	rootTimes    protocol.Times
	rootPortID   protocol.PortID

	// Topology change bookkeeping
	topologyChangeCount    uint32
	timeSinceTC            uint32
	topologyChangePort     int // ifindex, 0 when none
	lastTopologyChangePort int
}

// newTree builds a tree with this bridge as its own root.
func newTree(br *Bridge, mstid protocol.MSTID, idx int) *tree {
	t := &tree{
		bridge: br,
		mstid:  mstid,
		idx:    idx,
	}
	t.bridgeID = protocol.MakeBridgeID(DefaultBridgePriority, mstid, br.macAddr)
	t.updateBridgePriority()
	return t
}

// updateBridgePriority recomputes the self-rooted vector and times
// after an identity or timer configuration change.
func (t *tree) updateBridgePriority() {
	// MSTI vectors keep the external components zero; only the CIST
	// competes across region boundaries.
	t.bridgePriority = protocol.PriorityVector{
		RegionalRootID:     t.bridgeID,
		DesignatedBridgeID: t.bridgeID,
	}
	if t.mstid == protocol.CIST {
		t.bridgePriority.RootID = t.bridgeID
	}
	cfg := &t.bridge.config
	t.bridgeTimes = protocol.Times{
		MaxAge:        cfg.MaxAge,
		HelloTime:     cfg.HelloTime,
		ForwardDelay:  cfg.ForwardDelay,
		RemainingHops: cfg.MaxHops,
	}
	if t.rootPriority == (protocol.PriorityVector{}) {
		t.rootPriority = t.bridgePriority
		t.rootTimes = t.bridgeTimes
	}
}

// setPriority replaces the settable priority of the tree's bridge
// identifier and re-seeds the self-rooted vector.
func (t *tree) setPriority(priority uint16) {
	t.bridgeID.SetPriority(priority)
	t.bridgePriority.RegionalRootID = t.bridgeID
	t.bridgePriority.DesignatedBridgeID = t.bridgeID
	if t.mstid == protocol.CIST {
		t.bridgePriority.RootID = t.bridgeID
	}
	for _, p := range t.bridge.ports {
		p.trees[t.idx].reselect = true
		p.trees[t.idx].selected = false
	}
}

// isRoot reports whether this bridge is the root of the tree: of the
// whole network for the CIST, of the region for an MSTI.
func (t *tree) isRoot() bool {
	if t.mstid == protocol.CIST {
		return t.rootPriority.RootID == t.bridgeID
	}
	return t.rootPriority.RegionalRootID == t.bridgeID
}

// markTopologyChange records a detected or propagated topology change
// originating at the given port.
func (t *tree) markTopologyChange(ifindex int) {
	t.topologyChangeCount++
	t.timeSinceTC = 0
	t.lastTopologyChangePort = t.topologyChangePort
	t.topologyChangePort = ifindex
}
