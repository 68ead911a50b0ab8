package mstp

import (
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// runPRS is the Port Role Selection machine, bridge-wide per tree: it
// recomputes the root priority vector and assigns a selected role to
// every port whenever any Port Information machine raised reselect.
func (t *tree) runPRS() bool {
	br := t.bridge
	pending := false
	for _, p := range br.ports {
		if p.trees[t.idx].reselect {
			pending = true
			break
		}
	}
	if !pending {
		return false
	}

	for _, p := range br.ports {
		p.trees[t.idx].reselect = false
	}
	t.updtRolesTree()
	for _, p := range br.ports {
		p.trees[t.idx].selected = true
	}
	return true
}

// updtRolesTree recomputes the tree's root priority vector, root port
// and the selected role of every port, 802.1Q 13.29.
func (t *tree) updtRolesTree() {
	br := t.bridge
	isCIST := t.mstid == protocol.CIST

	best := t.bridgePriority
	bestTimes := t.bridgeTimes
	var rootPtp *perTreePort

	for _, p := range br.ports {
		ptp := p.trees[t.idx]
		if !p.enabled() || ptp.infoIs != protocol.InfoReceived {
			continue
		}
		// Information this bridge transmitted and got reflected back
		// never forms a root path.
		if ptp.portPriority.DesignatedBridgeID == t.bridgeID {
			continue
		}
		if p.config.RestrictedRole {
			continue
		}
		rootPath := ptp.rootPathPriority()
		switch rootPath.Compare(&best) {
		case protocol.Better:
			best = rootPath
			bestTimes = ptp.rootPathTimes()
			rootPtp = ptp
		case protocol.Same:
			if rootPtp != nil && ptp.portID < rootPtp.portID {
				rootPtp = ptp
			}
		}
	}

	t.rootPriority = best
	t.rootTimes = bestTimes
	if rootPtp != nil {
		t.rootPortID = rootPtp.portID
	} else {
		t.rootPortID = 0
	}

	for _, p := range br.ports {
		ptp := p.trees[t.idx]

		ptp.designatedPriority = protocol.PriorityVector{
			RootID:             t.rootPriority.RootID,
			ExtRootPathCost:    t.rootPriority.ExtRootPathCost,
			RegionalRootID:     t.rootPriority.RegionalRootID,
			IntRootPathCost:    t.rootPriority.IntRootPathCost,
			DesignatedBridgeID: t.bridgeID,
			DesignatedPortID:   ptp.portID,
		}
		ptp.designatedTimes = t.rootTimes
		ptp.designatedTimes.HelloTime = br.config.HelloTime

		prevRole := ptp.selectedRole

		switch {
		case !p.enabled() || ptp.infoIs == protocol.InfoDisabled:
			ptp.selectedRole = protocol.RoleDisabled
			ptp.updtInfo = false

		case !isCIST && ptp.onBoundary():
			// MSTI role on a region boundary follows the CIST.
			cist := ptp.cist()
			switch cist.selectedRole {
			case protocol.RoleRoot, protocol.RoleAlternate:
				ptp.selectedRole = protocol.RoleMaster
			default:
				ptp.selectedRole = cist.selectedRole
			}
			ptp.updtInfo = ptp.portPriority != ptp.designatedPriority ||
				!ptp.portTimes.Equal(ptp.designatedTimes)

		case ptp.infoIs == protocol.InfoAged:
			ptp.selectedRole = protocol.RoleDesignated
			ptp.updtInfo = true

		case ptp.infoIs == protocol.InfoMine:
			ptp.selectedRole = protocol.RoleDesignated
			if ptp.portPriority != ptp.designatedPriority ||
				!ptp.portTimes.Equal(ptp.designatedTimes) {
				ptp.updtInfo = true
			}

		default: // InfoReceived
			switch {
			case ptp == rootPtp:
				ptp.selectedRole = protocol.RoleRoot
				ptp.updtInfo = false
			case ptp.designatedPriority.BetterOrSame(&ptp.portPriority):
				// We would win this LAN: take it over.
				ptp.selectedRole = protocol.RoleDesignated
				ptp.updtInfo = true
			case ptp.portPriority.DesignatedBridgeID == t.bridgeID:
				ptp.selectedRole = protocol.RoleBackup
				ptp.updtInfo = false
			default:
				ptp.selectedRole = protocol.RoleAlternate
				ptp.updtInfo = false
			}
		}

		if p.config.RestrictedRole && ptp.selectedRole == protocol.RoleRoot {
			ptp.selectedRole = protocol.RoleAlternate
		}
		if ptp.selectedRole != prevRole {
			ptp.setNewInfo()
		}
	}
}

// rootPathPriority is the port's received vector with the path cost
// of reaching it added: external cost outside the region (resetting
// the internal components at the boundary), internal cost inside.
func (ptp *perTreePort) rootPathPriority() protocol.PriorityVector {
	v := ptp.portPriority
	if ptp.isCIST() && !ptp.port.infoInternal {
		v.ExtRootPathCost += ptp.port.extPathCost
		v.RegionalRootID = ptp.tree.bridgeID
		v.IntRootPathCost = 0
	} else {
		v.IntRootPathCost += ptp.intPathCost
	}
	return v
}

// rootPathTimes derives the times the bridge would advertise when
// rooted through this port: message age grows crossing a LAN, the
// hop budget shrinks crossing a region-internal bridge.
func (ptp *perTreePort) rootPathTimes() protocol.Times {
	times := ptp.portTimes
	if ptp.isCIST() && !ptp.port.infoInternal {
		if times.MessageAge < 255 {
			times.MessageAge++
		}
		times.RemainingHops = ptp.port.bridge.config.MaxHops
	} else if times.RemainingHops > 0 {
		times.RemainingHops--
	}
	return times
}
