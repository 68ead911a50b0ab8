package mstp

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/thelastdreamer/GoMSTP/pkg/bpdu"
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// Bridge is the aggregator for one managed Linux bridge: the table of
// trees and ports, the MST configuration identifier, and the entry
// points external events are applied through. All methods must be
// called from the single event-loop goroutine that owns the core.
type Bridge struct {
	name    string
	ifindex int
	macAddr net.HardwareAddr

	config BridgeConfig

	mstConfigID bpdu.MSTConfigID

	// vid2fid maps VLANs onto filtering identifiers, fid2mstid maps
	// those onto tree instances. The configuration digest is a pure
	// function of their composition and is recomputed on any
	// mutation before the next BPDU leaves the bridge.
	vid2fid   [protocol.MaxVID + 2]uint16
	fid2mstid [protocol.MaxFID + 1]uint16

	// trees[0] is always the CIST
	trees     []*tree
	treeIndex map[protocol.MSTID]int

	ports     []*port
	portIndex map[int]int // ifindex -> position in ports

	nextPortNumber uint16

	driver Driver
	tx     Transmitter
	log    *logrus.Entry
}

// NewBridge creates a bridge object with the CIST instantiated and
// the MST configuration identifier defaulted to the bridge MAC as the
// region name.
func NewBridge(name string, ifindex int, mac net.HardwareAddr, driver Driver, tx Transmitter, log *logrus.Logger) *Bridge {
	br := &Bridge{
		name:           name,
		ifindex:        ifindex,
		macAddr:        append(net.HardwareAddr(nil), mac...),
		config:         DefaultBridgeConfig(),
		treeIndex:      make(map[protocol.MSTID]int),
		portIndex:      make(map[int]int),
		nextPortNumber: 1,
		driver:         driver,
		tx:             tx,
		log:            log.WithField("bridge", name),
	}
	br.trees = []*tree{newTree(br, protocol.CIST, 0)}
	br.treeIndex[protocol.CIST] = 0
	br.mstConfigID.SetName(mac.String())
	br.recomputeDigest()
	return br
}

// Name returns the bridge interface name.
func (br *Bridge) Name() string { return br.name }

// Ifindex returns the bridge interface index.
func (br *Bridge) Ifindex() int { return br.ifindex }

// Config returns the current bridge configuration.
func (br *Bridge) Config() BridgeConfig { return br.config }

// SetConfig applies a validated bridge configuration. Invalid values
// reject the whole update; a no-op update produces no driver calls
// and no machine activity.
func (br *Bridge) SetConfig(cfg BridgeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg == br.config {
		return nil
	}
	ageingChanged := cfg.AgeingTime != br.config.AgeingTime
	versionChanged := cfg.ForceProtocolVersion != br.config.ForceProtocolVersion
	br.config = cfg
	for _, t := range br.trees {
		t.updateBridgePriority()
	}
	if ageingChanged {
		br.config.AgeingTime = br.driver.SetAgeingTime(br.ifindex, cfg.AgeingTime)
	}
	if versionChanged {
		// Re-run migration on every port.
		for _, p := range br.ports {
			p.mcheck = true
		}
	}
	br.reselectAll()
	br.runStateMachines()
	return nil
}

// MSTConfigID returns the current MST configuration identifier.
func (br *Bridge) MSTConfigID() bpdu.MSTConfigID { return br.mstConfigID }

// SetMSTConfigID replaces the region name and revision. The digest is
// a function of the VID mappings only and is preserved.
func (br *Bridge) SetMSTConfigID(name string, revision uint16) {
	br.mstConfigID.SetName(name)
	br.mstConfigID.Revision = revision
	br.reselectAll()
	br.runStateMachines()
}

// recomputeDigest refreshes the configuration digest from the current
// vid2fid and fid2mstid composition.
func (br *Bridge) recomputeDigest() {
	var vid2mstid [4096]uint16
	for vid := 1; vid <= protocol.MaxVID; vid++ {
		vid2mstid[vid] = br.fid2mstid[br.vid2fid[vid]]
	}
	br.mstConfigID.Digest = bpdu.ComputeDigest(&vid2mstid)
}

// VID2FID returns a copy of the VLAN-to-FID table.
func (br *Bridge) VID2FID() [protocol.MaxVID + 2]uint16 { return br.vid2fid }

// FID2MSTID returns a copy of the FID-to-MSTID table.
func (br *Bridge) FID2MSTID() [protocol.MaxFID + 1]uint16 { return br.fid2mstid }

// SetVID2FID replaces the VLAN-to-FID table and recomputes the
// configuration digest.
func (br *Bridge) SetVID2FID(table [protocol.MaxVID + 2]uint16) error {
	for vid, fid := range table {
		if fid > protocol.MaxFID {
			return &ConfigError{Field: fmt.Sprintf("vid2fid[%d]", vid), Value: int(fid), Min: 0, Max: protocol.MaxFID}
		}
	}
	br.vid2fid = table
	br.recomputeDigest()
	br.reselectAll()
	br.runStateMachines()
	return nil
}

// SetFID2MSTID replaces the FID-to-MSTID table and recomputes the
// configuration digest. Mapping a FID onto an MSTID that is not
// instantiated is allowed; the VLANs follow the CIST until the
// instance exists.
func (br *Bridge) SetFID2MSTID(table [protocol.MaxFID + 1]uint16) error {
	for fid, mstid := range table {
		if mstid > uint16(protocol.MaxMSTID) {
			return &ConfigError{Field: fmt.Sprintf("fid2mstid[%d]", fid), Value: int(mstid), Min: 0, Max: int(protocol.MaxMSTID)}
		}
	}
	br.fid2mstid = table
	br.recomputeDigest()
	br.reselectAll()
	br.runStateMachines()
	return nil
}

// CreateMSTI instantiates a new spanning tree instance, allocating
// per-tree state on every port initialized to Disabled/Discarding.
func (br *Bridge) CreateMSTI(mstid protocol.MSTID) error {
	if mstid == protocol.CIST || !mstid.Valid() {
		return ErrInvalidMSTID
	}
	if _, ok := br.treeIndex[mstid]; ok {
		return ErrTreeExists
	}
	if len(br.trees) >= MaxMSTInstances+1 {
		return ErrTooManyTrees
	}
	idx := len(br.trees)
	t := newTree(br, mstid, idx)
	br.trees = append(br.trees, t)
	br.treeIndex[mstid] = idx
	for _, p := range br.ports {
		ptp := newPerTreePort(p, t)
		p.trees = append(p.trees, ptp)
		initTreePort(ptp)
	}
	if !br.driver.CreateMSTI(br.ifindex, mstid) {
		br.log.WithField("mstid", mstid).Warn("driver rejected msti create")
	}
	br.log.WithField("mstid", mstid).Info("msti created")
	br.reselectAll()
	br.runStateMachines()
	return nil
}

// DeleteMSTI destroys a spanning tree instance: every per-tree port
// is driven to Disabled/Discarding, pushed to the driver, then torn
// down.
func (br *Bridge) DeleteMSTI(mstid protocol.MSTID) error {
	if mstid == protocol.CIST {
		return ErrInvalidMSTID
	}
	idx, ok := br.treeIndex[mstid]
	if !ok {
		return ErrNoSuchTree
	}
	for _, p := range br.ports {
		ptp := p.trees[idx]
		if ptp.state != protocol.StateDiscarding {
			br.driver.SetPortState(p.ifindex, mstid, protocol.StateDiscarding)
		}
		p.trees = append(p.trees[:idx], p.trees[idx+1:]...)
	}
	br.trees = append(br.trees[:idx], br.trees[idx+1:]...)
	delete(br.treeIndex, mstid)
	for i := idx; i < len(br.trees); i++ {
		br.trees[i].idx = i
	}
	if !br.driver.DeleteMSTI(br.ifindex, mstid) {
		br.log.WithField("mstid", mstid).Warn("driver rejected msti delete")
	}
	br.log.WithField("mstid", mstid).Info("msti deleted")
	br.reselectAll()
	br.runStateMachines()
	return nil
}

// MSTIDs returns the instantiated tree identifiers, CIST first.
func (br *Bridge) MSTIDs() []protocol.MSTID {
	out := make([]protocol.MSTID, len(br.trees))
	for i, t := range br.trees {
		out[i] = t.mstid
	}
	return out
}

// AddPort attaches a kernel port that was enslaved to this bridge.
func (br *Bridge) AddPort(ifindex int, name string, mac net.HardwareAddr) error {
	if _, ok := br.portIndex[ifindex]; ok {
		return fmt.Errorf("port %s: already attached", name)
	}
	p := &port{
		bridge:     br,
		ifindex:    ifindex,
		name:       name,
		macAddr:    append(net.HardwareAddr(nil), mac...),
		portNumber: br.nextPortNumber,
		adminUp:    true,
		config:     DefaultPortConfig(),
	}
	br.nextPortNumber++
	for _, t := range br.trees {
		p.trees = append(p.trees, newPerTreePort(p, t))
	}
	br.portIndex[ifindex] = len(br.ports)
	br.ports = append(br.ports, p)
	p.initPort()
	br.log.WithField("port", name).Info("port attached")
	br.reselectAll()
	br.runStateMachines()
	return nil
}

// RemovePort detaches a port that was unenslaved or deleted.
func (br *Bridge) RemovePort(ifindex int) error {
	idx, ok := br.portIndex[ifindex]
	if !ok {
		return ErrNoSuchPort
	}
	p := br.ports[idx]
	for _, ptp := range p.trees {
		if ptp.state != protocol.StateDiscarding {
			br.driver.SetPortState(p.ifindex, ptp.tree.mstid, protocol.StateDiscarding)
		}
	}
	br.ports = append(br.ports[:idx], br.ports[idx+1:]...)
	delete(br.portIndex, ifindex)
	for i := idx; i < len(br.ports); i++ {
		br.portIndex[br.ports[i].ifindex] = i
	}
	br.log.WithField("port", p.name).Info("port detached")
	br.reselectAll()
	br.runStateMachines()
	return nil
}

// portByIfindex looks a port up; nil when unknown.
func (br *Bridge) portByIfindex(ifindex int) *port {
	idx, ok := br.portIndex[ifindex]
	if !ok {
		return nil
	}
	return br.ports[idx]
}

// treeByMSTID looks a tree up; nil when not instantiated.
func (br *Bridge) treeByMSTID(mstid protocol.MSTID) *tree {
	idx, ok := br.treeIndex[mstid]
	if !ok {
		return nil
	}
	return br.trees[idx]
}

// reselectAll marks every per-tree port for role recomputation.
func (br *Bridge) reselectAll() {
	for _, p := range br.ports {
		for _, ptp := range p.trees {
			ptp.reselect = true
			ptp.selected = false
		}
	}
}

// PortEvent applies a kernel link update for one port: carrier state
// and speed. A disabled port drops to Disabled/Discarding on every
// tree.
func (br *Bridge) PortEvent(ifindex int, up bool, speedMbps uint32, duplex bool) error {
	p := br.portByIfindex(ifindex)
	if p == nil {
		return ErrNoSuchPort
	}
	wasEnabled := p.enabled()
	p.operUp = up
	p.speedMbps = speedMbps
	p.duplex = duplex
	p.updateOperFacts()
	if p.enabled() && !wasEnabled {
		p.initPort()
	}
	br.log.WithFields(logrus.Fields{
		"port": p.name, "up": up, "speed": speedMbps,
	}).Debug("port event")
	br.reselectAll()
	br.runStateMachines()
	return nil
}

// ProcessBPDU applies one received BPDU payload to the port it
// arrived on. Malformed payloads and frames on filtered ports are
// dropped and counted; a guarded port is error-disabled.
func (br *Bridge) ProcessBPDU(ifindex int, payload []byte) error {
	p := br.portByIfindex(ifindex)
	if p == nil {
		return ErrNoSuchPort
	}
	if !p.enabled() {
		// Frames on a disabled port are ignored entirely.
		return nil
	}
	if p.config.BPDUFilter {
		p.counters.NumRxBPDUFiltered++
		return nil
	}
	if p.config.BPDUGuard {
		p.bpduGuardError = true
		br.log.WithField("port", p.name).Warn("bpdu guard tripped, error-disabling port")
		br.reselectAll()
		br.runStateMachines()
		return nil
	}
	decoded, err := bpdu.Decode(payload)
	if err != nil {
		p.counters.NumRxBPDUFiltered++
		br.log.WithField("port", p.name).WithError(err).Debug("malformed bpdu dropped")
		return nil
	}
	if decoded.IsTCN() {
		p.counters.NumRxTCN++
	} else {
		p.counters.NumRxBPDU++
	}
	p.rcvdBpdu = true
	p.rxBpdu = decoded
	br.runStateMachines()
	return nil
}

// Tick applies the 1 Hz tick: every running timer decrements once,
// then the machines are driven back to quiescence.
func (br *Bridge) Tick() {
	for _, p := range br.ports {
		p.tickTimers()
	}
	for _, t := range br.trees {
		t.timeSinceTC++
	}
	br.runStateMachines()
}

// PortMcheck forces protocol re-migration on one port.
func (br *Bridge) PortMcheck(ifindex int) error {
	p := br.portByIfindex(ifindex)
	if p == nil {
		return ErrNoSuchPort
	}
	p.mcheck = true
	br.runStateMachines()
	return nil
}

// ClearBPDUGuardError re-enables a port that was error-disabled by
// BPDU guard.
func (br *Bridge) ClearBPDUGuardError(ifindex int) error {
	p := br.portByIfindex(ifindex)
	if p == nil {
		return ErrNoSuchPort
	}
	if !p.bpduGuardError {
		return nil
	}
	p.bpduGuardError = false
	if p.enabled() {
		p.initPort()
	}
	br.reselectAll()
	br.runStateMachines()
	return nil
}

// FIDsFlushed signals completion of an asynchronous FDB flush
// requested through the driver.
func (br *Bridge) FIDsFlushed(ifindex int, mstid protocol.MSTID) {
	p := br.portByIfindex(ifindex)
	if p == nil {
		return
	}
	t := br.treeByMSTID(mstid)
	if t == nil {
		return
	}
	p.trees[t.idx].fdbFlush = false
	br.runStateMachines()
}

// SetPortConfig applies the per-port administrative configuration.
func (br *Bridge) SetPortConfig(ifindex int, cfg PortConfig) error {
	p := br.portByIfindex(ifindex)
	if p == nil {
		return ErrNoSuchPort
	}
	if cfg == p.config {
		return nil
	}
	p.config = cfg
	p.updateOperFacts()
	if cfg.AdminEdge {
		p.operEdge = true
		p.bdm = bdmEdge
	} else if !cfg.AutoEdge {
		p.operEdge = false
		p.bdm = bdmNotEdge
	}
	br.reselectAll()
	br.runStateMachines()
	return nil
}

// PortConfigOf returns the administrative configuration of a port.
func (br *Bridge) PortConfigOf(ifindex int) (PortConfig, error) {
	p := br.portByIfindex(ifindex)
	if p == nil {
		return PortConfig{}, ErrNoSuchPort
	}
	return p.config, nil
}

// SetTreePortConfig applies per-(port, tree) priority and internal
// path cost.
func (br *Bridge) SetTreePortConfig(ifindex int, mstid protocol.MSTID, cfg TreePortConfig) error {
	p := br.portByIfindex(ifindex)
	if p == nil {
		return ErrNoSuchPort
	}
	t := br.treeByMSTID(mstid)
	if t == nil {
		return ErrNoSuchTree
	}
	if cfg.Priority&0x0f != 0 || cfg.Priority > 240 {
		return &ConfigError{Field: "treeportprio", Value: int(cfg.Priority), Min: 0, Max: 240}
	}
	if cfg.AdminIntPathCost > 200000000 {
		return &ConfigError{Field: "treeportcost", Value: int(cfg.AdminIntPathCost), Min: 0, Max: 200000000}
	}
	ptp := p.trees[t.idx]
	ptp.portID = protocol.MakePortID(cfg.Priority, p.portNumber)
	ptp.adminIntPathCost = cfg.AdminIntPathCost
	ptp.updatePathCost()
	ptp.reselect = true
	ptp.selected = false
	br.runStateMachines()
	return nil
}

// SetTreePriority sets the settable bridge priority of one tree.
func (br *Bridge) SetTreePriority(mstid protocol.MSTID, priority uint16) error {
	t := br.treeByMSTID(mstid)
	if t == nil {
		return ErrNoSuchTree
	}
	if priority&0x0fff != 0 {
		return &ConfigError{Field: "treeprio", Value: int(priority), Min: 0, Max: 0xf000}
	}
	t.setPriority(priority)
	br.runStateMachines()
	return nil
}
