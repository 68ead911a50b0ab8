//go:build linux
// +build linux

package driver

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"

	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// LinuxDriver pushes port states through sysfs bridge-port nodes the
// way mstpd's Linux backend does, resolving interface names through
// rtnetlink. MSTI states need per-VLAN state support in the kernel;
// without it only the CIST state reaches the kernel and the
// per-instance pushes are recorded as a capability gap.
type LinuxDriver struct {
	log *logrus.Logger

	// OnFlushDone is invoked after a flush completed; the daemon
	// converts it into a core event. Never called concurrently with
	// itself.
	OnFlushDone func(ifindex int, mstid protocol.MSTID)

	mu           sync.Mutex
	names        map[int]string
	perVLANState bool
	gapLogged    bool
}

// NewLinuxDriver probes kernel capabilities and returns the driver.
func NewLinuxDriver(log *logrus.Logger) *LinuxDriver {
	d := &LinuxDriver{
		log:   log,
		names: make(map[int]string),
	}
	d.perVLANState = probePerVLANState()
	if !d.perVLANState {
		log.Info("kernel lacks per-VLAN state support, MSTI states stay in userspace")
	}
	return d
}

// probePerVLANState checks whether the kernel exposes the per-VLAN
// bridge database needed to push MSTI states.
func probePerVLANState() bool {
	// RTM_GETVLAN support arrived with the vlan tunnel info rework;
	// probing the bridge vlan database is the cheapest discriminator.
	_, err := netlink.BridgeVlanList()
	return err == nil
}

// PerVLANState reports the probed capability.
func (d *LinuxDriver) PerVLANState() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.perVLANState
}

// nameOf resolves and caches the interface name of an ifindex.
func (d *LinuxDriver) nameOf(ifindex int) (string, error) {
	d.mu.Lock()
	if name, ok := d.names[ifindex]; ok {
		d.mu.Unlock()
		return name, nil
	}
	d.mu.Unlock()

	link, err := netlink.LinkByIndex(ifindex)
	if err != nil {
		return "", fmt.Errorf("%w: %d: %v", ErrUnknownIfindex, ifindex, err)
	}
	name := link.Attrs().Name

	d.mu.Lock()
	d.names[ifindex] = name
	d.mu.Unlock()
	return name, nil
}

// Forget drops the cached name of an interface that went away.
func (d *LinuxDriver) Forget(ifindex int) {
	d.mu.Lock()
	delete(d.names, ifindex)
	d.mu.Unlock()
}

// kernelState maps a protocol port state onto the kernel encoding.
func kernelState(s protocol.PortState) int {
	switch s {
	case protocol.StateLearning:
		return brStateLearning
	case protocol.StateForwarding:
		return brStateForwarding
	}
	return brStateBlocking
}

// SetPortState pushes one (port, tree) forwarding state. Failures are
// logged; the core treats the pushed state as effective regardless.
func (d *LinuxDriver) SetPortState(ifindex int, mstid protocol.MSTID, state protocol.PortState) protocol.PortState {
	if mstid != protocol.CIST && !d.PerVLANState() {
		d.mu.Lock()
		if !d.gapLogged {
			d.gapLogged = true
			d.log.Warn("dropping MSTI state pushes, kernel has no per-VLAN state")
		}
		d.mu.Unlock()
		return state
	}
	name, err := d.nameOf(ifindex)
	if err != nil {
		d.log.WithError(err).Warn("set_port_state")
		return state
	}
	path := fmt.Sprintf("/sys/class/net/%s/brport/state", name)
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d", kernelState(state))), 0); err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{
			"port": name, "mstid": mstid, "state": state,
		}).Warn("set_port_state failed")
	}
	return state
}

// FlushFIDs flushes the FDB entries learned on the port. The sysfs
// flush is synchronous, so completion is reported right away.
func (d *LinuxDriver) FlushFIDs(ifindex int, mstid protocol.MSTID) {
	name, err := d.nameOf(ifindex)
	if err != nil {
		d.log.WithError(err).Warn("flush_fids")
	} else {
		path := fmt.Sprintf("/sys/class/net/%s/brport/flush", name)
		if err := os.WriteFile(path, []byte("1"), 0); err != nil {
			d.log.WithError(err).WithField("port", name).Warn("fdb flush failed")
		}
	}
	if d.OnFlushDone != nil {
		d.OnFlushDone(ifindex, mstid)
	}
}

// SetAgeingTime pushes the bridge ageing time; the kernel takes
// centiseconds.
func (d *LinuxDriver) SetAgeingTime(ifindex int, seconds uint32) uint32 {
	name, err := d.nameOf(ifindex)
	if err != nil {
		d.log.WithError(err).Warn("set_ageing_time")
		return seconds
	}
	path := fmt.Sprintf("/sys/class/net/%s/bridge/ageing_time", name)
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d", seconds*100)), 0); err != nil {
		d.log.WithError(err).WithField("bridge", name).Warn("set ageing time failed")
	}
	return seconds
}

// CreateMSTI and DeleteMSTI install nothing in the kernel and always
// report success. No VLAN-to-instance binding is pushed to the kernel,
// with or without per-VLAN state support.
func (d *LinuxDriver) CreateMSTI(bridgeIfindex int, mstid protocol.MSTID) bool {
	return true
}

func (d *LinuxDriver) DeleteMSTI(bridgeIfindex int, mstid protocol.MSTID) bool {
	return true
}
