package mstp

import (
	"net"

	"github.com/sirupsen/logrus"

	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// Manager owns every bridge the daemon manages. Like the bridges it
// is confined to the single core goroutine; the event loop is the
// only caller.
type Manager struct {
	bridges map[int]*Bridge // by bridge ifindex
	ports   map[int]*Bridge // port ifindex -> owning bridge

	driver Driver
	tx     Transmitter
	log    *logrus.Logger
}

// NewManager creates an empty bridge table.
func NewManager(driver Driver, tx Transmitter, log *logrus.Logger) *Manager {
	return &Manager{
		bridges: make(map[int]*Bridge),
		ports:   make(map[int]*Bridge),
		driver:  driver,
		tx:      tx,
		log:     log,
	}
}

// AddBridge starts managing a bridge interface.
func (m *Manager) AddBridge(name string, ifindex int, mac net.HardwareAddr) (*Bridge, error) {
	if _, ok := m.bridges[ifindex]; ok {
		return nil, ErrBridgeExists
	}
	br := NewBridge(name, ifindex, mac, m.driver, m.tx, m.log)
	m.bridges[ifindex] = br
	m.log.WithField("bridge", name).Info("bridge added")
	return br, nil
}

// DelBridge stops managing a bridge, driving all its ports to
// Disabled first.
func (m *Manager) DelBridge(ifindex int) error {
	br, ok := m.bridges[ifindex]
	if !ok {
		return ErrNoSuchBridge
	}
	for _, pif := range br.PortIfindexes() {
		br.RemovePort(pif)
		delete(m.ports, pif)
	}
	delete(m.bridges, ifindex)
	m.log.WithField("bridge", br.name).Info("bridge deleted")
	return nil
}

// Bridge looks a managed bridge up by ifindex.
func (m *Manager) Bridge(ifindex int) (*Bridge, error) {
	br, ok := m.bridges[ifindex]
	if !ok {
		return nil, ErrNoSuchBridge
	}
	return br, nil
}

// Bridges returns every managed bridge.
func (m *Manager) Bridges() []*Bridge {
	out := make([]*Bridge, 0, len(m.bridges))
	for _, br := range m.bridges {
		out = append(out, br)
	}
	return out
}

// BridgeByName looks a managed bridge up by interface name.
func (m *Manager) BridgeByName(name string) (*Bridge, error) {
	for _, br := range m.bridges {
		if br.name == name {
			return br, nil
		}
	}
	return nil, ErrNoSuchBridge
}

// AttachPort records a port enslaved to a managed bridge.
func (m *Manager) AttachPort(bridgeIfindex, portIfindex int, name string, mac net.HardwareAddr) error {
	br, ok := m.bridges[bridgeIfindex]
	if !ok {
		return ErrNoSuchBridge
	}
	if err := br.AddPort(portIfindex, name, mac); err != nil {
		return err
	}
	m.ports[portIfindex] = br
	return nil
}

// DetachPort removes a port that was unenslaved or deleted.
func (m *Manager) DetachPort(portIfindex int) error {
	br, ok := m.ports[portIfindex]
	if !ok {
		return ErrNoSuchPort
	}
	delete(m.ports, portIfindex)
	return br.RemovePort(portIfindex)
}

// PortBridge returns the bridge owning a port ifindex.
func (m *Manager) PortBridge(portIfindex int) (*Bridge, error) {
	br, ok := m.ports[portIfindex]
	if !ok {
		return nil, ErrNoSuchPort
	}
	return br, nil
}

// HandleBPDU routes a received frame to the owning bridge. Frames on
// unmanaged ports are silently dropped.
func (m *Manager) HandleBPDU(portIfindex int, payload []byte) {
	br, ok := m.ports[portIfindex]
	if !ok {
		return
	}
	if err := br.ProcessBPDU(portIfindex, payload); err != nil {
		m.log.WithError(err).Debug("bpdu dropped")
	}
}

// HandlePortEvent routes a kernel link update to the owning bridge.
func (m *Manager) HandlePortEvent(portIfindex int, up bool, speedMbps uint32, duplex bool) {
	br, ok := m.ports[portIfindex]
	if !ok {
		return
	}
	br.PortEvent(portIfindex, up, speedMbps, duplex)
}

// HandleFlushDone routes an FDB flush completion.
func (m *Manager) HandleFlushDone(portIfindex int, mstid protocol.MSTID) {
	br, ok := m.ports[portIfindex]
	if !ok {
		return
	}
	br.FIDsFlushed(portIfindex, mstid)
}

// Tick applies the 1 Hz tick to every managed bridge.
func (m *Manager) Tick() {
	for _, br := range m.bridges {
		br.Tick()
	}
}
