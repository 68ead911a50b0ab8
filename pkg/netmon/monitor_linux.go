//go:build linux
// +build linux

package netmon

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// Monitor subscribes to rtnetlink link updates and publishes Events.
type Monitor struct {
	log    *logrus.Logger
	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	bridges map[int]string // known bridge ifindexes
	ports   map[int]int    // port ifindex -> master ifindex
}

// NewMonitor starts watching the kernel link table. Existing bridges
// and enslaved ports are replayed as synthetic events so the daemon
// converges from any starting state.
func NewMonitor(log *logrus.Logger) (*Monitor, error) {
	m := &Monitor{
		log:     log,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		bridges: make(map[int]string),
		ports:   make(map[int]int),
	}

	updates := make(chan netlink.LinkUpdate, 64)
	if err := netlink.LinkSubscribe(updates, m.done); err != nil {
		return nil, fmt.Errorf("link subscribe: %w", err)
	}

	links, err := netlink.LinkList()
	if err != nil {
		close(m.done)
		return nil, fmt.Errorf("link list: %w", err)
	}
	for _, link := range links {
		m.classify(link)
	}

	m.wg.Add(1)
	go m.loop(updates)
	return m, nil
}

// Events is the channel link changes arrive on.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

func (m *Monitor) loop(updates <-chan netlink.LinkUpdate) {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Header.Type == unix.RTM_DELLINK {
				m.removed(int(u.Index))
				continue
			}
			m.classify(u.Link)
		}
	}
}

// classify inspects one link and emits the event it implies.
func (m *Monitor) classify(link netlink.Link) {
	attrs := link.Attrs()
	ifindex := attrs.Index

	if _, isBridge := link.(*netlink.Bridge); isBridge {
		m.mu.Lock()
		_, known := m.bridges[ifindex]
		m.bridges[ifindex] = attrs.Name
		m.mu.Unlock()
		if !known {
			m.emit(Event{
				Kind:    BridgeAdded,
				Ifindex: ifindex,
				Name:    attrs.Name,
				MAC:     attrs.HardwareAddr,
			})
		}
		return
	}

	master := attrs.MasterIndex
	m.mu.Lock()
	prevMaster, wasPort := m.ports[ifindex]
	if master != 0 {
		m.ports[ifindex] = master
	} else {
		delete(m.ports, ifindex)
	}
	m.mu.Unlock()

	up := attrs.OperState == netlink.OperUp ||
		(attrs.OperState == netlink.OperUnknown && attrs.Flags&net.FlagUp != 0)
	speed, duplex := linkSpeed(attrs.Name)

	switch {
	case master != 0 && !wasPort:
		m.emit(Event{
			Kind:          PortAttached,
			Ifindex:       ifindex,
			Name:          attrs.Name,
			MAC:           attrs.HardwareAddr,
			MasterIfindex: master,
			Up:            up,
			SpeedMbps:     speed,
			Duplex:        duplex,
		})
	case master == 0 && wasPort:
		m.emit(Event{
			Kind:          PortDetached,
			Ifindex:       ifindex,
			Name:          attrs.Name,
			MasterIfindex: prevMaster,
		})
	case master != 0:
		m.emit(Event{
			Kind:          PortChanged,
			Ifindex:       ifindex,
			Name:          attrs.Name,
			MasterIfindex: master,
			Up:            up,
			SpeedMbps:     speed,
			Duplex:        duplex,
		})
	}
}

// removed handles RTM_DELLINK for bridges and ports alike.
func (m *Monitor) removed(ifindex int) {
	m.mu.Lock()
	name, isBridge := m.bridges[ifindex]
	delete(m.bridges, ifindex)
	prevMaster, wasPort := m.ports[ifindex]
	delete(m.ports, ifindex)
	m.mu.Unlock()

	if isBridge {
		m.emit(Event{Kind: BridgeRemoved, Ifindex: ifindex, Name: name})
	}
	if wasPort {
		m.emit(Event{Kind: PortDetached, Ifindex: ifindex, MasterIfindex: prevMaster})
	}
}

func (m *Monitor) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.log.WithField("kind", ev.Kind).Warn("link event dropped, queue full")
	}
}

// linkSpeed reads speed and duplex from sysfs; virtual devices
// without a PHY report zero, which selects the default path cost.
func linkSpeed(name string) (uint32, bool) {
	speedRaw, err := os.ReadFile(fmt.Sprintf("/sys/class/net/%s/speed", name))
	var speed uint32
	if err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(string(speedRaw))); err == nil && v > 0 {
			speed = uint32(v)
		}
	}
	duplexRaw, err := os.ReadFile(fmt.Sprintf("/sys/class/net/%s/duplex", name))
	duplex := err == nil && strings.TrimSpace(string(duplexRaw)) == "full"
	return speed, duplex
}

// Close stops the monitor.
func (m *Monitor) Close() {
	close(m.done)
	m.wg.Wait()
}
