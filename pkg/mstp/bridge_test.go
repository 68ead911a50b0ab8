package mstp

import (
	"net"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// testNet wires bridges together with in-memory links. BPDUs sent
// during a quiescence drive are queued and delivered afterwards, the
// way the daemon's event loop serializes events.
type testNet struct {
	t       *testing.T
	bridges []*Bridge
	links   map[linkEnd]linkEnd
	queue   []testFrame
}

type linkEnd struct {
	br      *Bridge
	ifindex int
}

type testFrame struct {
	from    linkEnd
	payload []byte
}

type testTx struct {
	net *testNet
	br  *Bridge
}

func (tx *testTx) SendBPDU(ifindex int, payload []byte) {
	tx.net.queue = append(tx.net.queue, testFrame{
		from:    linkEnd{br: tx.br, ifindex: ifindex},
		payload: append([]byte(nil), payload...),
	})
}

func newTestNet(t *testing.T) *testNet {
	return &testNet{t: t, links: make(map[linkEnd]linkEnd)}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// addBridge creates a bridge backed by a loopback driver.
func (n *testNet) addBridge(name string, ifindex int, mac string) *Bridge {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		n.t.Fatalf("bad mac %q: %v", mac, err)
	}
	tx := &testTx{net: n}
	br := NewBridge(name, ifindex, hw, NewLoopbackDriver(), tx, testLogger())
	tx.br = br
	n.bridges = append(n.bridges, br)
	return br
}

// connect joins one port of each bridge with a full-duplex link.
func (n *testNet) connect(a *Bridge, aIf int, b *Bridge, bIf int) {
	n.links[linkEnd{a, aIf}] = linkEnd{b, bIf}
	n.links[linkEnd{b, bIf}] = linkEnd{a, aIf}
}

// addPort attaches and enables a gigabit full-duplex port.
func (n *testNet) addPort(br *Bridge, ifindex int, name string) {
	if err := br.AddPort(ifindex, name, net.HardwareAddr{0x02, 0, 0, 0, byte(ifindex >> 8), byte(ifindex)}); err != nil {
		n.t.Fatalf("AddPort(%s): %v", name, err)
	}
	if err := br.PortEvent(ifindex, true, 1000, true); err != nil {
		n.t.Fatalf("PortEvent(%s): %v", name, err)
	}
	n.drain()
}

// drain delivers queued BPDUs until the network settles.
func (n *testNet) drain() {
	for i := 0; len(n.queue) > 0; i++ {
		if i > 1000 {
			n.t.Fatal("network did not settle, BPDUs still in flight")
		}
		f := n.queue[0]
		n.queue = n.queue[1:]
		peer, ok := n.links[f.from]
		if !ok {
			continue // unconnected port, frame lost
		}
		if err := peer.br.ProcessBPDU(peer.ifindex, f.payload); err != nil && err != ErrNoSuchPort {
			n.t.Fatalf("ProcessBPDU: %v", err)
		}
	}
}

// tick advances every bridge by one second and settles the network.
func (n *testNet) tick() {
	for _, br := range n.bridges {
		br.Tick()
	}
	n.drain()
}

// checkInvariants asserts the universal quiescence invariants on
// every bridge.
func (n *testNet) checkInvariants() {
	n.t.Helper()
	for _, br := range n.bridges {
		for ti, tr := range br.trees {
			roots := 0
			for _, p := range br.ports {
				ptp := p.trees[ti]
				if ptp.role == protocol.RoleRoot {
					roots++
				}
				if !ptp.selected || ptp.reselect {
					n.t.Errorf("%s port %s tree %d: not settled (selected=%v reselect=%v)",
						br.name, p.name, tr.mstid, ptp.selected, ptp.reselect)
				}
				if ptp.state == protocol.StateForwarding &&
					ptp.role != protocol.RoleRoot && ptp.role != protocol.RoleDesignated && ptp.role != protocol.RoleMaster {
					n.t.Errorf("%s port %s tree %d: forwarding with role %v", br.name, p.name, tr.mstid, ptp.role)
				}
				if (ptp.role == protocol.RoleDisabled) != !p.enabled() {
					n.t.Errorf("%s port %s tree %d: role %v with enabled=%v", br.name, p.name, tr.mstid, ptp.role, p.enabled())
				}
			}
			if roots > 1 {
				n.t.Errorf("%s tree %d: %d root ports", br.name, tr.mstid, roots)
			}
		}
	}
}

// twoBridges builds the canonical topology: A 8000.00:11:22:33:44:55
// and B 9000.00:aa:bb:cc:dd:ee joined by one link on port 1 of each.
func twoBridges(t *testing.T) (*testNet, *Bridge, *Bridge) {
	n := newTestNet(t)
	a := n.addBridge("br0", 10, "00:11:22:33:44:55")
	b := n.addBridge("br1", 20, "00:aa:bb:cc:dd:ee")
	if err := b.SetTreePriority(protocol.CIST, 0x9000); err != nil {
		t.Fatalf("SetTreePriority: %v", err)
	}
	n.connect(a, 11, b, 21)
	n.addPort(a, 11, "a-p1")
	n.addPort(b, 21, "b-p1")
	// A couple of hello intervals to let proposals and agreements
	// settle.
	for i := 0; i < 4; i++ {
		n.tick()
	}
	return n, a, b
}

func TestTwoBridgeRootElection(t *testing.T) {
	n, a, b := twoBridges(t)
	n.checkInvariants()

	aStatus := a.CISTStatus()
	bStatus := b.CISTStatus()

	if !aStatus.IsRoot {
		t.Errorf("bridge A should be CIST root, designated root = %s", aStatus.DesignatedRoot)
	}
	if bStatus.IsRoot {
		t.Error("bridge B should not be CIST root")
	}
	if bStatus.DesignatedRoot != "8000.00:11:22:33:44:55" {
		t.Errorf("B sees root %s, want 8000.00:11:22:33:44:55", bStatus.DesignatedRoot)
	}

	aPort, _ := a.PortStatusOf(11)
	bPort, _ := b.PortStatusOf(21)
	if aPort.Role != protocol.RoleDesignated || aPort.State != protocol.StateForwarding {
		t.Errorf("A.p1 = %v/%v, want Designated/forwarding", aPort.Role, aPort.State)
	}
	if bPort.Role != protocol.RoleRoot || bPort.State != protocol.StateForwarding {
		t.Errorf("B.p1 = %v/%v, want Root/forwarding", bPort.Role, bPort.State)
	}

	if aStatus.TopologyChangeCount < 1 {
		t.Error("A should have detected at least one topology change")
	}
	if bStatus.TopologyChangeCount < 1 {
		t.Error("B should have detected at least one topology change")
	}
}

func TestEdgePortFastForward(t *testing.T) {
	n := newTestNet(t)
	a := n.addBridge("br0", 10, "00:11:22:33:44:55")

	if err := a.AddPort(12, "a-p2", net.HardwareAddr{2, 0, 0, 0, 0, 12}); err != nil {
		t.Fatalf("AddPort: %v", err)
	}
	cfg, _ := a.PortConfigOf(12)
	cfg.AdminEdge = true
	if err := a.SetPortConfig(12, cfg); err != nil {
		t.Fatalf("SetPortConfig: %v", err)
	}
	drv := a.driver.(*LoopbackDriver)
	drv.Reset()

	if err := a.PortEvent(12, true, 1000, true); err != nil {
		t.Fatalf("PortEvent: %v", err)
	}
	n.tick()

	st, _ := a.PortStatusOf(12)
	if st.State != protocol.StateForwarding {
		t.Fatalf("edge port state = %v, want forwarding after one tick", st.State)
	}
	// The kernel must never have seen the intermediate Learning
	// state: pushes are coalesced per quiescence drive.
	for _, c := range drv.Calls() {
		if c.Op == "set_port_state" && c.Ifindex == 12 && c.State == protocol.StateLearning {
			t.Error("edge port traversed Learning on its way to Forwarding")
		}
	}
}

func TestRestrictedRole(t *testing.T) {
	n := newTestNet(t)
	a := n.addBridge("br0", 10, "00:11:22:33:44:55")
	b := n.addBridge("br1", 20, "00:aa:bb:cc:dd:ee")
	b.SetTreePriority(protocol.CIST, 0x9000)
	n.connect(a, 11, b, 21)
	n.addPort(a, 11, "a-p1")

	n.addPort(b, 21, "b-p1")
	cfg, _ := b.PortConfigOf(21)
	cfg.RestrictedRole = true
	if err := b.SetPortConfig(21, cfg); err != nil {
		t.Fatalf("SetPortConfig: %v", err)
	}
	for i := 0; i < 4; i++ {
		n.tick()
	}
	n.checkInvariants()

	st, _ := b.PortStatusOf(21)
	if st.Role != protocol.RoleAlternate {
		t.Errorf("restricted port role = %v, want Alternate", st.Role)
	}
	if st.State != protocol.StateDiscarding {
		t.Errorf("restricted port state = %v, want discarding", st.State)
	}
}

func TestMSTICreateAndDigestAgreement(t *testing.T) {
	n, a, b := twoBridges(t)

	for _, br := range []*Bridge{a, b} {
		br.SetMSTConfigID("region-a", 1)
		if err := br.CreateMSTI(1); err != nil {
			t.Fatalf("CreateMSTI: %v", err)
		}
		var v2f [protocol.MaxVID + 2]uint16
		for vid := 10; vid <= 20; vid++ {
			v2f[vid] = 10
		}
		if err := br.SetVID2FID(v2f); err != nil {
			t.Fatalf("SetVID2FID: %v", err)
		}
		var f2m [protocol.MaxFID + 1]uint16
		f2m[10] = 1
		if err := br.SetFID2MSTID(f2m); err != nil {
			t.Fatalf("SetFID2MSTID: %v", err)
		}
	}
	n.drain()
	for i := 0; i < 4; i++ {
		n.tick()
	}
	n.checkInvariants()

	if a.MSTConfigID() != b.MSTConfigID() {
		t.Fatalf("config identifiers differ:\nA %x\nB %x",
			a.MSTConfigID().Digest, b.MSTConfigID().Digest)
	}

	aTree, err := a.TreePortStatusOf(11, 1)
	if err != nil {
		t.Fatalf("TreePortStatusOf(A): %v", err)
	}
	bTree, err := b.TreePortStatusOf(21, 1)
	if err != nil {
		t.Fatalf("TreePortStatusOf(B): %v", err)
	}
	if aTree.Role != protocol.RoleDesignated {
		t.Errorf("A.p1 msti role = %v, want Designated", aTree.Role)
	}
	if bTree.Role != protocol.RoleRoot {
		t.Errorf("B.p1 msti role = %v, want Root", bTree.Role)
	}
}

func TestBPDUGuardTrip(t *testing.T) {
	n, a, _ := twoBridges(t)

	if err := a.AddPort(13, "a-p3", net.HardwareAddr{2, 0, 0, 0, 0, 13}); err != nil {
		t.Fatalf("AddPort: %v", err)
	}
	cfg, _ := a.PortConfigOf(13)
	cfg.BPDUGuard = true
	if err := a.SetPortConfig(13, cfg); err != nil {
		t.Fatalf("SetPortConfig: %v", err)
	}
	if err := a.PortEvent(13, true, 1000, true); err != nil {
		t.Fatalf("PortEvent: %v", err)
	}
	n.drain()
	n.tick()

	st, _ := a.PortStatusOf(13)
	if st.State != protocol.StateForwarding {
		t.Fatalf("precondition: guarded port should be forwarding, got %v", st.State)
	}
	rxBefore := st.Counters.NumRxBPDU

	// A well-formed RST BPDU trips the guard.
	frame := []byte{0, 0, 2, 0x02}
	frame = append(frame, make([]byte, 32)...)
	if err := a.ProcessBPDU(13, frame); err != nil {
		t.Fatalf("ProcessBPDU: %v", err)
	}
	n.drain()

	st, _ = a.PortStatusOf(13)
	if !st.BPDUGuardError {
		t.Error("bpdu_guard_error not latched")
	}
	if st.Enabled {
		t.Error("port should be error-disabled")
	}
	if st.Role != protocol.RoleDisabled || st.State != protocol.StateDiscarding {
		t.Errorf("port = %v/%v, want Disabled/discarding", st.Role, st.State)
	}
	if st.Counters.NumRxBPDU != rxBefore {
		t.Error("guarded frames must not count as received BPDUs")
	}

	// Frames on the disabled port change nothing.
	a.ProcessBPDU(13, frame)
	n.drain()
	st2, _ := a.PortStatusOf(13)
	if st2.Counters.NumRxBPDU != rxBefore {
		t.Error("num_rx_bpdu changed on a disabled port")
	}
}

func TestLegacyMigration(t *testing.T) {
	n, a, _ := twoBridges(t)

	// A Config BPDU from an inferior legacy bridge on A's port 1.
	legacy := protocol.MakeBridgeID(0xf000, 0, net.HardwareAddr{0, 0xde, 0xad, 0xbe, 0xef, 0})
	configBPDU := make([]byte, 35)
	configBPDU[3] = 0x00
	copy(configBPDU[5:13], legacy[:])
	copy(configBPDU[17:25], legacy[:])
	configBPDU[25], configBPDU[26] = 0x80, 0x01
	configBPDU[29] = 20 // max age, upper byte of 1/256s units
	configBPDU[31] = 2  // hello
	configBPDU[33] = 15 // forward delay

	if err := a.ProcessBPDU(11, configBPDU); err != nil {
		t.Fatalf("ProcessBPDU: %v", err)
	}
	st, _ := a.PortStatusOf(11)
	if st.SendRSTP {
		t.Fatal("sendRSTP should drop after receiving a Config BPDU")
	}

	// The next transmitted BPDU must be a 35-byte Config BPDU.
	n.queue = nil
	var sent []testFrame
	for i := 0; i < 3 && len(sent) == 0; i++ {
		a.Tick()
		for _, f := range n.queue {
			if f.from.ifindex == 11 {
				sent = append(sent, f)
			}
		}
		n.queue = nil
	}
	if len(sent) == 0 {
		t.Fatal("no BPDU transmitted after fallback")
	}
	if len(sent[0].payload) != 35 {
		t.Fatalf("fallback BPDU is %d bytes, want 35 (Config)", len(sent[0].payload))
	}
	n.queue = nil

	// MigrateTime ticks without further STP BPDUs: revert to RSTP.
	for i := 0; i < MigrateTime+1; i++ {
		for _, br := range n.bridges {
			br.Tick()
		}
		n.queue = nil
	}
	st, _ = a.PortStatusOf(11)
	if !st.SendRSTP {
		t.Error("sendRSTP should revert after MigrateTime without STP BPDUs")
	}
}

func TestIdempotentBridgeConfig(t *testing.T) {
	n, a, _ := twoBridges(t)
	_ = n

	cfg := a.Config()
	cfg.HelloTime = 1
	cfg.MaxAge = 6
	cfg.ForwardDelay = 5
	if err := a.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	first := a.CISTStatus()

	drv := a.driver.(*LoopbackDriver)
	drv.Reset()
	if err := a.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig (repeat): %v", err)
	}
	second := a.CISTStatus()

	if first.MaxAge != second.MaxAge || first.HelloTime != second.HelloTime ||
		first.ForwardDelay != second.ForwardDelay || first.BridgeID != second.BridgeID {
		t.Error("repeated config application changed observable state")
	}
	if calls := drv.Calls(); len(calls) != 0 {
		t.Errorf("no-op config set produced %d driver calls", len(calls))
	}
}

func TestBridgeConfigValidation(t *testing.T) {
	n := newTestNet(t)
	a := n.addBridge("br0", 10, "00:11:22:33:44:55")

	cfg := a.Config()
	cfg.MaxAge = 41
	if err := a.SetConfig(cfg); err == nil {
		t.Error("maxage 41 accepted")
	}
	if a.Config().MaxAge != DefaultMaxAge {
		t.Error("rejected config partially applied")
	}

	cfg = a.Config()
	cfg.HelloTime = 0
	if err := a.SetConfig(cfg); err == nil {
		t.Error("hello 0 accepted")
	}
}

func TestMSTILifecycleErrors(t *testing.T) {
	n := newTestNet(t)
	a := n.addBridge("br0", 10, "00:11:22:33:44:55")

	if err := a.CreateMSTI(0); err != ErrInvalidMSTID {
		t.Errorf("CreateMSTI(0) = %v, want ErrInvalidMSTID", err)
	}
	if err := a.CreateMSTI(5000); err != ErrInvalidMSTID {
		t.Errorf("CreateMSTI(5000) = %v, want ErrInvalidMSTID", err)
	}
	if err := a.CreateMSTI(7); err != nil {
		t.Fatalf("CreateMSTI(7): %v", err)
	}
	if err := a.CreateMSTI(7); err != ErrTreeExists {
		t.Errorf("duplicate CreateMSTI = %v, want ErrTreeExists", err)
	}
	if err := a.DeleteMSTI(8); err != ErrNoSuchTree {
		t.Errorf("DeleteMSTI(8) = %v, want ErrNoSuchTree", err)
	}
	if err := a.DeleteMSTI(7); err != nil {
		t.Fatalf("DeleteMSTI(7): %v", err)
	}
	if _, err := a.TreeStatusOf(7); err != ErrNoSuchTree {
		t.Errorf("TreeStatusOf(7) after delete = %v, want ErrNoSuchTree", err)
	}
}

func TestReceivedInfoAges(t *testing.T) {
	n, a, b := twoBridges(t)
	_ = a

	if b.CISTStatus().IsRoot {
		t.Fatal("precondition: B should not be root while A is heard")
	}

	// Starve B of A's BPDUs: received information ages out after
	// three hello times and B elects itself.
	for i := 0; i < 10; i++ {
		b.Tick()
		n.queue = nil
	}

	st := b.CISTStatus()
	if !st.IsRoot {
		t.Errorf("B should become root after info ages, sees %s", st.DesignatedRoot)
	}
	port, _ := b.PortStatusOf(21)
	if port.Role != protocol.RoleDesignated {
		t.Errorf("aged port role = %v, want Designated", port.Role)
	}
}

func TestTopologyChangeCountersMonotonic(t *testing.T) {
	n, a, b := twoBridges(t)

	before := a.CISTStatus().TopologyChangeCount

	// Bounce B's port: link loss and recovery each drive topology
	// churn.
	b.PortEvent(21, false, 0, false)
	n.drain()
	for i := 0; i < 3; i++ {
		n.tick()
	}
	b.PortEvent(21, true, 1000, true)
	n.drain()
	for i := 0; i < 6; i++ {
		n.tick()
	}
	n.checkInvariants()

	after := a.CISTStatus().TopologyChangeCount
	if after < before {
		t.Errorf("topology change count went backwards: %d -> %d", before, after)
	}
}
