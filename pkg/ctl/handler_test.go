package ctl

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/thelastdreamer/GoMSTP/pkg/mstp"
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

type nopTx struct{}

func (nopTx) SendBPDU(ifindex int, payload []byte) {}

func newTestHandler(t *testing.T) (*Handler, *mstp.Bridge) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	mgr := mstp.NewManager(mstp.NewLoopbackDriver(), nopTx{}, log)
	mac, _ := net.ParseMAC("00:11:22:33:44:55")
	br, err := mgr.AddBridge("br0", 10, mac)
	if err != nil {
		t.Fatalf("AddBridge: %v", err)
	}
	if err := mgr.AttachPort(10, 11, "eth1", net.HardwareAddr{2, 0, 0, 0, 0, 11}); err != nil {
		t.Fatalf("AttachPort: %v", err)
	}
	return &Handler{Manager: mgr, Log: log}, br
}

func call(t *testing.T, h *Handler, cmd Command, args, out any) uint32 {
	t.Helper()
	blob, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	resp := h.Handle(Request{Cmd: cmd, Data: blob})
	if out != nil && resp.Status == StatusOK && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			t.Fatalf("unmarshal result: %v", err)
		}
	}
	return resp.Status
}

func TestHandlerBridgeStatus(t *testing.T) {
	h, _ := newTestHandler(t)

	var st mstp.CISTBridgeStatus
	if s := call(t, h, CmdGetCISTBridgeStatus, BridgeArgs{Bridge: "br0"}, &st); s != StatusOK {
		t.Fatalf("status = %d (%s)", s, StatusText(s))
	}
	if st.BridgeID != "8000.00:11:22:33:44:55" {
		t.Errorf("bridge id = %s", st.BridgeID)
	}

	if s := call(t, h, CmdGetCISTBridgeStatus, BridgeArgs{Bridge: "nope"}, nil); s != StatusNoSuchBridge {
		t.Errorf("unknown bridge status = %d, want StatusNoSuchBridge", s)
	}
}

func TestHandlerPartialBridgeConfig(t *testing.T) {
	h, br := newTestHandler(t)

	hello := uint8(1)
	maxAge := uint8(6)
	fdelay := uint8(5)
	status := call(t, h, CmdSetCISTBridgeConfig, SetBridgeConfigArgs{
		Bridge: "br0", HelloTime: &hello, MaxAge: &maxAge, ForwardDelay: &fdelay,
	}, nil)
	if status != StatusOK {
		t.Fatalf("set config status = %d", status)
	}
	if br.Config().HelloTime != 1 {
		t.Error("hello time not applied")
	}
	if br.Config().TxHoldCount != mstp.DefaultTxHoldCount {
		t.Error("untouched field changed")
	}

	// Out of range rejects without partial mutation.
	bad := uint8(99)
	status = call(t, h, CmdSetCISTBridgeConfig, SetBridgeConfigArgs{Bridge: "br0", MaxAge: &bad}, nil)
	if status == StatusOK {
		t.Error("maxage 99 accepted")
	}
	if br.Config().MaxAge != 6 {
		t.Error("rejected config mutated the bridge")
	}
}

func TestHandlerMSTILifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	if s := call(t, h, CmdCreateMSTI, TreeArgs{Bridge: "br0", MSTID: 5}, nil); s != StatusOK {
		t.Fatalf("create msti status = %d", s)
	}
	var list MSTIListResult
	if s := call(t, h, CmdListMSTIs, BridgeArgs{Bridge: "br0"}, &list); s != StatusOK {
		t.Fatalf("list mstis status = %d", s)
	}
	if len(list.MSTIDs) != 2 || list.MSTIDs[1] != 5 {
		t.Errorf("mstids = %v, want [0 5]", list.MSTIDs)
	}

	var tp mstp.TreePortStatus
	if s := call(t, h, CmdGetMSTIPortStatus, TreePortArgs{Bridge: "br0", Port: "eth1", MSTID: 5}, &tp); s != StatusOK {
		t.Fatalf("tree port status = %d", s)
	}
	if tp.MSTID != 5 {
		t.Errorf("tree port mstid = %d", tp.MSTID)
	}

	if s := call(t, h, CmdGetMSTIBridgeStatus, TreeArgs{Bridge: "br0", MSTID: 9}, nil); s != StatusNoSuchTree {
		t.Errorf("unknown tree status = %d, want StatusNoSuchTree", s)
	}
}

func TestHandlerTablesAndDigest(t *testing.T) {
	h, br := newTestHandler(t)
	before := br.MSTConfigID().Digest

	table := make([]uint16, protocol.MaxFID+1)
	table[0] = 1
	if s := call(t, h, CmdSetFIDs2MSTIDs, TableArgs{Bridge: "br0", Table: table}, nil); s != StatusOK {
		t.Fatalf("set fid2mstid status = %d", s)
	}
	if br.MSTConfigID().Digest == before {
		t.Error("digest not recomputed after table mutation")
	}

	// Wrong table size is a bad argument.
	if s := call(t, h, CmdSetFIDs2MSTIDs, TableArgs{Bridge: "br0", Table: table[:10]}, nil); s != StatusBadArgument {
		t.Errorf("short table status = %d, want StatusBadArgument", s)
	}

	var conf MSTConfIDResult
	if s := call(t, h, CmdGetMSTConfID, BridgeArgs{Bridge: "br0"}, &conf); s != StatusOK {
		t.Fatalf("get mstconfid status = %d", s)
	}
	if len(conf.Digest) != 32 {
		t.Errorf("digest hex length = %d, want 32", len(conf.Digest))
	}
}

func TestHandlerPortConfig(t *testing.T) {
	h, br := newTestHandler(t)

	edge := true
	if s := call(t, h, CmdSetCISTPortConfig, SetPortConfigArgs{
		Bridge: "br0", Port: "eth1", AdminEdge: &edge,
	}, nil); s != StatusOK {
		t.Fatalf("set port config status = %d", s)
	}
	ifindex, _ := br.PortIfindexByName("eth1")
	cfg, _ := br.PortConfigOf(ifindex)
	if !cfg.AdminEdge {
		t.Error("admin edge not applied")
	}

	p2p := "sideways"
	if s := call(t, h, CmdSetCISTPortConfig, SetPortConfigArgs{
		Bridge: "br0", Port: "eth1", AdminP2P: &p2p,
	}, nil); s != StatusBadArgument {
		t.Errorf("bad p2p value status = %d, want StatusBadArgument", s)
	}
}
