package bpdu

import (
	"encoding/hex"
	"errors"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

func bridgeID(t *testing.T, priority uint16, sysID protocol.MSTID, mac string) protocol.BridgeID {
	t.Helper()
	hw, err := net.ParseMAC(mac)
	if err != nil {
		t.Fatalf("bad mac %q: %v", mac, err)
	}
	return protocol.MakeBridgeID(priority, sysID, hw)
}

func TestDecodeTCN(t *testing.T) {
	b, err := Decode([]byte{0x00, 0x00, 0x00, 0x80})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !b.IsTCN() {
		t.Error("expected a TCN BPDU")
	}
	if got := b.Encode(); len(got) != 4 {
		t.Errorf("TCN encodes to %d bytes, want 4", len(got))
	}
}

func TestConfigRoundTrip(t *testing.T) {
	root := bridgeID(t, 0x8000, 0, "00:11:22:33:44:55")
	in := &BPDU{
		Version:        protocol.VersionSTP,
		Type:           TypeConfig,
		Flags:          FlagTC,
		RootID:         root,
		ExtPathCost:    200000,
		RegionalRootID: root,
		PortID:         protocol.MakePortID(0x80, 1),
		Times: protocol.Times{
			MessageAge:   1,
			MaxAge:       20,
			HelloTime:    2,
			ForwardDelay: 15,
		},
	}

	wire := in.Encode()
	if len(wire) != 35 {
		t.Fatalf("Config BPDU encodes to %d bytes, want 35", len(wire))
	}
	out, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRSTRoundTrip(t *testing.T) {
	root := bridgeID(t, 0x8000, 0, "00:11:22:33:44:55")
	in := &BPDU{
		Version:        protocol.VersionRSTP,
		Type:           TypeRST,
		Flags:          FlagProposal | FlagForwarding | FlagLearning | RoleToFlags(EncodedRoleDesignated),
		RootID:         root,
		ExtPathCost:    0,
		RegionalRootID: root,
		PortID:         protocol.MakePortID(0x80, 2),
		Times: protocol.Times{
			MaxAge:       20,
			HelloTime:    2,
			ForwardDelay: 15,
		},
	}

	wire := in.Encode()
	if len(wire) != 36 {
		t.Fatalf("RST BPDU encodes to %d bytes, want 36", len(wire))
	}
	out, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if RoleFromFlags(out.Flags) != EncodedRoleDesignated {
		t.Error("designated role lost in flags")
	}
}

func TestMSTRoundTrip(t *testing.T) {
	root := bridgeID(t, 0x8000, 0, "00:11:22:33:44:55")
	regRoot1 := bridgeID(t, 0x8000, 1, "00:11:22:33:44:55")

	in := &BPDU{
		Version:        protocol.VersionMSTP,
		Type:           TypeRST,
		Flags:          FlagAgreement | RoleToFlags(EncodedRoleRoot),
		RootID:         root,
		ExtPathCost:    200000,
		RegionalRootID: root,
		PortID:         protocol.MakePortID(0x80, 1),
		Times: protocol.Times{
			MaxAge:       20,
			HelloTime:    2,
			ForwardDelay: 15,
		},
		IntPathCost:   20000,
		BridgeID:      root,
		RemainingHops: 20,
		MSTIRecords: []MSTIConfigMsg{
			{
				Flags:          RoleToFlags(EncodedRoleDesignated) | FlagLearning,
				RegionalRootID: regRoot1,
				IntPathCost:    20000,
				BridgePriority: 0x80,
				PortPriority:   0x80,
				RemainingHops:  19,
			},
		},
	}
	in.ConfigID.SetName("region-a")
	in.ConfigID.Revision = 1
	var table [4096]uint16
	in.ConfigID.Digest = ComputeDigest(&table)

	wire := in.Encode()
	if want := 102 + 16; len(wire) != want {
		t.Fatalf("MST BPDU encodes to %d bytes, want %d", len(wire), want)
	}
	out, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if out.ConfigID.NameString() != "region-a" {
		t.Errorf("config name = %q, want region-a", out.ConfigID.NameString())
	}
}

func TestShortMSTDecodesAsRST(t *testing.T) {
	// A version >=3 frame without the full MST body is still a valid
	// RST BPDU.
	in := &BPDU{
		Version: protocol.VersionRSTP,
		Type:    TypeRST,
		RootID:  bridgeID(t, 0x8000, 0, "00:11:22:33:44:55"),
		Times:   protocol.Times{MaxAge: 20, HelloTime: 2, ForwardDelay: 15},
	}
	wire := in.Encode()
	wire[2] = 3 // claim MSTP

	out, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.Version != protocol.VersionRSTP {
		t.Errorf("version = %v, want rstp downgrade", out.Version)
	}
}

func TestDecodeErrors(t *testing.T) {
	valid := (&BPDU{Version: protocol.VersionRSTP, Type: TypeRST}).Encode()

	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{"empty", nil, ErrShortFrame},
		{"truncated tcn", []byte{0, 0, 0}, ErrShortFrame},
		{"bad protocol id", []byte{0, 1, 0, 0x80}, ErrBadProtocolID},
		{"unknown type", []byte{0, 0, 0, 0x42}, ErrBadBPDUType},
		{"config version mismatch", []byte{0, 0, 2, 0x00}, ErrBadBPDUType},
		{"truncated config", append([]byte{0, 0, 0, 0x00}, make([]byte, 10)...), ErrShortFrame},
		{"nonzero v1 length", func() []byte {
			w := append([]byte(nil), valid...)
			w[35] = 5
			return w
		}(), ErrBadLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeBadMSTLengths(t *testing.T) {
	in := &BPDU{Version: protocol.VersionMSTP, Type: TypeRST}
	wire := in.Encode()

	// Version 3 length not matching a whole number of MSTI records.
	bad := append([]byte(nil), wire...)
	bad[36], bad[37] = 0, 70
	if _, err := Decode(append(bad, make([]byte, 8)...)); !errors.Is(err, ErrBadLength) {
		t.Errorf("ragged v3 length: error = %v, want ErrBadLength", err)
	}

	// Nonzero configuration identifier selector.
	bad = append([]byte(nil), wire...)
	bad[38] = 1
	if _, err := Decode(bad); !errors.Is(err, ErrBadConfigID) {
		t.Errorf("bad selector: error = %v, want ErrBadConfigID", err)
	}
}

func TestComputeDigestDefaultTable(t *testing.T) {
	// All VLANs mapped to the CIST: the well-known digest every MSTP
	// implementation advertises out of the box.
	var table [4096]uint16
	want, _ := hex.DecodeString("AC36177F50283CD4B83821D8AB26DE62")

	got := ComputeDigest(&table)
	if !cmp.Equal(got[:], want) {
		t.Errorf("digest = %X, want %X", got, want)
	}
}

func TestComputeDigestIsPure(t *testing.T) {
	var table [4096]uint16
	for vid := 10; vid <= 20; vid++ {
		table[vid] = 1
	}
	want, _ := hex.DecodeString("6CAB52E9278D2D221C83BFDFF1A4DA72")

	first := ComputeDigest(&table)
	second := ComputeDigest(&table)
	if first != second {
		t.Error("digest is not deterministic")
	}
	if !cmp.Equal(first[:], want) {
		t.Errorf("digest = %X, want %X", first, want)
	}
}
