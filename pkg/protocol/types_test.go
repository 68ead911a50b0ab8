package protocol

import (
	"net"
	"testing"
)

func TestBridgeIDComponents(t *testing.T) {
	mac, _ := net.ParseMAC("00:11:22:33:44:55")
	id := MakeBridgeID(0x8000, 0, mac)

	if got := id.Priority(); got != 0x8000 {
		t.Errorf("Priority() = %#x, want 0x8000", got)
	}
	if got := id.SystemID(); got != 0 {
		t.Errorf("SystemID() = %d, want 0", got)
	}
	if got := id.MAC().String(); got != "00:11:22:33:44:55" {
		t.Errorf("MAC() = %s, want 00:11:22:33:44:55", got)
	}
	if got := id.String(); got != "8000.00:11:22:33:44:55" {
		t.Errorf("String() = %q", got)
	}
}

func TestBridgeIDSystemIDExtension(t *testing.T) {
	mac, _ := net.ParseMAC("00:aa:bb:cc:dd:ee")
	id := MakeBridgeID(0x9000, 7, mac)

	if got := id.SystemID(); got != 7 {
		t.Errorf("SystemID() = %d, want 7", got)
	}
	if got := id.Priority(); got != 0x9000 {
		t.Errorf("Priority() = %#x, want 0x9000", got)
	}

	id.SetPriority(0x4000)
	if got := id.Priority(); got != 0x4000 {
		t.Errorf("after SetPriority, Priority() = %#x, want 0x4000", got)
	}
	if got := id.SystemID(); got != 7 {
		t.Errorf("after SetPriority, SystemID() = %d, want 7", got)
	}
}

func TestBridgeIDCompare(t *testing.T) {
	macA, _ := net.ParseMAC("00:11:22:33:44:55")
	macB, _ := net.ParseMAC("00:aa:bb:cc:dd:ee")

	lower := MakeBridgeID(0x8000, 0, macA)
	higher := MakeBridgeID(0x9000, 0, macB)
	sameMACHigher := MakeBridgeID(0x8000, 0, macB)

	if lower.Compare(higher) != -1 {
		t.Error("lower priority should compare better")
	}
	if higher.Compare(lower) != 1 {
		t.Error("higher priority should compare worse")
	}
	if lower.Compare(lower) != 0 {
		t.Error("identical ids should compare equal")
	}
	if lower.Compare(sameMACHigher) != -1 {
		t.Error("equal priority should fall through to MAC comparison")
	}
}

func TestPortID(t *testing.T) {
	p := MakePortID(0x80, 1)
	if got := p.Priority(); got != 0x80 {
		t.Errorf("Priority() = %#x, want 0x80", got)
	}
	if got := p.Number(); got != 1 {
		t.Errorf("Number() = %d, want 1", got)
	}

	// Lower priority nibble wins regardless of port number.
	better := MakePortID(0x10, 4000)
	if !(better < p) {
		t.Error("port id with lower priority should order first")
	}
}

func TestPriorityVectorCompare(t *testing.T) {
	macA, _ := net.ParseMAC("00:11:22:33:44:55")
	macB, _ := net.ParseMAC("00:aa:bb:cc:dd:ee")
	rootA := MakeBridgeID(0x8000, 0, macA)
	rootB := MakeBridgeID(0x9000, 0, macB)

	base := PriorityVector{
		RootID:             rootA,
		ExtRootPathCost:    200000,
		RegionalRootID:     rootA,
		IntRootPathCost:    0,
		DesignatedBridgeID: rootA,
		DesignatedPortID:   MakePortID(0x80, 1),
	}

	tests := []struct {
		name   string
		mutate func(*PriorityVector)
		want   CmpResult
	}{
		{"identical", func(v *PriorityVector) {}, Same},
		{"worse root id", func(v *PriorityVector) { v.RootID = rootB }, Worse},
		{"better ext cost", func(v *PriorityVector) { v.ExtRootPathCost = 100000 }, Better},
		{"worse regional root", func(v *PriorityVector) { v.RegionalRootID = rootB }, Worse},
		{"better int cost", func(v *PriorityVector) { v.IntRootPathCost = 0; v.ExtRootPathCost = 100000 }, Better},
		{"worse designated bridge", func(v *PriorityVector) { v.DesignatedBridgeID = rootB }, Worse},
		{"better designated port", func(v *PriorityVector) { v.DesignatedPortID = MakePortID(0x10, 1) }, Better},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)
			if got := other.Compare(&base); got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPriorityVectorSameSource(t *testing.T) {
	mac, _ := net.ParseMAC("00:11:22:33:44:55")
	id := MakeBridgeID(0x8000, 0, mac)

	a := PriorityVector{DesignatedBridgeID: id, DesignatedPortID: MakePortID(0x80, 1)}
	b := a
	b.IntRootPathCost = 20000
	if !a.SameSource(&b) {
		t.Error("vectors from same designated bridge/port should be SameSource")
	}
	b.DesignatedPortID = MakePortID(0x80, 2)
	if a.SameSource(&b) {
		t.Error("different designated port should not be SameSource")
	}
}
