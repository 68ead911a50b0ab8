package protocol

import (
	"fmt"
	"net"
)

// Protocol version numbers carried in the BPDU header
type ProtocolVersion uint8

const (
	// VersionSTP legacy 802.1D Spanning Tree
	VersionSTP ProtocolVersion = 0

	// VersionRSTP Rapid Spanning Tree (802.1D-2004)
	VersionRSTP ProtocolVersion = 2

	// VersionMSTP Multiple Spanning Tree (802.1Q)
	VersionMSTP ProtocolVersion = 3
)

func (v ProtocolVersion) String() string {
	switch v {
	case VersionSTP:
		return "stp"
	case VersionRSTP:
		return "rstp"
	case VersionMSTP:
		return "mstp"
	}
	return fmt.Sprintf("version(%d)", uint8(v))
}

// MSTID identifies a spanning tree instance. 0 is the CIST,
// 1..4094 identify MSTIs.
type MSTID uint16

const (
	// CIST is the Common and Internal Spanning Tree instance
	CIST MSTID = 0

	// MaxMSTID is the highest valid MSTI identifier
	MaxMSTID MSTID = 4094

	// MaxVID is the highest valid VLAN identifier
	MaxVID = 4094

	// MaxFID is the highest valid filtering identifier
	MaxFID = 4094
)

// Valid reports whether the MSTID is in the allowed range.
func (m MSTID) Valid() bool {
	return m <= MaxMSTID
}

// Role is the spanning tree role assigned to a port within one tree.
type Role uint8

const (
	RoleDisabled Role = iota
	RoleRoot
	RoleDesignated
	RoleAlternate
	RoleBackup
	RoleMaster
)

func (r Role) String() string {
	switch r {
	case RoleDisabled:
		return "Disabled"
	case RoleRoot:
		return "Root"
	case RoleDesignated:
		return "Designated"
	case RoleAlternate:
		return "Alternate"
	case RoleBackup:
		return "Backup"
	case RoleMaster:
		return "Master"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// PortState is the forwarding state pushed into the kernel for a
// (port, tree) pair.
type PortState uint8

const (
	StateDiscarding PortState = iota
	StateLearning
	StateForwarding
)

func (s PortState) String() string {
	switch s {
	case StateDiscarding:
		return "discarding"
	case StateLearning:
		return "learning"
	case StateForwarding:
		return "forwarding"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// InfoIs records the origin of the spanning tree information held by a
// per-tree port.
type InfoIs uint8

const (
	InfoDisabled InfoIs = iota
	InfoReceived
	InfoMine
	InfoAged
)

func (i InfoIs) String() string {
	switch i {
	case InfoDisabled:
		return "Disabled"
	case InfoReceived:
		return "Received"
	case InfoMine:
		return "Mine"
	case InfoAged:
		return "Aged"
	}
	return fmt.Sprintf("InfoIs(%d)", uint8(i))
}

// RcvdInfo is the classification the Port Information machine assigns
// to a received spanning tree message.
type RcvdInfo uint8

const (
	SuperiorDesignatedInfo RcvdInfo = iota
	RepeatedDesignatedInfo
	InferiorDesignatedInfo
	InferiorRootAlternateInfo
	OtherInfo
)

// AdminP2P is the administrative point-to-point setting of a port.
type AdminP2P uint8

const (
	P2PAuto AdminP2P = iota
	P2PForceTrue
	P2PForceFalse
)

func (p AdminP2P) String() string {
	switch p {
	case P2PAuto:
		return "auto"
	case P2PForceTrue:
		return "yes"
	case P2PForceFalse:
		return "no"
	}
	return fmt.Sprintf("p2p(%d)", uint8(p))
}

// BridgeID is the 8-byte bridge identifier: 4-bit priority, 12-bit
// system id extension (0 for the CIST, the MSTID for an MSTI), 6-byte
// MAC address. Compared as a big-endian octet string, lower is better.
type BridgeID [8]byte

// MakeBridgeID assembles a bridge identifier from its components.
// priority must be a multiple of 4096.
func MakeBridgeID(priority uint16, sysID MSTID, mac net.HardwareAddr) BridgeID {
	var b BridgeID
	word := (priority & 0xf000) | (uint16(sysID) & 0x0fff)
	b[0] = byte(word >> 8)
	b[1] = byte(word)
	copy(b[2:], mac)
	return b
}

// Priority returns the settable priority component (upper 4 bits,
// scaled to the 0..61440 range).
func (b BridgeID) Priority() uint16 {
	return uint16(b[0]&0xf0) << 8
}

// SetPriority replaces the priority nibble, keeping system id and MAC.
func (b *BridgeID) SetPriority(priority uint16) {
	b[0] = byte(priority>>8)&0xf0 | b[0]&0x0f
}

// SystemID returns the 12-bit system id extension.
func (b BridgeID) SystemID() MSTID {
	return MSTID(b[0]&0x0f)<<8 | MSTID(b[1])
}

// MAC returns the address component of the identifier.
func (b BridgeID) MAC() net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	copy(mac, b[2:])
	return mac
}

// Compare orders two bridge identifiers; lower is better.
func (b BridgeID) Compare(o BridgeID) int {
	for i := range b {
		if b[i] != o[i] {
			if b[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// IsZero reports whether the identifier is all zeroes.
func (b BridgeID) IsZero() bool {
	return b == BridgeID{}
}

func (b BridgeID) String() string {
	return fmt.Sprintf("%01X%01X%02X.%02x:%02x:%02x:%02x:%02x:%02x",
		b[0]>>4, b[0]&0x0f, b[1], b[2], b[3], b[4], b[5], b[6], b[7])
}

// PortID is the 2-byte port identifier: 4-bit priority, 12-bit port
// number. Lower is better.
type PortID uint16

// MakePortID assembles a port identifier. priority must be a multiple
// of 16 in the 0..240 range, number in 1..4095.
func MakePortID(priority uint8, number uint16) PortID {
	return PortID(priority&0xf0)<<8 | PortID(number&0x0fff)
}

// Priority returns the settable priority component.
func (p PortID) Priority() uint8 {
	return uint8(p >> 8 & 0xf0)
}

// Number returns the 12-bit port number.
func (p PortID) Number() uint16 {
	return uint16(p & 0x0fff)
}

func (p PortID) String() string {
	return fmt.Sprintf("%01X.%03d", uint16(p>>12), p.Number())
}
