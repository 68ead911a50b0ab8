package bpdu

import (
	"encoding/binary"
	"strings"

	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// BPDU types carried in the header
const (
	TypeConfig uint8 = 0x00
	TypeRST    uint8 = 0x02
	TypeTCN    uint8 = 0x80
)

// Flag bits of the CIST flags octet. In a Config BPDU only TC and
// TCAck are valid; the rest are RST/MST additions.
const (
	FlagTC         uint8 = 1 << 0
	FlagProposal   uint8 = 1 << 1
	FlagLearning   uint8 = 1 << 4
	FlagForwarding uint8 = 1 << 5
	FlagAgreement  uint8 = 1 << 6
	FlagTCAck      uint8 = 1 << 7

	flagRoleShift = 2
	flagRoleMask  = 0x03 << flagRoleShift
)

// Encoded port roles in the flags octet
const (
	EncodedRoleMaster          uint8 = 0
	EncodedRoleAlternateBackup uint8 = 1
	EncodedRoleRoot            uint8 = 2
	EncodedRoleDesignated      uint8 = 3
)

// EncodeRole maps a port role onto its 2-bit flags encoding.
func EncodeRole(r protocol.Role) uint8 {
	switch r {
	case protocol.RoleRoot:
		return EncodedRoleRoot
	case protocol.RoleDesignated:
		return EncodedRoleDesignated
	case protocol.RoleAlternate, protocol.RoleBackup:
		return EncodedRoleAlternateBackup
	}
	return EncodedRoleMaster
}

// RoleFromFlags extracts the 2-bit encoded role from a flags octet.
func RoleFromFlags(flags uint8) uint8 {
	return flags & flagRoleMask >> flagRoleShift
}

// RoleToFlags shifts an encoded role into flags octet position.
func RoleToFlags(role uint8) uint8 {
	return role << flagRoleShift & flagRoleMask
}

// Fixed sizes of the wire encodings
const (
	tcnLen      = 4
	configLen   = 35
	rstLen      = 36
	mstMinLen   = 102
	mstiMsgLen  = 16
	configIDLen = 51

	// mstFixedV3Len is the Version 3 Length of an MST BPDU without
	// MSTI configuration messages.
	mstFixedV3Len = 64
)

// MSTConfigID is the 51-byte MST Configuration Identifier. Two bridges
// belong to the same MST region iff all four fields match.
type MSTConfigID struct {
	Selector byte     // Configuration identifier format selector, always 0
	Name     [32]byte // Configuration name, zero padded
	Revision uint16   // Revision level
	Digest   [16]byte // HMAC-MD5 of the VID-to-MSTID table
}

// SetName stores a configuration name, truncated to 32 bytes and zero
// padded.
func (c *MSTConfigID) SetName(name string) {
	c.Name = [32]byte{}
	copy(c.Name[:], name)
}

// NameString returns the configuration name without padding.
func (c *MSTConfigID) NameString() string {
	return strings.TrimRight(string(c.Name[:]), "\x00")
}

// MSTIConfigMsg is one 16-byte MSTI configuration message of an MST
// BPDU.
type MSTIConfigMsg struct {
	Flags          uint8
	RegionalRootID protocol.BridgeID
	IntPathCost    uint32
	BridgePriority uint8 // Upper nibble significant
	PortPriority   uint8 // Upper nibble significant
	RemainingHops  uint8
}

// BPDU is the decoded form of any STP/RSTP/MSTP bridge protocol data
// unit. Field names follow the MST reading of the frame: the bridge
// identifier at offset 17 is the CIST regional root, the designated
// bridge of the CIST appears in BridgeID for MST BPDUs and equals
// RegionalRootID for the older encodings.
type BPDU struct {
	Version protocol.ProtocolVersion
	Type    uint8

	// Config/RST/MST body, absent for TCN
	Flags          uint8
	RootID         protocol.BridgeID
	ExtPathCost    uint32
	RegionalRootID protocol.BridgeID
	PortID         protocol.PortID
	Times          protocol.Times

	// Version1Length, present from RST on, always 0
	Version1Length uint8

	// MST-only fields
	ConfigID      MSTConfigID
	IntPathCost   uint32
	BridgeID      protocol.BridgeID
	RemainingHops uint8
	MSTIRecords   []MSTIConfigMsg
}

// IsTCN reports whether the BPDU is a topology change notification.
func (b *BPDU) IsTCN() bool {
	return b.Type == TypeTCN
}

// Decode parses a raw BPDU payload (LLC header already stripped).
func Decode(payload []byte) (*BPDU, error) {
	if len(payload) < tcnLen {
		return nil, &DecodeError{Offset: 0, Err: ErrShortFrame}
	}
	if binary.BigEndian.Uint16(payload) != 0 {
		return nil, &DecodeError{Offset: 0, Err: ErrBadProtocolID}
	}

	b := &BPDU{
		Version: protocol.ProtocolVersion(payload[2]),
		Type:    payload[3],
	}

	switch {
	case b.Type == TypeTCN && b.Version == protocol.VersionSTP:
		return b, nil
	case b.Type == TypeConfig && b.Version == protocol.VersionSTP:
		if len(payload) < configLen {
			return nil, &DecodeError{Offset: len(payload), Err: ErrShortFrame}
		}
		b.decodeBody(payload)
		// Config BPDUs carry only TC and TCAck.
		b.Flags &= FlagTC | FlagTCAck
		return b, nil
	case b.Type == TypeRST && b.Version == protocol.VersionRSTP:
		if len(payload) < rstLen {
			return nil, &DecodeError{Offset: len(payload), Err: ErrShortFrame}
		}
		b.decodeBody(payload)
		b.Version1Length = payload[35]
		if b.Version1Length != 0 {
			return nil, &DecodeError{Offset: 35, Err: ErrBadLength}
		}
		return b, nil
	case b.Type == TypeRST && b.Version >= protocol.VersionMSTP:
		return b.decodeMST(payload)
	}
	return nil, &DecodeError{Offset: 3, Err: ErrBadBPDUType}
}

// decodeBody parses the common Config/RST body at offsets 4..34.
func (b *BPDU) decodeBody(p []byte) {
	b.Flags = p[4]
	copy(b.RootID[:], p[5:13])
	b.ExtPathCost = binary.BigEndian.Uint32(p[13:17])
	copy(b.RegionalRootID[:], p[17:25])
	b.PortID = protocol.PortID(binary.BigEndian.Uint16(p[25:27]))
	b.Times.MessageAge = uint8(binary.BigEndian.Uint16(p[27:29]) >> 8)
	b.Times.MaxAge = uint8(binary.BigEndian.Uint16(p[29:31]) >> 8)
	b.Times.HelloTime = uint8(binary.BigEndian.Uint16(p[31:33]) >> 8)
	b.Times.ForwardDelay = uint8(binary.BigEndian.Uint16(p[33:35]) >> 8)
}

func (b *BPDU) decodeMST(p []byte) (*BPDU, error) {
	// A short version-3 frame is still a valid RST BPDU; the standard
	// requires treating it as one.
	if len(p) < mstMinLen {
		if len(p) < rstLen {
			return nil, &DecodeError{Offset: len(p), Err: ErrShortFrame}
		}
		b.Version = protocol.VersionRSTP
		b.decodeBody(p)
		b.Version1Length = p[35]
		return b, nil
	}
	b.Version = protocol.VersionMSTP
	b.decodeBody(p)
	b.Version1Length = p[35]
	if b.Version1Length != 0 {
		return nil, &DecodeError{Offset: 35, Err: ErrBadLength}
	}
	v3len := int(binary.BigEndian.Uint16(p[36:38]))
	if v3len < mstFixedV3Len || 38+v3len > len(p) {
		return nil, &DecodeError{Offset: 36, Err: ErrBadLength}
	}
	nrecs := v3len - mstFixedV3Len
	if nrecs%mstiMsgLen != 0 {
		return nil, &DecodeError{Offset: 36, Err: ErrBadLength}
	}
	nrecs /= mstiMsgLen

	b.ConfigID.Selector = p[38]
	if b.ConfigID.Selector != 0 {
		return nil, &DecodeError{Offset: 38, Err: ErrBadConfigID}
	}
	copy(b.ConfigID.Name[:], p[39:71])
	b.ConfigID.Revision = binary.BigEndian.Uint16(p[71:73])
	copy(b.ConfigID.Digest[:], p[73:89])

	b.IntPathCost = binary.BigEndian.Uint32(p[89:93])
	copy(b.BridgeID[:], p[93:101])
	b.RemainingHops = p[101]

	off := mstMinLen
	b.MSTIRecords = make([]MSTIConfigMsg, 0, nrecs)
	for i := 0; i < nrecs; i++ {
		var m MSTIConfigMsg
		m.Flags = p[off]
		copy(m.RegionalRootID[:], p[off+1:off+9])
		m.IntPathCost = binary.BigEndian.Uint32(p[off+9 : off+13])
		m.BridgePriority = p[off+13]
		m.PortPriority = p[off+14]
		m.RemainingHops = p[off+15]
		b.MSTIRecords = append(b.MSTIRecords, m)
		off += mstiMsgLen
	}
	return b, nil
}

// Encode serializes the BPDU in its length-minimal wire form.
func (b *BPDU) Encode() []byte {
	switch {
	case b.Type == TypeTCN:
		buf := make([]byte, tcnLen)
		buf[3] = TypeTCN
		return buf
	case b.Type == TypeConfig:
		buf := make([]byte, configLen)
		b.encodeBody(buf)
		buf[4] &= FlagTC | FlagTCAck
		return buf
	case b.Version == protocol.VersionRSTP:
		buf := make([]byte, rstLen)
		b.encodeBody(buf)
		buf[35] = 0
		return buf
	}

	buf := make([]byte, mstMinLen+len(b.MSTIRecords)*mstiMsgLen)
	b.encodeBody(buf)
	buf[2] = byte(protocol.VersionMSTP)
	buf[35] = 0
	binary.BigEndian.PutUint16(buf[36:38], uint16(mstFixedV3Len+len(b.MSTIRecords)*mstiMsgLen))
	buf[38] = b.ConfigID.Selector
	copy(buf[39:71], b.ConfigID.Name[:])
	binary.BigEndian.PutUint16(buf[71:73], b.ConfigID.Revision)
	copy(buf[73:89], b.ConfigID.Digest[:])
	binary.BigEndian.PutUint32(buf[89:93], b.IntPathCost)
	copy(buf[93:101], b.BridgeID[:])
	buf[101] = b.RemainingHops

	off := mstMinLen
	for i := range b.MSTIRecords {
		m := &b.MSTIRecords[i]
		buf[off] = m.Flags
		copy(buf[off+1:off+9], m.RegionalRootID[:])
		binary.BigEndian.PutUint32(buf[off+9:off+13], m.IntPathCost)
		buf[off+13] = m.BridgePriority
		buf[off+14] = m.PortPriority
		buf[off+15] = m.RemainingHops
		off += mstiMsgLen
	}
	return buf
}

func (b *BPDU) encodeBody(buf []byte) {
	buf[2] = byte(b.Version)
	buf[3] = b.Type
	buf[4] = b.Flags
	copy(buf[5:13], b.RootID[:])
	binary.BigEndian.PutUint32(buf[13:17], b.ExtPathCost)
	copy(buf[17:25], b.RegionalRootID[:])
	binary.BigEndian.PutUint16(buf[25:27], uint16(b.PortID))
	binary.BigEndian.PutUint16(buf[27:29], uint16(b.Times.MessageAge)<<8)
	binary.BigEndian.PutUint16(buf[29:31], uint16(b.Times.MaxAge)<<8)
	binary.BigEndian.PutUint16(buf[31:33], uint16(b.Times.HelloTime)<<8)
	binary.BigEndian.PutUint16(buf[33:35], uint16(b.Times.ForwardDelay)<<8)
}
