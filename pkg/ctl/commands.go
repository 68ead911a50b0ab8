// Package ctl implements the local control surface of the daemon: a
// length-prefixed request/response protocol over a unix datagram
// socket. Each request carries a versioned command code and an opaque
// JSON argument blob; each response a status code and an opaque
// result blob.
package ctl

import (
	"github.com/thelastdreamer/GoMSTP/pkg/mstp"
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// ProtocolVersion of the control socket framing. Bumped whenever a
// command code or blob layout changes incompatibly.
const ProtocolVersion uint32 = 1

// DefaultSocketPath is where the daemon listens.
const DefaultSocketPath = "/run/gomstp/mstpd.sock"

// Command codes. Codes are part of the wire protocol and never
// reused.
type Command uint32

const (
	CmdAddBridges Command = iota + 1
	CmdDelBridges
	CmdGetCISTBridgeStatus
	CmdSetCISTBridgeConfig
	CmdGetCISTPortStatus
	CmdSetCISTPortConfig
	CmdCreateMSTI
	CmdDeleteMSTI
	CmdSetMSTIBridgeConfig
	CmdGetMSTIBridgeStatus
	CmdSetMSTIPortConfig
	CmdGetMSTIPortStatus
	CmdGetVIDs2FIDs
	CmdSetVIDs2FIDs
	CmdGetFIDs2MSTIDs
	CmdSetFIDs2MSTIDs
	CmdSetMSTConfID
	CmdGetMSTConfID
	CmdPortMcheck
	CmdSetDebugLevel
	CmdListBridges
	CmdListMSTIs
)

// Status codes returned with every response.
const (
	StatusOK uint32 = iota
	StatusNoSuchBridge
	StatusNoSuchPort
	StatusNoSuchTree
	StatusBadArgument
	StatusInternal
)

// StatusText maps a status code to a printable message.
func StatusText(status uint32) string {
	switch status {
	case StatusOK:
		return "ok"
	case StatusNoSuchBridge:
		return "no such bridge"
	case StatusNoSuchPort:
		return "no such port"
	case StatusNoSuchTree:
		return "no such tree"
	case StatusBadArgument:
		return "bad argument"
	case StatusInternal:
		return "internal error"
	}
	return "unknown status"
}

// BridgesArgs selects a set of bridges by interface name.
type BridgesArgs struct {
	Bridges []string `json:"bridges"`
}

// BridgeArgs selects one bridge.
type BridgeArgs struct {
	Bridge string `json:"bridge"`
}

// PortArgs selects one port of one bridge.
type PortArgs struct {
	Bridge string `json:"bridge"`
	Port   string `json:"port"`
}

// TreeArgs selects one tree of one bridge.
type TreeArgs struct {
	Bridge string         `json:"bridge"`
	MSTID  protocol.MSTID `json:"mstid"`
}

// TreePortArgs selects one (port, tree) pair.
type TreePortArgs struct {
	Bridge string         `json:"bridge"`
	Port   string         `json:"port"`
	MSTID  protocol.MSTID `json:"mstid"`
}

// SetBridgeConfigArgs is a one-shot partial update: only non-nil
// fields are applied, and the whole request is rejected if any value
// is out of range.
type SetBridgeConfigArgs struct {
	Bridge               string  `json:"bridge"`
	MaxAge               *uint8  `json:"max_age,omitempty"`
	ForwardDelay         *uint8  `json:"forward_delay,omitempty"`
	HelloTime            *uint8  `json:"hello_time,omitempty"`
	TxHoldCount          *uint8  `json:"tx_hold_count,omitempty"`
	MaxHops              *uint8  `json:"max_hops,omitempty"`
	AgeingTime           *uint32 `json:"ageing_time,omitempty"`
	ForceProtocolVersion *uint8  `json:"force_protocol_version,omitempty"`
}

// SetPortConfigArgs is the per-port partial update.
type SetPortConfigArgs struct {
	Bridge           string  `json:"bridge"`
	Port             string  `json:"port"`
	AdminEdge        *bool   `json:"admin_edge,omitempty"`
	AutoEdge         *bool   `json:"auto_edge,omitempty"`
	RestrictedRole   *bool   `json:"restricted_role,omitempty"`
	RestrictedTCN    *bool   `json:"restricted_tcn,omitempty"`
	AdminExtPathCost *uint32 `json:"admin_ext_path_cost,omitempty"`
	AdminP2P         *string `json:"admin_p2p,omitempty"` // yes | no | auto
	BPDUGuard        *bool   `json:"bpdu_guard,omitempty"`
	BPDUFilter       *bool   `json:"bpdu_filter,omitempty"`
	NetworkPort      *bool   `json:"network_port,omitempty"`
	DontTxmt         *bool   `json:"dont_txmt,omitempty"`
	ClearGuardError  *bool   `json:"clear_guard_error,omitempty"`
}

// SetTreeConfigArgs sets the per-tree bridge priority.
type SetTreeConfigArgs struct {
	Bridge   string         `json:"bridge"`
	MSTID    protocol.MSTID `json:"mstid"`
	Priority uint16         `json:"priority"`
}

// SetTreePortConfigArgs sets per-(port, tree) parameters.
type SetTreePortConfigArgs struct {
	Bridge      string         `json:"bridge"`
	Port        string         `json:"port"`
	MSTID       protocol.MSTID `json:"mstid"`
	Priority    *uint8         `json:"priority,omitempty"`
	IntPathCost *uint32        `json:"int_path_cost,omitempty"`
}

// TableArgs carries a full VID or FID mapping table.
type TableArgs struct {
	Bridge string   `json:"bridge"`
	Table  []uint16 `json:"table"`
}

// SetMSTConfIDArgs replaces the region name and revision.
type SetMSTConfIDArgs struct {
	Bridge   string `json:"bridge"`
	Name     string `json:"name"`
	Revision uint16 `json:"revision"`
}

// MSTConfIDResult is the readable configuration identifier.
type MSTConfIDResult struct {
	Name     string `json:"name"`
	Revision uint16 `json:"revision"`
	Digest   string `json:"digest"` // hex
}

// DebugLevelArgs sets the daemon log level.
type DebugLevelArgs struct {
	Level string `json:"level"`
}

// BridgeListResult enumerates managed bridges.
type BridgeListResult struct {
	Bridges []mstp.CISTBridgeStatus `json:"bridges"`
}

// MSTIListResult enumerates instantiated trees.
type MSTIListResult struct {
	MSTIDs []protocol.MSTID `json:"mstids"`
}
