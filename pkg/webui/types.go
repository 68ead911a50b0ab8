// Package webui serves the read-only HTTP status API and a WebSocket
// stream of topology events. It never mutates core state; every
// snapshot is taken through the Source callbacks the daemon runs on
// the core event loop.
package webui

import (
	"time"

	"github.com/thelastdreamer/GoMSTP/pkg/mstp"
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// Source provides consistent snapshots of the core state. Each call
// is dispatched onto the core goroutine by the daemon.
type Source struct {
	Bridges func() []mstp.CISTBridgeStatus
	Bridge  func(name string) (mstp.CISTBridgeStatus, error)
	Ports   func(bridge string) ([]mstp.PortStatus, error)
	Tree    func(bridge string, mstid protocol.MSTID) (mstp.TreeStatus, error)
}

// EventType classifies a pushed event.
type EventType string

const (
	// EventTopologyChange a tree recorded a topology change
	EventTopologyChange EventType = "topology-change"

	// EventRoleChange a port's role changed
	EventRoleChange EventType = "role-change"

	// EventPortState a port's forwarding state changed
	EventPortState EventType = "port-state"
)

// Event is one entry of the WebSocket stream.
type Event struct {
	Type   EventType      `json:"type"`
	Time   time.Time      `json:"time"`
	Bridge string         `json:"bridge"`
	Port   string         `json:"port,omitempty"`
	MSTID  protocol.MSTID `json:"mstid"`
	Role   string         `json:"role,omitempty"`
	State  string         `json:"state,omitempty"`
}
