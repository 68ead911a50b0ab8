// Package driver mirrors computed spanning tree state into the Linux
// kernel bridge: per-port forwarding states, FDB flushes and ageing
// time. It implements the hook surface the protocol core calls out
// through.
package driver

import "fmt"

// Error types for kernel state pushes
var (
	// ErrUnknownIfindex is returned when no interface name can be
	// resolved for an ifindex
	ErrUnknownIfindex = fmt.Errorf("unknown interface index")
)

// kernel bridge port states, linux/if_bridge.h
const (
	brStateDisabled   = 0
	brStateListening  = 1
	brStateLearning   = 2
	brStateForwarding = 3
	brStateBlocking   = 4
)
