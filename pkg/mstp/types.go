package mstp

import (
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// Protocol constants, IEEE 802.1Q Table 13-5
const (
	// MigrateTime seconds a port stays in a forced protocol mode
	// after a version change
	MigrateTime = 3

	// MaxMSTInstances is the per-bridge cap on instantiated MSTIs
	MaxMSTInstances = 64

	// DefaultHelloTime seconds between periodic BPDUs
	DefaultHelloTime = 2

	// DefaultMaxAge seconds before received information ages out
	DefaultMaxAge = 20

	// DefaultForwardDelay seconds per listening/learning stage
	DefaultForwardDelay = 15

	// DefaultMaxHops MSTP hop budget inside a region
	DefaultMaxHops = 20

	// DefaultTxHoldCount BPDUs per hello interval
	DefaultTxHoldCount = 6

	// DefaultAgeingTime seconds before dynamic FDB entries expire
	DefaultAgeingTime = 300

	// DefaultBridgePriority settable bridge priority
	DefaultBridgePriority = 0x8000

	// DefaultPortPriority settable port priority
	DefaultPortPriority = 0x80
)

// BridgeConfig is the settable per-bridge configuration.
type BridgeConfig struct {
	// ForceProtocolVersion restricts the running protocol
	ForceProtocolVersion protocol.ProtocolVersion

	// MaxAge in seconds, 6..40
	MaxAge uint8

	// ForwardDelay in seconds, 4..30
	ForwardDelay uint8

	// HelloTime in seconds, 1..10
	HelloTime uint8

	// TxHoldCount BPDUs per hello interval, 1..10
	TxHoldCount uint8

	// MaxHops MSTP hop budget, 6..40
	MaxHops uint8

	// AgeingTime of dynamic FDB entries in seconds
	AgeingTime uint32
}

// DefaultBridgeConfig returns the 802.1Q default bridge parameters.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		ForceProtocolVersion: protocol.VersionMSTP,
		MaxAge:               DefaultMaxAge,
		ForwardDelay:         DefaultForwardDelay,
		HelloTime:            DefaultHelloTime,
		TxHoldCount:          DefaultTxHoldCount,
		MaxHops:              DefaultMaxHops,
		AgeingTime:           DefaultAgeingTime,
	}
}

// Validate rejects out-of-range parameters; no partial application
// ever happens on a validation failure.
func (c *BridgeConfig) Validate() error {
	if err := checkRange("maxage", int(c.MaxAge), 6, 40); err != nil {
		return err
	}
	if err := checkRange("fdelay", int(c.ForwardDelay), 4, 30); err != nil {
		return err
	}
	if err := checkRange("hello", int(c.HelloTime), 1, 10); err != nil {
		return err
	}
	if err := checkRange("txholdcount", int(c.TxHoldCount), 1, 10); err != nil {
		return err
	}
	if err := checkRange("maxhops", int(c.MaxHops), 6, 40); err != nil {
		return err
	}
	switch c.ForceProtocolVersion {
	case protocol.VersionSTP, protocol.VersionRSTP, protocol.VersionMSTP:
	default:
		return &ConfigError{Field: "forcevers", Value: int(c.ForceProtocolVersion), Min: 0, Max: 3}
	}
	// 802.1Q 13.26.4: the bridge times must satisfy
	// 2*(FwdDelay - 1) >= MaxAge >= 2*(HelloTime + 1).
	if 2*(int(c.ForwardDelay)-1) < int(c.MaxAge) {
		return &ConfigError{Field: "fdelay", Value: int(c.ForwardDelay),
			Min: int(c.MaxAge)/2 + 1, Max: 30}
	}
	if int(c.MaxAge) < 2*(int(c.HelloTime)+1) {
		return &ConfigError{Field: "maxage", Value: int(c.MaxAge),
			Min: 2 * (int(c.HelloTime) + 1), Max: 40}
	}
	return nil
}

// PortConfig is the settable per-port administrative configuration.
type PortConfig struct {
	// AdminEdge marks the port as attached to end stations only
	AdminEdge bool

	// AutoEdge enables automatic edge detection
	AutoEdge bool

	// RestrictedRole prevents the port from being selected Root
	RestrictedRole bool

	// RestrictedTCN prevents the port from propagating topology changes
	RestrictedTCN bool

	// AdminExtPathCost overrides the speed-derived external path
	// cost; 0 selects automatic
	AdminExtPathCost uint32

	// AdminP2P administrative point-to-point setting
	AdminP2P protocol.AdminP2P

	// BPDUGuard error-disables the port when any BPDU arrives
	BPDUGuard bool

	// BPDUFilter drops all received BPDUs and sends none
	BPDUFilter bool

	// NetworkPort enables bridge assurance style behavior
	NetworkPort bool

	// DontTxmt suppresses BPDU transmission. Debug only.
	DontTxmt bool
}

// DefaultPortConfig returns the defaults applied when a port is
// enslaved.
func DefaultPortConfig() PortConfig {
	return PortConfig{
		AutoEdge: true,
		AdminP2P: protocol.P2PAuto,
	}
}

// TreePortConfig is the settable per-(port, tree) configuration.
type TreePortConfig struct {
	// Priority upper nibble of the port identifier, multiple of 16
	Priority uint8

	// AdminIntPathCost overrides the speed-derived internal path
	// cost; 0 selects automatic
	AdminIntPathCost uint32
}

// pathCostFromSpeed derives the 802.1Q recommended port path cost
// from the link speed in Mb/s.
func pathCostFromSpeed(speedMbps uint32) uint32 {
	switch {
	case speedMbps == 0:
		return 200000000
	case speedMbps <= 10:
		return 2000000
	case speedMbps <= 100:
		return 200000
	case speedMbps <= 1000:
		return 20000
	case speedMbps <= 10000:
		return 2000
	case speedMbps <= 100000:
		return 200
	default:
		return 20
	}
}
