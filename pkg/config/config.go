// Package config loads the daemon configuration: control socket
// location, logging, the optional HTTP status listener and the bridge
// parameter defaults applied when a bridge comes under management.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/thelastdreamer/GoMSTP/pkg/mstp"
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// Config is the daemon configuration.
type Config struct {
	// ControlSocket is the unix datagram socket path for mstpctl
	ControlSocket string `mapstructure:"control_socket"`

	// LogLevel is a logrus level name
	LogLevel string `mapstructure:"log_level"`

	// LogFormat selects "text" or "json" output
	LogFormat string `mapstructure:"log_format"`

	// StatusListen enables the read-only HTTP status API when set,
	// e.g. "127.0.0.1:8666"
	StatusListen string `mapstructure:"status_listen"`

	// ManageAll takes over every bridge the kernel reports; when
	// false only bridges named in Bridges are managed
	ManageAll bool `mapstructure:"manage_all"`

	// Bridges is the allowlist used when ManageAll is false
	Bridges []string `mapstructure:"bridges"`

	// Defaults applied to every newly managed bridge
	Defaults BridgeDefaults `mapstructure:"defaults"`
}

// BridgeDefaults are the initial protocol parameters of a managed
// bridge, overriding the 802.1Q defaults.
type BridgeDefaults struct {
	ForceProtocolVersion string `mapstructure:"force_protocol_version"` // stp | rstp | mstp
	MaxAge               uint8  `mapstructure:"max_age"`
	ForwardDelay         uint8  `mapstructure:"forward_delay"`
	HelloTime            uint8  `mapstructure:"hello_time"`
	TxHoldCount          uint8  `mapstructure:"tx_hold_count"`
	MaxHops              uint8  `mapstructure:"max_hops"`
	AgeingTime           uint32 `mapstructure:"ageing_time"`
}

// Load reads the configuration file (when present) and environment
// overrides prefixed GOMSTP_.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("control_socket", "/run/gomstp/mstpd.sock")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("manage_all", false)

	v.SetEnvPrefix("gomstp")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("mstpd")
		v.AddConfigPath("/etc/gomstp")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Running without a file is fine, defaults apply.
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format %q: must be text or json", c.LogFormat)
	}
	if _, err := c.BridgeConfig(); err != nil {
		return err
	}
	return nil
}

// Manages reports whether the daemon should take over the named
// bridge.
func (c *Config) Manages(name string) bool {
	if c.ManageAll {
		return true
	}
	for _, b := range c.Bridges {
		if b == name {
			return true
		}
	}
	return false
}

// BridgeConfig materializes the defaults into a validated core
// bridge configuration.
func (c *Config) BridgeConfig() (mstp.BridgeConfig, error) {
	cfg := mstp.DefaultBridgeConfig()
	d := &c.Defaults
	switch d.ForceProtocolVersion {
	case "":
	case "stp":
		cfg.ForceProtocolVersion = protocol.VersionSTP
	case "rstp":
		cfg.ForceProtocolVersion = protocol.VersionRSTP
	case "mstp":
		cfg.ForceProtocolVersion = protocol.VersionMSTP
	default:
		return cfg, fmt.Errorf("force_protocol_version %q: must be stp, rstp or mstp", d.ForceProtocolVersion)
	}
	if d.MaxAge != 0 {
		cfg.MaxAge = d.MaxAge
	}
	if d.ForwardDelay != 0 {
		cfg.ForwardDelay = d.ForwardDelay
	}
	if d.HelloTime != 0 {
		cfg.HelloTime = d.HelloTime
	}
	if d.TxHoldCount != 0 {
		cfg.TxHoldCount = d.TxHoldCount
	}
	if d.MaxHops != 0 {
		cfg.MaxHops = d.MaxHops
	}
	if d.AgeingTime != 0 {
		cfg.AgeingTime = d.AgeingTime
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("bridge defaults: %w", err)
	}
	return cfg, nil
}
