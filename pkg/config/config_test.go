package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mstpd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log_level: debug\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ControlSocket != "/run/gomstp/mstpd.sock" {
		t.Errorf("control socket default = %q", cfg.ControlSocket)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	bc, err := cfg.BridgeConfig()
	if err != nil {
		t.Fatalf("BridgeConfig: %v", err)
	}
	if bc.ForceProtocolVersion != protocol.VersionMSTP {
		t.Errorf("default protocol = %v, want mstp", bc.ForceProtocolVersion)
	}
}

func TestLoadBridgeDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
bridges: [br0, br1]
defaults:
  force_protocol_version: rstp
  hello_time: 1
  max_age: 6
  forward_delay: 5
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Manages("br2") {
		t.Error("br2 should not be managed")
	}
	if !cfg.Manages("br1") {
		t.Error("br1 should be managed")
	}
	bc, err := cfg.BridgeConfig()
	if err != nil {
		t.Fatalf("BridgeConfig: %v", err)
	}
	if bc.ForceProtocolVersion != protocol.VersionRSTP {
		t.Errorf("protocol = %v, want rstp", bc.ForceProtocolVersion)
	}
	if bc.HelloTime != 1 || bc.MaxAge != 6 || bc.ForwardDelay != 5 {
		t.Errorf("timers = %d/%d/%d, want 1/6/5", bc.HelloTime, bc.MaxAge, bc.ForwardDelay)
	}
}

func TestLoadRejectsBadDefaults(t *testing.T) {
	if _, err := Load(writeConfig(t, "defaults:\n  max_age: 99\n")); err == nil {
		t.Error("max_age 99 accepted")
	}
	if _, err := Load(writeConfig(t, "defaults:\n  force_protocol_version: tokenring\n")); err == nil {
		t.Error("unknown protocol accepted")
	}
	if _, err := Load(writeConfig(t, "log_format: yaml\n")); err == nil {
		t.Error("unknown log format accepted")
	}
}
