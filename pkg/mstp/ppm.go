package mstp

import (
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// runPPM is the Port Protocol Migration machine. It decides whether
// the port speaks RSTP/MSTP or falls back to legacy Config/TCN BPDUs,
// re-evaluating MigrateTime seconds after every version flap.
func (p *port) runPPM() bool {
	rstpVersion := p.bridge.config.ForceProtocolVersion >= protocol.VersionRSTP

	switch p.ppm {
	case ppmCheckingRSTP:
		if p.mcheck {
			p.mcheck = false
			p.sendRSTP = rstpVersion
			p.mdelayWhile.start(MigrateTime)
			return true
		}
		if p.mdelayWhile.expired() {
			p.ppm = ppmSensing
			p.rcvdRSTP = false
			p.rcvdSTP = false
			return true
		}
	case ppmSelectingSTP:
		if p.mdelayWhile.expired() || !p.enabled() || p.mcheck {
			p.ppm = ppmSensing
			p.rcvdRSTP = false
			p.rcvdSTP = false
			return true
		}
	case ppmSensing:
		switch {
		case p.mcheck, !p.enabled(), !p.sendRSTP && rstpVersion && (p.rcvdRSTP || !p.rcvdSTP):
			// Try RSTP again.
			p.ppm = ppmCheckingRSTP
			p.mcheck = false
			p.sendRSTP = rstpVersion
			p.mdelayWhile.start(MigrateTime)
			return true
		case p.rcvdSTP:
			// Legacy neighbor detected (or still talking), fall back
			// and hold for another migration interval.
			p.ppm = ppmSelectingSTP
			p.sendRSTP = false
			p.rcvdSTP = false
			p.mdelayWhile.start(MigrateTime)
			p.newInfo = true
			return true
		}
	}
	return false
}

// runBDM is the Bridge Detection machine: operational edge state from
// the admin flag or from BPDU silence on an auto-edge port.
func (p *port) runBDM() bool {
	switch p.bdm {
	case bdmNotEdge:
		autoDetected := p.config.AutoEdge && p.edgeDelayWhile.expired() &&
			p.sendRSTP && p.cist().proposing && p.enabled()
		if (!p.enabled() && p.config.AdminEdge) || autoDetected {
			p.bdm = bdmEdge
			p.operEdge = true
			return true
		}
	case bdmEdge:
		if (!p.enabled() && !p.config.AdminEdge) || !p.operEdge {
			p.bdm = bdmNotEdge
			p.operEdge = false
			return true
		}
	}
	return false
}
