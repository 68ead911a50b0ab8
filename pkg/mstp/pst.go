package mstp

import (
	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// runPST is the Port State Transitions machine: it turns the learn
// and forward requests of the role machine into the actual forwarding
// state pushed to the kernel.
func (ptp *perTreePort) runPST() bool {
	switch ptp.pst {
	case pstDiscarding:
		if ptp.learn {
			ptp.pst = pstLearning
			ptp.learning = true
			ptp.setState(protocol.StateLearning)
			return true
		}
	case pstLearning:
		if !ptp.learn {
			ptp.pst = pstDiscarding
			ptp.learning = false
			ptp.setState(protocol.StateDiscarding)
			return true
		}
		if ptp.forward {
			ptp.pst = pstForwarding
			ptp.forwarding = true
			ptp.setState(protocol.StateForwarding)
			return true
		}
	case pstForwarding:
		if !ptp.forward {
			ptp.pst = pstDiscarding
			ptp.learning = false
			ptp.forwarding = false
			ptp.setState(protocol.StateDiscarding)
			return true
		}
	}
	return false
}

// setState records a forwarding state change; the scheduler pushes
// the final value to the driver once per quiescence drive.
func (ptp *perTreePort) setState(s protocol.PortState) {
	if ptp.state == s {
		return
	}
	ptp.state = s
	ptp.statePushed = false
}
