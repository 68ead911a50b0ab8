package mstp

import (
	"github.com/sirupsen/logrus"

	"github.com/thelastdreamer/GoMSTP/pkg/protocol"
)

// maxRounds bounds the quiescence drive. The 802.1Q machines reach a
// fixed point under the fixed iteration order; exceeding the bound
// means a flapping bug and is fatal.
const maxRounds = 128

// runStateMachines drives every machine to quiescence after one
// external stimulus, then flushes the driver side effects the
// machines marked. The scheduler is the sole caller of driver hooks.
func (br *Bridge) runStateMachines() {
	rounds := 0
	for {
		changed := false
		for _, p := range br.ports {
			changed = p.runPRX() || changed
			changed = p.runPPM() || changed
		}
		for _, p := range br.ports {
			for _, ptp := range p.trees {
				changed = ptp.runPIM() || changed
			}
		}
		for _, t := range br.trees {
			changed = t.runPRS() || changed
		}
		for _, p := range br.ports {
			for _, ptp := range p.trees {
				changed = ptp.runPRT() || changed
				changed = ptp.runPST() || changed
				changed = ptp.runTCM() || changed
			}
		}
		for _, p := range br.ports {
			changed = p.runBDM() || changed
			changed = p.runPTX() || changed
		}
		if !changed {
			break
		}
		rounds++
		if rounds > maxRounds {
			br.log.WithFields(logrus.Fields{
				"rounds": rounds,
			}).Fatal("state machines did not reach quiescence")
			return
		}
	}
	br.flushSideEffects()
}

// flushSideEffects pushes the coalesced per-(port, tree) forwarding
// states and pending FDB flushes out through the driver. States that
// changed more than once during the drive are pushed once, with the
// final value.
func (br *Bridge) flushSideEffects() {
	for _, p := range br.ports {
		for _, ptp := range p.trees {
			if ptp.statePushed {
				continue
			}
			ptp.statePushed = true
			installed := br.driver.SetPortState(p.ifindex, ptp.tree.mstid, ptp.state)
			if installed != ptp.state {
				// The pushed state is treated as effective
				// regardless; the driver's answer is only logged.
				br.log.WithFields(logrus.Fields{
					"port":  p.name,
					"mstid": ptp.tree.mstid,
					"want":  ptp.state,
					"got":   installed,
				}).Warn("driver installed a different port state")
			}
			switch ptp.state {
			case protocol.StateForwarding:
				p.counters.NumTransFwd++
			case protocol.StateDiscarding:
				p.counters.NumTransBlk++
			}
		}
	}
	for _, p := range br.ports {
		for _, ptp := range p.trees {
			if ptp.fdbFlush && !ptp.flushPending {
				ptp.flushPending = true
				br.driver.FlushFIDs(p.ifindex, ptp.tree.mstid)
			}
			if !ptp.fdbFlush {
				ptp.flushPending = false
			}
		}
	}
}
