package mstp

import "testing"

func TestTimerLifecycle(t *testing.T) {
	var tm timer

	if !tm.expired() || tm.running() {
		t.Error("zero timer should be expired")
	}

	tm.start(3)
	if tm.expired() || !tm.running() {
		t.Error("started timer should be running")
	}

	tm.tick()
	tm.tick()
	if tm.expired() {
		t.Error("timer expired early")
	}
	tm.tick()
	if !tm.expired() {
		t.Error("timer should expire after three ticks")
	}

	// Ticking an expired timer must not wrap.
	tm.tick()
	if tm.running() {
		t.Error("expired timer started running again")
	}

	tm.start(5)
	tm.stop()
	if !tm.expired() {
		t.Error("stopped timer should be expired")
	}
}
