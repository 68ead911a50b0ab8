package mstp

// timer is a one-second-tick countdown owned by a state machine.
// Timers never fire callbacks; machines consult them inside their own
// transition predicates.
type timer uint16

func (t *timer) start(seconds uint8) { *t = timer(seconds) }

func (t *timer) stop() { *t = 0 }

func (t timer) expired() bool { return t == 0 }

func (t timer) running() bool { return t > 0 }

// tick decrements a running timer by one second.
func (t *timer) tick() {
	if *t > 0 {
		*t--
	}
}
