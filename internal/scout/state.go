package scout

// State is the lifecycle of a crawl session.
type State string

// Session states. A session moves from Idle to Running and ends in exactly
// one of the terminal states.
const (
	StateIdle      State = "IDLE"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateStopped   State = "STOPPED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateStopped, StateFailed:
		return true
	default:
		return false
	}
}
