package session

// State is the connection lifecycle of a session.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingSetupAck
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateAwaitingSetupAck:
		return "AWAITING_SETUP_ACK"
	case StateReady:
		return "READY"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

var validTransitions = map[State][]State{
	StateIdle:             {StateConnecting, StateClosed},
	StateClosed:           {StateConnecting, StateIdle},
	StateConnecting:       {StateAwaitingSetupAck, StateIdle, StateClosed},
	StateAwaitingSetupAck: {StateReady, StateIdle, StateClosed},
	StateReady:            {StateIdle, StateClosed},
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports a transition the lifecycle does not allow.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
