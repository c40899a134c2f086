package wallet

// State is the wallet connection state. Transitions are driven only by
// signing-agent events, never invented locally (Connect sets StateConnecting
// as local intent; everything else flows through Transition).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StatePaired
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StatePaired:
		return "paired"
	default:
		return "unknown"
	}
}

// Transition maps an agent event onto the next connection state. It is pure
// (state in, event in, state out) and idempotent: events may arrive in any
// order relative to method calls, including a remote disconnect with no
// local Disconnect call.
func Transition(s State, ev Event) State {
	switch e := ev.(type) {
	case PairingCompleted:
		return StatePaired
	case Disconnected:
		return StateDisconnected
	case StatusChanged:
		if !e.Connected {
			return StateDisconnected
		}
		// Relay connectivity alone cannot invent a pairing.
		return s
	default:
		return s
	}
}
