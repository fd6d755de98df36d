package conn

// State is the connection lifecycle phase. Exactly one is active at a time.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	// StateFailed is terminal until an explicit Reset.
	StateFailed State = "failed"
)

// GaugeValue maps a state onto the connection-state metric scale.
func (s State) GaugeValue() float64 {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateReconnecting:
		return 3
	case StateFailed:
		return 4
	default:
		return 0
	}
}
