package supervisor

type State uint8

const (
	// StateUninitialized is left on the first Start and never re-entered.
	StateUninitialized State = iota
	StateStopped
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}
