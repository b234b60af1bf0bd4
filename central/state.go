package central

// State is the session state of the connection manager.
type State int

const (
	Idle State = iota
	Scanning
	Connecting
	HandshakeInProgress
	Ready
	Disconnected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case HandshakeInProgress:
		return "handshake"
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

// Status is a snapshot of the manager.
type Status struct {
	State     State  `json:"-"`
	StateName string `json:"state"`
	ID        string `json:"peripheralId,omitempty"`
	Connected bool   `json:"connected"`
	Bonded    bool   `json:"bonded"`
	Scanning  bool   `json:"scanning"`
}
