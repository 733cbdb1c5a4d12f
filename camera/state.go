package camera

type State uint8

const (
	StateIdle State = iota
	StateRequesting
	StateScanning
	StateDetected
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRequesting:
		return "Requesting"
	case StateScanning:
		return "Scanning"
	case StateDetected:
		return "Detected"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var transitions = map[State][]State{
	StateIdle:       {StateRequesting, StateStopped},
	StateRequesting: {StateScanning, StateStopped},
	StateScanning:   {StateDetected, StateStopped},
	StateDetected:   {StateScanning, StateStopped},
}

func (s State) canTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}

	return false
}
