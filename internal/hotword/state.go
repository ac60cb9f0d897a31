package hotword

type State int

const (
	StateIdle State = iota
	StateListening
	StateMatched
	StateTimeout
	StateRecognitionError
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateMatched:
		return "MATCHED"
	case StateTimeout:
		return "TIMEOUT"
	case StateRecognitionError:
		return "RECOGNITION_ERROR"
	case StateCooldown:
		return "COOLDOWN"
	default:
		return "UNKNOWN"
	}
}
