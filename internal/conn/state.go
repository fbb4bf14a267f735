package conn

// State describes connection liveness. Exactly one value holds at a time,
// mutated only by the Manager under its lock. Subscribers receive copies.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Health is a coarse classification of stream quality, derived purely from
// recent frame-arrival cadence. It is meaningful only while Connected and
// forced to HealthCritical otherwise.
type Health int

const (
	HealthCritical  Health = iota // <10 fps, or not connected
	HealthPoor                    // 10-20 fps
	HealthGood                    // 20-28 fps
	HealthExcellent               // >28 fps
)

func (h Health) String() string {
	switch h {
	case HealthCritical:
		return "critical"
	case HealthPoor:
		return "poor"
	case HealthGood:
		return "good"
	case HealthExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}
