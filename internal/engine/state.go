package engine

// Status is the playback scheduler's lifecycle state. Terminal
// transitions always return to StatusIdle.
type Status int32

const (
	// StatusIdle means no session is active.
	StatusIdle Status = iota
	// StatusPreparing means cue audio is being synthesized up front.
	StatusPreparing
	// StatusPlaying means cues are being played on the interval loop.
	StatusPlaying
)

// String returns the state name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPreparing:
		return "preparing"
	case StatusPlaying:
		return "playing"
	default:
		return "unknown"
	}
}
