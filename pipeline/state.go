package pipeline

import "github.com/beblucech/entry"

// State is what the pipeline displays for the current scan.
type State int

const (
	Idle State = iota
	Processing
	Success
	Retry
	Expired
	Failed
	DeviceIssue
	NetworkIssue
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Success:
		return "success"
	case Retry:
		return "retry"
	case Expired:
		return "expired"
	case Failed:
		return "failed"
	case DeviceIssue:
		return "device issue"
	case NetworkIssue:
		return "network issue"
	}
	return "unknown"
}

// Mode selects what an admitted scan does.
type Mode int

const (
	// ModeEntry unlocks the door for roster members and allowed guests.
	ModeEntry Mode = iota
	// ModeEnroll adds the scanned identity to the roster.
	ModeEnroll
)

func (m Mode) String() string {
	if m == ModeEnroll {
		return "enroll"
	}
	return "entry"
}

// Outcome is the result of one scan. Err is classified with
// entry.Classify; Member is set once the remote service identified the
// token holder.
type Outcome struct {
	State  State
	Err    error
	Member *entry.Member
}
