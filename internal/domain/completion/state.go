package completion

import "strings"

// Markers the helper launcher appends to the signal file.
const (
	MarkerStart = "START"
	MarkerEnd   = "END"
	MarkerFail  = "FAIL"
)

// State is the execution state of a wrapped command, derived from the
// markers present in its signal file.
type State uint8

const (
	StateNotStarted State = 0
	StateStarted    State = 1 << 0
	StateCompleted  State = 1 << 1
	StateErrored    State = 1 << 2
)

// ParseState derives the state from the full contents of a signal file.
// Any content yields a state; unknown text is ignored.
func ParseState(contents string) State {
	state := StateNotStarted
	if strings.Contains(contents, MarkerStart) {
		state |= StateStarted
	}
	if strings.Contains(contents, MarkerEnd) {
		state |= StateCompleted
	}
	if strings.Contains(contents, MarkerFail) {
		state |= StateCompleted | StateErrored
	}
	return state
}

// Has reports whether every bit of flag is set in s.
func (s State) Has(flag State) bool {
	return flag != 0 && s&flag == flag
}

// Terminal reports whether the command has finished, successfully or not.
func (s State) Terminal() bool {
	return s.Has(StateCompleted)
}

// String returns the string representation of the state
func (s State) String() string {
	if s == StateNotStarted {
		return "not-started"
	}

	var parts []string
	if s.Has(StateStarted) {
		parts = append(parts, "started")
	}
	if s.Has(StateCompleted) {
		parts = append(parts, "completed")
	}
	if s.Has(StateErrored) {
		parts = append(parts, "errored")
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}
