package pipeline

import "fmt"

// State is the stage a training run is in.
type State int32

const (
	Idle State = iota
	Loading
	Cleaning
	Vectorizing
	Fitting
	Evaluating
	Persisting
	Failed
)

var stateNames = [...]string{
	Idle:        "idle",
	Loading:     "loading",
	Cleaning:    "cleaning",
	Vectorizing: "vectorizing",
	Fitting:     "fitting",
	Evaluating:  "evaluating",
	Persisting:  "persisting",
	Failed:      "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}
