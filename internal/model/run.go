package model

import "time"

// TrainingRun summarizes one training invocation. It is logged and discarded.
type TrainingRun struct {
	ID           string
	VersionID    string
	Policy       LabelPolicy
	ExamplesUsed int
	TrainSize    int
	TestSize     int
	// HeldOut is false when the split left too little data and evaluation ran
	// on the training set.
	HeldOut   bool
	Report    string
	StartedAt time.Time
	Duration  time.Duration
}
