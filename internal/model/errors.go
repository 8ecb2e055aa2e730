package model

import "errors"

var (
	ErrNoData             = errors.New("no labeled examples available")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrDegenerateModel    = errors.New("degenerate model: fewer than two classes")
	ErrNoModelAvailable   = errors.New("no model available")
	ErrNotFound           = errors.New("artifact not found")
	ErrCorruptArtifact    = errors.New("corrupt artifact")
	ErrPersistenceFailure = errors.New("artifact persistence failure")
	ErrTrainingInProgress = errors.New("training already in progress")
)
