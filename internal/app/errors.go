package app

import "fmt"

// Sync stages reported by StageError.
const (
	StageBuild = "build"
	StageLoad  = "load"
	StageApply = "apply"
)

// StageError tags a fatal sync failure with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
