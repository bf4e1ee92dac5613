package choreo

import "fmt"

// Stage names one step of a split-proof submission.
type Stage uint8

const (
	StageGenerate Stage = iota
	StageAllocate
	StagePopulate
	StagePrimary
	StageCleanup
)

func (s Stage) String() string {
	switch s {
	case StageGenerate:
		return "generate"
	case StageAllocate:
		return "allocate"
	case StagePopulate:
		return "populate"
	case StagePrimary:
		return "primary"
	case StageCleanup:
		return "cleanup"
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// StageError records the stage a saga failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("choreo: %s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(s Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: s, Err: err}
}
