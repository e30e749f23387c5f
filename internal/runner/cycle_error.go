package runner

import "fmt"

// CycleError reports which stage of a watch cycle failed. The loop logs it
// and carries on with the next tick.
type CycleError struct {
	Stage string
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("watch cycle %s: %v", e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &CycleError{Stage: stage, Err: err}
}
