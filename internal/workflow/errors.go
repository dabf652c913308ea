package workflow

import (
	"fmt"

	"github.com/loanflow/loanflow/internal/model"
)

// StepError reports the step that stopped a run.
type StepError struct {
	Workflow string
	RunID    string
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("workflow %s run %s: step %s failed: %v", e.Workflow, e.RunID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ErrorKind keeps the category of a typed step failure (for example a
// validation error raised by an input check) and is KindExecution otherwise.
func (e *StepError) ErrorKind() model.ErrorKind {
	if k := model.KindOf(e.Err); k != model.KindInternal {
		return k
	}
	return model.KindExecution
}

// PanicError wraps a value recovered from a panicking step.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("step panicked: %v", e.Value)
}
