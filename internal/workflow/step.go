package workflow

import (
	"context"
	"fmt"

	"github.com/loanflow/loanflow/internal/model"
)

// Context is the run-scoped data shared by the steps of one run.
// It is owned by exactly one run and never shared across runs.
type Context[P, S any] struct {
	RunID   string
	Mode    model.Mode
	Payload P
	State   S
}

// Previewing reports whether side-effecting steps must skip their effect.
func (c *Context[P, S]) Previewing() bool {
	return c.Mode.Previewing()
}

// Result is what a step returns: an output on success or the reason it failed.
type Result struct {
	Output any
	Err    error
}

// Ok returns a successful Result carrying output.
func Ok(output any) Result {
	return Result{Output: output}
}

// Err returns a failed Result. A nil err is replaced so the failure is not lost.
func Err(err error) Result {
	if err == nil {
		err = fmt.Errorf("step failed without a reason")
	}
	return Result{Err: err}
}

// Errf returns a failed Result with a formatted reason.
func Errf(format string, args ...any) Result {
	return Result{Err: fmt.Errorf(format, args...)}
}

// StepFunc is the body of a step.
type StepFunc[P, S any] func(ctx context.Context, wc *Context[P, S]) Result

// Step is one named unit of work.
type Step[P, S any] struct {
	Name string
	Run  StepFunc[P, S]
}
