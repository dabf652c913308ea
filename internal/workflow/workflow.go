package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loanflow/loanflow/internal/model"
)

const tracerName = "github.com/loanflow/loanflow/internal/workflow"

// Status is the terminal state of a run.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// RunResult is the record of one run. On failure it holds whatever per-step
// outputs were recorded before the failing step.
type RunResult[S any] struct {
	Workflow   string         `json:"workflow"`
	RunID      string         `json:"run_id"`
	Mode       model.Mode     `json:"mode"`
	Status     Status         `json:"status"`
	Steps      map[string]any `json:"results"`
	Order      []string       `json:"order"`
	FailedStep string         `json:"failed_step,omitempty"`
	FinalState S              `json:"final_state"`
}

// Workflow is a named, fixed, ordered list of steps.
//
// INVARIANTS:
//   - steps order NEVER changes after construction
//   - step names are unique and non-empty
//
// A Workflow is stateless across runs and safe for concurrent use.
type Workflow[P, S any] struct {
	name   string
	steps  []Step[P, S]
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Workflow.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
}

// WithLogger sets the logger used for run and step events.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sets the provider spans are created from.
// Default: the global provider from otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// New creates a Workflow. The steps slice is copied so later mutation by the
// caller cannot reorder the declared sequence.
func New[P, S any](name string, steps []Step[P, S], opts ...Option) (*Workflow[P, S], error) {
	if name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return nil, fmt.Errorf("workflow %s: step %d has no name", name, i)
		}
		if s.Run == nil {
			return nil, fmt.Errorf("workflow %s: step %s has no function", name, s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("workflow %s: duplicate step name %q", name, s.Name)
		}
		seen[s.Name] = true
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}

	stepsCopy := make([]Step[P, S], len(steps))
	copy(stepsCopy, steps)

	return &Workflow[P, S]{
		name:   name,
		steps:  stepsCopy,
		logger: o.logger,
		tracer: o.tracerProvider.Tracer(tracerName),
	}, nil
}

// Name returns the workflow name.
func (w *Workflow[P, S]) Name() string {
	return w.name
}

// StepNames returns step names in declaration order.
func (w *Workflow[P, S]) StepNames() []string {
	names := make([]string, len(w.steps))
	for i, s := range w.steps {
		names[i] = s.Name
	}
	return names
}

// Run executes the steps in order against wc.
//
// On success the result has StatusCompleted and a nil error. On the first
// failing step the run stops, the result has StatusFailed with the outputs
// recorded so far, and the error is a *StepError.
func (w *Workflow[P, S]) Run(ctx context.Context, wc *Context[P, S]) (*RunResult[S], error) {
	if err := wc.Mode.Validate(); err != nil {
		return nil, model.Validation("workflow %s: %v", w.name, err)
	}

	ctx, span := w.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.name", w.name),
		attribute.String("workflow.run_id", wc.RunID),
		attribute.String("workflow.mode", string(wc.Mode)),
	))
	defer span.End()

	w.logger.Info("workflow starting", "workflow", w.name, "run_id", wc.RunID, "mode", wc.Mode)

	result := &RunResult[S]{
		Workflow: w.name,
		RunID:    wc.RunID,
		Mode:     wc.Mode,
		Steps:    make(map[string]any, len(w.steps)),
		Order:    make([]string, 0, len(w.steps)),
	}

	for _, step := range w.steps {
		var res Result
		if err := ctx.Err(); err != nil {
			res = Err(fmt.Errorf("run aborted before step: %w", err))
		} else {
			res = w.runStep(ctx, step, wc)
		}

		if res.Err != nil {
			stepErr := &StepError{Workflow: w.name, RunID: wc.RunID, Step: step.Name, Err: res.Err}
			w.logger.Error("workflow step failed",
				"workflow", w.name, "run_id", wc.RunID, "step", step.Name, "error", res.Err)
			span.RecordError(stepErr)
			span.SetStatus(codes.Error, stepErr.Error())

			result.Status = StatusFailed
			result.FailedStep = step.Name
			result.FinalState = wc.State
			return result, stepErr
		}

		result.Steps[step.Name] = res.Output
		result.Order = append(result.Order, step.Name)
	}

	result.Status = StatusCompleted
	result.FinalState = wc.State
	w.logger.Info("workflow completed", "workflow", w.name, "run_id", wc.RunID, "steps", len(result.Order))
	return result, nil
}

func (w *Workflow[P, S]) runStep(ctx context.Context, step Step[P, S], wc *Context[P, S]) (res Result) {
	ctx, span := w.tracer.Start(ctx, "workflow.step", trace.WithAttributes(
		attribute.String("workflow.name", w.name),
		attribute.String("workflow.step", step.Name),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			res = Err(&PanicError{Value: r})
		}
		if res.Err != nil {
			span.SetStatus(codes.Error, res.Err.Error())
		}
	}()

	w.logger.Debug("executing step", "workflow", w.name, "run_id", wc.RunID, "step", step.Name)
	return step.Run(ctx, wc)
}
