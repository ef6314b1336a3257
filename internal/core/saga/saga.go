// Package saga runs a checkout as a fixed sequence of steps with typed outcomes.
//
// The backing store offers no cross-collection transaction and committed
// writes are never undone, so there is no compensation phase. A failing
// critical step ends the run; a failing non-critical step is recorded as a
// warning and the run continues.
package saga

import (
	"context"
	"log/slog"
)

type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeDegraded  Outcome = "degraded"
	OutcomeWarning   Outcome = "warning"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Step represents a single unit of work in the saga.
type Step interface {
	Name() string
	// Critical steps abort the run on error.
	Critical() bool
	Execute(ctx context.Context) (Outcome, error)
}

// StepFunc adapts a function to Step.
type StepFunc struct {
	StepName   string
	IsCritical bool
	Fn         func(ctx context.Context) (Outcome, error)
}

func (s StepFunc) Name() string   { return s.StepName }
func (s StepFunc) Critical() bool { return s.IsCritical }

func (s StepFunc) Execute(ctx context.Context) (Outcome, error) {
	return s.Fn(ctx)
}

type StepResult struct {
	Step    string
	Outcome Outcome
	Err     error
}

// Report lists one result per step, in execution order. Steps after a
// critical failure are reported as skipped.
type Report struct {
	Results []StepResult
}

// Outcome returns the outcome recorded for the named step.
func (r Report) Outcome(step string) Outcome {
	for _, res := range r.Results {
		if res.Step == step {
			return res.Outcome
		}
	}
	return ""
}

// Orchestrator manages the execution of a collection of Steps.
type Orchestrator struct {
	steps []Step
}

func NewOrchestrator(steps ...Step) *Orchestrator {
	return &Orchestrator{steps: steps}
}

// Run executes the steps strictly in sequence. The returned error is the
// error of the first failing critical step.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	report := Report{Results: make([]StepResult, 0, len(o.steps))}

	for i, step := range o.steps {
		outcome, err := step.Execute(ctx)
		if err != nil {
			if step.Critical() {
				slog.ErrorContext(ctx, "critical step failed", "step", step.Name(), "error", err)
				report.Results = append(report.Results, StepResult{Step: step.Name(), Outcome: OutcomeFailed, Err: err})
				for _, rest := range o.steps[i+1:] {
					report.Results = append(report.Results, StepResult{Step: rest.Name(), Outcome: OutcomeSkipped})
				}
				return report, err
			}
			slog.WarnContext(ctx, "step failed, continuing", "step", step.Name(), "error", err)
			outcome = OutcomeWarning
		}
		report.Results = append(report.Results, StepResult{Step: step.Name(), Outcome: outcome, Err: err})
		slog.DebugContext(ctx, "step done", "step", step.Name(), "outcome", outcome)
	}

	return report, nil
}
