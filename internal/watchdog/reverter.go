package watchdog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grouplock/internal/browser"
	"grouplock/internal/heuristics"
	"grouplock/internal/locator"
)

// ErrStepSkipped means a remediation step found no matching control.
var ErrStepSkipped = errors.New("remediation step skipped")

// Pauses maps the profile's named waits to durations.
type Pauses struct {
	Info time.Duration
	Step time.Duration
}

func (p Pauses) of(w heuristics.Wait) time.Duration {
	switch w {
	case heuristics.WaitInfo:
		return p.Info
	case heuristics.WaitStep:
		return p.Step
	default:
		return 0
	}
}

// StepResult is the outcome of one remediation step. Err is nil when the step
// was applied or an optional control was absent.
type StepResult struct {
	Name    string
	Applied bool
	Err     error
}

// Result lists step outcomes in execution order.
type Result []StepResult

// Applied counts the steps that found and acted on their control.
func (r Result) Applied() int {
	n := 0
	for _, s := range r {
		if s.Applied {
			n++
		}
	}
	return n
}

// Failed counts steps that were skipped or errored.
func (r Result) Failed() int {
	n := 0
	for _, s := range r {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Remediator restores a drifted conversation name.
type Remediator interface {
	Revert(ctx context.Context, inv locator.Invoker, steps []heuristics.Step, name string, logf browser.Logf) Result
}

// Reverter walks the profile's remediation steps. Every step runs regardless
// of how earlier steps went; nothing is verified afterwards.
type Reverter struct {
	Pauses Pauses
}

// Revert runs steps against inv, filling name into fill steps. Pauses ignore
// cancellation so the sequence is never cut off halfway.
func (r *Reverter) Revert(ctx context.Context, inv locator.Invoker, steps []heuristics.Step, name string, logf browser.Logf) Result {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	op := context.WithoutCancel(ctx)
	res := make(Result, 0, len(steps))

	for _, st := range steps {
		var (
			found bool
			err   error
		)
		switch st.Action {
		case heuristics.ActionFill:
			found, err = inv.FillFirst(op, st.Selector, name)
		default:
			found, err = inv.ClickFirst(op, st.Selector)
		}

		sr := StepResult{Name: st.Name, Applied: err == nil && found}
		switch {
		case err != nil:
			sr.Err = fmt.Errorf("step %s: %w", st.Name, err)
			logf("Revert step %s failed: %v", st.Name, err)
		case !found && !st.Optional:
			sr.Err = fmt.Errorf("%w: %s", ErrStepSkipped, st.Name)
			logf("Revert step %s skipped: no matching control", st.Name)
		}
		res = append(res, sr)

		if sr.Applied {
			browser.Sleep(op, r.Pauses.of(st.Wait))
		}
	}
	return res
}
