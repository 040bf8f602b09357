package saga

import (
	"context"
	"log"
)

// Step is one forward action in a saga. Compensate, when set, undoes the
// step after a later step fails; it is left nil for steps with nothing to
// undo.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Runner executes steps in order and stops at the first failure. On
// failure it walks the compensations of the steps that committed before
// the failing one, newest first. Compensation errors are logged and do not
// change the outcome decided by the failing step.
type Runner struct {
	Logf func(format string, args ...any)
}

// Execute runs the steps. The returned error is the failing step's error,
// unchanged, or nil when every step succeeded.
func (r Runner) Execute(ctx context.Context, steps []Step) error {
	var committed []Step
	for _, step := range steps {
		if err := step.Run(ctx); err != nil {
			r.unwind(ctx, committed)
			return err
		}
		if step.Compensate != nil {
			committed = append(committed, step)
		}
	}
	return nil
}

func (r Runner) unwind(ctx context.Context, committed []Step) {
	for i := len(committed) - 1; i >= 0; i-- {
		step := committed[i]
		if err := step.Compensate(ctx); err != nil {
			r.logf("compensate %s: %v", step.Name, err)
		}
	}
}

func (r Runner) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}
