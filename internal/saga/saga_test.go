package saga

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRunner_ExecutesStepsInOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	steps := []Step{
		{Name: "first", Run: func(context.Context) error {
			calls = append(calls, "first")
			return nil
		}},
		{Name: "second", Run: func(context.Context) error {
			calls = append(calls, "second")
			return nil
		}},
	}

	if err := (Runner{}).Execute(context.Background(), steps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("unexpected call order: %v", calls)
	}
}

func TestRunner_UnwindsCommittedStepsInReverse(t *testing.T) {
	t.Parallel()

	var compensated []string
	boom := errors.New("boom")

	mkStep := func(name string) Step {
		return Step{
			Name: name,
			Run:  func(context.Context) error { return nil },
			Compensate: func(context.Context) error {
				compensated = append(compensated, name)
				return nil
			},
		}
	}

	steps := []Step{
		mkStep("a"),
		mkStep("b"),
		{Name: "c", Run: func(context.Context) error { return boom }},
		{Name: "d", Run: func(context.Context) error {
			t.Fatalf("step after failure must not run")
			return nil
		}},
	}

	err := (Runner{}).Execute(context.Background(), steps)
	if !errors.Is(err, boom) {
		t.Fatalf("expected triggering error, got %v", err)
	}
	if len(compensated) != 2 || compensated[0] != "b" || compensated[1] != "a" {
		t.Fatalf("unexpected compensation order: %v", compensated)
	}
}

func TestRunner_SkipsNilCompensations(t *testing.T) {
	t.Parallel()

	var compensated []string
	steps := []Step{
		{Name: "auth", Run: func(context.Context) error { return nil }},
		{
			Name: "reserve",
			Run:  func(context.Context) error { return nil },
			Compensate: func(context.Context) error {
				compensated = append(compensated, "reserve")
				return nil
			},
		},
		{Name: "pay", Run: func(context.Context) error { return errors.New("declined") }},
	}

	if err := (Runner{}).Execute(context.Background(), steps); err == nil {
		t.Fatalf("expected error")
	}
	if len(compensated) != 1 || compensated[0] != "reserve" {
		t.Fatalf("unexpected compensations: %v", compensated)
	}
}

func TestRunner_CompensationFailureDoesNotChangeOutcome(t *testing.T) {
	t.Parallel()

	var logged []string
	runner := Runner{Logf: func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}}

	trigger := errors.New("trigger")
	steps := []Step{
		{
			Name:       "reserve",
			Run:        func(context.Context) error { return nil },
			Compensate: func(context.Context) error { return errors.New("cancel failed") },
		},
		{Name: "pay", Run: func(context.Context) error { return trigger }},
	}

	err := runner.Execute(context.Background(), steps)
	if !errors.Is(err, trigger) {
		t.Fatalf("expected trigger error, got %v", err)
	}
	if len(logged) != 1 {
		t.Fatalf("expected one logged compensation failure, got %v", logged)
	}
}
