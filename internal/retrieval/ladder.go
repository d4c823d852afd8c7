package retrieval

import (
	"context"
	"errors"
	"fmt"
)

// Step is one strategy of a fallback ladder. A step that does not apply
// returns nil, nil.
type Step[T any] struct {
	Name string
	Run  func(ctx context.Context) ([]T, error)
}

// Ladder evaluates its steps in order and stops at the first one that
// yields a non-empty result. Later steps are never run once one succeeds.
type Ladder[T any] struct {
	steps []Step[T]
}

// NewLadder creates a ladder over steps.
func NewLadder[T any](steps ...Step[T]) *Ladder[T] {
	return &Ladder[T]{steps: steps}
}

// Then appends a step.
func (l *Ladder[T]) Then(name string, run func(ctx context.Context) ([]T, error)) *Ladder[T] {
	l.steps = append(l.steps, Step[T]{Name: name, Run: run})
	return l
}

// LadderResult is the outcome of a ladder run.
type LadderResult[T any] struct {
	Items []T
	// Tier names the step that produced Items; empty when every step came up
	// empty.
	Tier string
	// Failures holds the errors of steps that failed before Tier.
	Failures []error
}

// Run evaluates the ladder. A failing step is recorded and skipped. The error
// is non-nil only when no step produced items and at least one failed.
func (l *Ladder[T]) Run(ctx context.Context) (LadderResult[T], error) {
	var res LadderResult[T]
	for _, step := range l.steps {
		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, err)
			break
		}
		items, err := step.Run(ctx)
		if err != nil {
			res.Failures = append(res.Failures, fmt.Errorf("%s: %w", step.Name, err))
			continue
		}
		if len(items) > 0 {
			res.Items, res.Tier = items, step.Name
			return res, nil
		}
	}
	if len(res.Failures) > 0 {
		return res, errors.Join(res.Failures...)
	}
	return res, nil
}
