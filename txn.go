package drivekit

import (
	"context"

	"go.uber.org/zap"
)

// StepFunc performs or undoes one remote call of a multi-step protocol.
type StepFunc func(ctx context.Context) error

// Step is one remote mutation with its compensating action. Undo may be
// nil for steps that need no compensation.
type Step struct {
	Name string
	Do   StepFunc
	Undo StepFunc
}

// Sequence is a multi-step remote protocol expressed as data: the steps
// run strictly in order, and when one fails the completed steps are
// undone in reverse before the original error is returned.
//
// The same sequence can be executed blocking (Run) or handed off to a
// goroutine (Go); both paths share one executor loop, so the branching
// and rollback logic exists exactly once.
type Sequence struct {
	Op     string
	Steps  []Step
	Logger *zap.Logger
}

// Each failed undo step is retried exactly once before rollback moves on.
const undoRetries = 1

// Run executes the sequence in the calling goroutine.
func (s *Sequence) Run(ctx context.Context) error {
	return s.execute(ctx)
}

// Go executes the sequence in its own goroutine and returns a channel
// that yields the final result. Steps still run strictly in order; only
// the caller is decoupled.
func (s *Sequence) Go(ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- s.execute(ctx)
	}()
	return ch
}

func (s *Sequence) execute(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			s.rollback(ctx, logger, i)
			return err
		}
		if err := step.Do(ctx); err != nil {
			s.rollback(ctx, logger, i)
			// Rollback failures never mask the root cause.
			return err
		}
	}
	return nil
}

// rollback undoes steps [0, done) in reverse order, best effort.
func (s *Sequence) rollback(ctx context.Context, logger *zap.Logger, done int) {
	for i := done - 1; i >= 0; i-- {
		step := s.Steps[i]
		if step.Undo == nil {
			continue
		}
		var err error
		for attempt := 0; attempt <= undoRetries; attempt++ {
			if err = step.Undo(ctx); err == nil {
				break
			}
		}
		if err != nil {
			logger.Warn("rollback step failed",
				zap.String("op", s.Op),
				zap.String("step", step.Name),
				zap.Error(err))
		}
	}
}
