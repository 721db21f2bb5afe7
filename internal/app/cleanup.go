package app

import (
	"errors"
	"fmt"

	"github.com/mixtray/mixtray/internal/logging"
)

type cleanupStep struct {
	name string
	fn   func() error
}

// cleanupStack releases resources in reverse acquisition order.
type cleanupStack struct {
	steps []cleanupStep
}

func (s *cleanupStack) push(name string, fn func() error) {
	s.steps = append(s.steps, cleanupStep{name: name, fn: fn})
}

// unwind runs every step once, last pushed first. A failing step is logged
// and does not stop the remaining steps.
func (s *cleanupStack) unwind(log *logging.Logger) error {
	var errs []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.fn(); err != nil {
			log.Warn().Err(err).Str("step", step.name).Msg("Cleanup step failed")
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		} else {
			log.Debug().Str("step", step.name).Msg("Cleanup step done")
		}
	}
	s.steps = nil
	return errors.Join(errs...)
}
