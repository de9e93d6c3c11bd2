package scenario

import (
	"fmt"
	"log"
)

// AssertionMode controls how expectation failures are reported.
type AssertionMode int

const (
	// AssertionStrict fails the run on the first unmet expectation.
	AssertionStrict AssertionMode = iota
	// AssertionLogOnly logs unmet expectations and keeps running. Useful
	// when exploring a scenario against an engine change.
	AssertionLogOnly
)

// Assertions evaluates scenario expectations under a mode.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
}

// Failf reports an unconditional failure. Precondition violations use it;
// the mode never downgrades them.
func (a Assertions) Failf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Assertf reports an expectation failure. In log-only mode it logs and
// lets the run continue.
func (a Assertions) Assertf(format string, args ...any) error {
	if a.Mode == AssertionLogOnly {
		if a.Logger != nil {
			a.Logger.Printf("expectation not met: "+format, args...)
		}
		return nil
	}
	return fmt.Errorf(format, args...)
}
