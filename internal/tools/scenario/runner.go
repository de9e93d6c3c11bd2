// Package scenario executes Lua-scripted progression scenarios against an
// in-process engine with a scripted backend and a settable clock. Scripts
// arrange habit and group fixtures, drive counter changes and refreshes, and
// assert on the celebrations, awards, and cursors that result.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/emberhabit/ember/internal/services/progression/domain"
)

// Config controls scenario execution.
type Config struct {
	Timeout    time.Duration
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
	// Start anchors the scenario clock. Zero means a fixed default so runs
	// are reproducible regardless of wall time.
	Start time.Time
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		Assertions: AssertionStrict,
		Verbose:    false,
	}
}

var defaultScenarioStart = time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)

// Runner executes Lua scenarios against an in-process progression engine.
type Runner struct {
	env        scenarioEnv
	assertions Assertions
	logger     *log.Logger
	verbose    bool
	timeout    time.Duration
}

// NewRunner builds the engine and prepares a scenario runner.
func NewRunner(cfg Config) (*Runner, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	start := cfg.Start
	if start.IsZero() {
		start = defaultScenarioStart
	}

	clock := newScenarioClock(start)
	backend := newScriptedBackend(domain.DefaultMilestones)
	cursors := newCursorMap()
	sink := &recordingSink{}

	service, err := domain.NewService(domain.Deps{
		Backend:  backend,
		Cursors:  cursors,
		Events:   sink,
		Clock:    clock.Now,
		Location: time.UTC,
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	return &Runner{
		env: scenarioEnv{
			service: service,
			backend: backend,
			cursors: cursors,
			sink:    sink,
			clock:   clock,
		},
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
		timeout:    timeout,
	}, nil
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	runner, err := NewRunner(cfg)
	if err != nil {
		return err
	}

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	return runner.RunScenario(ctx, scenario)
}

// RunScenario executes the scenario steps against the engine.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	state := &scenarioState{
		scopes: map[string]domain.Scope{},
	}

	for index, step := range scenario.Steps {
		step := step
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, state, step)
		cancel()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

func (r *Runner) failf(format string, args ...any) error {
	return r.assertions.Failf(format, args...)
}

func (r *Runner) assertf(format string, args ...any) error {
	return r.assertions.Assertf(format, args...)
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
