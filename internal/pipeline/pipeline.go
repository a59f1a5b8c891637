package pipeline

import (
	"context"
	"log/slog"
)

// Step is one stage of a page scan.
type Step interface {
	// Do executes the step against the page state. Degraded outcomes are
	// recorded in the state and return nil; a returned error aborts the page.
	Do(ctx context.Context, state *PageState) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps []Step

	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddSteps after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddSteps appends steps to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the pipeline steps in sequence and stops at the first error.
// Cancellation is checked before each step; steps handle their own timeouts.
func (p *Pipeline) Execute(ctx context.Context, state *PageState) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", state.URL,
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"url", state.URL,
		)

		if err := step.Do(ctx, state); err != nil {
			p.logger.Debug("step failed",
				"step", step.Name(),
				"url", state.URL,
				"error", err,
			)
			state.Failed = append(state.Failed, step.Name())
			return err
		}

		state.Performed = append(state.Performed, step.Name())
	}

	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
