package sandbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marketscript/backend/internal/capabilities"
	"github.com/marketscript/backend/internal/infrastructure/logging"
)

// Recorder receives run outcomes for metrics.
type Recorder interface {
	RecordRun(outcome string, duration time.Duration)
	RunStarted()
	RunFinished()
}

// Limits is the explicit per-run resource budget. Both values are required.
type Limits struct {
	MemoryLimitMB int
	Timeout       time.Duration
}

// Executor runs snippets, one fresh session per snippet. Sessions share the
// capability surface and nothing else: no caches, no connections, no in-VM
// state survives a run.
type Executor struct {
	surface  *capabilities.Surface
	limits   Limits
	log      *logging.Logger
	recorder Recorder

	// slots bounds concurrent sessions.
	slots chan struct{}
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorRecorder attaches a metrics recorder.
func WithExecutorRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

// WithExecutorLogger attaches a logger.
func WithExecutorLogger(log *logging.Logger) ExecutorOption {
	return func(e *Executor) { e.log = log }
}

// WithMaxConcurrent bounds the number of simultaneously running sessions.
func WithMaxConcurrent(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.slots = make(chan struct{}, n)
		}
	}
}

// NewExecutor creates an executor with the given default limits.
func NewExecutor(surface *capabilities.Surface, limits Limits, opts ...ExecutorOption) *Executor {
	e := &Executor{
		surface: surface,
		limits:  limits,
		log:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Limits returns the executor's default budget.
func (e *Executor) Limits() Limits {
	return e.limits
}

// Execute runs one snippet in a fresh session under the given limits.
// Zero-valued limit fields fall back to the executor defaults.
func (e *Executor) Execute(ctx context.Context, snippet string, limits Limits) *Outcome {
	if limits.MemoryLimitMB == 0 {
		limits.MemoryLimitMB = e.limits.MemoryLimitMB
	}
	if limits.Timeout == 0 {
		limits.Timeout = e.limits.Timeout
	}

	if e.slots != nil {
		select {
		case e.slots <- struct{}{}:
			defer func() { <-e.slots }()
		case <-ctx.Done():
			return &Outcome{
				State:   StateFailed,
				Failure: newFailure(FailureResource, "no sandbox slot available before cancellation"),
			}
		}
	}

	start := time.Now()
	if e.recorder != nil {
		e.recorder.RunStarted()
		defer e.recorder.RunFinished()
	}

	session, failure := NewSession(Config{
		MemoryLimitMB: limits.MemoryLimitMB,
		Timeout:       limits.Timeout,
		Surface:       e.surface,
		Logger:        e.log,
	})
	if failure != nil {
		outcome := &Outcome{
			State:    StateFailed,
			Failure:  failure,
			Duration: time.Since(start),
		}
		e.record(outcome)
		return outcome
	}

	e.log.Debug("session created",
		zap.String("run_id", session.RunID().String()),
		zap.Int("memory_mb", limits.MemoryLimitMB),
		zap.Duration("timeout", limits.Timeout),
	)

	outcome := session.Run(ctx, snippet)
	e.record(outcome)
	return outcome
}

func (e *Executor) record(outcome *Outcome) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordRun(outcome.State.String(), outcome.Duration)
}
