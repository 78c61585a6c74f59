package sandbox

import (
	"time"

	"github.com/marketscript/backend/internal/capabilities"
	"github.com/marketscript/backend/internal/infrastructure/logging"
	"github.com/marketscript/backend/internal/shared/id"
)

// FailureKind tags a terminal session failure.
type FailureKind string

const (
	// FailureCompile marks a malformed snippet. No partial execution occurs.
	FailureCompile FailureKind = "CompileError"
	// FailureRuntime marks an uncaught exception inside the snippet.
	FailureRuntime FailureKind = "RuntimeError"
	// FailureTimeout marks a run that exceeded its wall-clock deadline.
	FailureTimeout FailureKind = "TimeoutError"
	// FailureResource marks a sandbox allocation or limit failure.
	FailureResource FailureKind = "ResourceError"
)

// Failure is the tagged error surfaced to callers for a failed run.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

func newFailure(kind FailureKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

// State is the execution driver's position in the run state machine.
type State int

const (
	StateCreated State = iota
	StateCompiled
	StateRunning
	StateAwaiting
	StateCompleted
	StateFailed
	StateTimedOut
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateCompiled:
		return "compiled"
	case StateRunning:
		return "running"
	case StateAwaiting:
		return "awaiting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// Config holds the explicit per-session resource budget and bindings.
// Both limits are required; there are no implicit defaults at this layer.
type Config struct {
	// MemoryLimitMB is the session's memory ceiling in megabytes.
	MemoryLimitMB int
	// Timeout is the wall-clock budget for the whole run, enforced by the
	// driver independently of the engine's interrupt mechanism.
	Timeout time.Duration
	// Surface is the closed capability registry bound at session creation.
	Surface *capabilities.Surface
	// Logger is optional; a no-op logger is used when nil.
	Logger *logging.Logger
}

// Outcome is the terminal report of one run.
type Outcome struct {
	RunID    id.RunID
	State    State
	Value    interface{}
	Failure  *Failure
	Duration time.Duration
}

// Completed reports whether the run produced a value.
func (o *Outcome) Completed() bool {
	return o.State == StateCompleted
}
