package sandbox

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/marketscript/backend/internal/infrastructure/logging"
	"github.com/marketscript/backend/internal/shared/id"
)

// maxCallStackDepth bounds VM recursion. goja exposes no true heap ceiling,
// so the memory budget maps to the engine's available knobs: call stack depth
// scaled by the configured limit, and stack overflows surfaced as
// ResourceError.
const maxCallStackDepth = 1024

// Session is one sandbox instance: a fresh goja VM, its capability bindings,
// and a resource budget. Sessions are single-use; the VM goroutine is the
// caller of Run, and teardown happens exactly once on every exit path.
type Session struct {
	vm      *goja.Runtime
	cfg     Config
	bridge  *bridge
	runID   id.RunID
	state   State
	log     *logging.Logger
	started bool

	// done gates the bridge: closed at teardown so in-flight capability
	// responses are discarded instead of delivered.
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession creates a fresh sandbox with the given budget and installs the
// capability surface into it. Both limits are mandatory; invalid limits are
// reported as ResourceError.
func NewSession(cfg Config) (*Session, *Failure) {
	if cfg.MemoryLimitMB <= 0 {
		return nil, newFailure(FailureResource,
			fmt.Sprintf("memory limit must be positive, got %d MB", cfg.MemoryLimitMB))
	}
	if cfg.Timeout <= 0 {
		return nil, newFailure(FailureResource,
			fmt.Sprintf("timeout must be positive, got %s", cfg.Timeout))
	}
	if cfg.Surface == nil {
		return nil, newFailure(FailureResource, "capability surface is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	runID := id.NewRunID()
	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackDepth)

	s := &Session{
		vm:    vm,
		cfg:   cfg,
		runID: runID,
		state: StateCreated,
		log:   &logging.Logger{Logger: cfg.Logger.Named("sandbox").With(zap.String("run_id", runID.String()))},
		done:  make(chan struct{}),
	}

	s.hardenGlobals()

	s.bridge = newBridge(vm, cfg.Surface, s.done, s.log)
	if err := s.bridge.install(); err != nil {
		s.Close()
		return nil, newFailure(FailureResource, fmt.Sprintf("failed to bind capabilities: %v", err))
	}

	return s, nil
}

// hardenGlobals strips ambient host access from the VM. The capability
// surface is the only channel out of the sandbox: no module system, no
// timers, no eval.
func (s *Session) hardenGlobals() {
	for _, name := range []string{"require", "process", "module", "exports", "eval"} {
		s.vm.Set(name, goja.Undefined())
	}
	// Timer primitives stay undefined so scheduling stays at capability
	// boundaries only.
}

// RunID returns the session's run identifier.
func (s *Session) RunID() id.RunID {
	return s.runID
}

// State returns the driver's current state.
func (s *Session) State() State {
	return s.state
}

// Close tears the session down. It is idempotent, safe on every exit path,
// and never fails the run: teardown problems are logged only, since they
// carry no information about result correctness.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Warn("teardown panic suppressed", zap.Any("panic", r))
			}
		}()

		close(s.done)
		if s.vm != nil {
			s.vm.Interrupt("session disposed")
		}
		s.log.Debug("session torn down",
			zap.String("state", s.state.String()),
			zap.Int("discarded_calls", s.bridge.pendingCount()),
		)
	})
}
