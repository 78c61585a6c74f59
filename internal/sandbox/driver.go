package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Run compiles and executes one snippet to a terminal outcome. The snippet
// must evaluate to a single asynchronous computation (an async self-invoking
// closure); the driver awaits its resolution within the session's wall-clock
// budget, suspending and resuming at capability-call boundaries.
//
// Run drives the whole state machine
// Created→Compiled→Running→Awaiting→{Completed|Failed|TimedOut} and tears
// the session down unconditionally before returning.
func (s *Session) Run(ctx context.Context, snippet string) *Outcome {
	start := time.Now()
	defer s.Close()

	if s.started {
		return s.terminal(start, StateFailed, nil,
			newFailure(FailureResource, "session is single-use and has already run"))
	}
	s.started = true

	prog, err := goja.Compile("snippet.js", snippet, true)
	if err != nil {
		return s.terminal(start, StateFailed, nil,
			newFailure(FailureCompile, err.Error()))
	}
	s.state = StateCompiled

	// The driver owns the deadline. The engine interrupt below is only the
	// in-VM guard against busy loops; the select in the await loop is what
	// bounds the run even while suspended on host calls.
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	s.bridge.ctx = runCtx

	timer := time.NewTimer(s.cfg.Timeout)
	defer timer.Stop()
	go s.watchdog(runCtx)

	s.state = StateRunning
	val, err := s.vm.RunProgram(prog)
	if err != nil {
		failure := s.classify(err)
		state := StateFailed
		if failure.Kind == FailureTimeout {
			state = StateTimedOut
		}
		return s.terminal(start, state, nil, failure)
	}

	promise, ok := val.Export().(*goja.Promise)
	if !ok {
		return s.terminal(start, StateFailed, nil, newFailure(FailureRuntime,
			"snippet must evaluate to a single asynchronous computation (async IIFE)"))
	}

	s.state = StateAwaiting
	for promise.State() == goja.PromiseStatePending {
		if s.bridge.pendingCount() == 0 {
			return s.terminal(start, StateFailed, nil, newFailure(FailureRuntime,
				"snippet suspended with no outstanding capability calls"))
		}

		select {
		case resp := <-s.bridge.responses:
			if failure := s.deliver(resp); failure != nil {
				state := StateFailed
				if failure.Kind == FailureTimeout {
					state = StateTimedOut
				}
				return s.terminal(start, state, nil, failure)
			}
		case <-timer.C:
			return s.terminal(start, StateTimedOut, nil, newFailure(FailureTimeout,
				fmt.Sprintf("execution exceeded %s deadline", s.cfg.Timeout)))
		case <-ctx.Done():
			return s.terminal(start, StateTimedOut, nil, newFailure(FailureTimeout,
				fmt.Sprintf("run cancelled: %v", ctx.Err())))
		}
	}

	if promise.State() == goja.PromiseStateRejected {
		return s.terminal(start, StateFailed, nil,
			newFailure(FailureRuntime, rejectionMessage(promise.Result())))
	}

	value, failure := s.exportResult(promise.Result())
	if failure != nil {
		return s.terminal(start, StateFailed, nil, failure)
	}
	return s.terminal(start, StateCompleted, value, nil)
}

// watchdog interrupts the VM when the budget or caller context expires, so
// code busy inside the engine cannot outlive the deadline. It exits quietly
// at teardown.
func (s *Session) watchdog(runCtx context.Context) {
	select {
	case <-runCtx.Done():
		s.vm.Interrupt("execution deadline exceeded")
	case <-s.done:
	}
}

// deliver routes one response into the VM, converting panics escaping the
// reaction jobs (interrupts, stack overflows) into the failure taxonomy.
func (s *Session) deliver(resp response) (failure *Failure) {
	defer func() {
		if r := recover(); r == nil {
			return
		} else if _, ok := r.(*goja.InterruptedError); ok {
			failure = newFailure(FailureTimeout,
				fmt.Sprintf("execution exceeded %s deadline", s.cfg.Timeout))
		} else if _, ok := r.(*goja.StackOverflowError); ok {
			failure = newFailure(FailureResource, "call stack limit exceeded")
		} else {
			failure = newFailure(FailureRuntime, fmt.Sprintf("%v", r))
		}
	}()

	s.bridge.deliver(resp)
	return nil
}

// classify maps an engine error from compilation or execution onto the
// failure taxonomy.
func (s *Session) classify(err error) *Failure {
	switch e := err.(type) {
	case *goja.InterruptedError:
		return newFailure(FailureTimeout,
			fmt.Sprintf("execution exceeded %s deadline", s.cfg.Timeout))
	case *goja.StackOverflowError:
		return newFailure(FailureResource, "call stack limit exceeded")
	case *goja.Exception:
		return newFailure(FailureRuntime, e.Error())
	default:
		return newFailure(FailureRuntime, err.Error())
	}
}

// exportResult marshals the resolved value out of the VM as a JSON-safe
// copy. The value is returned exactly as produced; the driver performs no
// reinterpretation or clamping.
func (s *Session) exportResult(val goja.Value) (interface{}, *Failure) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	copied, err := deepCopy(val.Export())
	if err != nil {
		return nil, newFailure(FailureRuntime,
			fmt.Sprintf("snippet result is not JSON-safe: %v", err))
	}
	return copied, nil
}

// rejectionMessage renders a rejected promise's reason.
func rejectionMessage(reason goja.Value) string {
	if reason == nil || goja.IsUndefined(reason) || goja.IsNull(reason) {
		return "snippet rejected without a reason"
	}
	return reason.String()
}

// terminal records the terminal state and builds the outcome.
func (s *Session) terminal(start time.Time, state State, value interface{}, failure *Failure) *Outcome {
	s.state = state
	duration := time.Since(start)

	if failure != nil {
		s.log.Info("run finished",
			zap.String("state", state.String()),
			zap.String("failure_kind", string(failure.Kind)),
			zap.Duration("duration", duration),
		)
	} else {
		s.log.Info("run finished",
			zap.String("state", state.String()),
			zap.Duration("duration", duration),
		)
	}

	return &Outcome{
		RunID:    s.runID,
		State:    state,
		Value:    value,
		Failure:  failure,
		Duration: duration,
	}
}
