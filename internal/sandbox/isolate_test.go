package sandbox

import (
	"context"
	"testing"
	"time"
)

func TestNewSessionRejectsBadLimits(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero memory", Config{MemoryLimitMB: 0, Timeout: time.Second, Surface: testSurface()}},
		{"negative memory", Config{MemoryLimitMB: -1, Timeout: time.Second, Surface: testSurface()}},
		{"zero timeout", Config{MemoryLimitMB: 64, Timeout: 0, Surface: testSurface()}},
		{"missing surface", Config{MemoryLimitMB: 64, Timeout: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, failure := NewSession(tt.cfg)
			if session != nil {
				t.Fatal("expected no session")
			}
			if failure == nil || failure.Kind != FailureResource {
				t.Errorf("expected ResourceError, got %v", failure)
			}
		})
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	session, failure := NewSession(testConfig(time.Second))
	if failure != nil {
		t.Fatalf("failed to create session: %v", failure)
	}

	// Multiple teardowns on racing exit paths must collapse to one.
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			session.Close()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	session.Close()
}

func TestRunClosesSessionOnEveryPath(t *testing.T) {
	snippets := map[string]string{
		"success":       `(async () => 1)()`,
		"compile error": `(async ( => 1)()`,
		"runtime error": `(async () => { throw new Error("x"); })()`,
		"timeout":       `(async () => { while (true) {} })()`,
	}

	for name, snippet := range snippets {
		t.Run(name, func(t *testing.T) {
			session, failure := NewSession(testConfig(100 * time.Millisecond))
			if failure != nil {
				t.Fatalf("failed to create session: %v", failure)
			}
			outcome := session.Run(context.Background(), snippet)
			if !outcome.State.Terminal() {
				t.Errorf("state %s is not terminal", outcome.State)
			}
			// Teardown already ran; a second Close must be a no-op.
			session.Close()
		})
	}
}

func TestDeepRecursionIsResourceError(t *testing.T) {
	outcome := run(t, `var f = function() { return f() + 1; }; f();`)

	if outcome.Failure == nil || outcome.Failure.Kind != FailureResource {
		t.Errorf("expected ResourceError for stack exhaustion, got %v", outcome.Failure)
	}
}

func TestSessionsShareNoState(t *testing.T) {
	first := run(t, `(async () => { globalThis.leak = "secret"; return 1; })()`)
	if !first.Completed() {
		t.Fatalf("first run failed: %v", first.Failure)
	}

	second := run(t, `(async () => typeof globalThis.leak)()`)
	if !second.Completed() {
		t.Fatalf("second run failed: %v", second.Failure)
	}
	if second.Value != "undefined" {
		t.Errorf("state leaked across sessions: %v", second.Value)
	}
}

func TestStateMachineProgression(t *testing.T) {
	session, failure := NewSession(testConfig(time.Second))
	if failure != nil {
		t.Fatalf("failed to create session: %v", failure)
	}
	if session.State() != StateCreated {
		t.Errorf("initial state = %s, want created", session.State())
	}

	outcome := session.Run(context.Background(), `(async () => await getTickerPrice("AAPL"))()`)
	if session.State() != StateCompleted {
		t.Errorf("final state = %s, want completed", session.State())
	}
	if outcome.RunID == "" {
		t.Error("outcome missing run id")
	}
	if outcome.Duration <= 0 {
		t.Error("outcome missing duration")
	}
}
