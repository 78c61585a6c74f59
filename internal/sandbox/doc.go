/*
Package sandbox executes untrusted JavaScript snippets inside per-run goja
isolates, bridging synchronous-looking capability calls to asynchronous
host-side data access.

# Architecture

Each run gets a fresh Session: one goja VM, the capability surface bound as
immutable globals, a memory budget, and a wall-clock deadline. The bridge
turns every in-VM capability call into a correlation-id-keyed call record
dispatched to the host, and routes each response back to exactly its
awaiting promise; a snippet may fan out several calls concurrently and
responses may arrive out of order without cross-talk. All values crossing
the boundary are deep-copied through a JSON round-trip.

The driver runs the state machine

	Created → Compiled → Running → Awaiting → {Completed | Failed | TimedOut}

compiling first (syntax errors are fatal with no partial execution), then
evaluating the snippet, which must produce a single pending promise (an
async self-invoking closure). While awaiting, the VM goroutine multiplexes
capability responses against the deadline; the deadline is tracked by the
driver itself, independently of the engine interrupt that guards in-VM busy
loops, so a session cannot outlive its budget across chained calls.

# Failure model

CompileError, RuntimeError, TimeoutError, and ResourceError are fatal for
the run. Capability-level failures never are: the bridge absorbs them into
each capability's documented null/empty contract value.

# Teardown

Teardown runs exactly once per session on every exit path. Host responses
arriving after teardown are discarded, never delivered. Sessions are
single-use; nothing is shared between runs.

# Scheduling

A session is logically single-threaded and cooperative: snippet code only
advances on the VM goroutine, suspending at capability-call boundaries
while the host fulfills calls in parallel. Multiple sessions may run
concurrently, sharing no mutable state.
*/
package sandbox
