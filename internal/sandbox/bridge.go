package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/marketscript/backend/internal/capabilities"
	"github.com/marketscript/backend/internal/infrastructure/logging"
	"github.com/marketscript/backend/internal/shared/id"
)

// responseBuffer sizes the response channel. Dispatchers also select on the
// session's done channel, so the capacity only smooths bursts.
const responseBuffer = 16

// response carries one host-side capability result back to the VM goroutine.
type response struct {
	callID id.CallID
	value  interface{}
}

// bridge marshals capability calls from inside the VM to their host-side
// implementations and routes each response back to exactly the awaiting call
// site via its correlation id. All values crossing the boundary are copied;
// live references never cross.
type bridge struct {
	vm      *goja.Runtime
	surface *capabilities.Surface
	done    <-chan struct{}
	log     *logging.Logger

	responses chan response

	// ctx is the run context, set by the driver before execution starts.
	ctx context.Context

	// pending maps correlation ids to promise resolvers. Written and read on
	// the VM goroutine; the mutex only guards the teardown-time size probe.
	mu      sync.Mutex
	pending map[id.CallID]func(interface{}) error
}

func newBridge(vm *goja.Runtime, surface *capabilities.Surface, done <-chan struct{}, log *logging.Logger) *bridge {
	return &bridge{
		vm:        vm,
		surface:   surface,
		done:      done,
		log:       log,
		responses: make(chan response, responseBuffer),
		pending:   make(map[id.CallID]func(interface{}) error),
		ctx:       context.Background(),
	}
}

// install binds every capability name as a global function in the VM.
// Bindings are fixed here, before any snippet runs, and never mutated.
func (b *bridge) install() error {
	for _, name := range b.surface.Names() {
		if err := b.vm.Set(name, b.capabilityFunc(name)); err != nil {
			return fmt.Errorf("binding %s: %w", name, err)
		}
	}
	return nil
}

// capabilityFunc returns the in-VM entry point for one capability. Each call
// snapshots its arguments, opens a call record keyed by a fresh correlation
// id, dispatches to the host implementation, and returns a promise that the
// driver resolves when the response arrives.
func (b *bridge) capabilityFunc(name string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args, argErr := exportArgs(call.Arguments)

		promise, resolve, _ := b.vm.NewPromise()
		callID := id.NewCallID()

		b.mu.Lock()
		b.pending[callID] = resolve
		b.mu.Unlock()

		if argErr != nil {
			// Uncopyable arguments (live objects, functions) resolve to the
			// capability's contract value rather than throwing.
			b.log.Warn("capability arguments rejected",
				zap.String("capability", name),
				zap.String("call_id", callID.String()),
				zap.Error(argErr),
			)
			go b.respond(callID, b.surface.Fallback(name))
		} else {
			go b.dispatch(callID, name, args)
		}

		return b.vm.ToValue(promise)
	}
}

// dispatch runs one capability on the host side. Implementation failures are
// absorbed into the capability's null/empty contract value here; they must
// never propagate as an uncaught session error.
func (b *bridge) dispatch(callID id.CallID, name string, args []interface{}) {
	value, err := b.surface.Invoke(b.ctx, name, args)
	if err != nil {
		value = b.surface.Fallback(name)
	} else if copied, copyErr := deepCopy(value); copyErr != nil {
		b.log.Warn("capability result not copyable, substituting contract value",
			zap.String("capability", name),
			zap.Error(copyErr),
		)
		value = b.surface.Fallback(name)
	} else {
		value = copied
	}

	b.respond(callID, value)
}

// respond queues a response unless the session has been torn down, in which
// case the result is discarded.
func (b *bridge) respond(callID id.CallID, value interface{}) {
	select {
	case b.responses <- response{callID: callID, value: value}:
	case <-b.done:
	}
}

// deliver routes a response to its awaiting call site. Must run on the VM
// goroutine: resolving the promise executes queued reaction jobs, which may
// issue further capability calls. Responses without a matching call record
// (e.g. arriving after abort) are dropped.
func (b *bridge) deliver(resp response) {
	b.mu.Lock()
	resolve, ok := b.pending[resp.callID]
	delete(b.pending, resp.callID)
	b.mu.Unlock()

	if !ok {
		b.log.Debug("discarding response without call record",
			zap.String("call_id", resp.callID.String()))
		return
	}
	if err := resolve(resp.value); err != nil {
		// Uncatchable errors (interrupts, stack overflows) from the reaction
		// jobs must propagate upwards per the goja NewPromise contract; the
		// caller's recover classifies them into the failure taxonomy.
		panic(err)
	}
}

// pendingCount reports open call records.
func (b *bridge) pendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// exportArgs snapshots JS call arguments as host values, deep-copied so no
// live reference escapes the VM.
func exportArgs(args []goja.Value) ([]interface{}, error) {
	out := make([]interface{}, len(args))
	for i, arg := range args {
		copied, err := deepCopy(arg.Export())
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = copied
	}
	return out, nil
}

// deepCopy produces a JSON-safe copy of v. Values that cannot round-trip
// through JSON (functions, cyclic structures) are rejected.
func deepCopy(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
