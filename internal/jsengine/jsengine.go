// Package jsengine abstracts the JavaScript engine a macro executes under
// behind one interface, the way a core.JSRuntime abstraction abstracts V8
// and QuickJS behind shared webapi/eventloop code. Here the
// abstraction is narrower: a macro execution owns a fresh Runtime for its
// whole lifetime (no pooling — a macro is a long-lived process, not a
// per-request handler), and the Supervisor only needs enough of the
// interface to install ops, run one main-module script, pump the
// microtask/timer queue, and terminate the isolate from another goroutine.
package jsengine

import "context"

// Runtime is one JavaScript execution context: one V8 isolate+context, or
// one QuickJS VM, depending on build tag.
type Runtime interface {
	// Eval evaluates JavaScript source and discards the result. Used to run
	// a macro's bundled main module.
	Eval(js string) error

	// EvalString evaluates JavaScript and returns the result as a string.
	EvalString(js string) (string, error)

	// RegisterFunc registers a Go function as a global JavaScript function,
	// the way core.JSRuntime.RegisterFunc does: reflection marshals
	// arguments and return values, and a (T, error)-shaped Go function
	// throws a JS exception on a non-nil error.
	RegisterFunc(name string, fn any) error

	// RegisterAsyncFunc registers a Go function that returns a JS Promise.
	// The callback receives a resolve/reject pair; the engine backend
	// arranges for the callback to run without blocking the isolate thread
	// and for resolve/reject to be delivered back into the isolate safely.
	RegisterAsyncFunc(name string, fn AsyncFunc) error

	// SetGlobal sets a global variable, auto-converting basic Go types.
	SetGlobal(name string, value any) error

	// RunMicrotasks pumps the microtask queue (promise callbacks).
	RunMicrotasks()

	// Terminate aborts any in-flight Eval from another goroutine. Safe to
	// call concurrently with Eval and safe to call more than once. This is
	// the handle the Process Table stores per live macro.
	Terminate()

	// Dispose releases engine resources. Call once, after the Runtime is no
	// longer in use.
	Dispose()
}

// AsyncFunc is a host operation exposed to guest code as an async function.
// args are the JS-to-Go converted call arguments; resolve/reject deliver
// the eventual result back into the isolate. Implementations must call
// exactly one of resolve or reject, exactly once.
type AsyncFunc func(ctx context.Context, args []any, resolve func(any), reject func(error))

// Factory constructs a fresh Runtime. Exactly one Factory implementation is
// linked into a build, selected by the "v8" build tag (v8backend) or its
// absence (quickjsbackend, the default) — mirroring a backend_v8.go /
// backend_quickjs.go split.
type Factory func() (Runtime, error)

// TerminatedSentinel is the error text a Runtime's Eval/EvalString must
// return when the failure was caused by a concurrent Terminate call, rather
// than a guest script error. Neither v8go's RunScript nor quickjs's
// EvalValue label their abort errors this way on their own — each backend
// tracks whether Terminate was called and substitutes this exact string so
// the Supervisor can tell "the guest threw" apart from "we killed it"
// without inspecting engine-specific error types.
const TerminatedSentinel = "Uncaught Error: execution terminated"
