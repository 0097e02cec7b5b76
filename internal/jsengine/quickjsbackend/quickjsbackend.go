//go:build !v8

// Package quickjsbackend implements jsengine.Runtime on top of
// modernc.org/quickjs, mirroring a quickjs.qjsRuntime shape. This is the
// default backend (selected by the absence of the "v8" build tag),
// matching a backend_quickjs.go default.
package quickjsbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lodestone-labs/macroexec/internal/jsengine"
	"modernc.org/quickjs"
)

// Factory is the jsengine.Factory for this backend.
func Factory() (jsengine.Runtime, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating quickjs VM: %w", err)
	}
	rt := &Runtime{vm: vm}
	if err := rt.Eval("globalThis.__pending = Object.create(null);"); err != nil {
		return nil, fmt.Errorf("installing pending-promise registry: %w", err)
	}
	return rt, nil
}

// Runtime implements jsengine.Runtime over one QuickJS VM.
type Runtime struct {
	vm      *quickjs.VM
	mu      sync.Mutex // serializes all VM touches, since a QuickJS VM is single-threaded
	nextID  atomic.Uint64
	pending chan settlement

	// terminated records whether Terminate has been called, since
	// quickjs.VM.Interrupt does not make EvalValue's returned error equal
	// any particular string on its own — mirrors v8backend.Runtime's flag
	// and a timedOut atomic.Bool watchdog pattern.
	terminated atomic.Bool
}

type settlement struct {
	id      uint64
	resultJ string
	err     error
}

var _ jsengine.Runtime = (*Runtime)(nil)

func (r *Runtime) Eval(js string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		if r.terminated.Load() {
			return errors.New(jsengine.TerminatedSentinel)
		}
		return err
	}
	v.Free()
	return nil
}

func (r *Runtime) EvalString(js string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		if r.terminated.Load() {
			return "", errors.New(jsengine.TerminatedSentinel)
		}
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprint(result), nil
}

// RegisterFunc mirrors qjsRuntime.RegisterFunc: register the raw Go
// function, then wrap it in JS so a (T, error)-style multi-return is
// unwrapped into a plain return or a thrown TypeError.
func (r *Runtime) RegisterFunc(name string, fn any) error {
	rawName := "__raw_" + name
	r.mu.Lock()
	err := r.vm.RegisterFunc(rawName, fn, false)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	wrapJS := fmt.Sprintf(`(function() {
		var raw = globalThis[%q];
		globalThis[%q] = function() {
			var r = raw.apply(this, arguments);
			if (Array.isArray(r)) {
				if (r[1] !== null && r[1] !== undefined) throw new TypeError("calling %s: " + r[1]);
				return r[0];
			}
			return r;
		};
		delete globalThis[%q];
	})()`, rawName, name, name, rawName)
	return r.Eval(wrapJS)
}

// RegisterAsyncFunc registers a host operation that returns a Promise.
// Arguments cross the Go/JS boundary as a JSON array (JSON.stringify on the
// JS side, json.Unmarshal on the Go side) since modernc.org/quickjs's
// RegisterFunc reflects over a fixed, typed Go signature and cannot marshal
// an arbitrary-arity []any parameter the way v8go's raw FunctionCallbackInfo
// does. fn runs on its own goroutine; its eventual result is queued and only
// applied to the VM from RunMicrotasks, which the Supervisor always calls
// from the single goroutine that owns this VM — QuickJS values are not
// safe to touch from any other goroutine.
func (r *Runtime) RegisterAsyncFunc(name string, fn jsengine.AsyncFunc) error {
	if r.pending == nil {
		r.pending = make(chan settlement, 64)
	}

	rawName := "__async_raw_" + name
	startCall := func(argsJSON string) uint64 {
		id := r.nextID.Add(1)
		var args []any
		_ = json.Unmarshal([]byte(argsJSON), &args)

		go fn(context.Background(), args,
			func(v any) {
				b, err := json.Marshal(v)
				if err != nil {
					r.pending <- settlement{id: id, err: err}
					return
				}
				r.pending <- settlement{id: id, resultJ: string(b)}
			},
			func(err error) {
				r.pending <- settlement{id: id, err: err}
			},
		)
		return id
	}

	r.mu.Lock()
	err := r.vm.RegisterFunc(rawName, startCall, false)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	wrapJS := fmt.Sprintf(`(function() {
		globalThis[%q] = function() {
			var argsJSON = JSON.stringify(Array.prototype.slice.call(arguments));
			return new Promise(function(resolve, reject) {
				var id = globalThis[%q](argsJSON);
				globalThis.__pending[id] = { resolve: resolve, reject: reject };
			});
		};
	})()`, name, rawName)
	return r.Eval(wrapJS)
}

func (r *Runtime) SetGlobal(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	atom, err := r.vm.NewAtom(name)
	if err != nil {
		return fmt.Errorf("creating atom %q: %w", name, err)
	}
	glob := r.vm.GlobalObject()
	defer glob.Free()
	return glob.SetProperty(atom, value)
}

// RunMicrotasks first settles any async host ops that finished since the
// last pump, then drains QuickJS's own microtask queue.
func (r *Runtime) RunMicrotasks() {
	for {
		select {
		case s := <-r.pending:
			r.settle(s)
		default:
			goto pump
		}
	}
pump:
	r.mu.Lock()
	executePendingJobs(r.vm)
	r.mu.Unlock()
}

func (r *Runtime) settle(s settlement) {
	var js string
	if s.err != nil {
		js = fmt.Sprintf(`(function(){ var p = globalThis.__pending[%d]; delete globalThis.__pending[%d]; if (p) p.reject(new Error(%q)); })()`,
			s.id, s.id, s.err.Error())
	} else {
		js = fmt.Sprintf(`(function(){ var p = globalThis.__pending[%d]; delete globalThis.__pending[%d]; if (p) p.resolve(%s); })()`,
			s.id, s.id, s.resultJ)
	}
	_ = r.Eval(js)
}

// Terminate interrupts any in-flight script execution. quickjs.VM.Interrupt
// is safe to call from another goroutine, the same guarantee a
// quickjs/execute.go watchdog relies on.
func (r *Runtime) Terminate() {
	r.terminated.Store(true)
	r.vm.Interrupt()
}

func (r *Runtime) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm.Close()
}
