//go:build v8

// Package v8backend implements jsengine.Runtime on top of tommie/v8go,
// mirroring a v8engine.v8Runtime shape but with one isolate+context per
// execution rather than a pooled worker, since a macro execution is
// long-lived and is never returned to a pool.
package v8backend

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/lodestone-labs/macroexec/internal/jsengine"
	v8 "github.com/tommie/v8go"
)

// Factory is the jsengine.Factory for this backend, selected at link time
// by the "v8" build tag.
func Factory() (jsengine.Runtime, error) {
	iso := v8.NewIsolate()
	ctx := v8.NewContext(iso)
	return &Runtime{iso: iso, ctx: ctx}, nil
}

// Runtime implements jsengine.Runtime over one V8 isolate and context.
type Runtime struct {
	iso *v8.Isolate
	ctx *v8.Context

	// terminated records whether Terminate has been called, the same way
	// an execute.go watchdog's timedOut atomic.Bool tells a deliberate
	// abort apart from a guest script error: v8go's
	// TerminateExecution does not make RunScript's returned error equal
	// any particular string, so Eval checks this flag rather than the
	// error text.
	terminated atomic.Bool
}

var _ jsengine.Runtime = (*Runtime)(nil)

func (r *Runtime) Eval(js string) error {
	_, err := r.ctx.RunScript(js, "main.js")
	if err != nil && r.terminated.Load() {
		return errors.New(jsengine.TerminatedSentinel)
	}
	return err
}

func (r *Runtime) EvalString(js string) (string, error) {
	val, err := r.ctx.RunScript(js, "eval_string.js")
	if err != nil {
		if r.terminated.Load() {
			return "", errors.New(jsengine.TerminatedSentinel)
		}
		return "", err
	}
	if val == nil {
		return "", nil
	}
	return val.String(), nil
}

// RegisterFunc mirrors v8engine.v8Runtime.RegisterFunc: a reflective
// FunctionTemplate that marshals arguments and unwraps a (T, error)
// return into a thrown TypeError on failure.
func (r *Runtime) RegisterFunc(name string, fn any) error {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}

	tmpl := v8.NewFunctionTemplate(r.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < fnType.NumIn() {
			msg := fmt.Sprintf("%s requires at least %d argument(s), got %d", name, fnType.NumIn(), len(args))
			jsMsg, _ := v8.NewValue(r.iso, msg)
			r.iso.ThrowException(jsMsg)
			return nil
		}

		goArgs := make([]reflect.Value, fnType.NumIn())
		for i := 0; i < fnType.NumIn(); i++ {
			goArgs[i] = jsArgToGo(args[i], fnType.In(i))
		}

		results := fnVal.Call(goArgs)
		switch fnType.NumOut() {
		case 0:
			return nil
		case 1:
			return goToJS(r.iso, results[0])
		case 2:
			errVal := results[1]
			if !errVal.IsNil() {
				jsMsg, _ := v8.NewValue(r.iso, fmt.Sprintf("calling %s: %s", name, errVal.Interface().(error).Error()))
				r.iso.ThrowException(jsMsg)
				return nil
			}
			return goToJS(r.iso, results[0])
		default:
			return nil
		}
	})

	return r.ctx.Global().Set(name, tmpl.GetFunction(r.ctx))
}

// RegisterAsyncFunc exposes a Go async operation as a JS function returning
// a Promise. The Go side runs the callback on its own goroutine (host ops
// are expected to do their own blocking/IO there) and resolves/rejects the
// promise back on the isolate via a resolver captured at call time, which
// v8go permits calling from any goroutine as long as no two goroutines
// touch the same isolate concurrently — the Supervisor serializes that by
// running all isolate touches (including resolver calls) through its single
// per-execution microtask-pump loop.
func (r *Runtime) RegisterAsyncFunc(name string, fn jsengine.AsyncFunc) error {
	tmpl := v8.NewFunctionTemplate(r.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		resolver, err := v8.NewPromiseResolver(r.ctx)
		if err != nil {
			jsMsg, _ := v8.NewValue(r.iso, err.Error())
			r.iso.ThrowException(jsMsg)
			return nil
		}

		args := info.Args()
		goArgs := make([]any, len(args))
		for i, a := range args {
			goArgs[i] = jsValueToAny(a)
		}

		go fn(context.Background(), goArgs,
			func(v any) {
				val, convErr := anyToJS(r.iso, v)
				if convErr != nil {
					errVal, _ := v8.NewValue(r.iso, convErr.Error())
					resolver.Reject(errVal)
					return
				}
				resolver.Resolve(val)
			},
			func(rejErr error) {
				errVal, _ := v8.NewValue(r.iso, rejErr.Error())
				resolver.Reject(errVal)
			},
		)

		return resolver.GetPromise().Value
	})

	return r.ctx.Global().Set(name, tmpl.GetFunction(r.ctx))
}

func (r *Runtime) SetGlobal(name string, value any) error {
	jsVal, err := anyToJS(r.iso, value)
	if err != nil {
		return fmt.Errorf("converting value for %q: %w", name, err)
	}
	return r.ctx.Global().Set(name, jsVal)
}

func (r *Runtime) RunMicrotasks() {
	r.ctx.PerformMicrotaskCheckpoint()
}

// Terminate aborts any in-flight script execution. Safe to call from any
// goroutine and safe to call more than once — v8go's TerminateExecution is
// documented as reentrant-safe for this purpose, the same guarantee an
// execute.go watchdog relies on.
func (r *Runtime) Terminate() {
	r.terminated.Store(true)
	r.iso.TerminateExecution()
}

func (r *Runtime) Dispose() {
	r.ctx.Close()
	r.iso.Dispose()
}

func jsArgToGo(v *v8.Value, t reflect.Type) reflect.Value {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(v.String())
	case reflect.Int, reflect.Int32, reflect.Int64:
		return reflect.ValueOf(int(v.Integer())).Convert(t)
	case reflect.Float64, reflect.Float32:
		return reflect.ValueOf(v.Number()).Convert(t)
	case reflect.Bool:
		return reflect.ValueOf(v.Boolean())
	default:
		return reflect.Zero(t)
	}
}

func goToJS(iso *v8.Isolate, v reflect.Value) *v8.Value {
	val, _ := anyToJS(iso, v.Interface())
	return val
}

func anyToJS(iso *v8.Isolate, value any) (*v8.Value, error) {
	switch v := value.(type) {
	case nil:
		return v8.NewValue(iso, "")
	case string, int, int32, int64, float64, bool:
		return v8.NewValue(iso, v)
	default:
		return v8.NewValue(iso, fmt.Sprintf("%v", v))
	}
}

func jsValueToAny(v *v8.Value) any {
	switch {
	case v.IsString():
		return v.String()
	case v.IsBoolean():
		return v.Boolean()
	case v.IsNumber():
		return v.Number()
	default:
		return v.String()
	}
}
