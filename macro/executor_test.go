package macro

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lodestone-labs/macroexec/internal/jsengine"
)

type fakeRuntime struct {
	evalErr     error
	terminated  bool
	terminateCh chan struct{}
}

func (f *fakeRuntime) Eval(string) error                 { return f.evalErr }
func (f *fakeRuntime) EvalString(string) (string, error) { return "", nil }
func (f *fakeRuntime) RegisterFunc(string, any) error     { return nil }
func (f *fakeRuntime) RegisterAsyncFunc(string, jsengine.AsyncFunc) error {
	return nil
}
func (f *fakeRuntime) SetGlobal(string, any) error { return nil }
func (f *fakeRuntime) RunMicrotasks()               {}
func (f *fakeRuntime) Terminate() {
	f.terminated = true
	if f.terminateCh != nil {
		select {
		case f.terminateCh <- struct{}{}:
		default:
		}
	}
}
func (f *fakeRuntime) Dispose() {}

func writeEntry(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.js")
	if err := os.WriteFile(path, []byte(`globalThis.ran = true;`), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func factoryFor(rt jsengine.Runtime) jsengine.Factory {
	return func() (jsengine.Runtime, error) { return rt, nil }
}

func TestSpawn_SuccessPathReportsExit(t *testing.T) {
	e := New(factoryFor(&fakeRuntime{}), nil)
	perms := AllowAll()

	result, err := e.Spawn(writeEntry(t), nil, ByUser("cli", "tester"), nil, &perms, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Pid != 0 {
		t.Errorf("first spawned pid = %d, want 0", result.Pid)
	}

	select {
	case status := <-result.ExitFuture:
		if status.Kind != ExitSuccess {
			t.Errorf("ExitStatus.Kind = %v, want ExitSuccess", status.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ExitFuture")
	}

	// The bus listener mirrors Stopped into the exit table asynchronously;
	// poll briefly rather than assume it has landed the instant the
	// per-spawn ExitFuture fires.
	deadline := time.Now().Add(time.Second)
	for {
		if status, ok := e.GetStatus(result.Pid); ok {
			if status.Kind != ExitSuccess {
				t.Errorf("GetStatus = %+v, want ExitSuccess", status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("GetStatus never observed a recorded exit")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSpawn_PidsAreMonotonicAndUnique(t *testing.T) {
	e := New(factoryFor(&fakeRuntime{}), nil)
	perms := AllowAll()

	first, err := e.Spawn(writeEntry(t), nil, System, nil, &perms, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Spawn(writeEntry(t), nil, System, nil, &perms, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Pid <= first.Pid {
		t.Errorf("second pid %d should be greater than first pid %d", second.Pid, first.Pid)
	}
}

func TestGetStatus_UnknownPidReturnsFalse(t *testing.T) {
	e := New(factoryFor(&fakeRuntime{}), nil)
	if _, ok := e.GetStatus(Pid(999)); ok {
		t.Error("GetStatus on a never-spawned pid should report false")
	}
}

func TestAbort_UnknownPidErrors(t *testing.T) {
	e := New(factoryFor(&fakeRuntime{}), nil)
	if err := e.Abort(Pid(123)); err == nil {
		t.Error("expected Abort on an unknown pid to error")
	}
}

func TestAbort_CallsTerminateOnLivePid(t *testing.T) {
	rt := &fakeRuntime{terminateCh: make(chan struct{}, 1)}
	e := New(factoryFor(rt), nil)
	perms := AllowAll()

	// A live pid needs the Supervisor goroutine to have reached
	// InsertLive; Spawn only returns once Started has been observed,
	// which happens after InsertLive in the supervisor's run().
	result, err := e.Spawn(writeEntry(t), nil, System, nil, &perms, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Abort(result.Pid); err != nil {
		t.Fatalf("Abort on a live pid should succeed, got %v", err)
	}

	select {
	case <-rt.terminateCh:
	case <-time.After(time.Second):
		t.Fatal("expected Runtime.Terminate to be called")
	}
}

func TestEventBus_ObservesStartedAndStopped(t *testing.T) {
	e := New(factoryFor(&fakeRuntime{}), nil)
	sub := e.EventBus().Subscribe(16)
	defer sub.Unsubscribe()

	perms := AllowAll()
	if _, err := e.Spawn(writeEntry(t), nil, System, nil, &perms, nil); err != nil {
		t.Fatal(err)
	}

	started := <-sub.C
	if started.Kind != EventStarted {
		t.Errorf("first observed event = %v, want Started", started.Kind)
	}
	stopped := <-sub.C
	if stopped.Kind != EventStopped {
		t.Errorf("second observed event = %v, want Stopped", stopped.Kind)
	}
}
