package ops

import (
	"testing"
	"time"

	"github.com/lodestone-labs/macroexec/internal/eventbus"
	"github.com/lodestone-labs/macroexec/internal/jsengine"
	"github.com/lodestone-labs/macroexec/internal/lifecycle"
	"github.com/lodestone-labs/macroexec/internal/workerfactory"
)

// fakeRuntime captures RegisterFunc calls so a test can invoke the
// registered Go function directly, standing in for the engine backends'
// reflection-based JS<->Go marshaling.
type fakeRuntime struct {
	funcs map[string]any
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{funcs: make(map[string]any)}
}

func (f *fakeRuntime) Eval(string) error                 { return nil }
func (f *fakeRuntime) EvalString(string) (string, error) { return "", nil }
func (f *fakeRuntime) RegisterFunc(name string, fn any) error {
	f.funcs[name] = fn
	return nil
}
func (f *fakeRuntime) RegisterAsyncFunc(name string, fn jsengine.AsyncFunc) error { return nil }
func (f *fakeRuntime) SetGlobal(string, any) error                 { return nil }
func (f *fakeRuntime) RunMicrotasks()                              {}
func (f *fakeRuntime) Terminate()                                  {}
func (f *fakeRuntime) Dispose()                                    {}

func TestRegisterPrelude_CronMatches(t *testing.T) {
	rt := newFakeRuntime()
	if err := RegisterPrelude(rt, workerfactory.Permissions{}); err != nil {
		t.Fatal(err)
	}

	fn, ok := rt.funcs["cronMatches"].(func(string) (bool, error))
	if !ok {
		t.Fatalf("cronMatches not registered with expected signature, got %T", rt.funcs["cronMatches"])
	}

	if _, err := fn("not a cron expression"); err == nil {
		t.Error("expected an error for an invalid cron expression")
	}

	if matched, err := fn("* * * * *"); err != nil || !matched {
		t.Errorf("fn(\"* * * * *\") = %v, %v; want true, nil", matched, err)
	}
}

func TestRegisterPrelude_HostNowUnix(t *testing.T) {
	rt := newFakeRuntime()
	if err := RegisterPrelude(rt, workerfactory.Permissions{}); err != nil {
		t.Fatal(err)
	}

	fn, ok := rt.funcs["hostNowUnix"].(func() int)
	if !ok {
		t.Fatalf("hostNowUnix not registered with expected signature, got %T", rt.funcs["hostNowUnix"])
	}

	before := time.Now().Unix()
	got := fn()
	after := time.Now().Unix()
	if int64(got) < before || int64(got) > after {
		t.Errorf("hostNowUnix() = %d, want between %d and %d", got, before, after)
	}
}

func TestCronMatches_FieldWildcardsAndSteps(t *testing.T) {
	// 2026-07-31 12:05:00, a Friday.
	ref := time.Date(2026, time.July, 31, 12, 5, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want bool
	}{
		{"* * * * *", true},
		{"5 12 * * *", true},
		{"5 13 * * *", false},
		{"*/5 * * * *", true},
		{"*/7 * * * *", false},
		{"0-10 * * * *", true},
		{"6-10 * * * *", false},
		{"5,10,15 * * * *", true},
	}
	for _, tt := range tests {
		if got := cronMatches(tt.expr, ref); got != tt.want {
			t.Errorf("cronMatches(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestValidateCron(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"* * * * *", false},
		{"*/5 * * * *", false},
		{"0-59 0-23 1-31 1-12 0-6", false},
		{"too few fields", true},
		{"60 * * * *", true},
		{"* 24 * * *", true},
		{"abc * * * *", true},
	}
	for _, tt := range tests {
		err := validateCron(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateCron(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestRegisterEvents_PublishEvent(t *testing.T) {
	rt := newFakeRuntime()
	guestBus := eventbus.New[GuestEvent]()
	lifecycleBus := eventbus.New[lifecycle.Event]()
	instanceID := "instance-1"

	group := RegisterEvents(guestBus, lifecycleBus, lifecycle.Pid(7), &instanceID)
	if err := group(rt, workerfactory.Permissions{}); err != nil {
		t.Fatal(err)
	}

	sub := guestBus.Subscribe(1)
	defer sub.Unsubscribe()

	fn, ok := rt.funcs["publishEvent"].(func(string, string))
	if !ok {
		t.Fatalf("publishEvent not registered with expected signature, got %T", rt.funcs["publishEvent"])
	}
	fn("leveled-up", `{"level":5}`)

	select {
	case ev := <-sub.C:
		if ev.Pid != 7 || ev.Name != "leveled-up" || ev.PayloadJSON != `{"level":5}` || *ev.InstanceID != instanceID {
			t.Errorf("unexpected guest event: %+v", ev)
		}
	default:
		t.Fatal("expected publishEvent to publish onto the guest bus")
	}
}

func TestRegisterEvents_Detach(t *testing.T) {
	rt := newFakeRuntime()
	guestBus := eventbus.New[GuestEvent]()
	lifecycleBus := eventbus.New[lifecycle.Event]()

	group := RegisterEvents(guestBus, lifecycleBus, lifecycle.Pid(3), nil)
	if err := group(rt, workerfactory.Permissions{}); err != nil {
		t.Fatal(err)
	}

	sub := lifecycleBus.Subscribe(1)
	defer sub.Unsubscribe()

	fn, ok := rt.funcs["detach"].(func())
	if !ok {
		t.Fatalf("detach not registered with expected signature, got %T", rt.funcs["detach"])
	}
	fn()

	select {
	case ev := <-sub.C:
		if ev.Pid != 3 || ev.Kind != lifecycle.EventDetach {
			t.Errorf("unexpected lifecycle event: %+v", ev)
		}
	default:
		t.Fatal("expected detach to publish an EventDetach onto the lifecycle bus")
	}
}

func TestRegisterInstanceControl_NilControllerErrors(t *testing.T) {
	rt := newFakeRuntime()
	group := RegisterInstanceControl(nil)
	if err := group(rt, workerfactory.Permissions{}); err != nil {
		t.Fatal(err)
	}

	listFn, ok := rt.funcs["listInstances"].(func() ([]string, error))
	if !ok {
		t.Fatalf("listInstances not registered with expected signature, got %T", rt.funcs["listInstances"])
	}
	if _, err := listFn(); err == nil {
		t.Error("expected an error when no InstanceController is configured")
	}
}

type fakeController struct {
	started, stopped []string
}

func (f *fakeController) ListInstances() ([]string, error) { return []string{"a", "b"}, nil }
func (f *fakeController) StartInstance(uuid string) error {
	f.started = append(f.started, uuid)
	return nil
}
func (f *fakeController) StopInstance(uuid string) error {
	f.stopped = append(f.stopped, uuid)
	return nil
}
func (f *fakeController) InstanceStatus(uuid string) (string, error) { return "running", nil }
func (f *fakeController) SendConsoleInput(uuid, line string) error   { return nil }
func (f *fakeController) RecentConsoleOutput(uuid string, lines int) ([]string, error) {
	return []string{"log line"}, nil
}

func TestRegisterInstanceControl_DelegatesToController(t *testing.T) {
	rt := newFakeRuntime()
	ctrl := &fakeController{}
	group := RegisterInstanceControl(ctrl)
	if err := group(rt, workerfactory.Permissions{}); err != nil {
		t.Fatal(err)
	}

	startFn := rt.funcs["startInstance"].(func(string) error)
	if err := startFn("instance-a"); err != nil {
		t.Fatal(err)
	}
	if len(ctrl.started) != 1 || ctrl.started[0] != "instance-a" {
		t.Errorf("expected StartInstance to be called with instance-a, got %v", ctrl.started)
	}

	listFn := rt.funcs["listInstances"].(func() ([]string, error))
	got, err := listFn()
	if err != nil || len(got) != 2 {
		t.Errorf("listInstances() = %v, %v; want 2 instances, nil error", got, err)
	}
}
