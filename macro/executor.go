package macro

import (
	"fmt"
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/lodestone-labs/macroexec/internal/eventbus"
	"github.com/lodestone-labs/macroexec/internal/history"
	"github.com/lodestone-labs/macroexec/internal/jsengine"
	"github.com/lodestone-labs/macroexec/internal/lifecycle"
	"github.com/lodestone-labs/macroexec/internal/ops"
	"github.com/lodestone-labs/macroexec/internal/processtable"
	"github.com/lodestone-labs/macroexec/internal/supervisor"
	"github.com/lodestone-labs/macroexec/internal/workerfactory"
)

// startedTimeout is the one-second window spawn waits for the Started
// event before declaring failure. The original Rust implementation notes
// its own open question about this design (a bus-wait rather than a
// per-PID oneshot) — kept as-is rather than redesigned.
const startedTimeout = 1 * time.Second

// Permissions re-exports workerfactory.Permissions so callers of this
// package never need to import an internal package to call spawn.
type Permissions = workerfactory.Permissions

// AllowAll re-exports workerfactory.AllowAll.
func AllowAll() Permissions { return workerfactory.AllowAll() }

// Factory re-exports workerfactory.Factory, letting a caller inject extra
// ops beyond the three built-in groups.
type Factory = workerfactory.Factory

// InstanceController re-exports ops.InstanceController, the external
// game-instance collaborator a host wires into instance-control ops.
type InstanceController = ops.InstanceController

// Executor is the public facade: spawn, abort, get_status, wait_for_exit,
// wait_for_detach. It owns the process table, the event bus, and the
// bus-listener task that mirrors Stopped events into the exit table.
type Executor struct {
	newRuntime jsengine.Factory
	controller InstanceController

	table   *processtable.Table
	bus     *eventbus.Bus[lifecycle.Event]
	history *history.Store

	nextPid atomic.Uint64
}

// WithHistory enables durable exit-status persistence on top of the
// in-memory exit table. Off by default; pass a store opened with
// history.Open. Must be called before the first Spawn.
func (e *Executor) WithHistory(store *history.Store) *Executor {
	e.history = store
	return e
}

// New creates an Executor. newRuntime selects the engine backend
// (jsengine/v8backend.Factory or jsengine/quickjsbackend.Factory); the
// caller picks one at link time via the backend_v8.go/backend_quickjs.go
// build-tag split. controller may be nil if no macro run by this Executor
// touches instance-control ops.
func New(newRuntime jsengine.Factory, controller InstanceController) *Executor {
	if newRuntime == nil {
		newRuntime = DefaultRuntimeFactory()
	}
	e := &Executor{
		newRuntime: newRuntime,
		controller: controller,
		table:      processtable.New(),
		bus:        eventbus.New[lifecycle.Event](),
	}
	e.startBusListener()
	return e
}

// startBusListener mirrors every Stopped event into the exit table,
// decoupling exit recording from any individual wait_for_exit call.
func (e *Executor) startBusListener() {
	sub := e.bus.Subscribe(256)
	go func() {
		for ev := range sub.C {
			if ev.Kind == lifecycle.EventStopped {
				e.table.RecordExit(uint64(ev.Pid), ev.ExitStatus)
				if e.history != nil {
					if err := e.history.RecordExit(ev.Pid, ev.InstanceID, ev.ExitStatus); err != nil {
						log.Printf("macro: recording history for pid %d: %v", ev.Pid, err)
					}
				}
			}
		}
	}()
}

// Spawn allocates a PID, starts a Supervisor thread, and returns once the
// Started event for that PID has been observed on the bus (or the
// one-second timeout elapses, in which case spawn fails but the
// Supervisor thread may still be running and will eventually publish its
// terminal event).
func (e *Executor) Spawn(path string, args []string, causedBy CausedBy, factory Factory, perms *Permissions, instanceID *string) (*SpawnResult, error) {
	_ = causedBy // accepted but not recorded: no event or table entry carries it

	pid := lifecycle.Pid(e.nextPid.Add(1) - 1)

	effectivePerms := AllowAll()
	if perms != nil {
		effectivePerms = *perms
	}

	guestBus := eventbus.New[ops.GuestEvent]()

	builtins := []workerfactory.OpGroup{
		ops.RegisterPrelude,
		ops.RegisterEvents(guestBus, e.bus, pid, instanceID),
		ops.RegisterInstanceControl(e.controller),
	}

	worker, err := workerfactory.Build(e.newRuntime, path, args, effectivePerms, factory, builtins)
	if err != nil {
		return nil, fmt.Errorf("building worker for %s: %w", path, err)
	}

	startedSub := e.bus.Subscribe(16)
	exitFuture := make(chan ExitStatus, 1)
	detachFuture := make(chan struct{}, 1)

	exitSub := e.bus.Subscribe(16)
	go func() {
		defer exitSub.Unsubscribe()
		for ev := range exitSub.C {
			if ev.Pid != pid {
				continue
			}
			switch ev.Kind {
			case lifecycle.EventDetach:
				select {
				case detachFuture <- struct{}{}:
				default:
				}
			case lifecycle.EventStopped:
				select {
				case exitFuture <- ev.ExitStatus:
				default:
				}
				return
			}
		}
	}()

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		supervisor.Run(pid, instanceID, worker, e.table, e.bus)
	}()

	if err := waitForStarted(startedSub, pid, startedTimeout); err != nil {
		startedSub.Unsubscribe()
		return nil, err
	}
	startedSub.Unsubscribe()

	return &SpawnResult{
		Pid:          Pid(pid),
		DetachFuture: detachFuture,
		ExitFuture:   exitFuture,
	}, nil
}

func waitForStarted(sub *eventbus.Subscription[lifecycle.Event], pid lifecycle.Pid, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-sub.C:
			if ev.Pid == pid && ev.Kind == lifecycle.EventStarted {
				return nil
			}
		case <-deadline:
			return fmt.Errorf("spawn: timed out waiting for Started event for pid %d", pid)
		}
	}
}

// Abort triggers termination of the execution identified by pid. Returns
// immediately; actual Stopped delivery is asynchronous.
func (e *Executor) Abort(pid Pid) error {
	if !e.table.Terminate(uint64(pid)) {
		return fmt.Errorf("macro with pid %d not found", pid)
	}
	return nil
}

// GetStatus returns the recorded exit status for pid, if any. Never
// blocks.
func (e *Executor) GetStatus(pid Pid) (ExitStatus, bool) {
	v, ok := e.table.GetExit(uint64(pid))
	if !ok {
		return ExitStatus{}, false
	}
	return v.(ExitStatus), true
}

// EventBus exposes the Executor's lifecycle bus so a caller can build a
// debug relay (internal/relay) or otherwise observe raw Started/Detach/
// Stopped traffic without waiting on a specific PID.
func (e *Executor) EventBus() *eventbus.Bus[lifecycle.Event] {
	return e.bus
}
