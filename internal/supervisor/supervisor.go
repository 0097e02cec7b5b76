// Package supervisor drives one macro execution to completion on its own
// OS thread, the Go analogue of the original Rust spawn()'s
// std::thread::spawn + LocalSet combination and of an Execute
// watchdog/defer pattern, generalized from a pooled per-request worker to
// a single long-lived per-PID execution.
package supervisor

import (
	"fmt"
	"log"
	"time"

	"github.com/lodestone-labs/macroexec/internal/eventbus"
	"github.com/lodestone-labs/macroexec/internal/jsengine"
	"github.com/lodestone-labs/macroexec/internal/lifecycle"
	"github.com/lodestone-labs/macroexec/internal/moduleloader"
	"github.com/lodestone-labs/macroexec/internal/processtable"
	"github.com/lodestone-labs/macroexec/internal/workerfactory"
)

// quiescenceChecks is how many consecutive microtask pumps the Draining
// state runs before declaring the event loop quiescent. The Runtime
// interface does not expose a pending-job count, only RunMicrotasks, so
// this is a fixed-count approximation rather than an observed-empty-queue
// check: each pump runs unconditionally, not only when the previous pump
// found nothing pending.
const quiescenceChecks = 3

const drainPollInterval = 2 * time.Millisecond
const drainMaxWait = 30 * time.Second

// Run owns worker for its entire lifetime and drives it through
// Starting -> Running -> Draining -> Exited, publishing Started and
// exactly one Stopped (modulo the defensive duplicate in the panic-wrapper
// below) on bus, and registering/deregistering pid's termination handle
// with table. Run is meant to be called on a dedicated goroutine backed by
// its own OS thread (via runtime.LockOSThread in the caller).
func Run(
	pid lifecycle.Pid,
	instanceID *string,
	worker *workerfactory.Worker,
	table *processtable.Table,
	bus *eventbus.Bus[lifecycle.Event],
) {
	defer func() {
		if r := recover(); r != nil {
			// Defensive final Stopped: the inner flow below always
			// publishes its own Stopped before returning, so this only
			// fires if something panicked outside that flow entirely.
			// The first Stopped observed by a listener is authoritative —
			// this is a last-resort safety net, not the normal path.
			log.Printf("supervisor: pid %d executor thread unexpectedly panicked: %v", pid, r)
			table.RemoveLive(uint64(pid))
			bus.Send(lifecycle.Event{
				Pid:        pid,
				InstanceID: instanceID,
				Kind:       lifecycle.EventStopped,
				ExitStatus: lifecycle.ErrorStatus("Macro executor thread unexpectedly panicked"),
			})
		}
	}()

	run(pid, instanceID, worker, table, bus)
}

func run(
	pid lifecycle.Pid,
	instanceID *string,
	worker *workerfactory.Worker,
	table *processtable.Table,
	bus *eventbus.Bus[lifecycle.Event],
) {
	defer worker.Runtime.Dispose()

	if err := worker.InjectBootstrap(uint64(pid), instanceID); err != nil {
		// Started still goes out first, so no pid's only event is a Stopped.
		bus.Send(lifecycle.Event{Pid: pid, InstanceID: instanceID, Kind: lifecycle.EventStarted})
		publishStopped(bus, pid, instanceID, lifecycle.ErrorStatus(fmt.Sprintf("injecting bootstrap globals: %s", err)))
		return
	}

	// Starting -> Running: termination handle recorded, Started published.
	// This happens before the main module is resolved/loaded/bundled, not
	// after: LoadMainModule can walk remote http(s) imports and fail for
	// reasons entirely unrelated to bootstrap (a 404, a bad media type, a
	// syntax error), and that failure must still be reported as a Stopped
	// following a Started for the same pid, never as the execution's only
	// event.
	table.InsertLive(uint64(pid), worker.Runtime)
	bus.Send(lifecycle.Event{Pid: pid, InstanceID: instanceID, Kind: lifecycle.EventStarted})

	source, err := worker.Loader.LoadMainModule(worker.EntryPath)
	if err != nil {
		table.RemoveLive(uint64(pid))
		publishStopped(bus, pid, instanceID, lifecycle.ErrorStatus(fmt.Sprintf("%s: %s", moduleloader.ErrorClassName(err), err)))
		return
	}

	// Running -> Draining: main-module evaluation returns.
	if err := worker.Runtime.Eval(string(source.Code)); err != nil {
		table.RemoveLive(uint64(pid))
		publishStopped(bus, pid, instanceID, statusForError(err))
		return
	}

	// Draining -> Exited: pump the event loop a fixed number of times (see
	// drain); pending async work is not waited for.
	if err := drain(worker.Runtime); err != nil {
		table.RemoveLive(uint64(pid))
		publishStopped(bus, pid, instanceID, statusForError(err))
		return
	}

	table.RemoveLive(uint64(pid))
	publishStopped(bus, pid, instanceID, lifecycle.SuccessStatus())
}

// drain pumps the microtask/timer queue quiescenceChecks times, or until
// drainMaxWait elapses, whichever comes first.
func drain(rt jsengine.Runtime) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	deadline := time.Now().Add(drainMaxWait)
	quiet := 0
	for quiet < quiescenceChecks && time.Now().Before(deadline) {
		rt.RunMicrotasks()
		quiet++
		time.Sleep(drainPollInterval)
	}
	return nil
}

// statusForError maps an Eval/drain failure to an ExitStatus: the
// termination sentinel maps to Killed, anything else to Error.
func statusForError(err error) lifecycle.ExitStatus {
	if err.Error() == jsengine.TerminatedSentinel {
		return lifecycle.KilledStatus()
	}
	return lifecycle.ErrorStatus(err.Error())
}

func publishStopped(bus *eventbus.Bus[lifecycle.Event], pid lifecycle.Pid, instanceID *string, status lifecycle.ExitStatus) {
	bus.Send(lifecycle.Event{
		Pid:        pid,
		InstanceID: instanceID,
		Kind:       lifecycle.EventStopped,
		ExitStatus: status,
	})
}
