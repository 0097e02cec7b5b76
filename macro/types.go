// Package macro is the public surface of the macro execution subsystem:
// the Pid/ExitStatus/MacroEvent/SpawnResult data model and the Executor
// facade (spawn, abort, get_status, wait_for_exit, wait_for_detach). It
// wires together internal/moduleloader, internal/jsengine,
// internal/workerfactory, internal/processtable, internal/eventbus,
// internal/ops and internal/supervisor, the same way a root package wires
// its engine backends and transport behind a single Execute entry point.
package macro

import (
	"github.com/lodestone-labs/macroexec/internal/lifecycle"
)

// Pid is a process-unique macro execution identifier, allocated by a
// monotonically increasing counter that never reuses a value.
type Pid = lifecycle.Pid

// CausedBy records who/what triggered a spawn, adopted verbatim from the
// original Rust CausedBy enum (User{id,name} / System / Macro{pid}) since
// a caused_by spawn parameter needs a shape and the original's is the
// natural one to reuse.
type CausedBy struct {
	Kind     CausedByKind
	UserID   string // set iff Kind == CausedByUser
	UserName string // set iff Kind == CausedByUser
	MacroPid Pid    // set iff Kind == CausedByMacro
}

// CausedByKind tags the CausedBy variant.
type CausedByKind int

const (
	CausedBySystem CausedByKind = iota
	CausedByUser
	CausedByMacro
)

// System is the CausedBy value for host-triggered spawns (scheduler,
// bootstrap).
var System = CausedBy{Kind: CausedBySystem}

// ByUser builds a CausedBy for a spawn triggered by a named user.
func ByUser(id, name string) CausedBy {
	return CausedBy{Kind: CausedByUser, UserID: id, UserName: name}
}

// ByMacro builds a CausedBy for a spawn triggered by another running macro.
func ByMacro(pid Pid) CausedBy {
	return CausedBy{Kind: CausedByMacro, MacroPid: pid}
}

// ExitStatusKind tags an ExitStatus variant.
type ExitStatusKind = lifecycle.ExitStatusKind

const (
	ExitSuccess = lifecycle.ExitSuccess
	ExitKilled  = lifecycle.ExitKilled
	ExitError   = lifecycle.ExitError
)

// ExitStatus is the tagged Success{time}/Killed{time}/Error{time,message}
// variant assigned exactly once per PID.
type ExitStatus = lifecycle.ExitStatus

// EventKind tags a MacroEvent's payload.
type EventKind = lifecycle.EventKind

const (
	EventStarted = lifecycle.EventStarted
	EventDetach  = lifecycle.EventDetach
	EventStopped = lifecycle.EventStopped
)

// MacroEvent is broadcast on the host event bus at every Supervisor state
// transition.
type MacroEvent = lifecycle.Event

// SpawnResult is returned by a successful spawn: the allocated PID and two
// independently awaitable futures.
type SpawnResult struct {
	Pid          Pid
	DetachFuture <-chan struct{}
	ExitFuture   <-chan ExitStatus
}
