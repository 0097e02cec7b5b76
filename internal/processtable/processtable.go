// Package processtable holds the two maps the Executor facade consults on
// every call: a live table from PID to a termination handle, and an exit
// table from PID to the ExitStatus a finished macro settled with. It
// mirrors the original Rust implementation's DashMap-backed process table:
// sharded, lock-free-from-the-caller's-perspective concurrent maps, backed
// here by sync.Map since Go's standard library has no public DashMap
// equivalent; sync.Map fits the same "many readers, occasional writer"
// shape a worker pool keys its own caches off of.
package processtable

import "sync"

// TerminationHandle aborts a running macro's execution from any goroutine.
type TerminationHandle interface {
	Terminate()
}

// Table tracks live and exited macro executions by PID.
type Table struct {
	live sync.Map // uint64 -> TerminationHandle
	exit sync.Map // uint64 -> any (the ExitStatus; typed by the caller's package to avoid an import cycle)
}

// New creates an empty Table.
func New() *Table {
	return &Table{}
}

// InsertLive registers a termination handle for a running PID. Called once,
// when the Supervisor transitions Starting -> Running.
func (t *Table) InsertLive(pid uint64, handle TerminationHandle) {
	t.live.Store(pid, handle)
}

// Terminate calls the live handle's Terminate, if the PID is still live.
// Returns false if the PID has no live entry (already exited, or never
// started).
func (t *Table) Terminate(pid uint64) bool {
	v, ok := t.live.Load(pid)
	if !ok {
		return false
	}
	v.(TerminationHandle).Terminate()
	return true
}

// RemoveLive drops the live entry for a PID. Called once the Supervisor
// observes the execution has exited, before recording the exit status.
func (t *Table) RemoveLive(pid uint64) {
	t.live.Delete(pid)
}

// IsLive reports whether a PID still has a live entry.
func (t *Table) IsLive(pid uint64) bool {
	_, ok := t.live.Load(pid)
	return ok
}

// RecordExit stores the final status for a PID. Idempotent in the sense
// that only the first call sticks — later calls are ignored — matching
// the "first Stopped event is authoritative" contract from the Rust
// bus-listener task: a defensive panic-wrapper Stopped must never
// overwrite a Stopped that already landed.
func (t *Table) RecordExit(pid uint64, status any) {
	t.exit.LoadOrStore(pid, status)
}

// GetExit returns the recorded exit status for a PID, and whether one has
// been recorded yet. Never blocks, matching the original get_status contract.
func (t *Table) GetExit(pid uint64) (any, bool) {
	return t.exit.Load(pid)
}
