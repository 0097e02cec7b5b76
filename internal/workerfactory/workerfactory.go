// Package workerfactory assembles a fresh jsengine.Runtime into a
// ready-to-run Worker: module loader, permission set, bootstrap argument
// vector, and the host op surface (prelude/event/instance-control groups).
// This is the Go counterpart of the original Rust WorkerOptionGenerator
// trait: callers implement Factory to inject extra ops beyond the three
// built-in groups without forking this package.
package workerfactory

import (
	"encoding/json"
	"fmt"

	"github.com/lodestone-labs/macroexec/internal/jsengine"
	"github.com/lodestone-labs/macroexec/internal/moduleloader"
)

// Permissions is the opaque capability bag the embedded runtime's I/O ops
// consult. This subsystem only propagates it — enforcement belongs to
// whichever ops actually touch the filesystem/network/subprocess.
type Permissions struct {
	AllowRead    bool
	AllowWrite   bool
	AllowNet     bool
	AllowEnv     bool
	AllowRun     bool
	AllowAllFlag bool
}

// AllowAll is the permission set the factory supplies when the caller
// passes none.
func AllowAll() Permissions {
	return Permissions{AllowRead: true, AllowWrite: true, AllowNet: true, AllowEnv: true, AllowRun: true, AllowAllFlag: true}
}

// OpGroup installs one group of host-callable functions into rt. Op groups
// receive the Permissions so they can refuse to register (or register a
// permission-denied stub for) capabilities the caller hasn't granted.
type OpGroup func(rt jsengine.Runtime, perms Permissions) error

// Factory builds the op surface for a Worker. The three built-in groups
// (prelude, event, instance-control) are always installed first; Extra lets
// a caller layer host-specific ops (e.g. instance-control ops specific to
// one deployment) on top, mirroring WorkerOptionGenerator.generate().
type Factory interface {
	Extra() []OpGroup
}

// DefaultFactory installs no extra ops.
type DefaultFactory struct{}

func (DefaultFactory) Extra() []OpGroup { return nil }

// Worker is a constructed execution environment bound to one main-module
// entry point, ready for the Supervisor to run to completion.
type Worker struct {
	Runtime jsengine.Runtime
	Loader  *moduleloader.Loader
	EntryPath string
	Args      []string
}

// Build constructs a Worker: creates the Runtime via newRuntime, installs
// the built-in op groups plus any the factory contributes, and leaves
// bootstrap-global injection to the Supervisor (which needs the allocated
// PID, not available yet at Worker-construction time).
func Build(newRuntime jsengine.Factory, entryPath string, args []string, perms Permissions, factory Factory, builtins []OpGroup) (*Worker, error) {
	rt, err := newRuntime()
	if err != nil {
		return nil, fmt.Errorf("constructing runtime: %w", err)
	}

	for _, group := range builtins {
		if err := group(rt, perms); err != nil {
			rt.Dispose()
			return nil, fmt.Errorf("installing built-in op group: %w", err)
		}
	}

	if factory != nil {
		for _, group := range factory.Extra() {
			if err := group(rt, perms); err != nil {
				rt.Dispose()
				return nil, fmt.Errorf("installing extra op group: %w", err)
			}
		}
	}

	return &Worker{
		Runtime:   rt,
		Loader:    moduleloader.New(),
		EntryPath: entryPath,
		Args:      args,
	}, nil
}

// InjectBootstrap evaluates the bootstrap header: __macro_pid and
// __instance_uuid. __macro_args carries the spawn-time argument vector (the
// original Rust BootstrapOptions.args equivalent), travelling the same
// bootstrap-header path so it reaches the guest before the main module
// runs. Must run before the main module, after the Worker's op groups are
// installed. __instance_uuid is always a JS string: the literal "null"
// when no instance is associated, never the bare keyword, so guest code
// can always call string methods on it.
func (w *Worker) InjectBootstrap(pid uint64, instanceUUID *string) error {
	uuidLiteral := `"null"`
	if instanceUUID != nil {
		uuidLiteral = fmt.Sprintf("%q", *instanceUUID)
	}
	argsJSON, err := json.Marshal(w.Args)
	if err != nil {
		return fmt.Errorf("encoding macro args: %w", err)
	}
	js := fmt.Sprintf("const __macro_pid = %d; const __instance_uuid = %s; const __macro_args = %s;",
		pid, uuidLiteral, argsJSON)
	return w.Runtime.Eval(js)
}
