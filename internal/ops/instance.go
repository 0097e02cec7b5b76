package ops

import (
	"fmt"

	"github.com/lodestone-labs/macroexec/internal/jsengine"
	"github.com/lodestone-labs/macroexec/internal/workerfactory"
)

// InstanceController is the external collaborator — the game-instance
// abstraction is out of scope for this subsystem — that actually knows how
// to list/start/stop managed game instances and read/write their console.
// The instance-control op group only adapts this interface onto the guest
// op surface; a host wires in its own implementation.
type InstanceController interface {
	ListInstances() ([]string, error)
	StartInstance(uuid string) error
	StopInstance(uuid string) error
	InstanceStatus(uuid string) (string, error)
	SendConsoleInput(uuid, line string) error
	RecentConsoleOutput(uuid string, lines int) ([]string, error)
}

// RegisterInstanceControl installs the instance-control op group:
// list/start/stop/query-status of managed instances, console input/output.
// If controller is nil (no collaborator wired in), the ops are still
// registered but each returns an error, so a macro that doesn't touch
// instances can run without one.
func RegisterInstanceControl(controller InstanceController) workerfactory.OpGroup {
	return func(rt jsengine.Runtime, _ workerfactory.Permissions) error {
		unavailable := func() error { return fmt.Errorf("no instance controller configured") }

		if err := rt.RegisterFunc("listInstances", func() ([]string, error) {
			if controller == nil {
				return nil, unavailable()
			}
			return controller.ListInstances()
		}); err != nil {
			return err
		}

		if err := rt.RegisterFunc("startInstance", func(uuid string) error {
			if controller == nil {
				return unavailable()
			}
			return controller.StartInstance(uuid)
		}); err != nil {
			return err
		}

		if err := rt.RegisterFunc("stopInstance", func(uuid string) error {
			if controller == nil {
				return unavailable()
			}
			return controller.StopInstance(uuid)
		}); err != nil {
			return err
		}

		if err := rt.RegisterFunc("instanceStatus", func(uuid string) (string, error) {
			if controller == nil {
				return "", unavailable()
			}
			return controller.InstanceStatus(uuid)
		}); err != nil {
			return err
		}

		if err := rt.RegisterFunc("sendConsoleInput", func(uuid, line string) error {
			if controller == nil {
				return unavailable()
			}
			return controller.SendConsoleInput(uuid, line)
		}); err != nil {
			return err
		}

		if err := rt.RegisterFunc("recentConsoleOutput", func(uuid string, lines int) ([]string, error) {
			if controller == nil {
				return nil, unavailable()
			}
			return controller.RecentConsoleOutput(uuid, lines)
		}); err != nil {
			return err
		}

		return nil
	}
}
