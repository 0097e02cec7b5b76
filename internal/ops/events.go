package ops

import (
	"fmt"

	"github.com/lodestone-labs/macroexec/internal/eventbus"
	"github.com/lodestone-labs/macroexec/internal/jsengine"
	"github.com/lodestone-labs/macroexec/internal/lifecycle"
	"github.com/lodestone-labs/macroexec/internal/workerfactory"
)

// GuestEvent is an event a macro publishes via the event ops, distinct
// from lifecycle.EventKind (the host's own Started/Detach/
// Stopped bookkeeping) — guest-published events are a separate, open
// "macro says something happened" channel: publish typed events onto the
// host bus, tagged by current PID and instance. The one guest-triggerable
// lifecycle transition, Detach, is exposed directly rather than invented a
// second time, giving macro authors an explicit op for emitting it.
type GuestEvent struct {
	Pid        lifecycle.Pid
	InstanceID *string
	Name       string
	PayloadJSON string
}

// RegisterEvents installs the event op group: publishEvent lets guest code
// emit an application-level event tagged with its own PID/instance;
// detach lets guest code raise the Detach lifecycle signal explicitly
// (resolving the "Open Question (Detach semantics)" by giving it its own
// named op rather than inferring it from any other guest action).
func RegisterEvents(guestBus *eventbus.Bus[GuestEvent], lifecycleBus *eventbus.Bus[lifecycle.Event], pid lifecycle.Pid, instanceID *string) workerfactory.OpGroup {
	return func(rt jsengine.Runtime, _ workerfactory.Permissions) error {
		if err := rt.RegisterFunc("publishEvent", func(name, payloadJSON string) {
			guestBus.Send(GuestEvent{Pid: pid, InstanceID: instanceID, Name: name, PayloadJSON: payloadJSON})
		}); err != nil {
			return fmt.Errorf("registering publishEvent: %w", err)
		}

		if err := rt.RegisterFunc("detach", func() {
			lifecycleBus.Send(lifecycle.Event{Pid: pid, InstanceID: instanceID, Kind: lifecycle.EventDetach})
		}); err != nil {
			return fmt.Errorf("registering detach: %w", err)
		}

		return nil
	}
}
