//go:build !v8

package macro

import (
	"github.com/lodestone-labs/macroexec/internal/jsengine"
	"github.com/lodestone-labs/macroexec/internal/jsengine/quickjsbackend"
)

// DefaultRuntimeFactory selects the engine backend compiled into this
// build: QuickJS by default, V8 when built with the "v8" tag
// (backend_v8.go), the same default/opt-in split used for the backend
// build-tag files this pair is modeled on.
func DefaultRuntimeFactory() jsengine.Factory {
	return quickjsbackend.Factory
}
