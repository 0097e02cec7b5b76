//go:build v8

package macro

import (
	"github.com/lodestone-labs/macroexec/internal/jsengine"
	"github.com/lodestone-labs/macroexec/internal/jsengine/v8backend"
)

// DefaultRuntimeFactory selects the engine backend compiled into this
// build: V8 when built with the "v8" tag, QuickJS otherwise (backend_quickjs.go).
func DefaultRuntimeFactory() jsengine.Factory {
	return v8backend.Factory
}
