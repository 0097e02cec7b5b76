package macro

import (
	"github.com/lodestone-labs/macroexec/internal/jsengine"
	"github.com/lodestone-labs/macroexec/internal/moduleloader"
)

// IsTerminationSentinel reports whether err is the engine's termination
// sentinel, the signal the Supervisor maps to ExitKilled rather than
// ExitError.
func IsTerminationSentinel(err error) bool {
	return err != nil && err.Error() == jsengine.TerminatedSentinel
}

// URLMapError is returned by the Module Loader when an import specifier
// cannot be composed against its referrer into a canonical module URL.
type URLMapError = moduleloader.URLMapError

// DiagnosticError wraps a source parse/transpile diagnostic from the
// Module Loader.
type DiagnosticError = moduleloader.DiagnosticError

// ModuleGraphLoadError wraps a failure to load one node of the module
// graph (filesystem, HTTP, unsupported media type); its class is the
// class of the wrapped cause.
type ModuleGraphLoadError = moduleloader.ModuleGraphLoadError

// ModuleGraphResolutionError wraps a failure to resolve an import
// specifier to a module graph node.
type ModuleGraphResolutionError = moduleloader.ModuleGraphResolutionError

// ErrorClassName returns the guest-visible exception class name a Load
// error should surface as, with four mappings:
// URL-map errors -> URIError, source diagnostics -> SyntaxError,
// module-graph load errors -> the class of their inner cause, module-graph
// resolution errors -> TypeError by default. Grounded on the original Rust
// get_error_class_name and its get_import_map_error_class /
// get_diagnostic_class / get_module_graph_error_class /
// get_resolution_error_class helpers. It wraps moduleloader.ErrorClassName,
// which the Supervisor calls directly to classify a LoadMainModule failure
// before reporting it as an Error ExitStatus.
func ErrorClassName(err error) string { return moduleloader.ErrorClassName(err) }
