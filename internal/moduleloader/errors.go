package moduleloader

import "errors"

// URLMapError wraps a failure to compose an import specifier against its
// referrer into a canonical module URL.
type URLMapError struct{ Err error }

func (e *URLMapError) Error() string { return e.Err.Error() }
func (e *URLMapError) Unwrap() error { return e.Err }

// DiagnosticError wraps a source parse/transpile diagnostic.
type DiagnosticError struct{ Err error }

func (e *DiagnosticError) Error() string { return e.Err.Error() }
func (e *DiagnosticError) Unwrap() error { return e.Err }

// ModuleGraphLoadError wraps a failure to load one node of the module
// graph (filesystem, HTTP, unsupported media type); its class is the class
// of the wrapped cause.
type ModuleGraphLoadError struct{ Err error }

func (e *ModuleGraphLoadError) Error() string { return e.Err.Error() }
func (e *ModuleGraphLoadError) Unwrap() error { return e.Err }

// ModuleGraphResolutionError wraps a failure to resolve an import
// specifier to a module graph node.
type ModuleGraphResolutionError struct{ Err error }

func (e *ModuleGraphResolutionError) Error() string { return e.Err.Error() }
func (e *ModuleGraphResolutionError) Unwrap() error { return e.Err }

// ErrorClassName returns the guest-visible exception class name a Loader
// failure should surface as: URL-map errors -> URIError, source diagnostics
// -> SyntaxError, module-graph load errors -> the class of their inner
// cause, module-graph resolution errors -> TypeError, anything else ->
// Error. Grounded on the original Rust get_error_class_name and its
// get_import_map_error_class / get_diagnostic_class /
// get_module_graph_error_class / get_resolution_error_class helpers.
func ErrorClassName(err error) string {
	if err == nil {
		return "Error"
	}

	var urlMapErr *URLMapError
	if errors.As(err, &urlMapErr) {
		return "URIError"
	}

	var diagErr *DiagnosticError
	if errors.As(err, &diagErr) {
		return "SyntaxError"
	}

	var loadErr *ModuleGraphLoadError
	if errors.As(err, &loadErr) {
		return ErrorClassName(loadErr.Err)
	}

	var resErr *ModuleGraphResolutionError
	if errors.As(err, &resErr) {
		return "TypeError"
	}

	return "Error"
}
