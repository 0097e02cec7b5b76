package moduleloader

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassName(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "Error"},
		{"plain error", errors.New("boom"), "Error"},
		{"url map error", &URLMapError{Err: errors.New("bad specifier")}, "URIError"},
		{"diagnostic error", &DiagnosticError{Err: errors.New("unexpected token")}, "SyntaxError"},
		{"resolution error", &ModuleGraphResolutionError{Err: errors.New("unsupported scheme")}, "TypeError"},
		{
			"load error wrapping a url map error",
			&ModuleGraphLoadError{Err: &URLMapError{Err: errors.New("bad specifier")}},
			"URIError",
		},
		{
			"load error wrapping a plain error",
			&ModuleGraphLoadError{Err: errors.New("404")},
			"Error",
		},
		{
			"wrapped with fmt.Errorf %w",
			fmt.Errorf("loading entry: %w", &DiagnosticError{Err: errors.New("bad syntax")}),
			"SyntaxError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorClassName(tt.err); got != tt.want {
				t.Errorf("ErrorClassName(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorTypes_UnwrapAndError(t *testing.T) {
	inner := errors.New("inner cause")

	for _, tt := range []struct {
		name string
		err  error
	}{
		{"URLMapError", &URLMapError{Err: inner}},
		{"DiagnosticError", &DiagnosticError{Err: inner}},
		{"ModuleGraphLoadError", &ModuleGraphLoadError{Err: inner}},
		{"ModuleGraphResolutionError", &ModuleGraphResolutionError{Err: inner}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != inner.Error() {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), inner.Error())
			}
			if !errors.Is(tt.err, inner) {
				t.Errorf("errors.Is(%v, inner) = false, want true via Unwrap", tt.err)
			}
		})
	}
}
