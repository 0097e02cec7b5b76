package moduleloader

import (
	"fmt"
	"os"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// httpNamespace is the esbuild virtual namespace used for modules fetched
// over http(s); it lets the bundler tell remote-origin paths apart from
// on-disk ones without them colliding in its module-identity cache.
const httpNamespace = "macro-remote-module"

// NeedsBundling reports whether source contains import/export syntax that
// requires walking a module graph, mirroring a bundle.go fast-path check
// (a BundleWorkerScript-style needsBundling) so that the common case of a
// single self-contained macro script skips the bundler entirely.
func NeedsBundling(source string) bool {
	return strings.Contains(source, "import ") ||
		strings.Contains(source, "import{") ||
		strings.Contains(source, "import(") ||
		strings.Contains(source, "export ") ||
		strings.Contains(source, "export{")
}

// LoadMainModule resolves a macro's entry point and returns one executable
// JavaScript source, ready for the Supervisor to evaluate directly. Scripts
// with no import/export statements go through the plain Load path (and so
// participate directly in the module-resolution-closure determinism
// property); scripts with imports are bundled via esbuild (see Bundle for
// how local and remote import specifiers are resolved).
func (l *Loader) LoadMainModule(entryPath string) (*Source, error) {
	concrete, err := resolveFilePath(entryPath)
	if err != nil {
		return nil, fmt.Errorf("resolving entry point %s: %w", entryPath, err)
	}

	data, err := os.ReadFile(concrete)
	if err != nil {
		return nil, fmt.Errorf("reading entry point %s: %w", concrete, err)
	}

	if !NeedsBundling(string(data)) {
		specifier, err := l.Resolve(concrete, "")
		if err != nil {
			return nil, err
		}
		return l.Load(specifier)
	}

	return l.Bundle(concrete)
}

// Bundle walks the module graph rooted at entryPath (a concrete on-disk
// path) using esbuild, resolving relative/bare local imports with esbuild's
// own filesystem resolver (configured with the same extension order) and
// remote http(s) imports through a plugin backed by Loader.Resolve/loadRemote.
func (l *Loader) Bundle(entryPath string) (*Source, error) {
	plugin := esbuild.Plugin{
		Name: "macro-module-loader",
		Setup: func(build esbuild.PluginBuild) {
			// Entry into remote-module land: a bare http(s) specifier
			// imported from a local (default-namespace) file.
			build.OnResolve(esbuild.OnResolveOptions{Filter: `^https?://`},
				func(args esbuild.OnResolveArgs) (esbuild.OnResolveResult, error) {
					return esbuild.OnResolveResult{Path: args.Path, Namespace: httpNamespace}, nil
				})

			// Imports from within an already-remote module resolve
			// relative to that module's own URL, not the local filesystem.
			build.OnResolve(esbuild.OnResolveOptions{Filter: `.*`, Namespace: httpNamespace},
				func(args esbuild.OnResolveArgs) (esbuild.OnResolveResult, error) {
					resolved, err := l.Resolve(args.Path, args.Importer)
					if err != nil {
						return esbuild.OnResolveResult{}, err
					}
					return esbuild.OnResolveResult{Path: resolved, Namespace: httpNamespace}, nil
				})

			build.OnLoad(esbuild.OnLoadOptions{Filter: `.*`, Namespace: httpNamespace},
				func(args esbuild.OnLoadArgs) (esbuild.OnLoadResult, error) {
					data, mt, err := l.loadRemote(args.Path)
					if err != nil {
						return esbuild.OnLoadResult{}, err
					}
					contents := string(data)
					loader := esbuildLoaderFor(mt)
					return esbuild.OnLoadResult{Contents: &contents, Loader: loader}, nil
				})
		},
	}

	result := esbuild.Build(esbuild.BuildOptions{
		EntryPoints:       []string{entryPath},
		Bundle:            true,
		Write:             false,
		Format:            esbuild.FormatIIFE,
		Platform:          esbuild.PlatformNeutral,
		Target:            esbuild.ES2022,
		ResolveExtensions: []string{".ts", ".js"},
		Plugins:           []esbuild.Plugin{plugin},
	})

	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Text)
		}
		return nil, &DiagnosticError{Err: fmt.Errorf("bundling %s: %s", entryPath, strings.Join(msgs, "; "))}
	}
	if len(result.OutputFiles) == 0 {
		return nil, &ModuleGraphLoadError{Err: fmt.Errorf("bundling %s produced no output", entryPath)}
	}

	specifier, err := l.Resolve(entryPath, "")
	if err != nil {
		specifier = entryPath
	}

	return &Source{
		ModuleType: ModuleJavaScript,
		Code:       result.OutputFiles[0].Contents,
		Specifier:  specifier,
	}, nil
}
