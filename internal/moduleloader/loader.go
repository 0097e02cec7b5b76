// Package moduleloader resolves import specifiers and produces executable
// module sources for the macro execution subsystem. It is the Go analogue
// of an esbuild-based transpile bundler, generalized to also resolve
// specifiers and fetch remote http(s) modules, the way the original Rust
// TypescriptModuleLoader did.
package moduleloader

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	esbuild "github.com/evanw/esbuild/pkg/api"
)

// Source is the immutable result of a single module load: a module type,
// the (possibly transpiled) code, and the canonical specifier it was
// resolved to.
type Source struct {
	ModuleType ModuleType
	Code       []byte
	Specifier  string
}

// Loader resolves and loads module sources from the local filesystem and
// from http(s) URLs. Each Loader owns one HTTP client, shared across every
// load performed through it for the lifetime of one Worker.
type Loader struct {
	http *http.Client
}

// New creates a Loader with a fresh HTTP client.
func New() *Loader {
	return &Loader{
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Resolve composes a specifier against a referrer URL. Bare/relative
// specifiers are resolved relative to the referrer; absolute URLs (and
// absolute filesystem paths expressed as file: URLs) pass through. Failures
// here are import-alias-mapping failures, not module-graph failures, so
// they come back wrapped in a *URLMapError.
func (l *Loader) Resolve(specifier, referrer string) (string, error) {
	if referrer == "" {
		return toFileURL(specifier)
	}

	refURL, err := url.Parse(referrer)
	if err != nil {
		return "", &URLMapError{Err: fmt.Errorf("parsing referrer %q: %w", referrer, err)}
	}

	specURL, err := url.Parse(specifier)
	if err != nil {
		return "", &URLMapError{Err: fmt.Errorf("parsing specifier %q: %w", specifier, err)}
	}
	if specURL.IsAbs() {
		return specURL.String(), nil
	}

	resolved := refURL.ResolveReference(specURL)
	return resolved.String(), nil
}

// toFileURL converts a bare path (the entry-point case, with no referrer) to
// a file: URL, absolutizing it first.
func toFileURL(specifier string) (string, error) {
	if u, err := url.Parse(specifier); err == nil && u.IsAbs() {
		return u.String(), nil
	}
	abs, err := filepath.Abs(specifier)
	if err != nil {
		return "", &URLMapError{Err: fmt.Errorf("absolutizing %q: %w", specifier, err)}
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// Load fetches and, if necessary, transpiles the module named by the given
// canonical specifier.
func (l *Loader) Load(specifier string) (*Source, error) {
	u, err := url.Parse(specifier)
	if err != nil {
		return nil, &ModuleGraphResolutionError{Err: fmt.Errorf("parsing module specifier %q: %w", specifier, err)}
	}

	var (
		code []byte
		mt   MediaType
	)

	switch u.Scheme {
	case "file", "":
		code, specifier, mt, err = l.loadFile(u.Path, specifier)
		if err != nil {
			return nil, &ModuleGraphLoadError{Err: err}
		}
	case "http", "https":
		code, mt, err = l.loadRemote(specifier)
		if err != nil {
			return nil, &ModuleGraphLoadError{Err: err}
		}
	default:
		return nil, &ModuleGraphResolutionError{Err: fmt.Errorf("unsupported module specifier: %s", specifier)}
	}

	moduleType, shouldTranspile, ok := classify(mt)
	if !ok {
		return nil, &ModuleGraphLoadError{Err: fmt.Errorf("unsupported media type for %s", specifier)}
	}

	if shouldTranspile {
		code, err = transpile(code, specifier, mt)
		if err != nil {
			return nil, &DiagnosticError{Err: fmt.Errorf("transpiling %s: %w", specifier, err)}
		}
	}

	return &Source{ModuleType: moduleType, Code: code, Specifier: specifier}, nil
}

// loadFile reads module bytes from the local filesystem, applying
// extensionless and directory-index resolution. Returns the bytes, the
// concrete (possibly rewritten) specifier actually read, and its media type.
func (l *Loader) loadFile(diskPath, specifier string) ([]byte, string, MediaType, error) {
	concrete, err := resolveFilePath(diskPath)
	if err != nil {
		return nil, "", 0, fmt.Errorf("resolving %s: %w", specifier, err)
	}

	data, err := os.ReadFile(concrete)
	if err != nil {
		return nil, "", 0, fmt.Errorf("reading %s: %w", concrete, err)
	}

	resolvedSpecifier := specifier
	if concrete != diskPath {
		resolvedSpecifier = (&url.URL{Scheme: "file", Path: filepath.ToSlash(concrete)}).String()
	}

	return data, resolvedSpecifier, MediaTypeFromPath(concrete), nil
}

// resolveFilePath applies the extensionless-import and directory-index
// conventions: a path with no extension tries ".ts" then ".js"; a directory
// tries "index.ts" then "index.js" inside it.
func resolveFilePath(diskPath string) (string, error) {
	info, err := os.Stat(diskPath)
	if err == nil && !info.IsDir() {
		return diskPath, nil
	}
	if err == nil && info.IsDir() {
		for _, candidate := range []string{"index.ts", "index.js"} {
			p := filepath.Join(diskPath, candidate)
			if fi, statErr := os.Stat(p); statErr == nil && !fi.IsDir() {
				return p, nil
			}
		}
		return "", fmt.Errorf("no index.ts or index.js in directory %s", diskPath)
	}

	if path.Ext(diskPath) == "" {
		for _, ext := range []string{".ts", ".js"} {
			p := diskPath + ext
			if fi, statErr := os.Stat(p); statErr == nil && !fi.IsDir() {
				return p, nil
			}
		}
	}

	return "", fmt.Errorf("no such file %s", diskPath)
}

// loadRemote fetches an http(s) module, transparently decoding a brotli
// content-encoding before the caller inspects content-type — grounded on
// a brotli-backed CompressionStream in compression.go.
func (l *Loader) loadRemote(specifier string) ([]byte, MediaType, error) {
	resp, err := l.http.Get(specifier)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching module %s: %w", specifier, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("failed to fetch module: %s (status %d)", specifier, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("content-encoding"), "br") {
		reader = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("reading response body for %s: %w", specifier, err)
	}

	contentType := resp.Header.Get("content-type")
	if contentType == "" {
		return nil, 0, fmt.Errorf("no content-type header for %s", specifier)
	}

	return body, MediaTypeFromContentType(contentType), nil
}

// transpile runs esbuild's single-file transform over source text of the
// given media type, producing JavaScript text with default options. This
// replaces a multi-file bundler (a BundleWorkerScript style entry point)
// with the single-module transpile a bare script needs; declaration files
// are still routed through the TypeScript loader for parser acceptance even
// though esbuild strips their types down to empty output.
func transpile(code []byte, specifier string, mt MediaType) ([]byte, error) {
	loader := esbuildLoaderFor(mt)

	result := esbuild.Transform(string(code), esbuild.TransformOptions{
		Loader:     loader,
		Sourcefile: specifier,
		Target:     esbuild.ES2022,
		Format:     esbuild.FormatESModule,
	})

	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Text)
		}
		return nil, fmt.Errorf("%s", strings.Join(msgs, "; "))
	}

	return result.Code, nil
}

func esbuildLoaderFor(mt MediaType) esbuild.Loader {
	switch mt {
	case MediaJsx:
		return esbuild.LoaderJSX
	case MediaTsx:
		return esbuild.LoaderTSX
	case MediaTypeScript, MediaMts, MediaCts, MediaDts, MediaDmts, MediaDcts:
		return esbuild.LoaderTS
	default:
		return esbuild.LoaderJS
	}
}
