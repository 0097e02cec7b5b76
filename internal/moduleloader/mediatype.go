package moduleloader

import (
	"strings"
)

// MediaType is the dialect of an import specifier's source, inferred from
// a file extension or an HTTP content-type header.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaJavaScript
	MediaMjs
	MediaCjs
	MediaJsx
	MediaTypeScript
	MediaMts
	MediaCts
	MediaTsx
	MediaDts
	MediaDmts
	MediaDcts
	MediaJson
)

// ModuleType is what the engine's module loader ultimately registers: a
// plain JavaScript module, or a JSON module.
type ModuleType int

const (
	ModuleJavaScript ModuleType = iota
	ModuleJSON
)

// mediaTypeFromExt maps a lowercased file extension (without the dot) to a
// MediaType. Mirrors deno_ast::MediaType::from_path.
var mediaTypeFromExt = map[string]MediaType{
	"js":   MediaJavaScript,
	"mjs":  MediaMjs,
	"cjs":  MediaCjs,
	"jsx":  MediaJsx,
	"ts":   MediaTypeScript,
	"mts":  MediaMts,
	"cts":  MediaCts,
	"tsx":  MediaTsx,
	"json": MediaJson,
}

// MediaTypeFromPath infers a MediaType from a filesystem path, handling the
// multi-part ".d.ts"/".d.mts"/".d.cts" declaration-file extensions before
// falling back to the last path segment.
func MediaTypeFromPath(path string) MediaType {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".d.ts"):
		return MediaDts
	case strings.HasSuffix(lower, ".d.mts"):
		return MediaDmts
	case strings.HasSuffix(lower, ".d.cts"):
		return MediaDcts
	}
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return MediaUnknown
	}
	ext := strings.ToLower(path[idx+1:])
	if mt, ok := mediaTypeFromExt[ext]; ok {
		return mt
	}
	return MediaUnknown
}

// MediaTypeFromContentType infers a MediaType from an HTTP content-type
// header value, using only the first semicolon-delimited segment (ignoring
// a trailing "; charset=..." parameter).
func MediaTypeFromContentType(contentType string) MediaType {
	main := contentType
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		main = contentType[:i]
	}
	main = strings.ToLower(strings.TrimSpace(main))

	switch main {
	case "application/javascript", "text/javascript", "application/x-javascript":
		return MediaJavaScript
	case "application/node":
		return MediaMjs
	case "application/typescript", "text/typescript", "video/mp2t":
		return MediaTypeScript
	case "text/jsx":
		return MediaJsx
	case "text/tsx":
		return MediaTsx
	case "application/json", "text/json":
		return MediaJson
	default:
		return MediaUnknown
	}
}

// classify returns the (ModuleType, shouldTranspile) pair for a MediaType, or
// ok=false if the media type is unsupported and the load must fail.
func classify(mt MediaType) (moduleType ModuleType, shouldTranspile bool, ok bool) {
	switch mt {
	case MediaJavaScript, MediaMjs, MediaCjs:
		return ModuleJavaScript, false, true
	case MediaJsx, MediaTypeScript, MediaMts, MediaCts, MediaTsx, MediaDts, MediaDmts, MediaDcts:
		return ModuleJavaScript, true, true
	case MediaJson:
		return ModuleJSON, false, true
	default:
		return 0, false, false
	}
}
