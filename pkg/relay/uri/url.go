package uri

import (
	"slices"
	"strings"
)

// Kind tags the payload of a URL.
type Kind uint8

const (
	// KindPath is a bare path with no query.
	KindPath Kind = iota + 1

	// KindParams is a path followed by a "?" query, possibly empty.
	KindParams
)

func (k Kind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindParams:
		return "params"
	default:
		return "none"
	}
}

// URL is a parsed relative URL: a path and, for KindParams, a parameter
// mapping.
type URL struct {
	Path string

	kind   Kind
	params map[string]string
}

// PathURL builds a path-only URL.
func PathURL(path string) URL {
	return URL{Path: path, kind: KindPath}
}

// ParamsURL builds a path + query URL. A nil params map is treated as empty.
func ParamsURL(path string, params map[string]string) URL {
	if params == nil {
		params = map[string]string{}
	}
	return URL{Path: path, kind: KindParams, params: params}
}

// Kind returns the URL's tag.
func (u URL) Kind() Kind {
	return u.kind
}

// HasParams reports whether the URL carries a query.
func (u URL) HasParams() bool {
	return u.kind == KindParams
}

// Params unpacks the parameter mapping. Calling it on a URL without a query
// is a programming error and panics; check HasParams or use Param.
func (u URL) Params() map[string]string {
	if u.kind != KindParams {
		panic("uri: Params called on a " + u.kind.String() + " URL")
	}
	return u.params
}

// Param returns a single query parameter.
func (u URL) Param(key string) (string, bool) {
	if u.kind != KindParams {
		return "", false
	}
	v, ok := u.params[key]
	return v, ok
}

// String renders the URL back to its relative form with parameters in key
// order.
func (u URL) String() string {
	if u.kind != KindParams {
		return u.Path
	}

	var b strings.Builder
	b.WriteString(u.Path)
	b.WriteByte('?')

	keys := make([]string, 0, len(u.params))
	for k := range u.params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(u.params[k])
	}
	return b.String()
}
