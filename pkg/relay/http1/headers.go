package http1

import (
	"net/textproto"
	"slices"
)

// Headers maps canonical header names to values. Names never carry the
// trailing colon of the wire form. A later Set for the same name wins.
type Headers map[string]string

// Set stores value under the canonical form of name.
func (h Headers) Set(name, value string) {
	h[textproto.CanonicalMIMEHeaderKey(name)] = value
}

// Get returns the value for name, or "".
func (h Headers) Get(name string) string {
	return h[textproto.CanonicalMIMEHeaderKey(name)]
}

// Lookup returns the value for name and whether it was present.
func (h Headers) Lookup(name string) (string, bool) {
	v, ok := h[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}

// Del removes name.
func (h Headers) Del(name string) {
	delete(h, textproto.CanonicalMIMEHeaderKey(name))
}

// Reset empties the mapping while keeping its storage.
func (h Headers) Reset() {
	clear(h)
}

// AppendKeys appends the names in lexical order to dst.
func (h Headers) AppendKeys(dst []string) []string {
	start := len(dst)
	for k := range h {
		dst = append(dst, k)
	}
	slices.Sort(dst[start:])
	return dst
}
