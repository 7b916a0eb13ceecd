package model

import "net/http"

// HeaderValue is a header as it arrives on the wire: either a single value or
// a list of candidate values in which some entries may be missing. Missing and
// empty entries are equivalent.
type HeaderValue struct {
	single   string
	multiple []*string
	isList   bool
}

// Single wraps a header that arrived with exactly one value.
func Single(v string) HeaderValue {
	return HeaderValue{single: v}
}

// Multiple wraps a header that arrived as a list. nil entries are holes.
func Multiple(values ...*string) HeaderValue {
	return HeaderValue{multiple: values, isList: true}
}

// HeaderValueOf reads the named header from h. Headers repeated on the wire
// become a Multiple value.
func HeaderValueOf(h http.Header, name string) HeaderValue {
	values := h.Values(name)
	switch len(values) {
	case 0:
		return HeaderValue{}
	case 1:
		return Single(values[0])
	}

	ptrs := make([]*string, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	return Multiple(ptrs...)
}

// First returns the first non-empty value. ok is false when the header is
// absent or every candidate is empty.
func (h HeaderValue) First() (value string, ok bool) {
	if !h.isList {
		return h.single, h.single != ""
	}
	for _, v := range h.multiple {
		if v != nil && *v != "" {
			return *v, true
		}
	}
	return "", false
}

// FirstHeaderValue is shorthand for HeaderValueOf(h, name).First() that
// discards the ok flag.
func FirstHeaderValue(h http.Header, name string) string {
	v, _ := HeaderValueOf(h, name).First()
	return v
}
