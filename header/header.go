// Package header provides the ordered, case-insensitive header collection
// attached to every request. Names are stored and enumerated in lowercase.
package header

import (
	"iter"
	"strings"
)

type Field struct {
	Name  string
	Value string
}

type Headers struct {
	fields []Field
}

func New(fields ...Field) *Headers {
	h := &Headers{fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		h.Add(f.Name, f.Value)
	}
	return h
}

func canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Set updates the first field named name in place and drops any later
// repeats of it. When name is absent the field is appended.
func (h *Headers) Set(name, value string) {
	name = canonical(name)
	for i := range h.fields {
		if h.fields[i].Name != name {
			continue
		}
		h.fields[i].Value = value
		j := i + 1
		for j < len(h.fields) {
			if h.fields[j].Name == name {
				h.fields = append(h.fields[:j], h.fields[j+1:]...)
				continue
			}
			j++
		}
		return
	}
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

func (h *Headers) Add(name, value string) {
	h.fields = append(h.fields, Field{Name: canonical(name), Value: value})
}

func (h *Headers) Del(name string) {
	name = canonical(name)
	kept := h.fields[:0]
	for _, f := range h.fields {
		if f.Name != name {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

func (h *Headers) Lookup(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	name = canonical(name)
	for _, f := range h.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Get returns the first value for name, or "" when absent.
func (h *Headers) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

func (h *Headers) Values(name string) []string {
	if h == nil {
		return nil
	}
	name = canonical(name)
	var out []string
	for _, f := range h.fields {
		if f.Name == name {
			out = append(out, f.Value)
		}
	}
	return out
}

func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// All yields (lowercase name, value) pairs in insertion order.
func (h *Headers) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if h == nil {
			return
		}
		for _, f := range h.fields {
			if !yield(f.Name, f.Value) {
				return
			}
		}
	}
}

func (h *Headers) Clone() *Headers {
	if h == nil {
		return New()
	}
	fields := make([]Field, len(h.fields))
	copy(fields, h.fields)
	return &Headers{fields: fields}
}

// ContentType returns the media type of the Content-Type header: the value
// up to the first ';', trimmed.
func (h *Headers) ContentType() string {
	v := h.Get("Content-Type")
	if i := strings.IndexByte(v, ';'); i != -1 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// Charset returns the lowercased charset parameter of Content-Type.
func (h *Headers) Charset() string {
	v := h.Get("Content-Type")
	i := strings.IndexByte(v, ';')
	if i == -1 {
		return ""
	}
	for param := range strings.SplitSeq(v[i+1:], ";") {
		key, value, ok := strings.Cut(param, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "charset") {
			continue
		}
		return strings.ToLower(strings.Trim(strings.TrimSpace(value), `"`))
	}
	return ""
}

func (h *Headers) ContentEncoding() string { return h.Get("Content-Encoding") }
func (h *Headers) UserAgent() string       { return h.Get("User-Agent") }
func (h *Headers) Referer() string         { return h.Get("Referer") }
func (h *Headers) Authorization() string   { return h.Get("Authorization") }
