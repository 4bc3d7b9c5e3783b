// Package uri reconstructs absolute request URIs and rebuilds their query
// component with replace or append semantics.
package uri

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"reqlens/params"
	"reqlens/query"
)

var (
	ErrNotAbsolute = errors.New("uri is not absolute")
	ErrMissingHost = errors.New("uri has no host")
	ErrBadTarget   = errors.New("invalid request target")
)

type URI struct {
	scheme   string
	host     string
	port     int
	path     string
	rawPath  string
	rawQuery string
	fragment string
}

func Parse(raw string) (*URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse uri: %w", err)
	}
	if u.Scheme == "" {
		return nil, ErrNotAbsolute
	}
	if u.Hostname() == "" {
		return nil, ErrMissingHost
	}

	port := 0
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parse uri port: %w", err)
		}
	}

	rawPath := u.EscapedPath()
	if rawPath == "" {
		rawPath = "/"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	return &URI{
		scheme:   strings.ToLower(u.Scheme),
		host:     u.Hostname(),
		port:     port,
		path:     path,
		rawPath:  rawPath,
		rawQuery: u.RawQuery,
		fragment: u.EscapedFragment(),
	}, nil
}

// FromTarget builds an absolute URI from a request target as it appears on
// the request line. Origin-form targets are completed with scheme and the
// Host header value; absolute-form targets are parsed as they are. A target
// is origin-form whenever it starts with '/', whatever its query holds.
func FromTarget(scheme, host, target string) (*URI, error) {
	if strings.HasPrefix(target, "/") {
		if host == "" {
			return nil, ErrMissingHost
		}
		return Parse(scheme + "://" + host + target)
	}
	if strings.Contains(target, "://") {
		return Parse(target)
	}
	return nil, fmt.Errorf("%w: %q", ErrBadTarget, target)
}

func (u *URI) Scheme() string   { return u.scheme }
func (u *URI) Host() string     { return u.host }
func (u *URI) Port() int        { return u.port }
func (u *URI) RawQuery() string { return u.rawQuery }
func (u *URI) Fragment() string { return u.fragment }

// Path returns the decoded path without its leading slash.
func (u *URI) Path() string {
	return strings.TrimPrefix(u.path, "/")
}

func (u *URI) Query() *params.Params {
	return query.Parse(u.rawQuery)
}

func (u *URI) authority() string {
	host := u.host
	if strings.IndexByte(host, ':') != -1 {
		host = "[" + host + "]"
	}
	if u.port != 0 {
		host += ":" + strconv.Itoa(u.port)
	}
	return u.scheme + "://" + host
}

// Base returns scheme://host[:port]/.
func (u *URI) Base() string {
	return u.authority() + "/"
}

func (u *URI) String() string {
	var b strings.Builder
	b.WriteString(u.authority())
	b.WriteString(u.rawPath)
	if u.rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.rawQuery)
	}
	if u.fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.fragment)
	}
	return b.String()
}

// With returns a copy of u whose query merges additions into the current
// query.
//
// When appendMode is false every existing entry whose key appears in
// additions is removed and the key contributes a single entry at the slot of
// its first original occurrence, or at the end when it was not present. A key
// repeated inside additions takes its last value. When appendMode is true the
// original entries are kept and every addition is appended in order.
//
// Empty additions return an unchanged copy.
func (u *URI) With(additions *params.Params, appendMode bool) *URI {
	out := *u
	if additions.Len() == 0 {
		return &out
	}

	merged := params.New()
	if appendMode {
		for k, v := range u.Query().All() {
			merged.Add(k, v)
		}
		for k, v := range additions.All() {
			merged.Add(k, v)
		}
		out.rawQuery = query.Encode(merged)
		return &out
	}

	replacement := make(map[string]string, additions.Len())
	for k, v := range additions.All() {
		replacement[k] = v
	}
	emitted := make(map[string]bool, len(replacement))
	for k, v := range u.Query().All() {
		nv, replaced := replacement[k]
		if !replaced {
			merged.Add(k, v)
			continue
		}
		if !emitted[k] {
			merged.Add(k, nv)
			emitted[k] = true
		}
	}
	for _, k := range additions.Keys() {
		if !emitted[k] {
			merged.Add(k, replacement[k])
			emitted[k] = true
		}
	}
	out.rawQuery = query.Encode(merged)
	return &out
}

func (u *URI) WithString(additions *params.Params, appendMode bool) string {
	return u.With(additions, appendMode).String()
}
