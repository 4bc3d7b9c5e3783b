package head

import (
	"iter"
	"net/http"
	"strconv"
	"strings"
)

// NewResponse builds an empty response head. Field names keep the case they
// were set with.
func NewResponse(version string, status int) ResponseHead {
	if version == "" {
		version = "HTTP/1.1"
	}
	startLine := version + " " + strconv.Itoa(status) + " " + http.StatusText(status)
	return &responseHead{
		status:    status,
		startLine: []byte(startLine),
		fields:    make([]field, 0, 8),
	}
}

func (resp *responseHead) Status() int {
	return resp.status
}

func (resp *responseHead) Value(key string) string {
	for _, f := range resp.fields {
		if strings.EqualFold(f.key, key) {
			return f.value
		}
	}
	return ""
}

func (resp *responseHead) Set(key string, value string) {
	for i := range resp.fields {
		if strings.EqualFold(resp.fields[i].key, key) {
			resp.fields[i].value = value
			return
		}
	}
	resp.fields = append(resp.fields, field{key: key, value: value})
}

func (resp *responseHead) Remove(key string) {
	kept := resp.fields[:0]
	for _, f := range resp.fields {
		if !strings.EqualFold(f.key, key) {
			kept = append(kept, f)
		}
	}
	resp.fields = kept
}

// All yields the fields in the order they were first set.
func (resp *responseHead) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, f := range resp.fields {
			if !yield(f.key, f.value) {
				return
			}
		}
	}
}

func (resp *responseHead) Finalize() []byte {
	return finalize(resp.startLine, resp.All())
}
