package head

import (
	"iter"

	"reqlens/header"
)

type ResponseHead interface {
	Status() int
	Value(key string) string
	Set(key string, value string)
	Remove(key string)
	All() iter.Seq2[string, string]
	Finalize() []byte
}

type responseHead struct {
	status    int
	startLine []byte
	fields    []field
}

type field struct {
	key   string
	value string
}

type RequestHead interface {
	Value(key string) string
	Method() string
	Target() string
	Version() string
	Headers() *header.Headers
}

type requestHead struct {
	method  string
	target  string
	version string
	headers *header.Headers
}
