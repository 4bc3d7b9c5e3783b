package head

import (
	"bufio"
	"fmt"

	"reqlens/header"
)

func NewRequest(r interface{}) (RequestHead, error) {
	switch v := r.(type) {
	case []byte:
		return parseHeadFromBytes(v)
	case *bufio.Reader:
		return parseHeadFromReader(v)
	default:
		return nil, fmt.Errorf("unsupported type: %T", r)
	}
}

func (req *requestHead) Value(key string) string {
	return req.headers.Get(key)
}

func (req *requestHead) Method() string {
	return req.method
}

func (req *requestHead) Target() string {
	return req.target
}

func (req *requestHead) Version() string {
	return req.version
}

func (req *requestHead) Headers() *header.Headers {
	return req.headers
}
