package stream

import (
	"errors"
	"fmt"
	"io"

	"reqlens/internal/http/body"
	"reqlens/internal/http/head"
	"reqlens/request"
	"reqlens/uri"
)

// ReadRequest parses the next request on the connection. Any body the
// previous request left unread is discarded first. A connection closed
// before a new start line yields io.EOF.
func (hs *http) ReadRequest() (*request.Request, error) {
	if err := body.Drain(hs.body); err != nil {
		return nil, fmt.Errorf("drain previous body: %w", err)
	}
	hs.body = nil

	reqHead, err := head.NewRequest(hs.reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	hs.reqHead = reqHead

	u, err := uri.FromTarget(hs.opts.Scheme, reqHead.Value("Host"), reqHead.Target())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	src, err := body.NewReader(hs.reader, reqHead.Headers())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	hs.body = src

	address, port := SplitAddr(hs.remoteAddr)
	req, err := request.New(request.Input{
		Method:         reqHead.Method(),
		ParsedURI:      u,
		Headers:        reqHead.Headers(),
		Address:        address,
		Port:           port,
		Protocol:       reqHead.Version(),
		Body:           src,
		MaxBodySize:    hs.opts.MaxBodySize,
		Resolver:       hs.opts.Resolver,
		ResolveTimeout: hs.opts.ResolveTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	return req, nil
}
