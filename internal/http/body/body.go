package body

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http/httputil"
	"strconv"
	"strings"

	"reqlens/header"
)

var (
	ErrBadContentLength    = errors.New("invalid content-length")
	ErrUnsupportedEncoding = errors.New("unsupported transfer-encoding")
	ErrAmbiguousLength     = errors.New("both content-length and transfer-encoding present")
)

// NewReader returns the body source framed by the request headers. A request
// without Content-Length or Transfer-Encoding has no body and yields nil.
func NewReader(br *bufio.Reader, h *header.Headers) (io.Reader, error) {
	te, hasTE := h.Lookup("Transfer-Encoding")
	cl, hasCL := h.Lookup("Content-Length")

	if hasTE && hasCL {
		return nil, ErrAmbiguousLength
	}

	if hasTE {
		if !strings.EqualFold(strings.TrimSpace(te), "chunked") {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, te)
		}
		return httputil.NewChunkedReader(br), nil
	}

	if !hasCL {
		return nil, nil
	}

	if values := h.Values("Content-Length"); len(values) > 1 {
		for _, v := range values[1:] {
			if v != values[0] {
				return nil, fmt.Errorf("%w: conflicting values", ErrBadContentLength)
			}
		}
	}

	n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: %q", ErrBadContentLength, cl)
	}
	if n == 0 {
		return nil, nil
	}

	return io.LimitReader(br, n), nil
}

// Drain discards whatever the handler left unread so the connection is
// positioned at the next request.
func Drain(r io.Reader) error {
	if r == nil {
		return nil
	}
	_, err := io.Copy(io.Discard, r)
	return err
}
