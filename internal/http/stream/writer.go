package stream

import (
	"strconv"

	"reqlens/internal/http/head"
)

// WriteResponse runs the response middlewares and writes head and body. The
// body is withheld for HEAD requests while Content-Length still describes it.
func (hs *http) WriteResponse(resp head.ResponseHead, body []byte) error {
	resp.Set("Content-Length", strconv.Itoa(len(body)))

	if err := hs.ApplyResponseMiddlewares(resp, body); err != nil {
		return err
	}

	if hs.reqHead != nil && hs.reqHead.Method() == "HEAD" {
		body = nil
	}

	return hs.writeHeadAndBody(resp.Finalize(), body)
}

func (hs *http) writeHeadAndBody(header, body []byte) error {
	if _, err := hs.writer.Write(header); err != nil {
		return err
	}

	if len(body) > 0 {
		if _, err := hs.writer.Write(body); err != nil {
			return err
		}
	}

	return nil
}
