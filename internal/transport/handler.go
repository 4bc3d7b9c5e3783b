package transport

import (
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"reqlens/internal/http/stream"

	"go.uber.org/zap"
)

const (
	readTimeout    = 30 * time.Second
	lingerTimeout  = time.Second
	lingerMaxBytes = 1 << 20
)

// httpHandler serves a single request per connection on the built-in
// HTTP/1.x reader.
type httpHandler struct {
	dispatcher *Dispatcher
	opts       stream.Options
}

func NewHTTPHandler(dispatcher *Dispatcher, opts stream.Options) HTTP {
	return newHTTPHandler(dispatcher, opts)
}

func newHTTPHandler(dispatcher *Dispatcher, opts stream.Options) *httpHandler {
	return &httpHandler{
		dispatcher: dispatcher,
		opts:       opts,
	}
}

func (hh *httpHandler) Handler(conn net.Conn, isTLS bool) {
	opts := hh.opts
	if isTLS {
		opts.Scheme = "https"
	}
	hw := stream.New(conn, conn, conn.RemoteAddr(), opts)
	defer hh.closeConnection(hw)

	hh.dispatcher.metrics.ConnectionAccepted(NameRaw)
	done := hh.dispatcher.metrics.TrackInFlight(NameRaw)
	defer done()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		hh.dispatcher.logger.Debug("set read deadline", zap.Error(err))
	}

	start := time.Now()
	req, err := hw.ReadRequest()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		hh.dispatcher.logger.Debug("bad request", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
		hh.reject(conn, hw, statusFor(err))
		return
	}

	hh.dispatcher.setupMiddlewares(hw, NameRaw, req, start)
	status, body := hh.dispatcher.dispatch(hw, req)

	resp := newResponse(hw.Version(), status)
	resp.Set("Connection", "close")
	if err = hw.WriteResponse(resp, body); err != nil {
		hh.dispatcher.logger.Debug("write response", zap.String("id", req.ID()), zap.Error(err))
		return
	}
	hh.linger(conn, hw)
}

// reject answers a request that could not be read.
func (hh *httpHandler) reject(conn net.Conn, hw stream.HTTP, status int) {
	resp := newResponse(hw.Version(), status)
	resp.Set("Connection", "close")
	hw.UseResponseMiddleware(hh.dispatcher.fingerprint)
	if err := hw.WriteResponse(resp, []byte(http.StatusText(status))); err != nil {
		hh.dispatcher.logger.Debug("write rejection", zap.Int("status", status), zap.Error(err))
		return
	}
	hh.linger(conn, hw)
}

// linger closes the write side and discards input the client is still
// sending. A close with unread data resets the connection and the client
// can lose the response.
func (hh *httpHandler) linger(conn net.Conn, hw stream.HTTP) {
	if err := hw.CloseWrite(); err != nil {
		if !errors.Is(err, net.ErrClosed) {
			hh.dispatcher.logger.Debug("close write", zap.Error(err))
		}
		return
	}
	if err := conn.SetReadDeadline(time.Now().Add(lingerTimeout)); err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, lingerMaxBytes))
}

func (hh *httpHandler) closeConnection(hw stream.HTTP) {
	err := hw.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		hh.dispatcher.logger.Debug("close connection", zap.Error(err))
	}
}
