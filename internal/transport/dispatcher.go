package transport

import (
	"errors"
	"net/http"
	"time"

	"reqlens/internal/http/head"
	"reqlens/internal/http/stream"
	"reqlens/internal/metrics"
	"reqlens/internal/middleware"
	"reqlens/internal/router"
	"reqlens/query"
	"reqlens/request"

	"go.uber.org/zap"
)

const authRealm = `Basic realm="reqlens"`

type chain interface {
	UseRequestMiddleware(mw middleware.RequestMiddleware)
	UseResponseMiddleware(mw middleware.ResponseMiddleware)
	ApplyRequestMiddlewares(req *request.Request) error
}

// Dispatcher is shared by every transport. It runs the request middlewares,
// resolves the route and calls the action.
type Dispatcher struct {
	router      router.Router
	logger      *zap.Logger
	metrics     *metrics.Metrics
	middlewares []middleware.RequestMiddleware
	fingerprint *middleware.ServerFingerprint
}

func NewDispatcher(r router.Router, logger *zap.Logger, m *metrics.Metrics, mws ...middleware.RequestMiddleware) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Dispatcher{
		router:      r,
		logger:      logger,
		metrics:     m,
		middlewares: mws,
		fingerprint: middleware.NewServerFingerprint(),
	}
}

func (d *Dispatcher) setupMiddlewares(c chain, transport string, req *request.Request, start time.Time) {
	for _, mw := range d.middlewares {
		c.UseRequestMiddleware(mw)
	}
	d.setupResponseMiddlewares(c, transport, req, start)
}

// setupResponseMiddlewares is used alone for requests rejected before
// dispatch.
func (d *Dispatcher) setupResponseMiddlewares(c chain, transport string, req *request.Request, start time.Time) {
	c.UseResponseMiddleware(d.fingerprint)
	c.UseResponseMiddleware(middleware.NewRequestID(req.ID()))
	c.UseResponseMiddleware(middleware.NewAccessLog(d.logger, d.metrics, transport, req, start))
}

// dispatch returns the status and body of the response to req.
func (d *Dispatcher) dispatch(c chain, req *request.Request) (int, []byte) {
	if err := c.ApplyRequestMiddlewares(req); err != nil {
		return d.fail(req, err)
	}

	action, vars, err := d.router.Resolve(req)
	if err != nil {
		return d.fail(req, err)
	}

	out, err := action(req, vars)
	if err != nil {
		return d.fail(req, err)
	}
	return http.StatusOK, []byte(out)
}

func (d *Dispatcher) fail(req *request.Request, err error) (int, []byte) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		d.logger.Error("action failed", zap.String("id", req.ID()), zap.String("path", req.Path()), zap.Error(err))
	} else {
		d.logger.Debug("request rejected", zap.String("id", req.ID()), zap.Int("status", status), zap.Error(err))
	}
	return status, []byte(http.StatusText(status))
}

func newResponse(version string, status int) head.ResponseHead {
	resp := head.NewResponse(version, status)
	resp.Set("Content-Type", "text/plain; charset=utf-8")
	if status == http.StatusUnauthorized {
		resp.Set("WWW-Authenticate", authRealm)
	}
	return resp
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, head.ErrRequestLineTooLong):
		return http.StatusRequestURITooLong
	case errors.Is(err, head.ErrHeaderLineTooLong), errors.Is(err, head.ErrTooManyHeaders):
		return http.StatusRequestHeaderFieldsTooLarge
	case errors.Is(err, stream.ErrMalformedRequest), errors.Is(err, request.ErrBodyRead):
		return http.StatusBadRequest
	case errors.Is(err, middleware.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, router.ErrNoRoute):
		return http.StatusNotFound
	case errors.Is(err, request.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, query.ErrCharset):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, middleware.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
