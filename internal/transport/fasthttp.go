package transport

import (
	"bytes"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"reqlens/header"
	"reqlens/internal/http/head"
	"reqlens/internal/http/stream"
	"reqlens/internal/middleware"
	"reqlens/request"
	"reqlens/uri"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// fastHTTPServer is the alternative transport. fasthttp owns connection
// handling and keep-alive; the Request is built from its parsed form.
type fastHTTPServer struct {
	port       string
	tlsConfig  *tls.Config
	dispatcher *Dispatcher
	opts       stream.Options
	server     *fasthttp.Server
}

// NewFastHTTPServer serves plain HTTP when tlsConfig is nil.
func NewFastHTTPServer(port string, dispatcher *Dispatcher, opts stream.Options, tlsConfig *tls.Config) Transport {
	fs := &fastHTTPServer{
		port:       port,
		tlsConfig:  tlsConfig,
		dispatcher: dispatcher,
		opts:       opts,
	}
	maxBody := int(opts.MaxBodySize)
	if maxBody <= 0 {
		maxBody = fasthttp.DefaultMaxRequestBodySize
	}
	fs.server = &fasthttp.Server{
		Handler:               fs.handle,
		ErrorHandler:          fs.handleError,
		Name:                  "reqlens",
		MaxRequestBodySize:    maxBody,
		ReadBufferSize:        head.MaxLineSize,
		ReadTimeout:           readTimeout,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           30 * time.Second,
		NoDefaultServerHeader: true,
		NoDefaultContentType:  true,
		ConnState: func(_ net.Conn, state fasthttp.ConnState) {
			if state == fasthttp.StateNew {
				dispatcher.metrics.ConnectionAccepted(NameFastHTTP)
			}
		},
	}
	return fs
}

func (fs *fastHTTPServer) Listen() (net.Listener, error) {
	if fs.tlsConfig != nil {
		return tls.Listen("tcp", ":"+fs.port, fs.tlsConfig)
	}
	return net.Listen("tcp", ":"+fs.port)
}

// Serve blocks until listener is closed, then returns net.ErrClosed.
func (fs *fastHTTPServer) Serve(listener net.Listener) error {
	fs.dispatcher.logger.Info("fasthttp server is starting", zap.String("port", fs.port), zap.Bool("tls", fs.tlsConfig != nil))
	if err := fs.server.Serve(listener); err != nil {
		return err
	}
	return net.ErrClosed
}

func (fs *fastHTTPServer) handle(ctx *fasthttp.RequestCtx) {
	done := fs.dispatcher.metrics.TrackInFlight(NameFastHTTP)
	defer done()

	start := time.Now()
	req, err := fs.buildRequest(ctx)
	if err != nil {
		fs.dispatcher.logger.Debug("bad request", zap.Stringer("remote", ctx.RemoteAddr()), zap.Error(err))
		fs.write(ctx, middleware.NewChain(), newResponse(protocol(ctx), fasthttp.StatusBadRequest), []byte(fasthttp.StatusMessage(fasthttp.StatusBadRequest)))
		return
	}

	chain := middleware.NewChain()
	fs.dispatcher.setupMiddlewares(chain, NameFastHTTP, req, start)
	status, body := fs.dispatcher.dispatch(chain, req)
	fs.write(ctx, chain, newResponse(protocol(ctx), status), body)
}

// handleError answers requests fasthttp rejected while reading them.
func (fs *fastHTTPServer) handleError(ctx *fasthttp.RequestCtx, err error) {
	start := time.Now()
	status := rejectStatus(err)
	fs.dispatcher.logger.Debug("request rejected", zap.Stringer("remote", ctx.RemoteAddr()), zap.Int("status", status), zap.Error(err))

	chain := middleware.NewChain()
	if req, buildErr := fs.buildRequest(ctx); buildErr == nil {
		fs.dispatcher.setupResponseMiddlewares(chain, NameFastHTTP, req, start)
	} else {
		chain.UseResponseMiddleware(fs.dispatcher.fingerprint)
	}
	fs.write(ctx, chain, newResponse(protocol(ctx), status), []byte(fasthttp.StatusMessage(status)))
}

func rejectStatus(err error) int {
	var small *fasthttp.ErrSmallBuffer
	var opErr *net.OpError
	switch {
	case errors.Is(err, fasthttp.ErrBodyTooLarge):
		return fasthttp.StatusRequestEntityTooLarge
	case errors.As(err, &small):
		return fasthttp.StatusRequestHeaderFieldsTooLarge
	case errors.As(err, &opErr) && opErr.Timeout():
		return fasthttp.StatusRequestTimeout
	default:
		return fasthttp.StatusBadRequest
	}
}

func (fs *fastHTTPServer) buildRequest(ctx *fasthttp.RequestCtx) (*request.Request, error) {
	scheme := fs.opts.Scheme
	if scheme == "" {
		scheme = "http"
	}
	if ctx.IsTLS() {
		scheme = "https"
	}

	headers := header.New()
	ctx.Request.Header.VisitAll(func(key, value []byte) {
		headers.Add(string(key), string(value))
	})

	u, err := uri.FromTarget(scheme, string(ctx.Host()), string(ctx.RequestURI()))
	if err != nil {
		return nil, err
	}

	address, port := stream.SplitAddr(ctx.RemoteAddr())
	return request.New(request.Input{
		Method:         string(ctx.Method()),
		ParsedURI:      u,
		Headers:        headers,
		Address:        address,
		Port:           port,
		Protocol:       protocol(ctx),
		Body:           bytes.NewReader(ctx.PostBody()),
		MaxBodySize:    fs.opts.MaxBodySize,
		Resolver:       fs.opts.Resolver,
		ResolveTimeout: fs.opts.ResolveTimeout,
	})
}

// write runs the response middlewares and copies the head onto ctx.
// fasthttp computes Content-Length itself.
func (fs *fastHTTPServer) write(ctx *fasthttp.RequestCtx, chain *middleware.Chain, resp head.ResponseHead, body []byte) {
	if err := chain.ApplyResponseMiddlewares(resp, body); err != nil {
		fs.dispatcher.logger.Debug("response middleware", zap.Error(err))
	}
	resp.Remove("Content-Length")
	for key, value := range resp.All() {
		ctx.Response.Header.Set(key, value)
	}
	ctx.SetStatusCode(resp.Status())
	ctx.SetBody(body)
}

func protocol(ctx *fasthttp.RequestCtx) string {
	if ctx.Request.Header.IsHTTP11() {
		return "HTTP/1.1"
	}
	return "HTTP/1.0"
}
