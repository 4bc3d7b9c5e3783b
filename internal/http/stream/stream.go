package stream

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	"reqlens/internal/http/head"
	"reqlens/internal/middleware"
	"reqlens/request"
)

var ErrMalformedRequest = errors.New("malformed request")

type HTTP interface {
	io.Closer
	CloseWrite() error
	RemoteAddr() net.Addr
	UseResponseMiddleware(mw middleware.ResponseMiddleware)
	UseRequestMiddleware(mw middleware.RequestMiddleware)
	ApplyResponseMiddlewares(resp head.ResponseHead, body []byte) error
	ApplyRequestMiddlewares(req *request.Request) error
	ReadRequest() (*request.Request, error)
	WriteResponse(resp head.ResponseHead, body []byte) error
	Version() string
}

// Options carries what a stream needs to turn a wire request into a Request.
type Options struct {
	Scheme         string
	MaxBodySize    int64
	Resolver       request.Resolver
	ResolveTimeout time.Duration
}

type http struct {
	*middleware.Chain
	remoteAddr net.Addr
	writer     io.Writer
	reader     *bufio.Reader
	opts       Options
	reqHead    head.RequestHead
	body       io.Reader
}

func New(writer io.Writer, reader io.Reader, remoteAddr net.Addr, opts Options) HTTP {
	if opts.Scheme == "" {
		opts.Scheme = "http"
	}
	br, ok := reader.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(reader, 4096)
	}
	return &http{
		Chain:      middleware.NewChain(),
		remoteAddr: remoteAddr,
		writer:     writer,
		reader:     br,
		opts:       opts,
	}
}

func (hs *http) RemoteAddr() net.Addr {
	return hs.remoteAddr
}

// Version is the protocol of the last request read, HTTP/1.1 before any.
func (hs *http) Version() string {
	if hs.reqHead == nil {
		return "HTTP/1.1"
	}
	return hs.reqHead.Version()
}

func (hs *http) Close() error {
	if closer, ok := hs.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (hs *http) CloseWrite() error {
	if closer, ok := hs.writer.(interface{ CloseWrite() error }); ok {
		return closer.CloseWrite()
	}
	return hs.Close()
}

// SplitAddr returns the IP and port of a remote address.
func SplitAddr(addr net.Addr) (string, int) {
	if addr == nil {
		return "", 0
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String(), tcp.Port
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
