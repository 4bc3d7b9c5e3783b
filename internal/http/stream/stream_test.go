package stream

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"

	"reqlens/internal/http/head"
	"reqlens/request"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAddr struct {
	addr string
}

func (m *mockAddr) String() string  { return m.addr }
func (m *mockAddr) Network() string { return "tcp" }

type mockRequestMiddleware struct {
	err error
}

func (m *mockRequestMiddleware) HandleRequest(req *request.Request) error {
	if m.err == nil {
		req.SetRemoteUser("middleware")
	}
	return m.err
}

type mockResponseMiddleware struct {
	err error
}

func (m *mockResponseMiddleware) HandleResponse(h head.ResponseHead, body []byte) error {
	if m.err == nil {
		h.Set("X-Resp-Middleware", "true")
	}
	return m.err
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	args := m.Called(ctx, addr)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

type mockWriter struct {
	bytes.Buffer
	closed      bool
	writeClosed bool
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func (m *mockWriter) CloseWrite() error {
	m.writeClosed = true
	return nil
}

func newStream(wire string, opts Options) (HTTP, *mockWriter) {
	w := &mockWriter{}
	return New(w, strings.NewReader(wire), &mockAddr{addr: "1.2.3.4:1234"}, opts), w
}

func TestHTTPMethods(t *testing.T) {
	addr := &mockAddr{addr: "1.2.3.4:1234"}
	w := &mockWriter{}
	hs := New(w, strings.NewReader(""), addr, Options{})

	assert.Equal(t, addr, hs.RemoteAddr())
	assert.Equal(t, "HTTP/1.1", hs.Version())

	req, err := request.New(request.Input{Method: "GET", URI: "http://h/"})
	require.NoError(t, err)
	hs.UseRequestMiddleware(&mockRequestMiddleware{})
	require.NoError(t, hs.ApplyRequestMiddlewares(req))
	assert.Equal(t, "middleware", req.RemoteUser())

	resp := head.NewResponse("HTTP/1.1", 200)
	hs.UseResponseMiddleware(&mockResponseMiddleware{})
	require.NoError(t, hs.ApplyResponseMiddlewares(resp, nil))
	assert.Equal(t, "true", resp.Value("X-Resp-Middleware"))

	require.NoError(t, hs.CloseWrite())
	assert.True(t, w.writeClosed)
	require.NoError(t, hs.Close())
	assert.True(t, w.closed)
}

func TestReadRequest(t *testing.T) {
	tests := []struct {
		name        string
		wire        string
		opts        Options
		wantErr     error
		wantURI     string
		wantMethod  string
		wantBody    string
		wantVersion string
	}{
		{
			name:        "origin form",
			wire:        "GET /request/test/uri?x=1 HTTP/1.1\r\nHost: 127.0.0.1\r\n\r\n",
			wantURI:     "http://127.0.0.1/request/test/uri?x=1",
			wantMethod:  "GET",
			wantVersion: "HTTP/1.1",
		},
		{
			name:        "absolute form without host header",
			wire:        "GET http://example.com:8080/a HTTP/1.0\r\n\r\n",
			wantURI:     "http://example.com:8080/a",
			wantMethod:  "GET",
			wantVersion: "HTTP/1.0",
		},
		{
			name:        "https scheme",
			wire:        "GET / HTTP/1.1\r\nHost: secure.test\r\n\r\n",
			opts:        Options{Scheme: "https"},
			wantURI:     "https://secure.test/",
			wantMethod:  "GET",
			wantVersion: "HTTP/1.1",
		},
		{
			name:        "content length body",
			wire:        "POST /b HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\n\r\nhello",
			wantURI:     "http://h/b",
			wantMethod:  "POST",
			wantBody:    "hello",
			wantVersion: "HTTP/1.1",
		},
		{
			name:        "chunked body",
			wire:        "POST /b HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n2\r\nhe\r\n3\r\nllo\r\n0\r\n\r\n",
			wantURI:     "http://h/b",
			wantMethod:  "POST",
			wantBody:    "hello",
			wantVersion: "HTTP/1.1",
		},
		{
			name:    "empty connection",
			wire:    "",
			wantErr: io.EOF,
		},
		{
			name:    "garbage start line",
			wire:    "HELLO\r\n\r\n",
			wantErr: ErrMalformedRequest,
		},
		{
			name:    "origin form without host",
			wire:    "GET / HTTP/1.1\r\n\r\n",
			wantErr: ErrMalformedRequest,
		},
		{
			name:    "asterisk target",
			wire:    "OPTIONS * HTTP/1.1\r\nHost: h\r\n\r\n",
			wantErr: ErrMalformedRequest,
		},
		{
			name:    "bad content length",
			wire:    "POST / HTTP/1.1\r\nHost: h\r\nContent-Length: x\r\n\r\n",
			wantErr: ErrMalformedRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs, _ := newStream(tt.wire, tt.opts)
			req, err := hs.ReadRequest()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, req)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURI, req.URI().String())
			assert.Equal(t, tt.wantMethod, req.Method())
			assert.Equal(t, tt.wantVersion, req.Protocol())
			assert.Equal(t, tt.wantVersion, hs.Version())
			assert.Equal(t, "1.2.3.4", req.Address())
			assert.Equal(t, 1234, req.Port())

			got, err := req.Body()
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, string(got))
		})
	}
}

func TestReadRequestPipelined(t *testing.T) {
	wire := "POST /first HTTP/1.1\r\nHost: h\r\nContent-Length: 6\r\n\r\nunread" +
		"GET /second HTTP/1.1\r\nHost: h\r\n\r\n"
	hs, _ := newStream(wire, Options{})

	first, err := hs.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, "first", first.Path())

	second, err := hs.ReadRequest()
	require.NoError(t, err)
	assert.Equal(t, "second", second.Path())

	_, err = hs.ReadRequest()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadRequestOptions(t *testing.T) {
	resolver := new(mockResolver)
	resolver.On("LookupAddr", mock.Anything, "1.2.3.4").Return([]string{"client.example."}, nil).Once()

	wire := "POST / HTTP/1.1\r\nHost: h\r\nContent-Length: 10\r\n\r\n0123456789"
	hs, _ := newStream(wire, Options{MaxBodySize: 4, Resolver: resolver})

	req, err := hs.ReadRequest()
	require.NoError(t, err)

	_, err = req.Body()
	assert.ErrorIs(t, err, request.ErrBodyTooLarge)
	assert.Equal(t, "client.example", req.Hostname())
	resolver.AssertExpectations(t)
}

func TestSplitAddr(t *testing.T) {
	tests := []struct {
		name     string
		addr     net.Addr
		wantHost string
		wantPort int
	}{
		{name: "tcp ipv4", addr: &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 3000}, wantHost: "127.0.0.1", wantPort: 3000},
		{name: "tcp ipv6", addr: &net.TCPAddr{IP: net.ParseIP("::1"), Port: 80}, wantHost: "::1", wantPort: 80},
		{name: "string addr", addr: &mockAddr{addr: "10.0.0.1:9"}, wantHost: "10.0.0.1", wantPort: 9},
		{name: "unix addr", addr: &net.UnixAddr{Name: "/tmp/socket", Net: "unix"}, wantHost: "/tmp/socket", wantPort: 0},
		{name: "nil", addr: nil, wantHost: "", wantPort: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port := SplitAddr(tt.addr)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}

func TestApplyMiddlewares(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(HTTP)
		apply     func(HTTP, *request.Request, head.ResponseHead) error
		verify    func(*testing.T, *request.Request, head.ResponseHead)
		expectErr bool
	}{
		{
			name: "apply request middleware success",
			setup: func(hs HTTP) {
				hs.UseRequestMiddleware(&mockRequestMiddleware{})
			},
			apply: func(hs HTTP, req *request.Request, resp head.ResponseHead) error {
				return hs.ApplyRequestMiddlewares(req)
			},
			verify: func(t *testing.T, req *request.Request, resp head.ResponseHead) {
				assert.Equal(t, "middleware", req.RemoteUser())
			},
		},
		{
			name: "apply response middleware success",
			setup: func(hs HTTP) {
				hs.UseResponseMiddleware(&mockResponseMiddleware{})
			},
			apply: func(hs HTTP, req *request.Request, resp head.ResponseHead) error {
				return hs.ApplyResponseMiddlewares(resp, []byte("body"))
			},
			verify: func(t *testing.T, req *request.Request, resp head.ResponseHead) {
				assert.Equal(t, "true", resp.Value("X-Resp-Middleware"))
			},
		},
		{
			name: "apply request middleware error",
			setup: func(hs HTTP) {
				hs.UseRequestMiddleware(&mockRequestMiddleware{err: assert.AnError})
			},
			apply: func(hs HTTP, req *request.Request, resp head.ResponseHead) error {
				return hs.ApplyRequestMiddlewares(req)
			},
			expectErr: true,
		},
		{
			name: "apply response middleware error",
			setup: func(hs HTTP) {
				hs.UseResponseMiddleware(&mockResponseMiddleware{err: assert.AnError})
			},
			apply: func(hs HTTP, req *request.Request, resp head.ResponseHead) error {
				return hs.ApplyResponseMiddlewares(resp, []byte("body"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs, _ := newStream("GET / HTTP/1.1\r\nHost: h\r\n\r\n", Options{})
			req, err := hs.ReadRequest()
			require.NoError(t, err)
			resp := head.NewResponse(hs.Version(), 200)

			tt.setup(hs)
			err = tt.apply(hs, req, resp)
			if tt.expectErr {
				assert.ErrorIs(t, err, assert.AnError)
				return
			}
			require.NoError(t, err)
			tt.verify(t, req, resp)
		})
	}
}

func TestWriteResponse(t *testing.T) {
	tests := []struct {
		name     string
		wire     string
		body     string
		expected string
	}{
		{
			name:     "get writes body",
			wire:     "GET / HTTP/1.1\r\nHost: h\r\n\r\n",
			body:     "hello",
			expected: "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nX-Resp-Middleware: true\r\n\r\nhello",
		},
		{
			name:     "head withholds body",
			wire:     "HEAD / HTTP/1.1\r\nHost: h\r\n\r\n",
			body:     "hello",
			expected: "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nX-Resp-Middleware: true\r\n\r\n",
		},
		{
			name:     "http 1.0 status line",
			wire:     "GET / HTTP/1.0\r\nHost: h\r\n\r\n",
			body:     "",
			expected: "HTTP/1.0 200 OK\r\nContent-Length: 0\r\nX-Resp-Middleware: true\r\n\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs, w := newStream(tt.wire, Options{})
			_, err := hs.ReadRequest()
			require.NoError(t, err)
			hs.UseResponseMiddleware(&mockResponseMiddleware{})

			require.NoError(t, hs.WriteResponse(head.NewResponse(hs.Version(), 200), []byte(tt.body)))
			assert.Equal(t, tt.expected, w.String())
		})
	}
}

func TestWriteResponseMiddlewareError(t *testing.T) {
	hs, w := newStream("GET / HTTP/1.1\r\nHost: h\r\n\r\n", Options{})
	hs.UseResponseMiddleware(&mockResponseMiddleware{err: assert.AnError})

	err := hs.WriteResponse(head.NewResponse("HTTP/1.1", 200), []byte("x"))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, w.Len())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriteResponseWriteError(t *testing.T) {
	hs := New(failingWriter{}, strings.NewReader(""), &mockAddr{addr: "1.2.3.4:1"}, Options{})
	err := hs.WriteResponse(head.NewResponse("HTTP/1.1", 200), []byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.NoError(t, hs.Close())
}
