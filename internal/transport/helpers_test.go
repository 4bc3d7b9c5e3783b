package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"reqlens/internal/controller"
	"reqlens/internal/metrics"
	"reqlens/internal/middleware"
	"reqlens/internal/router"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockListener struct {
	mock.Mock
}

func (m *mockListener) Accept() (net.Conn, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(net.Conn), args.Error(1)
}

func (m *mockListener) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockListener) Addr() net.Addr {
	args := m.Called()
	return args.Get(0).(net.Addr)
}

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) Handler(conn net.Conn, isTLS bool) {
	m.Called(conn, isTLS)
	_ = conn.Close()
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	args := m.Called(ctx, addr)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func newResolver() *mockResolver {
	resolver := new(mockResolver)
	resolver.On("LookupAddr", mock.Anything, "127.0.0.1").Return([]string{"localhost."}, nil)
	return resolver
}

func newTestDispatcher(t *testing.T, mws ...middleware.RequestMiddleware) (*Dispatcher, *metrics.Metrics) {
	t.Helper()
	r := router.New()
	require.NoError(t, controller.NewRequestTest().Register(r))
	m := metrics.New()
	return NewDispatcher(r, zap.NewNop(), m, mws...), m
}

// serve runs srv on a loopback listener until the test ends and returns the
// listener address.
func serve(t *testing.T, srv Transport) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		_ = srv.Serve(listener)
	}()
	return listener.Addr().String()
}

// roundTrip writes raw to a fresh connection and reads one response.
func roundTrip(t *testing.T, addr, raw string) (*http.Response, string, int) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	method, _, _ := strings.Cut(raw, " ")
	resp, body := readResponse(t, bufio.NewReader(conn), method)
	return resp, body, conn.LocalAddr().(*net.TCPAddr).Port
}

// readResponse reads one response to a request sent with method. A HEAD
// response carries Content-Length but no body.
func readResponse(t *testing.T, br *bufio.Reader, method string) (*http.Response, string) {
	t.Helper()
	resp, err := http.ReadResponse(br, &http.Request{Method: method})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}
