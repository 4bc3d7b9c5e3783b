// Package transport accepts connections and turns what arrives on them into
// Requests that the router and controller answer.
package transport

import (
	"net"
)

// Names used as the transport label in logs and metrics.
const (
	NameRaw      = "raw"
	NameFastHTTP = "fasthttp"
)

type Transport interface {
	Listen() (net.Listener, error)
	Serve(listener net.Listener) error
}

type HTTP interface {
	Handler(conn net.Conn, isTLS bool)
}
