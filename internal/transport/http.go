package transport

import (
	"errors"
	"net"

	"go.uber.org/zap"
)

type httpServer struct {
	handler HTTP
	port    string
	logger  *zap.Logger
}

func NewHTTPServer(port string, handler HTTP, logger *zap.Logger) Transport {
	return &httpServer{
		handler: handler,
		port:    port,
		logger:  logger,
	}
}

func (ht *httpServer) Listen() (net.Listener, error) {
	return net.Listen("tcp", ":"+ht.port)
}

func (ht *httpServer) Serve(listener net.Listener) error {
	ht.logger.Info("HTTP server is starting", zap.String("port", ht.port))
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			ht.logger.Warn("accept connection", zap.Error(err))
			continue
		}

		go ht.handler.Handler(conn, false)
	}
}
