package transport

import (
	"crypto/tls"
	"errors"
	"net"

	"go.uber.org/zap"
)

type https struct {
	port      string
	tlsConfig *tls.Config
	handler   HTTP
	logger    *zap.Logger
}

func NewHTTPSServer(port string, handler HTTP, tlsConfig *tls.Config, logger *zap.Logger) Transport {
	return &https{
		port:      port,
		tlsConfig: tlsConfig,
		handler:   handler,
		logger:    logger,
	}
}

func (ht *https) Listen() (net.Listener, error) {
	return tls.Listen("tcp", ":"+ht.port, ht.tlsConfig)
}

func (ht *https) Serve(listener net.Listener) error {
	ht.logger.Info("HTTPS server is starting", zap.String("port", ht.port))
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			ht.logger.Warn("accept connection", zap.Error(err))
			continue
		}

		go ht.handler.Handler(conn, true)
	}
}
