package bootstrap

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"reqlens/internal/config"
	"reqlens/internal/controller"
	"reqlens/internal/http/stream"
	"reqlens/internal/metrics"
	"reqlens/internal/middleware"
	"reqlens/internal/router"
	"reqlens/internal/transport"
	"reqlens/internal/version"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Bootstrap struct {
	Config     config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Router     router.Router
	Dispatcher *transport.Dispatcher
	RateLimit  *middleware.RateLimit
	ErrChan    chan error
	SignalChan chan os.Signal
}

func New(conf config.Config, logger *zap.Logger) (*Bootstrap, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, w := range conf.Warnings() {
		logger.Warn("config", zap.String("warning", w))
	}

	r := router.New()
	if err := controller.NewRequestTest().Register(r); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}
	logger.Debug("routes registered", zap.Strings("routes", r.Routes()))

	var mws []middleware.RequestMiddleware
	if conf.AuthFile() != "" {
		auth, err := middleware.LoadBasicAuth(conf.AuthFile())
		if err != nil {
			return nil, err
		}
		logger.Info("basic auth enabled", zap.Int("users", auth.Len()))
		mws = append(mws, auth)
	}

	var limiter *middleware.RateLimit
	if conf.RateLimitRPS() > 0 {
		limiter = middleware.NewRateLimit(conf.RateLimitRPS(), conf.RateLimitBurst())
		logger.Info("rate limit enabled", zap.Float64("rps", conf.RateLimitRPS()), zap.Int("burst", conf.RateLimitBurst()))
		mws = append(mws, limiter)
	}

	m := metrics.New()

	return &Bootstrap{
		Config:     conf,
		Logger:     logger,
		Metrics:    m,
		Router:     r,
		Dispatcher: transport.NewDispatcher(r, logger, m, mws...),
		RateLimit:  limiter,
		ErrChan:    make(chan error, 5),
		SignalChan: make(chan os.Signal, 1),
	}, nil
}

func (b *Bootstrap) streamOptions() stream.Options {
	return stream.Options{
		Scheme:         "http",
		MaxBodySize:    b.Config.MaxBodySize(),
		Resolver:       net.DefaultResolver,
		ResolveTimeout: b.Config.ResolveTimeout(),
	}
}

// newServer picks the transport implementation for port. tlsConfig is nil
// for plain HTTP.
func (b *Bootstrap) newServer(port string, tlsConfig *tls.Config) transport.Transport {
	if b.Config.Transport() == config.TransportFastHTTP {
		return transport.NewFastHTTPServer(port, b.Dispatcher, b.streamOptions(), tlsConfig)
	}
	handler := transport.NewHTTPHandler(b.Dispatcher, b.streamOptions())
	if tlsConfig != nil {
		return transport.NewHTTPSServer(port, handler, tlsConfig, b.Logger)
	}
	return transport.NewHTTPServer(port, handler, b.Logger)
}

func startServer(name string, srv transport.Transport, errChan chan<- error) {
	ln, err := srv.Listen()
	if err != nil {
		errChan <- fmt.Errorf("failed to start %s server: %w", name, err)
		return
	}
	if err = srv.Serve(ln); err != nil {
		errChan <- fmt.Errorf("error when serving %s server: %w", name, err)
	}
}

func (b *Bootstrap) startHTTPSServer(done <-chan struct{}) {
	tlsCfg, err := transport.NewTLSConfig(b.Config, b.Logger, done)
	if err != nil {
		b.ErrChan <- fmt.Errorf("failed to create TLS config: %w", err)
		return
	}
	startServer("https", b.newServer(b.Config.HTTPSPort(), tlsCfg), b.ErrChan)
}

func (b *Bootstrap) metricsHandler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", b.Metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintln(w, version.GetVersion())
	}).Methods(http.MethodGet)
	return r
}

func (b *Bootstrap) startMetrics(port string) {
	addr := ":" + port
	b.Logger.Info("metrics server is starting", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, b.metricsHandler()); err != nil {
		b.ErrChan <- fmt.Errorf("metrics server error: %w", err)
	}
}

func (b *Bootstrap) startPprof(pprofPort string) {
	pprofAddr := fmt.Sprintf("localhost:%s", pprofPort)
	b.Logger.Info("pprof server is starting", zap.String("url", "http://"+pprofAddr+"/debug/pprof/"))
	if err := http.ListenAndServe(pprofAddr, nil); err != nil {
		b.ErrChan <- fmt.Errorf("pprof server error: %w", err)
	}
}

func (b *Bootstrap) Run() error {
	done := make(chan struct{})
	defer close(done)

	signal.Notify(b.SignalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(b.SignalChan)

	if b.RateLimit != nil {
		go b.RateLimit.Run(done)
	}

	go startServer("http", b.newServer(b.Config.HTTPPort(), nil), b.ErrChan)

	if b.Config.TLSEnabled() {
		go b.startHTTPSServer(done)
	}

	if port := b.Config.MetricsPort(); port != "" {
		go b.startMetrics(port)
	}

	if b.Config.PprofEnabled() {
		go b.startPprof(b.Config.PprofPort())
	}

	b.Logger.Info("all services started",
		zap.String("version", version.GetShortVersion()),
		zap.String("transport", string(b.Config.Transport())),
		zap.String("domain", b.Config.Domain()),
	)

	select {
	case err := <-b.ErrChan:
		return fmt.Errorf("service error: %w", err)
	case sig := <-b.SignalChan:
		b.Logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
		return nil
	}
}
