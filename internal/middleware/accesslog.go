package middleware

import (
	"strings"
	"time"

	"reqlens/internal/http/head"
	"reqlens/internal/logger"
	"reqlens/internal/metrics"
	"reqlens/request"

	"go.uber.org/zap"
)

// AccessLog writes one line per answered request and feeds the request
// metrics. It is built per request.
type AccessLog struct {
	logger    *zap.Logger
	metrics   *metrics.Metrics
	transport string
	req       *request.Request
	start     time.Time
}

func NewAccessLog(logger *zap.Logger, m *metrics.Metrics, transport string, req *request.Request, start time.Time) *AccessLog {
	return &AccessLog{
		logger:    logger,
		metrics:   m,
		transport: transport,
		req:       req,
		start:     start,
	}
}

func (a *AccessLog) HandleResponse(resp head.ResponseHead, body []byte) error {
	elapsed := time.Since(a.start)
	if a.metrics != nil {
		a.metrics.ObserveRequest(a.transport, a.req.Method(), a.req.Match(), resp.Status(), elapsed)
		a.metrics.ObserveResponseSize(a.transport, len(body))
	}
	if a.logger == nil {
		return nil
	}
	if ce := a.logger.Check(zap.DebugLevel, "request_headers"); ce != nil {
		ce.Write(zap.String("id", a.req.ID()), zap.String("headers", a.safeHeaders()))
	}
	a.logger.Info("request_served",
		zap.String("id", a.req.ID()),
		zap.String("transport", a.transport),
		zap.String("method", a.req.Method()),
		zap.String("path", a.req.Path()),
		zap.String("match", a.req.Match()),
		zap.String("remote", a.req.Address()),
		zap.String("remote_user", a.req.RemoteUser()),
		zap.String("user_agent", a.req.UserAgent()),
		zap.Int("status", resp.Status()),
		zap.String("content_type", resp.Value("Content-Type")),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", elapsed),
	)
	return nil
}

func (a *AccessLog) safeHeaders() string {
	parts := make([]string, 0, a.req.Headers().Len())
	for name, value := range a.req.Headers().All() {
		parts = append(parts, name+"="+logger.RedactHeader(name, value))
	}
	return strings.Join(parts, "; ")
}
