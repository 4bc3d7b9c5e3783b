package middleware

import (
	"reqlens/internal/http/head"
	"reqlens/internal/version"
)

type ServerFingerprint struct {
	value string
}

func NewServerFingerprint() *ServerFingerprint {
	return &ServerFingerprint{value: "reqlens/" + version.GetShortVersion()}
}

func (h *ServerFingerprint) HandleResponse(resp head.ResponseHead, body []byte) error {
	resp.Set("Server", h.value)
	return nil
}

// RequestID echoes the id assigned to the request so that clients can
// correlate responses with access log lines.
type RequestID struct {
	id string
}

func NewRequestID(id string) *RequestID {
	return &RequestID{id: id}
}

func (h *RequestID) HandleResponse(resp head.ResponseHead, body []byte) error {
	resp.Set("X-Request-Id", h.id)
	return nil
}
