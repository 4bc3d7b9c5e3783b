package middleware

import (
	"reqlens/internal/http/head"
	"reqlens/request"
)

type RequestMiddleware interface {
	HandleRequest(req *request.Request) error
}

type ResponseMiddleware interface {
	HandleResponse(resp head.ResponseHead, body []byte) error
}

// Chain holds the middlewares applied to one request/response exchange.
type Chain struct {
	reqMW  []RequestMiddleware
	respMW []ResponseMiddleware
}

func NewChain() *Chain {
	return &Chain{}
}

func (c *Chain) UseRequestMiddleware(mw RequestMiddleware) {
	c.reqMW = append(c.reqMW, mw)
}

func (c *Chain) UseResponseMiddleware(mw ResponseMiddleware) {
	c.respMW = append(c.respMW, mw)
}

// ApplyRequestMiddlewares stops at the first middleware that fails.
func (c *Chain) ApplyRequestMiddlewares(req *request.Request) error {
	for _, m := range c.reqMW {
		if err := m.HandleRequest(req); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) ApplyResponseMiddlewares(resp head.ResponseHead, body []byte) error {
	for _, m := range c.respMW {
		if err := m.HandleResponse(resp, body); err != nil {
			return err
		}
	}
	return nil
}
