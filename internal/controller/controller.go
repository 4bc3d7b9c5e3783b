// Package controller answers the request inspection endpoints. Each action
// echoes one view of the incoming request as the response body.
package controller

import (
	"strconv"
	"strings"

	"reqlens/internal/router"
	"reqlens/params"
	"reqlens/query"
	"reqlens/request"
)

const Prefix = "/request/test"

type RequestTest struct {
	uriWithAdditions *params.Params
}

func NewRequestTest() *RequestTest {
	return &RequestTest{
		uriWithAdditions: params.New(
			params.Pair{Key: "foo", Value: "baz"},
			params.Pair{Key: "fooz", Value: "bar"},
		),
	}
}

func (c *RequestTest) actions() map[string]router.Action {
	return map[string]router.Action{
		"address":          c.address,
		"hostname":         c.hostname,
		"port":             c.port,
		"uri":              c.uri,
		"base":             c.base,
		"path":             c.path,
		"match":            c.match,
		"method":           c.method,
		"isPost":           c.isPost,
		"isGet":            c.isGet,
		"protocol":         c.protocol,
		"remoteUser":       c.remoteUser,
		"headers":          c.headers,
		"userAgent":        c.userAgent,
		"referer":          c.referer,
		"contentEncoding":  c.contentEncoding,
		"contentType":      c.contentType,
		"queryKeywords":    c.queryKeywords,
		"queryParameters":  c.queryParameters,
		"uriWith/{append}": c.uriWith,
		"body":             c.body,
		"bodyParameters":   c.bodyParameters,
		"bodyParams":       c.bodyParameters,
		"bodyParameter":    c.bodyParameter,
		"bodyParam":        c.bodyParameter,
	}
}

// Register adds every action under Prefix.
func (c *RequestTest) Register(r router.Router) error {
	for name, action := range c.actions() {
		if err := r.Register(Prefix+"/"+name, action); err != nil {
			return err
		}
	}
	return nil
}

func (c *RequestTest) address(req *request.Request, _ map[string]string) (string, error) {
	return req.Address(), nil
}

func (c *RequestTest) hostname(req *request.Request, _ map[string]string) (string, error) {
	return req.Hostname(), nil
}

func (c *RequestTest) port(req *request.Request, _ map[string]string) (string, error) {
	return strconv.Itoa(req.Port()), nil
}

func (c *RequestTest) uri(req *request.Request, _ map[string]string) (string, error) {
	return req.URI().String(), nil
}

func (c *RequestTest) base(req *request.Request, _ map[string]string) (string, error) {
	return req.Base(), nil
}

func (c *RequestTest) path(req *request.Request, _ map[string]string) (string, error) {
	return req.Path(), nil
}

func (c *RequestTest) match(req *request.Request, _ map[string]string) (string, error) {
	return req.Match(), nil
}

func (c *RequestTest) method(req *request.Request, _ map[string]string) (string, error) {
	return req.Method(), nil
}

func (c *RequestTest) isPost(req *request.Request, _ map[string]string) (string, error) {
	return strconv.FormatBool(req.IsPost()), nil
}

func (c *RequestTest) isGet(req *request.Request, _ map[string]string) (string, error) {
	return strconv.FormatBool(req.IsGet()), nil
}

func (c *RequestTest) protocol(req *request.Request, _ map[string]string) (string, error) {
	return req.Protocol(), nil
}

func (c *RequestTest) remoteUser(req *request.Request, _ map[string]string) (string, error) {
	return req.RemoteUser(), nil
}

func (c *RequestTest) headers(req *request.Request, _ map[string]string) (string, error) {
	p := params.New()
	for name, value := range req.Headers().All() {
		p.Add(name, value)
	}
	return query.Encode(p), nil
}

func (c *RequestTest) userAgent(req *request.Request, _ map[string]string) (string, error) {
	return req.UserAgent(), nil
}

func (c *RequestTest) referer(req *request.Request, _ map[string]string) (string, error) {
	return req.Referer(), nil
}

func (c *RequestTest) contentEncoding(req *request.Request, _ map[string]string) (string, error) {
	return req.ContentEncoding(), nil
}

func (c *RequestTest) contentType(req *request.Request, _ map[string]string) (string, error) {
	return req.ContentType(), nil
}

func (c *RequestTest) queryKeywords(req *request.Request, _ map[string]string) (string, error) {
	return req.QueryKeywords(), nil
}

func (c *RequestTest) queryParameters(req *request.Request, _ map[string]string) (string, error) {
	return query.EncodeKeywords(req.QueryParameters()), nil
}

func (c *RequestTest) uriWith(req *request.Request, vars map[string]string) (string, error) {
	return req.URIWith(c.uriWithAdditions, parseBool(vars["append"])), nil
}

func (c *RequestTest) body(req *request.Request, _ map[string]string) (string, error) {
	body, err := req.Body()
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *RequestTest) bodyParameters(req *request.Request, _ map[string]string) (string, error) {
	p, err := req.BodyParameters()
	if err != nil {
		return "", err
	}
	return query.EncodeKeywords(p), nil
}

func (c *RequestTest) bodyParameter(req *request.Request, _ map[string]string) (string, error) {
	return req.BodyParameter(req.QueryParameter("param", ""), req.QueryParameter("defaultValue", ""))
}

// parseBool treats "", "0" and "false" (any case) as false and everything
// else as true.
func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "", "0", "false":
		return false
	}
	return true
}
