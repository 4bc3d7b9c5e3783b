// Package request implements the per-request model built from the data a
// transport collaborator hands over: method, absolute URI, headers, client
// address and a body source.
//
// A Request is immutable apart from its lazily built views (body buffer,
// query and body parameters, hostname), each of which is computed at most
// once and is safe to read from several goroutines. The matched path and the
// remote user are set by the routing and authentication collaborators before
// the request is handed to application code.
package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"reqlens/header"
	"reqlens/params"
	"reqlens/query"
	"reqlens/uri"

	"github.com/google/uuid"
)

const (
	MethodGet  = "GET"
	MethodPost = "POST"

	FormContentType = "application/x-www-form-urlencoded"

	DefaultResolveTimeout = 2 * time.Second
)

var (
	ErrBodyTooLarge = errors.New("request body too large")
	ErrBodyRead     = errors.New("read body")
	ErrNoURI        = errors.New("request has no uri")
)

// Resolver performs reverse lookups for Hostname. *net.Resolver satisfies it.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Input is the raw material supplied by the transport. Either URI or
// ParsedURI must be set.
type Input struct {
	ID        string
	Method    string
	URI       string
	ParsedURI *uri.URI
	Headers   *header.Headers
	Address   string
	Port      int
	Protocol  string
	Body      io.Reader

	// MaxBodySize bounds the buffered body; zero means unbounded.
	MaxBodySize    int64
	Resolver       Resolver
	ResolveTimeout time.Duration
}

type Request struct {
	id       string
	method   string
	uri      *uri.URI
	headers  *header.Headers
	address  string
	port     int
	protocol string

	match      string
	remoteUser string

	bodySrc     io.Reader
	maxBodySize int64
	bodyOnce    sync.Once
	body        []byte
	bodyErr     error

	queryOnce   sync.Once
	queryParams *params.Params

	formOnce   sync.Once
	bodyParams *params.Params
	formErr    error

	resolver       Resolver
	resolveTimeout time.Duration
	hostOnce       sync.Once
	hostname       string
}

func New(in Input) (*Request, error) {
	u := in.ParsedURI
	if u == nil {
		if in.URI == "" {
			return nil, ErrNoURI
		}
		var err error
		u, err = uri.Parse(in.URI)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
	}

	headers := in.Headers
	if headers == nil {
		headers = header.New()
	}
	resolver := in.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	timeout := in.ResolveTimeout
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	return &Request{
		id:             id,
		method:         in.Method,
		uri:            u,
		headers:        headers,
		address:        in.Address,
		port:           in.Port,
		protocol:       in.Protocol,
		bodySrc:        in.Body,
		maxBodySize:    in.MaxBodySize,
		resolver:       resolver,
		resolveTimeout: timeout,
	}, nil
}

func (r *Request) ID() string                { return r.id }
func (r *Request) Method() string            { return r.method }
func (r *Request) IsGet() bool               { return r.method == MethodGet }
func (r *Request) IsPost() bool              { return r.method == MethodPost }
func (r *Request) URI() *uri.URI             { return r.uri }
func (r *Request) Base() string              { return r.uri.Base() }
func (r *Request) Path() string              { return r.uri.Path() }
func (r *Request) Protocol() string          { return r.protocol }
func (r *Request) Address() string           { return r.address }
func (r *Request) Port() int                 { return r.port }
func (r *Request) Headers() *header.Headers  { return r.headers }
func (r *Request) Header(name string) string { return r.headers.Get(name) }
func (r *Request) ContentType() string       { return r.headers.ContentType() }
func (r *Request) ContentEncoding() string   { return r.headers.ContentEncoding() }
func (r *Request) UserAgent() string         { return r.headers.UserAgent() }
func (r *Request) Referer() string           { return r.headers.Referer() }

// Match is the path segment the router matched, without a leading slash.
func (r *Request) Match() string         { return r.match }
func (r *Request) SetMatch(match string) { r.match = strings.TrimPrefix(match, "/") }

func (r *Request) RemoteUser() string        { return r.remoteUser }
func (r *Request) SetRemoteUser(user string) { r.remoteUser = user }

// Hostname reverse-resolves Address on first use. Lookup failures and
// timeouts yield "".
func (r *Request) Hostname() string {
	r.hostOnce.Do(func() {
		if r.address == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.resolveTimeout)
		defer cancel()
		names, err := r.resolver.LookupAddr(ctx, r.address)
		if err != nil || len(names) == 0 {
			return
		}
		r.hostname = strings.TrimSuffix(names[0], ".")
	})
	return r.hostname
}

func (r *Request) QueryParameters() *params.Params {
	r.queryOnce.Do(func() {
		r.queryParams = r.uri.Query()
	})
	return r.queryParams
}

func (r *Request) QueryParams() *params.Params { return r.QueryParameters() }

func (r *Request) QueryParameter(key, def string) string {
	return r.QueryParameters().First(key, def)
}

func (r *Request) QueryParam(key, def string) string { return r.QueryParameter(key, def) }

// QueryKeywords returns the decoded query keys joined by '&' when every query
// entry is a bare keyword, and "" otherwise.
func (r *Request) QueryKeywords() string {
	q := r.QueryParameters()
	if q.Len() == 0 {
		return ""
	}
	keys := make([]string, 0, q.Len())
	for key, value := range q.All() {
		if value != "" {
			return ""
		}
		keys = append(keys, key)
	}
	return strings.Join(keys, "&")
}

// Body returns the whole request body. The source is read once; later calls
// return the same bytes, or the same read error.
func (r *Request) Body() ([]byte, error) {
	r.bodyOnce.Do(func() {
		if r.bodySrc == nil {
			return
		}
		src := r.bodySrc
		if r.maxBodySize > 0 {
			src = io.LimitReader(src, r.maxBodySize+1)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(src); err != nil {
			r.bodyErr = fmt.Errorf("%w: %w", ErrBodyRead, err)
			return
		}
		if r.maxBodySize > 0 && int64(buf.Len()) > r.maxBodySize {
			r.bodyErr = ErrBodyTooLarge
			return
		}
		r.body = buf.Bytes()
	})
	return r.body, r.bodyErr
}

func (r *Request) IsForm() bool {
	return strings.EqualFold(r.ContentType(), FormContentType)
}

// BodyParameters parses a urlencoded body once. Other content types yield an
// empty store.
func (r *Request) BodyParameters() (*params.Params, error) {
	r.formOnce.Do(func() {
		if !r.IsForm() {
			r.bodyParams = params.New()
			return
		}
		body, err := r.Body()
		if err != nil {
			r.formErr = err
			return
		}
		r.bodyParams, r.formErr = query.ParseForm(body, r.headers.Charset())
	})
	return r.bodyParams, r.formErr
}

func (r *Request) BodyParams() (*params.Params, error) { return r.BodyParameters() }

func (r *Request) BodyParameter(key, def string) (string, error) {
	p, err := r.BodyParameters()
	if err != nil {
		return def, err
	}
	return p.First(key, def), nil
}

func (r *Request) BodyParam(key, def string) (string, error) { return r.BodyParameter(key, def) }

// URIWith rebuilds the request URI with additions merged into its query.
func (r *Request) URIWith(additions *params.Params, appendMode bool) string {
	return r.uri.WithString(additions, appendMode)
}
