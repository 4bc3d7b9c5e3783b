// Package router resolves a Request to the action registered for its path and
// records the matched path on the Request.
package router

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"reqlens/request"

	"github.com/gorilla/mux"
)

// Action produces the response body for a routed request. vars holds the
// values of the path template's variables.
type Action func(req *request.Request, vars map[string]string) (string, error)

type Router interface {
	Register(path string, action Action) error
	Resolve(req *request.Request) (Action, map[string]string, error)
	Routes() []string
}

type router struct {
	mu      sync.RWMutex
	mux     *mux.Router
	actions map[string]Action
}

var (
	ErrNoRoute        = fmt.Errorf("no route")
	ErrRouteInUse     = fmt.Errorf("route already registered")
	ErrInvalidPath    = fmt.Errorf("invalid route path")
	ErrNilAction      = fmt.Errorf("nil action")
	ErrMalformedRoute = fmt.Errorf("malformed route template")
)

func New() Router {
	return &router{
		mux:     mux.NewRouter(),
		actions: make(map[string]Action),
	}
}

func (r *router) Register(path string, action Action) error {
	if action == nil {
		return ErrNilAction
	}
	if !isValidPath(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[path]; exists {
		return fmt.Errorf("%w: %q", ErrRouteInUse, path)
	}

	route := r.mux.NewRoute().Path(path).Name(path)
	if err := route.GetError(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRoute, err)
	}

	r.actions[path] = action
	return nil
}

// Resolve finds the action for the request path. On success the Request's
// matched path is set to the static part of the route template.
func (r *router) Resolve(req *request.Request) (Action, map[string]string, error) {
	target := &http.Request{
		Method: req.Method(),
		URL:    &url.URL{Path: "/" + req.Path()},
		Host:   req.URI().Host(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var match mux.RouteMatch
	if !r.mux.Match(target, &match) || match.MatchErr != nil || match.Route == nil {
		return nil, nil, fmt.Errorf("%w: /%s", ErrNoRoute, req.Path())
	}

	name := match.Route.GetName()
	action, ok := r.actions[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: /%s", ErrNoRoute, req.Path())
	}

	req.SetMatch(staticPrefix(name))
	vars := match.Vars
	if vars == nil {
		vars = map[string]string{}
	}
	return action, vars, nil
}

func (r *router) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]string, 0, len(r.actions))
	for path := range r.actions {
		routes = append(routes, path)
	}
	sort.Strings(routes)
	return routes
}

// staticPrefix returns the template up to its first variable, without the
// trailing slash: "/request/test/uriWith/{append}" yields
// "/request/test/uriWith".
func staticPrefix(template string) string {
	if i := strings.IndexByte(template, '{'); i != -1 {
		template = template[:i]
	}
	if len(template) > 1 {
		template = strings.TrimSuffix(template, "/")
	}
	return template
}

func isValidPath(path string) bool {
	if path == "/" {
		return true
	}
	if !strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return false
	}

	for segment := range strings.SplitSeq(path[1:], "/") {
		if !isValidSegment(segment) {
			return false
		}
	}
	return true
}

func isValidSegment(segment string) bool {
	if segment == "" {
		return false
	}
	if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
		return len(segment) > 2
	}
	for i := 0; i < len(segment); i++ {
		if !isValidSegmentChar(segment[i]) {
			return false
		}
	}
	return true
}

func isValidSegmentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
