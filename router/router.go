// Package router keeps the route table that controllers and services bind
// into and turns it into a chi-backed http.Handler.
//
// Paths use ":name" segments for parameters. A path wrapped in parentheses is
// a raw pattern: the text inside is handed to chi as is, and requests matched
// by it skip body decoding.
package router

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/kolah/veritas/middleware"
)

var (
	ErrDuplicateRoute = errors.New("duplicate route")
	ErrInvalidPath    = errors.New("invalid route path")
	ErrInvalidMethod  = errors.New("invalid route method")
)

// Route is one method and pattern with its handler chain.
type Route struct {
	Method string
	// Pattern is the chi pattern, e.g. "/users/{id}".
	Pattern string
	// Raw marks patterns registered with the parenthesised form.
	Raw bool

	handler    middleware.Handler
	middleware []middleware.Handler
}

// Router is a route table. It is not safe for concurrent mutation; build it
// before serving.
type Router struct {
	middleware []middleware.Handler
	routes     []Route
	index      map[string]struct{}
}

func New() *Router {
	return &Router{index: make(map[string]struct{})}
}

// Use appends middleware that runs before every route of this router,
// including routes registered before the call.
func (r *Router) Use(handlers ...middleware.Handler) {
	r.middleware = append(r.middleware, handlers...)
}

// Register adds handler under path for each of methods.
func (r *Router) Register(path string, methods []string, handler middleware.Handler) error {
	if handler == nil {
		return fmt.Errorf("register %s: nil handler", path)
	}
	pattern, raw, err := Pattern(path)
	if err != nil {
		return err
	}
	if len(methods) == 0 {
		return fmt.Errorf("%w: no methods for %s", ErrInvalidMethod, path)
	}

	routes := make([]Route, 0, len(methods))
	for _, m := range methods {
		method := strings.ToUpper(m)
		if method == "" {
			return fmt.Errorf("%w: empty method for %s", ErrInvalidMethod, path)
		}
		routes = append(routes, Route{Method: method, Pattern: pattern, Raw: raw, handler: handler})
	}
	return r.insert(routes)
}

// Mount copies every route of sub into r under prefix. The sub router's
// middleware is prepended to each copied chain, so middleware added to sub
// after mounting has no effect on r. Nothing is inserted when any copied route
// would be a duplicate.
func (r *Router) Mount(prefix string, sub *Router) error {
	if sub == nil {
		return nil
	}
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("%w: prefix %q must start with /", ErrInvalidPath, prefix)
	}

	prefix = paramSegment.ReplaceAllString(prefix, "$1{$2}")

	routes := make([]Route, 0, len(sub.routes))
	for _, rt := range sub.routes {
		pattern := joinPath(prefix, rt.Pattern)
		if !rt.Raw {
			pattern = trimSlash(pattern)
		}
		if err := checkParams(pattern); err != nil {
			return err
		}

		chain := make([]middleware.Handler, 0, len(sub.middleware)+len(rt.middleware))
		chain = append(chain, sub.middleware...)
		chain = append(chain, rt.middleware...)
		routes = append(routes, Route{
			Method:     rt.Method,
			Pattern:    pattern,
			Raw:        rt.Raw,
			handler:    rt.handler,
			middleware: chain,
		})
	}
	return r.insert(routes)
}

func (r *Router) insert(routes []Route) error {
	seen := make(map[string]struct{}, len(routes))
	for _, rt := range routes {
		key := routeKey(rt.Method, rt.Pattern)
		if _, ok := r.index[key]; ok {
			return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, rt.Method, rt.Pattern)
		}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, rt.Method, rt.Pattern)
		}
		seen[key] = struct{}{}
	}

	for _, rt := range routes {
		r.index[routeKey(rt.Method, rt.Pattern)] = struct{}{}
		r.routes = append(r.routes, rt)
	}
	return nil
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []Route {
	return slices.Clone(r.routes)
}

// Len is the number of registered routes.
func (r *Router) Len() int {
	return len(r.routes)
}

var (
	paramSegment = regexp.MustCompile(`(^|/):([A-Za-z_][A-Za-z0-9_]*)`)
	paramName    = regexp.MustCompile(`\{[^}:]*(:[^}]*)?\}`)
	paramKey     = regexp.MustCompile(`\{([^}:]*)(?::[^}]*)?\}`)
)

// Pattern converts a route path to its chi pattern. ":id" segments become
// "{id}" and a trailing slash is dropped, since requests are matched with
// trailing slashes stripped. A parenthesised path yields its inner text and
// raw == true. A parameter name may appear once per path.
func Pattern(path string) (pattern string, raw bool, err error) {
	if path == "" {
		return "", false, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if IsRaw(path) {
		if !strings.HasSuffix(path, ")") || len(path) < 3 {
			return "", false, fmt.Errorf("%w: unterminated raw pattern %q", ErrInvalidPath, path)
		}
		inner := path[1 : len(path)-1]
		if !strings.HasPrefix(inner, "/") {
			inner = "/" + inner
		}
		if err := checkParams(inner); err != nil {
			return "", false, err
		}
		return inner, true, nil
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	pattern = trimSlash(paramSegment.ReplaceAllString(path, "$1{$2}"))
	if err := checkParams(pattern); err != nil {
		return "", false, err
	}
	return pattern, false, nil
}

// checkParams rejects patterns that name the same parameter twice.
func checkParams(pattern string) error {
	seen := make(map[string]bool)
	for _, m := range paramKey.FindAllStringSubmatch(pattern, -1) {
		if seen[m[1]] {
			return fmt.Errorf("%w: parameter %q repeated in %q", ErrInvalidPath, m[1], pattern)
		}
		seen[m[1]] = true
	}
	return nil
}

func trimSlash(pattern string) string {
	if len(pattern) > 1 {
		return strings.TrimSuffix(pattern, "/")
	}
	return pattern
}

// IsRaw reports whether path uses the parenthesised raw form.
func IsRaw(path string) bool {
	return strings.HasPrefix(path, "(")
}

// routeKey identifies a route for duplicate detection. Parameter names are
// erased so "/users/{id}" and "/users/{userId}" collide.
func routeKey(method, pattern string) string {
	return method + " " + paramName.ReplaceAllString(strings.TrimSuffix(pattern, "/"), "{$1}")
}

func joinPath(prefix, path string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return path
	}
	if path == "" || path == "/" {
		return prefix
	}
	return prefix + path
}

type statusError struct {
	code int
}

func (e statusError) Error() string {
	return http.StatusText(e.code)
}

func (e statusError) HTTPStatus() int {
	return e.code
}
