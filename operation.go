// Package veritas builds HTTP services from declared operations.
//
// An operation pairs a method and path with JSON schemas for its path
// parameters, query string, request body and response body. Controllers group
// operations under a prefix, services group controllers, and CombineServices
// merges several services behind one listener. Every request is validated
// against its operation's schemas before the handler runs and the response is
// validated after it returns, either rejecting mismatches (strict mode) or
// logging them (warn mode).
package veritas

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kolah/veritas/middleware"
	"github.com/kolah/veritas/router"
	"github.com/kolah/veritas/schema"
)

var (
	ErrInvalidMethod = errors.New("invalid method")
	ErrInvalidPath   = errors.New("invalid path")
	ErrNoHandler     = errors.New("operation has no handler")
)

var methods = []string{"GET", "POST", "PUT", "DELETE"}

// Definition declares an operation. Zero values are filled in by
// Controller.AddOperation.
type Definition struct {
	Name        string
	Summary     string
	Description string
	// Method is GET, POST, PUT or DELETE in any case.
	Method string
	// Path uses ":name" for parameters. A path starting with "(" is a raw
	// pattern that is routed verbatim and never validated.
	Path string

	Params *schema.Schema
	Query  *schema.Schema
	Req    *schema.Schema
	Res    *schema.Schema

	// Auth marks the operation as requiring credentials in the generated
	// documentation. Enforcement is up to middleware such as
	// middleware.Authenticate.
	Auth bool

	// Middleware runs before validation.
	Middleware []middleware.Handler
}

// Operation is a normalised Definition, owned by the controller that created
// it.
type Operation struct {
	Name        string
	Summary     string
	Description string
	Method      string
	Path        string
	Params      *schema.Schema
	Query       *schema.Schema
	Req         *schema.Schema
	Res         *schema.Schema
	Auth        bool
	Tags        []string
	Middleware  []middleware.Handler
}

// IsRaw reports whether the operation uses a raw route pattern.
func (op Operation) IsRaw() bool {
	return router.IsRaw(op.Path)
}

func (op Operation) clone() Operation {
	op.Tags = slices.Clone(op.Tags)
	op.Middleware = slices.Clone(op.Middleware)
	return op
}

func (d Definition) normalize(tags []string, auth bool) (Operation, error) {
	method := strings.ToUpper(d.Method)
	if !slices.Contains(methods, method) {
		return Operation{}, fmt.Errorf("%w: %q", ErrInvalidMethod, d.Method)
	}
	if d.Path == "" {
		return Operation{}, fmt.Errorf("%w: operation %q has no path", ErrInvalidPath, d.Name)
	}
	if _, _, err := router.Pattern(d.Path); err != nil {
		return Operation{}, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}

	op := Operation{
		Name:        d.Name,
		Summary:     cmpOr(d.Summary, d.Name),
		Description: cmpOr(d.Description, d.Name),
		Method:      method,
		Path:        d.Path,
		Params:      d.Params,
		Query:       d.Query,
		Req:         d.Req,
		Res:         d.Res,
		Auth:        d.Auth || auth,
		Tags:        slices.Clone(tags),
		Middleware:  slices.Clone(d.Middleware),
	}
	if op.Params == nil {
		op.Params = schema.Object(nil)
	}
	if op.Query == nil {
		op.Query = schema.Object(nil)
	}
	if op.Req == nil {
		op.Req = schema.Any()
	}
	if op.Res == nil {
		op.Res = schema.Any()
	}
	op.Req = schema.WithGeneratedDefaults(op.Req)
	op.Res = schema.WithGeneratedDefaults(op.Res)
	return op, nil
}

func cmpOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
