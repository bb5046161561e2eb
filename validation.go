package veritas

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/kolah/veritas/middleware"
	"github.com/kolah/veritas/schema"
)

// ValidationOptions configures BuildValidation.
type ValidationOptions struct {
	// WarnOnly logs validation failures instead of failing the request.
	WarnOnly bool
	// Compiler defaults to a fresh compiler with the built-in formats.
	Compiler *schema.Compiler
	Logger   *log.Logger
}

// BuildValidation returns the handler that validates op's requests and
// responses. All four schemas are compiled here, so a broken schema surfaces
// when the operation is bound rather than on its first request.
//
// The request is checked in order query, params, body. A response written
// directly to the ResponseWriter is not checked.
func BuildValidation(op Operation, opts ValidationOptions) (middleware.Handler, error) {
	compiler := opts.Compiler
	if compiler == nil {
		compiler = schema.NewCompiler(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	query, err := compiler.Compile(op.Query)
	if err != nil {
		return nil, fmt.Errorf("operation %q: query schema: %w", op.Name, err)
	}
	params, err := compiler.Compile(op.Params)
	if err != nil {
		return nil, fmt.Errorf("operation %q: params schema: %w", op.Name, err)
	}
	req, err := compiler.Compile(op.Req)
	if err != nil {
		return nil, fmt.Errorf("operation %q: request schema: %w", op.Name, err)
	}
	res, err := compiler.Compile(op.Res)
	if err != nil {
		return nil, fmt.Errorf("operation %q: response schema: %w", op.Name, err)
	}

	return func(c *middleware.Context, next middleware.Next) error {
		var errs []schema.Error
		errs = append(errs, query.Errors(c.QueryValues())...)
		errs = append(errs, params.Errors(c.ParamValues())...)
		errs = append(errs, req.Errors(c.Body)...)

		if len(errs) > 0 {
			if !opts.WarnOnly {
				return middleware.NewRequestValidationError(errs)
			}
			logger.Warn("RequestValidationError", "operation", op.Name, "errors", errs)
		}

		if err := next(); err != nil {
			return err
		}
		if c.Written() {
			return nil
		}

		if errs := res.Errors(c.Response); len(errs) > 0 {
			if !opts.WarnOnly {
				return middleware.NewResponseValidationError(errs)
			}
			logger.Warn("ResponseValidationError", "operation", op.Name, "errors", errs)
		}
		return nil
	}, nil
}
