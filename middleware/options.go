package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/kolah/veritas/schema"
)

// ErrorHandler writes the response for an error returned by a handler chain.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Options configures how requests are dispatched into handler chains.
type Options struct {
	ErrorHandler ErrorHandler
	Logger       *log.Logger
	// MaxBodyBytes caps request bodies. Zero means no limit.
	MaxBodyBytes int64
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Logger:       log.Default(),
		MaxBodyBytes: 1 << 20,
	}
}

// Handle returns the error handler to use, falling back to the JSON one.
func (o *Options) Handle() ErrorHandler {
	if o.ErrorHandler != nil {
		return o.ErrorHandler
	}
	return JSONErrorHandler(o.Logger)
}

// ErrorBody is the JSON document sent for a failed request.
type ErrorBody struct {
	Status  int            `json:"status"`
	Message string         `json:"message"`
	Errors  []schema.Error `json:"errors,omitempty"`
	Scopes  []string       `json:"required_scopes,omitempty"`
}

// JSONErrorHandler reports errors as an ErrorBody. Validation and body errors
// keep their message and details; anything without its own status is logged
// and reported as a bare 500.
func JSONErrorHandler(logger *log.Logger) ErrorHandler {
	if logger == nil {
		logger = log.Default()
	}
	return func(w http.ResponseWriter, r *http.Request, err error) {
		status := StatusOf(err)
		body := ErrorBody{Status: status, Message: err.Error()}

		var authErr *AuthError
		if verr, ok := AsValidationError(err); ok {
			body.Message = verr.Message
			body.Errors = verr.Errors
		} else if errors.As(err, &authErr) {
			body.Scopes = authErr.Scopes
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
			body.Message = http.StatusText(status)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
