package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// Context carries one request through its handler chain.
//
// Handlers read the validated request from Params, Query and Body and describe
// the response by setting Status and Response. The dispatcher writes the
// response after the whole chain has returned, so response validation sees the
// final body. Handlers that need full control may write to Writer directly.
type Context struct {
	Request *http.Request
	Writer  http.ResponseWriter

	// Params holds path parameters by name.
	Params map[string]string
	Query  url.Values
	// Body is the decoded JSON request body, nil when there is none.
	Body    any
	RawBody []byte

	// Status and Response describe the outgoing response.
	Status   int
	Response any

	// Pattern is the route pattern that matched, e.g. "/users/{userId}".
	Pattern string

	state    map[string]any
	security *SecurityContext
	writer   *responseWriter
}

// NewContext wraps a request. params may be nil.
func NewContext(w http.ResponseWriter, r *http.Request, params map[string]string) *Context {
	rw := &responseWriter{ResponseWriter: w}
	if params == nil {
		params = map[string]string{}
	}
	return &Context{
		Request: r,
		Writer:  rw,
		Params:  params,
		Query:   r.URL.Query(),
		writer:  rw,
	}
}

// Context returns the request's context.Context.
func (c *Context) Context() context.Context {
	return c.Request.Context()
}

// ReadBody reads the request body, at most limit bytes when limit > 0, and
// decodes it into Body when it is JSON.
func (c *Context) ReadBody(limit int64) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}

	var body io.Reader = c.Request.Body
	if limit > 0 {
		body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &MalformedBodyError{StatusCode: http.StatusRequestEntityTooLarge, Err: err}
		}
		return &MalformedBodyError{StatusCode: http.StatusBadRequest, Err: err}
	}
	c.RawBody = raw

	if len(bytes.TrimSpace(raw)) == 0 || !isJSON(c.Request.Header.Get("Content-Type")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return &MalformedBodyError{StatusCode: http.StatusBadRequest, Err: err}
	}
	c.Body = v
	return nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// Decode unmarshals the raw request body into v.
func (c *Context) Decode(v any) error {
	if len(c.RawBody) == 0 {
		return &MalformedBodyError{StatusCode: http.StatusBadRequest, Err: io.EOF}
	}
	if err := json.Unmarshal(c.RawBody, v); err != nil {
		return &MalformedBodyError{StatusCode: http.StatusBadRequest, Err: err}
	}
	return nil
}

// JSON sets the response status and body.
func (c *Context) JSON(status int, v any) {
	c.Status = status
	c.Response = v
}

// QueryValues returns the query string as a JSON object: a key with one value
// maps to a string, a repeated key to an array of strings.
func (c *Context) QueryValues() map[string]any {
	out := make(map[string]any, len(c.Query))
	for key, values := range c.Query {
		if len(values) == 1 {
			out[key] = values[0]
			continue
		}
		items := make([]any, len(values))
		for i, v := range values {
			items[i] = v
		}
		out[key] = items
	}
	return out
}

// ParamValues returns the path parameters as a JSON object.
func (c *Context) ParamValues() map[string]any {
	out := make(map[string]any, len(c.Params))
	for key, v := range c.Params {
		out[key] = v
	}
	return out
}

// Set stores a request-scoped value for later handlers.
func (c *Context) Set(key string, v any) {
	if c.state == nil {
		c.state = make(map[string]any)
	}
	c.state[key] = v
}

func (c *Context) Get(key string) (any, bool) {
	v, ok := c.state[key]
	return v, ok
}

// Value returns the request-scoped value stored under key if it has type T.
func Value[T any](c *Context, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Security returns the credentials accepted by Authenticate, or nil.
func (c *Context) Security() *SecurityContext {
	return c.security
}

// Written reports whether a handler wrote to Writer directly.
func (c *Context) Written() bool {
	return c.writer != nil && c.writer.wroteHeader
}

// WrittenStatus is the status sent so far, 0 before anything was written.
func (c *Context) WrittenStatus() int {
	if c.writer == nil {
		return 0
	}
	return c.writer.status
}

// Commit writes Status and Response unless a handler already wrote the
// response itself. A nil Response without a Status is sent as 204.
func (c *Context) Commit() error {
	if c.Written() {
		return nil
	}

	status := c.Status
	if c.Response == nil {
		if status == 0 {
			status = http.StatusNoContent
		}
		c.Writer.WriteHeader(status)
		return nil
	}

	raw, err := json.Marshal(c.Response)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	if status == 0 {
		status = http.StatusOK
	}
	c.Writer.Header().Set("Content-Type", "application/json")
	c.Writer.WriteHeader(status)
	_, err = c.Writer.Write(raw)
	return err
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
