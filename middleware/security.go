package middleware

import (
	"context"
	"encoding/base64"
	"net/http"
	"slices"
	"strings"
)

type contextKey string

const securityContextKey contextKey = "veritas:security"

// SecurityContext holds the credentials accepted for a request.
type SecurityContext struct {
	Bearer *BearerAuth
	Basic  *BasicAuth
	APIKey *APIKeyAuth
}

// BearerAuth contains a validated bearer token, typically a JWT.
type BearerAuth struct {
	Token   string
	Subject string
	Scopes  []string
}

// BasicAuth contains validated HTTP basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

// APIKeyAuth contains a validated API key.
type APIKeyAuth struct {
	Key      string
	Name     string
	Location string // header, query, cookie
}

// WithSecurityContext stores security context in the request context.
func WithSecurityContext(ctx context.Context, sec *SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey, sec)
}

// GetSecurityContext retrieves security context from the request context.
func GetSecurityContext(ctx context.Context) *SecurityContext {
	if v, ok := ctx.Value(securityContextKey).(*SecurityContext); ok {
		return v
	}
	return nil
}

// SecurityHandler validates credentials for one scheme.
type SecurityHandler interface {
	Handle(r *http.Request) (*SecurityContext, error)
}

// BearerHandler validates HTTP Bearer authentication.
type BearerHandler func(ctx context.Context, token string) (*BearerAuth, error)

// Handle implements SecurityHandler.
func (h BearerHandler) Handle(r *http.Request) (*SecurityContext, error) {
	token := ExtractBearerToken(r)
	if token == "" {
		return nil, NewUnauthorizedError("bearer", "missing bearer token")
	}
	auth, err := h(r.Context(), token)
	if err != nil {
		return nil, err
	}
	if auth.Token == "" {
		auth.Token = token
	}
	return &SecurityContext{Bearer: auth}, nil
}

// BasicHandler validates HTTP Basic authentication.
type BasicHandler func(ctx context.Context, username, password string) (*BasicAuth, error)

// Handle implements SecurityHandler.
func (h BasicHandler) Handle(r *http.Request) (*SecurityContext, error) {
	username, password, ok := ExtractBasicAuth(r)
	if !ok {
		return nil, NewUnauthorizedError("basic", "missing basic auth credentials")
	}
	auth, err := h(r.Context(), username, password)
	if err != nil {
		return nil, err
	}
	return &SecurityContext{Basic: auth}, nil
}

// APIKeyHandler validates API key authentication.
type APIKeyHandler func(ctx context.Context, key string) (*APIKeyAuth, error)

// APIKeyConfig wraps an APIKeyHandler with the key's location.
type APIKeyConfig struct {
	Handler  APIKeyHandler
	Location string
	Name     string
}

// Handle implements SecurityHandler.
func (c APIKeyConfig) Handle(r *http.Request) (*SecurityContext, error) {
	key := ExtractAPIKey(r, c.Location, c.Name)
	if key == "" {
		return nil, NewUnauthorizedError("apiKey", "missing API key")
	}
	auth, err := c.Handler(r.Context(), key)
	if err != nil {
		return nil, err
	}
	auth.Location = c.Location
	auth.Name = c.Name
	return &SecurityContext{APIKey: auth}, nil
}

// Authenticate accepts a request when any of handlers accepts its
// credentials. The accepted credentials are available from Context.Security
// and from GetSecurityContext on the request context. When every handler
// fails, the last failure is returned and the chain stops.
func Authenticate(handlers ...SecurityHandler) Handler {
	return func(c *Context, next Next) error {
		if len(handlers) == 0 {
			return next()
		}

		var lastErr error
		for _, h := range handlers {
			sec, err := h.Handle(c.Request)
			if err != nil {
				lastErr = err
				continue
			}
			if c.security == nil {
				c.security = &SecurityContext{}
			}
			MergeSecurityContext(c.security, sec)
			c.Request = c.Request.WithContext(WithSecurityContext(c.Request.Context(), c.security))
			return next()
		}
		return lastErr
	}
}

// RequireScopes rejects bearer credentials that lack any of scopes. It must
// run after Authenticate.
func RequireScopes(scopes ...string) Handler {
	return func(c *Context, next Next) error {
		sec := c.Security()
		if sec == nil || sec.Bearer == nil {
			return NewUnauthorizedError("bearer", "missing bearer token")
		}
		for _, s := range scopes {
			if !slices.Contains(sec.Bearer.Scopes, s) {
				return NewForbiddenError("bearer", "insufficient scope", scopes)
			}
		}
		return next()
	}
}

// ExtractBearerToken extracts the bearer token from the Authorization header.
func ExtractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return auth[7:]
	}
	return ""
}

// ExtractBasicAuth extracts username and password from the Basic auth header.
func ExtractBasicAuth(r *http.Request) (username, password string, ok bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) <= 6 || !strings.EqualFold(auth[:6], "Basic ") {
		return "", "", false
	}
	payload, err := base64.StdEncoding.DecodeString(auth[6:])
	if err != nil {
		return "", "", false
	}
	username, password, ok = strings.Cut(string(payload), ":")
	return username, password, ok
}

// ExtractAPIKey extracts an API key from a header, query or cookie.
func ExtractAPIKey(r *http.Request, location, name string) string {
	switch location {
	case "header":
		return r.Header.Get(name)
	case "query":
		return r.URL.Query().Get(name)
	case "cookie":
		if c, err := r.Cookie(name); err == nil {
			return c.Value
		}
	}
	return ""
}

// MergeSecurityContext copies the non-nil fields of src into dst.
func MergeSecurityContext(dst, src *SecurityContext) {
	if src == nil {
		return
	}
	if src.Bearer != nil {
		dst.Bearer = src.Bearer
	}
	if src.Basic != nil {
		dst.Basic = src.Basic
	}
	if src.APIKey != nil {
		dst.APIKey = src.APIKey
	}
}
