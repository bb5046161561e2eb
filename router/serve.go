package router

import (
	"fmt"
	"net/http"
	"net/url"
	"runtime/debug"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kolah/veritas/middleware"
)

// Handler builds an http.Handler serving every registered route. Each request
// gets its own middleware.Context; the chain's error, if any, is written by
// opts.ErrorHandler, otherwise the context's response is committed. A nil opts
// means middleware.DefaultOptions().
func (r *Router) Handler(opts *middleware.Options) http.Handler {
	if opts == nil {
		opts = middleware.DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	onError := opts.Handle()

	mux := chi.NewRouter()
	mux.Use(chimw.StripSlashes)

	for _, rt := range r.routes {
		chain := make([]middleware.Handler, 0, len(r.middleware)+len(rt.middleware)+1)
		chain = append(chain, r.middleware...)
		chain = append(chain, rt.middleware...)
		chain = append(chain, rt.handler)

		d := &dispatcher{
			route:   rt,
			chain:   middleware.Compose(chain...),
			maxBody: opts.MaxBodyBytes,
			onError: onError,
			logger:  logger,
		}
		mux.Method(rt.Method, rt.Pattern, d)
	}

	mux.NotFound(func(w http.ResponseWriter, req *http.Request) {
		onError(w, req, statusError{code: http.StatusNotFound})
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		onError(w, req, statusError{code: http.StatusMethodNotAllowed})
	})

	return mux
}

type dispatcher struct {
	route   Route
	chain   middleware.Handler
	maxBody int64
	onError middleware.ErrorHandler
	logger  *log.Logger
}

func (d *dispatcher) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	c := middleware.NewContext(w, req, urlParams(req))
	c.Pattern = d.route.Pattern

	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		d.logger.Error("panic in handler",
			"method", req.Method,
			"route", d.route.Pattern,
			"panic", rec,
			"stack", string(debug.Stack()),
		)
		if !c.Written() {
			d.onError(c.Writer, c.Request, fmt.Errorf("panic: %v", rec))
		}
	}()

	if !d.route.Raw {
		if err := c.ReadBody(d.maxBody); err != nil {
			d.onError(c.Writer, c.Request, err)
			return
		}
	}

	if err := d.chain(c, nil); err != nil {
		if c.Written() {
			d.logger.Error("handler failed after writing response", "route", d.route.Pattern, "err", err)
			return
		}
		d.onError(c.Writer, c.Request, err)
		return
	}

	if err := c.Commit(); err != nil {
		d.logger.Error("writing response", "route", d.route.Pattern, "err", err)
	}
}

func urlParams(req *http.Request) map[string]string {
	params := map[string]string{}
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		return params
	}
	for i, key := range rctx.URLParams.Keys {
		value := rctx.URLParams.Values[i]
		if unescaped, err := url.PathUnescape(value); err == nil {
			value = unescaped
		}
		params[key] = value
	}
	return params
}
