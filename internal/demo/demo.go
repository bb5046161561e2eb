// Package demo holds the services shipped with the veritas binary: a small
// users API, an internal operations service with health and metrics routes,
// and a gateway combining both.
package demo

import (
	"context"
	"crypto/subtle"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kolah/veritas"
	"github.com/kolah/veritas/cli"
	"github.com/kolah/veritas/middleware"
	"github.com/kolah/veritas/schema"
)

// DefaultToken is the bearer token accepted when App.Token is empty.
const DefaultToken = "demo-token"

// App is the shared state of the demo services.
type App struct {
	Store   *Store
	Metrics *prometheus.Registry
	Token   string
	Subject string
	Contact *veritas.Contact
	Servers []veritas.Server
}

func New() *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &App{
		Store:   NewStore(),
		Metrics: reg,
		Token:   DefaultToken,
		Subject: "demo",
	}
}

// Register adds the demo services to reg as "users", "operations" and
// "gateway".
func (a *App) Register(reg *cli.Registry) error {
	for name, f := range map[string]cli.Factory{
		"users":      a.Users,
		"operations": a.Operations,
		"gateway":    a.Gateway,
	} {
		if err := reg.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) authenticate(ctx context.Context, token string) (*middleware.BearerAuth, error) {
	want := a.Token
	if want == "" {
		want = DefaultToken
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(want)) != 1 {
		return nil, middleware.NewUnauthorizedError("bearer", "invalid token")
	}
	return &middleware.BearerAuth{Subject: a.Subject, Scopes: []string{"users:read"}}, nil
}

func (a *App) Users(cfg veritas.Config, logger *log.Logger) (*veritas.Service, error) {
	users, err := a.usersController()
	if err != nil {
		return nil, err
	}
	instrument, err := middleware.Instrument(a.Metrics)
	if err != nil {
		return nil, err
	}
	return veritas.NewService(veritas.ServiceOptions{
		Title:       "Users",
		Description: "Create, fetch and list users.",
		Version:     "1.0.0",
		Tags:        []string{"users"},
		Contact:     a.Contact,
		License:     &veritas.License{Name: "MIT", URL: "https://opensource.org/licenses/MIT"},
		Servers:     a.Servers,
		Controllers: []*veritas.Controller{users},
		Middleware:  []middleware.Handler{instrument},
		Config:      cfg,
		Logger:      logger,
	}), nil
}

// Operations serves the health check and the Prometheus scrape endpoint. It is
// internal, so it never shows up in generated documents.
func (a *App) Operations(cfg veritas.Config, logger *log.Logger) (*veritas.Service, error) {
	c := veritas.NewController(veritas.ControllerOptions{Tags: []string{"operations"}})

	err := c.AddOperation(veritas.Definition{
		Name:   "Health",
		Method: "GET",
		Path:   "/health",
		Res:    schema.Object(schema.Props{"status": schema.String()}),
	}, func(c *middleware.Context, next middleware.Next) error {
		c.Response = map[string]string{"status": "ok"}
		return nil
	})
	if err != nil {
		return nil, err
	}

	scrape := promhttp.HandlerFor(a.Metrics, promhttp.HandlerOpts{Registry: a.Metrics})
	err = c.AddOperation(veritas.Definition{
		Name:   "Metrics",
		Method: "GET",
		Path:   "(/metrics)",
	}, middleware.Terminal(func(c *middleware.Context) error {
		scrape.ServeHTTP(c.Writer, c.Request)
		return nil
	}))
	if err != nil {
		return nil, err
	}

	return veritas.NewService(veritas.ServiceOptions{
		Title:       "Operations",
		Version:     "1.0.0",
		Internal:    true,
		Controllers: []*veritas.Controller{c},
		Config:      cfg,
		Logger:      logger,
	}), nil
}

// Gateway combines Users and Operations behind one listener.
func (a *App) Gateway(cfg veritas.Config, logger *log.Logger) (*veritas.Service, error) {
	users, err := a.Users(cfg, logger)
	if err != nil {
		return nil, err
	}
	ops, err := a.Operations(cfg, logger)
	if err != nil {
		return nil, err
	}
	combined, err := veritas.CombineServices([]*veritas.Service{users, ops}, veritas.CombinedConfig{
		Config:      cfg,
		Title:       "Gateway",
		Description: "All demo services.",
		Version:     "1.0.0",
		Tags:        []string{"users"},
	})
	if err != nil {
		return nil, err
	}
	combined.SetLogger(logger)
	return combined, nil
}
