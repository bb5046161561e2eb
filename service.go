package veritas

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/kolah/veritas/middleware"
	"github.com/kolah/veritas/router"
	"github.com/kolah/veritas/schema"
)

// DefaultAddress is the address Start listens on when none is given.
const DefaultAddress = "127.0.0.1"

const shutdownTimeout = 10 * time.Second

// Config is the runtime configuration a service pushes into its controllers.
type Config struct {
	ValidatorWarnOnly bool       `koanf:"validator-warn-only"`
	CORS              CORSConfig `koanf:"cors"`
	// MaxBodyBytes caps request bodies; zero keeps the 1 MiB default.
	MaxBodyBytes int64 `koanf:"max-body-bytes"`
}

// CORSConfig configures cross-origin requests. An empty config allows every
// origin.
type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed-origins"`
	AllowedMethods   []string `koanf:"allowed-methods"`
	AllowedHeaders   []string `koanf:"allowed-headers"`
	ExposedHeaders   []string `koanf:"exposed-headers"`
	AllowCredentials bool     `koanf:"allow-credentials"`
	MaxAge           int      `koanf:"max-age"`
}

func (c CORSConfig) options() cors.Options {
	opts := cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   c.AllowedMethods,
		AllowedHeaders:   c.AllowedHeaders,
		ExposedHeaders:   c.ExposedHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           c.MaxAge,
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if len(opts.AllowedMethods) == 0 {
		opts.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(opts.AllowedHeaders) == 0 {
		opts.AllowedHeaders = []string{"*"}
	}
	return opts
}

// Contact is the API contact shown in generated documentation.
type Contact struct {
	Name  string
	URL   string
	Email string
}

type License struct {
	Name string
	URL  string
}

// Server is a base URL the API is reachable at.
type Server struct {
	URL         string
	Description string
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Title       string
	Description string
	Version     string
	Tags        []string
	// Prefix is prepended to every controller prefix.
	Prefix string
	// Internal services are served but left out of generated documentation.
	Internal bool
	Contact  *Contact
	License  *License
	Servers  []Server

	Controllers []*Controller
	// Middleware runs before the middleware of every operation the service
	// routes.
	Middleware []middleware.Handler
	Config     Config

	Logger   *log.Logger
	Compiler *schema.Compiler
}

// Service is a deployable set of controllers.
type Service struct {
	title       string
	description string
	version     string
	tags        []string
	prefix      string
	internal    bool
	contact     *Contact
	license     *License
	servers     []Server

	controllers []*Controller
	middleware  []middleware.Handler
	config      Config
	logger      *log.Logger
	compiler    *schema.Compiler

	children []*Service
	// composed holds the routes of combined children.
	composed *router.Router
	root     *router.Router
	bound    map[*router.Router]bool
}

func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	compiler := opts.Compiler
	if compiler == nil {
		compiler = schema.NewCompiler(nil)
	}
	return &Service{
		title:       opts.Title,
		description: opts.Description,
		version:     opts.Version,
		tags:        slices.Clone(opts.Tags),
		prefix:      opts.Prefix,
		internal:    opts.Internal,
		contact:     opts.Contact,
		license:     opts.License,
		servers:     slices.Clone(opts.Servers),
		controllers: slices.Clone(opts.Controllers),
		middleware:  slices.Clone(opts.Middleware),
		config:      opts.Config,
		logger:      logger,
		compiler:    compiler,
		root:        router.New(),
		bound:       make(map[*router.Router]bool),
	}
}

// Register adds a controller. It is routed on the next Bind.
func (s *Service) Register(controllers ...*Controller) {
	s.controllers = append(s.controllers, controllers...)
}

// Bind routes the service into target under its prefix. The validation mode
// of cfg, or of the service config when cfg is nil, is pushed into every
// controller first, replacing whatever was set on them. Binding the same
// target again does nothing.
func (s *Service) Bind(target *router.Router, cfg *Config) error {
	if s.bound[target] {
		return nil
	}
	if cfg == nil {
		cfg = &s.config
	}

	r := router.New()
	r.Use(s.middleware...)
	for _, c := range s.controllers {
		c.SetValidatorWarnOnly(cfg.ValidatorWarnOnly)
		c.use(s.compiler, s.logger)
		if err := c.Bind(r); err != nil {
			return fmt.Errorf("service %q: %w", s.title, err)
		}
	}
	if s.composed != nil {
		if err := r.Mount("", s.composed); err != nil {
			return fmt.Errorf("service %q: %w", s.title, err)
		}
	}

	if err := target.Mount(s.prefix, r); err != nil {
		return fmt.Errorf("service %q: %w", s.title, err)
	}
	s.bound[target] = true
	return nil
}

// Handler binds the service into its own root router and returns the router
// behind CORS handling.
func (s *Service) Handler() (http.Handler, error) {
	if err := s.Bind(s.root, nil); err != nil {
		return nil, err
	}

	opts := middleware.DefaultOptions()
	opts.Logger = s.logger
	if s.config.MaxBodyBytes > 0 {
		opts.MaxBodyBytes = s.config.MaxBodyBytes
	}
	return cors.Handler(s.config.CORS.options())(s.root.Handler(opts)), nil
}

// Start serves the service on port at each of addresses, DefaultAddress when
// none are given, until ctx is cancelled or a listener fails.
func (s *Service) Start(ctx context.Context, port int, addresses ...string) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	return s.Serve(ctx, handler, port, addresses...)
}

// Serve runs handler on port at every address until ctx is done, logging
// under the service title. Start calls it with the service handler.
func (s *Service) Serve(ctx context.Context, handler http.Handler, port int, addresses ...string) error {
	if len(addresses) == 0 {
		addresses = []string{DefaultAddress}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range addresses {
		srv := &http.Server{
			Addr:              net.JoinHostPort(addr, strconv.Itoa(port)),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			s.logger.Info("listening", "service", s.title, "addr", "http://"+srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

func (s *Service) Title() string { return s.title }
func (s *Service) Description() string { return s.description }
func (s *Service) Version() string { return s.version }
func (s *Service) Tags() []string { return slices.Clone(s.tags) }
func (s *Service) Prefix() string { return s.prefix }
func (s *Service) Internal() bool { return s.internal }
func (s *Service) Contact() *Contact { return s.contact }
func (s *Service) License() *License { return s.license }
func (s *Service) Servers() []Server { return slices.Clone(s.servers) }
func (s *Service) Controllers() []*Controller { return slices.Clone(s.controllers) }
func (s *Service) Config() Config { return s.config }
func (s *Service) Logger() *log.Logger { return s.logger }

// Children returns the services combined into this one.
func (s *Service) Children() []*Service { return slices.Clone(s.children) }

// IsCombined reports whether the service was built by CombineServices.
func (s *Service) IsCombined() bool { return s.composed != nil }

// SetConfig replaces the service config. It takes effect on the next Bind.
func (s *Service) SetConfig(cfg Config) {
	s.config = cfg
}

func (s *Service) SetLogger(logger *log.Logger) {
	if logger == nil {
		return
	}
	s.logger = logger
	for _, child := range s.children {
		child.SetLogger(logger)
	}
}
