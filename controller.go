package veritas

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/kolah/veritas/middleware"
	"github.com/kolah/veritas/router"
	"github.com/kolah/veritas/schema"
)

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	// Prefix is prepended to every operation path. "" and "/" mount at the
	// root.
	Prefix string
	Tags   []string
	// Auth is the default for operations that do not set it.
	Auth bool
	// Middleware runs after validation and before each operation's handler.
	Middleware []middleware.Handler
}

// Controller groups operations under a prefix.
type Controller struct {
	prefix     string
	tags       []string
	auth       bool
	middleware []middleware.Handler

	warnOnly bool
	compiler *schema.Compiler
	logger   *log.Logger

	entries []entry
	bound   map[*router.Router]bool
}

type entry struct {
	op      Operation
	handler middleware.Handler
}

func NewController(opts ControllerOptions) *Controller {
	return &Controller{
		prefix:     opts.Prefix,
		tags:       slices.Clone(opts.Tags),
		auth:       opts.Auth,
		middleware: slices.Clone(opts.Middleware),
		bound:      make(map[*router.Router]bool),
	}
}

// AddOperation normalises def and stores it with handlers composed into its
// terminal handler. The operation is routed once the controller is bound.
func (c *Controller) AddOperation(def Definition, handlers ...middleware.Handler) error {
	if len(handlers) == 0 {
		return fmt.Errorf("%w: %q", ErrNoHandler, def.Name)
	}
	op, err := def.normalize(c.tags, c.auth)
	if err != nil {
		return err
	}
	c.entries = append(c.entries, entry{op: op, handler: middleware.Compose(handlers...)})
	return nil
}

// MustAddOperation is AddOperation that panics on error, for static setup.
func (c *Controller) MustAddOperation(def Definition, handlers ...middleware.Handler) {
	if err := c.AddOperation(def, handlers...); err != nil {
		panic(err)
	}
}

// Bind routes every operation into target under the controller prefix. The
// chain of each operation is its own middleware, validation, the controller
// middleware, then the handler; raw operations get only their own middleware
// and the handler. Binding the same target again does nothing.
func (c *Controller) Bind(target *router.Router) error {
	if c.bound[target] {
		return nil
	}

	r := router.New()
	for _, e := range c.entries {
		chain := slices.Clone(e.op.Middleware)
		if !e.op.IsRaw() {
			validate, err := BuildValidation(e.op, ValidationOptions{
				WarnOnly: c.warnOnly,
				Compiler: c.compiler,
				Logger:   c.logger,
			})
			if err != nil {
				return err
			}
			chain = append(chain, validate)
			chain = append(chain, c.middleware...)
		}
		chain = append(chain, e.handler)

		if err := r.Register(e.op.Path, []string{e.op.Method}, middleware.Compose(chain...)); err != nil {
			return fmt.Errorf("operation %q: %w", e.op.Name, err)
		}
	}

	if err := target.Mount(c.prefix, r); err != nil {
		return fmt.Errorf("controller %q: %w", c.prefix, err)
	}
	c.bound[target] = true
	return nil
}

// Operations returns copies of the stored operations in registration order.
func (c *Controller) Operations() []Operation {
	ops := make([]Operation, len(c.entries))
	for i, e := range c.entries {
		ops[i] = e.op.clone()
	}
	return ops
}

// SetValidatorWarnOnly switches validation to warn mode for the next Bind.
func (c *Controller) SetValidatorWarnOnly(warnOnly bool) {
	c.warnOnly = warnOnly
}

func (c *Controller) ValidatorWarnOnly() bool { return c.warnOnly }

func (c *Controller) Prefix() string { return c.prefix }

// Tags returns the tags new operations are given.
func (c *Controller) Tags() []string { return slices.Clone(c.tags) }

// SetTags replaces the controller tags. Operations added earlier keep theirs.
func (c *Controller) SetTags(tags ...string) { c.tags = slices.Clone(tags) }

func (c *Controller) Auth() bool { return c.auth }

func (c *Controller) use(compiler *schema.Compiler, logger *log.Logger) {
	c.compiler = compiler
	c.logger = logger
}
