package veritas

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kolah/veritas/router"
)

// CombinedConfig configures the service built by CombineServices.
type CombinedConfig struct {
	Config      Config
	Title       string
	Description string
	Version     string
	Tags        []string
	Prefix      string
}

// CombineServices serves several services behind one router. Each child, in
// order, is bound with cfg.Config, so the combined validation mode reaches
// every controller, and then has its CORS config replaced by cfg's. Children
// keep their own prefix and middleware. Two children routing the same method
// and path fail with router.ErrDuplicateRoute; on any error no child is left
// bound to the combined router and no CORS config is changed.
func CombineServices(services []*Service, cfg CombinedConfig) (*Service, error) {
	for i, child := range services {
		if child == nil {
			return nil, fmt.Errorf("combine services: service %d is nil", i)
		}
		if slices.Contains(services[:i], child) {
			return nil, errors.New("combine services: service listed twice")
		}
	}

	combined := NewService(ServiceOptions{
		Title:       cfg.Title,
		Description: cfg.Description,
		Version:     cfg.Version,
		Tags:        cfg.Tags,
		Prefix:      cfg.Prefix,
		Config:      cfg.Config,
	})
	combined.children = slices.Clone(services)
	combined.composed = router.New()

	for i, child := range services {
		if err := child.Bind(combined.composed, &cfg.Config); err != nil {
			for _, done := range services[:i] {
				delete(done.bound, combined.composed)
			}
			return nil, fmt.Errorf("combine services: %w", err)
		}
	}
	for _, child := range services {
		child.config.CORS = cfg.Config.CORS
	}
	return combined, nil
}
