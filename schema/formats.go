package schema

import (
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FormatFunc checks a string against a named format. Non-string values are
// never passed to it.
type FormatFunc func(value string) error

// FormatRegistry holds the string formats a Compiler asserts. It is passed to
// the compiler explicitly; there is no process-wide registry.
type FormatRegistry struct {
	mu      sync.RWMutex
	formats map[string]FormatFunc
}

// NewFormatRegistry returns a registry with uuid, email and date-time
// registered.
func NewFormatRegistry() *FormatRegistry {
	r := &FormatRegistry{formats: make(map[string]FormatFunc)}
	r.Register("uuid", validateUUID)
	r.Register("email", validateEmail)
	r.Register("date-time", validateDateTime)
	return r
}

// Register adds or replaces a named format.
func (r *FormatRegistry) Register(name string, fn FormatFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats[name] = fn
}

func (r *FormatRegistry) Lookup(name string) (FormatFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.formats[name]
	return fn, ok
}

// Names returns the registered format names in sorted order.
func (r *FormatRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func validateUUID(value string) error {
	if len(value) != 36 {
		return errors.New("not in canonical 8-4-4-4-12 form")
	}
	_, err := uuid.Parse(value)
	return err
}

func validateEmail(value string) error {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return err
	}
	if addr.Address != value {
		return fmt.Errorf("%q is not a bare address", value)
	}
	return nil
}

func validateDateTime(value string) error {
	_, err := time.Parse(time.RFC3339, value)
	return err
}
