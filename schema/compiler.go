package schema

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	jsv "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Error is a single structural validation failure.
type Error struct {
	// Path is a JSON pointer to the offending value ("" for the root).
	Path    string `json:"path"`
	Message string `json:"message"`
	// Keyword is the schema keyword that failed, e.g. "format" or "required".
	Keyword string `json:"keyword,omitempty"`
}

func (e Error) String() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

var printer = message.NewPrinter(language.English)

// Compiler compiles schemas into validators, asserting the formats of its
// registry. Compiled validators are cached by schema content.
type Compiler struct {
	formats *FormatRegistry

	mu    sync.RWMutex
	cache map[string]*Validator
}

// NewCompiler returns a compiler for the given formats. A nil registry means
// NewFormatRegistry().
func NewCompiler(formats *FormatRegistry) *Compiler {
	if formats == nil {
		formats = NewFormatRegistry()
	}
	return &Compiler{
		formats: formats,
		cache:   make(map[string]*Validator),
	}
}

// Formats returns the registry the compiler asserts.
func (c *Compiler) Formats() *FormatRegistry {
	return c.formats
}

// Compile returns the validator for s, compiling it on first use. A nil schema
// accepts everything.
func (c *Compiler) Compile(s *Schema) (*Validator, error) {
	if s == nil {
		s = Any()
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}
	key := string(raw)

	c.mu.RLock()
	v, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	compiled, err := c.compile(raw)
	if err != nil {
		return nil, err
	}
	v = &Validator{schema: compiled}

	c.mu.Lock()
	if existing, ok := c.cache[key]; ok {
		v = existing
	} else {
		c.cache[key] = v
	}
	c.mu.Unlock()

	return v, nil
}

func (c *Compiler) compile(raw []byte) (*jsv.Schema, error) {
	doc, err := jsv.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid schema JSON: %w", err)
	}

	compiler := jsv.NewCompiler()
	compiler.AssertFormat()
	for _, name := range c.formats.Names() {
		fn, _ := c.formats.Lookup(name)
		compiler.RegisterFormat(&jsv.Format{Name: name, Validate: stringFormat(fn)})
	}

	sum := sha256.Sum256(raw)
	url := "veritas://schemas/" + hex.EncodeToString(sum[:8]) + ".json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return compiled, nil
}

func stringFormat(fn FormatFunc) func(any) error {
	return func(v any) error {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		return fn(s)
	}
}

// Validator checks values against one compiled schema.
type Validator struct {
	schema *jsv.Schema
}

// Errors validates value and returns the structural errors found, ordered by
// path. An empty result means value is valid.
//
// The value is normalised through its JSON encoding first, so Go structs, maps
// and decoded JSON are all accepted.
func (v *Validator) Errors(value any) []Error {
	doc, err := normalize(value)
	if err != nil {
		return []Error{{Message: err.Error()}}
	}

	err = v.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsv.ValidationError
	if !errors.As(err, &verr) {
		return []Error{{Message: err.Error()}}
	}

	var out []Error
	collect(verr, &out)
	slices.SortStableFunc(out, func(a, b Error) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// Valid reports whether value satisfies the schema.
func (v *Validator) Valid(value any) bool {
	return len(v.Errors(value)) == 0
}

// collect flattens the error tree into its leaves.
func collect(verr *jsv.ValidationError, out *[]Error) {
	if verr == nil {
		return
	}
	if len(verr.Causes) == 0 {
		e := Error{
			Path:    pointer(verr.InstanceLocation),
			Message: verr.ErrorKind.LocalizedString(printer),
		}
		if kp := verr.ErrorKind.KeywordPath(); len(kp) > 0 {
			e.Keyword = kp[len(kp)-1]
		}
		*out = append(*out, e)
		return
	}
	for _, cause := range verr.Causes {
		collect(cause, out)
	}
}

func pointer(location []string) string {
	if len(location) == 0 {
		return ""
	}
	var b strings.Builder
	for _, token := range location {
		b.WriteByte('/')
		token = strings.ReplaceAll(token, "~", "~0")
		token = strings.ReplaceAll(token, "/", "~1")
		b.WriteString(token)
	}
	return b.String()
}

func normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	return jsv.UnmarshalJSON(bytes.NewReader(raw))
}
