package docgen

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel"
	validator "github.com/pb33f/libopenapi-validator"
	validatorErrors "github.com/pb33f/libopenapi-validator/errors"

	"github.com/kolah/veritas"
	"github.com/kolah/veritas/middleware"
)

// ErrInvalidDocument is wrapped by Verify when the document breaks the
// OpenAPI schema.
var ErrInvalidDocument = errors.New("invalid OpenAPI document")

// Verify parses a rendered document and checks it against the OpenAPI 3.1
// schema.
func Verify(data []byte) error {
	_, err := verify(data, nil)
	return err
}

// VerifyFile checks the document at path and returns its OpenAPI version.
// Relative references are resolved against the directory of path.
func VerifyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}

	return verify(data, &datamodel.DocumentConfiguration{
		BasePath:            filepath.Dir(absPath),
		AllowFileReferences: true,
	})
}

func verify(data []byte, config *datamodel.DocumentConfiguration) (string, error) {
	var doc libopenapi.Document
	var err error

	if config != nil {
		doc, err = libopenapi.NewDocumentWithConfiguration(data, config)
	} else {
		doc, err = libopenapi.NewDocument(data)
	}
	if err != nil {
		return "", fmt.Errorf("parsing OpenAPI document: %w", err)
	}

	version := doc.GetVersion()
	if !strings.HasPrefix(version, "3.") {
		return "", fmt.Errorf("unsupported OpenAPI version: %s (only 3.x supported)", version)
	}

	if _, err := doc.BuildV3Model(); err != nil {
		return "", fmt.Errorf("building OpenAPI model: %w", err)
	}

	v, errs := validator.NewValidator(doc)
	if len(errs) > 0 {
		return "", fmt.Errorf("creating validator: %w", errors.Join(errs...))
	}
	if valid, verrs := v.ValidateDocument(); !valid {
		return "", fmt.Errorf("%w: %s", ErrInvalidDocument, describe(verrs))
	}
	return version, nil
}

func describe(errs []*validatorErrors.ValidationError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Message
		if e.Reason != "" {
			msg += ": " + e.Reason
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}

// Contract checks live requests against the document generated for a
// service, independently of the per-operation validation. It catches drift
// between what is documented and what is served.
type Contract struct {
	validator        validator.Validator
	onError          middleware.ErrorHandler
	skipUndocumented bool
}

type ContractOptions struct {
	// OnError reports violations. Nil means middleware.JSONErrorHandler with
	// the service logger.
	OnError middleware.ErrorHandler
	// SkipUndocumented lets through requests whose path or method the
	// document does not describe, such as routes of internal services.
	SkipUndocumented bool
}

// NewContract generates the document of svc and prepares a request
// validator for it.
func NewContract(svc *veritas.Service, opts ContractOptions) (*Contract, error) {
	data, err := Generate(svc, FormatJSON)
	if err != nil {
		return nil, err
	}
	doc, err := libopenapi.NewDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parsing OpenAPI document: %w", err)
	}
	v, errs := validator.NewValidator(doc)
	if len(errs) > 0 {
		return nil, fmt.Errorf("creating validator: %w", errors.Join(errs...))
	}
	onError := opts.OnError
	if onError == nil {
		onError = middleware.JSONErrorHandler(svc.Logger())
	}
	return &Contract{validator: v, onError: onError, skipUndocumented: opts.SkipUndocumented}, nil
}

// Check validates r against the document.
func (c *Contract) Check(r *http.Request) error {
	valid, errs := c.validator.ValidateHttpRequestSync(r)
	if valid {
		return nil
	}
	if c.skipUndocumented && undocumented(errs) {
		return nil
	}
	return &middleware.ValidationError{
		StatusCode: http.StatusBadRequest,
		Message:    "ContractViolation: " + describe(errs),
	}
}

func undocumented(errs []*validatorErrors.ValidationError) bool {
	for _, e := range errs {
		if !e.IsPathMissingError() && !e.IsOperationMissingError() {
			return false
		}
	}
	return len(errs) > 0
}

// Handler rejects requests that do not match the document.
func (c *Contract) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := c.Check(r); err != nil {
			c.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
