package docgen

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/kolah/veritas"
	"github.com/kolah/veritas/schema"
)

// DefaultVersion is used when a service has no version.
const DefaultVersion = "0.0.0"

// SchemaShapeError reports params or query schemas that are not objects and
// so cannot be turned into parameters.
type SchemaShapeError struct {
	Operation string
	Method    string
	Path      string
	// Field is "params" or "query".
	Field string
}

func (e *SchemaShapeError) Error() string {
	return fmt.Sprintf("%s schema of %q (%s %s) must be an object", e.Field, e.Operation, e.Method, e.Path)
}

// Build returns the OpenAPI document of svc and, for combined services, of
// all its children.
func Build(svc *veritas.Service) (*Document, error) {
	if svc == nil {
		return nil, fmt.Errorf("build document: nil service")
	}

	doc := &Document{
		OpenAPI: Version,
		Info: Info{
			Title:       svc.Title(),
			Description: svc.Description(),
			Version:     svc.Version(),
			Contact:     contact(svc.Contact()),
			License:     license(svc.License()),
		},
		Paths:      make(map[string]*PathItem),
		Components: sharedComponents(),
	}
	if doc.Info.Version == "" {
		doc.Info.Version = DefaultVersion
	}
	for _, s := range svc.Servers() {
		if s.URL != "" {
			doc.Servers = append(doc.Servers, Server{URL: s.URL, Description: s.Description})
		}
	}

	b := &builder{doc: doc}
	if err := b.service(svc, ""); err != nil {
		return nil, err
	}
	for _, name := range b.tags {
		doc.Tags = append(doc.Tags, Tag{Name: name})
	}
	return doc, nil
}

func contact(c *veritas.Contact) *Contact {
	if c == nil || (c.Name == "" && c.URL == "" && c.Email == "") {
		return nil
	}
	return &Contact{Name: c.Name, URL: c.URL, Email: c.Email}
}

func license(l *veritas.License) *License {
	if l == nil || l.Name == "" {
		return nil
	}
	return &License{Name: l.Name, URL: l.URL}
}

type builder struct {
	doc  *Document
	tags []string
}

func (b *builder) addTags(tags []string) {
	for _, t := range tags {
		if t != "" && !slices.Contains(b.tags, t) {
			b.tags = append(b.tags, t)
		}
	}
}

func (b *builder) service(svc *veritas.Service, prefix string) error {
	if svc.Internal() {
		return nil
	}
	prefix = joinPrefix(prefix, svc.Prefix())
	b.addTags(svc.Tags())

	for _, child := range svc.Children() {
		if err := b.service(child, prefix); err != nil {
			return err
		}
	}
	for _, c := range svc.Controllers() {
		ctrlPrefix := joinPrefix(prefix, c.Prefix())
		for _, op := range c.Operations() {
			if op.IsRaw() {
				continue
			}
			if err := b.operation(ctrlPrefix, op); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) operation(prefix string, op veritas.Operation) error {
	if !schema.IsObject(op.Params) {
		return &SchemaShapeError{Operation: op.Name, Method: op.Method, Path: op.Path, Field: "params"}
	}
	if !schema.IsObject(op.Query) {
		return &SchemaShapeError{Operation: op.Name, Method: op.Method, Path: op.Path, Field: "query"}
	}

	opPath := op.Path
	if !strings.HasPrefix(opPath, "/") {
		opPath = "/" + opPath
	}
	path := FormatPath(prefix + opPath)
	item, ok := b.doc.Paths[path]
	if !ok {
		params, err := pathParameters(path, op.Params)
		if err != nil {
			return err
		}
		item = &PathItem{Parameters: params}
		b.doc.Paths[path] = item
	}

	slot := item.slot(op.Method)
	if slot == nil {
		return fmt.Errorf("operation %q: unsupported method %s", op.Name, op.Method)
	}
	if *slot != nil {
		return fmt.Errorf("operation %q: %s %s is documented twice", op.Name, op.Method, path)
	}

	built, err := buildOperation(op)
	if err != nil {
		return err
	}
	*slot = built
	b.addTags(op.Tags)
	return nil
}

func buildOperation(op veritas.Operation) (*Operation, error) {
	out := &Operation{
		OperationID: OperationID(op.Name),
		Summary:     op.Summary,
		Description: op.Description,
		Tags:        op.Tags,
	}

	query, err := queryParameters(op.Query)
	if err != nil {
		return nil, fmt.Errorf("operation %q: %w", op.Name, err)
	}
	out.Parameters = query

	if op.Method == "POST" || op.Method == "PUT" {
		body, err := schema.Document(op.Req)
		if err != nil {
			return nil, fmt.Errorf("operation %q: request schema: %w", op.Name, err)
		}
		out.RequestBody = &RequestBody{Content: map[string]MediaType{jsonContent: {Schema: body}}}
	}

	if op.Auth {
		out.Security = []map[string][]string{{SecuritySchemeName: {}}}
	}

	res, err := schema.Document(op.Res)
	if err != nil {
		return nil, fmt.Errorf("operation %q: response schema: %w", op.Name, err)
	}
	description := "Success"
	if op.Res != nil && op.Res.Description != "" {
		description = op.Res.Description
	}
	out.Responses = map[string]*Response{
		"200": {Description: description, Content: map[string]MediaType{jsonContent: {Schema: res}}},
		"400": {Ref: "#/components/responses/400"},
		"401": {Ref: "#/components/responses/401"},
		"403": {Ref: "#/components/responses/403"},
		"500": {Ref: "#/components/responses/500"},
	}
	return out, nil
}

var templateParam = regexp.MustCompile(`\{([^}/]+)\}`)

// pathParameters lists the parameters of an OpenAPI path template, using the
// matching params property for each when there is one.
func pathParameters(path string, params *schema.Schema) ([]Parameter, error) {
	var out []Parameter
	for _, m := range templateParam.FindAllStringSubmatch(path, -1) {
		name := m[1]
		p := Parameter{Name: name, In: "path", Required: true, Schema: map[string]any{"type": "string"}}
		if prop, ok := params.Properties[name]; ok && prop != nil {
			doc, err := schema.Document(prop)
			if err != nil {
				return nil, fmt.Errorf("path parameter %q: %w", name, err)
			}
			if len(doc) > 0 {
				p.Schema = doc
			}
			p.Description = prop.Description
		}
		out = append(out, p)
	}
	return out, nil
}

func queryParameters(query *schema.Schema) ([]Parameter, error) {
	names := make([]string, 0, len(query.Properties))
	for name := range query.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]Parameter, 0, len(names))
	for _, name := range names {
		prop := query.Properties[name]
		doc, err := schema.Document(prop)
		if err != nil {
			return nil, fmt.Errorf("query parameter %q: %w", name, err)
		}
		p := Parameter{
			Name:     name,
			In:       "query",
			Required: slices.Contains(query.Required, name),
			Schema:   map[string]any{"type": "string"},
		}
		if len(doc) > 0 {
			p.Schema = doc
		}
		if prop != nil {
			p.Description = prop.Description
		}
		out = append(out, p)
	}
	return out, nil
}

var colonParam = regexp.MustCompile(`(^|/):([^/]+)`)

// FormatPath converts a route path to an OpenAPI path template: ":id"
// segments become "{id}" and a trailing slash is dropped.
func FormatPath(path string) string {
	converted := colonParam.ReplaceAllString(path, "$1{$2}")
	if len(converted) > 1 {
		converted = strings.TrimSuffix(converted, "/")
	}
	if converted == "" {
		return "/"
	}
	return converted
}

func joinPrefix(prefix, next string) string {
	if next == "" || next == "/" {
		return prefix
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.Trim(next, "/")
}
