// Package docgen renders bound services as OpenAPI 3.1 documents.
//
// The document is built from the operations registered on each controller:
// path and query parameters come from the params and query schemas, request
// bodies from the request schema of POST and PUT operations, and the 200
// response from the response schema. Error responses are shared components.
// Internal services and raw-pattern operations are left out.
package docgen

// Version is the OpenAPI version of generated documents.
const Version = "3.1.0"

// Document is an OpenAPI document.
type Document struct {
	OpenAPI    string               `json:"openapi" yaml:"openapi"`
	Info       Info                 `json:"info" yaml:"info"`
	Servers    []Server             `json:"servers,omitempty" yaml:"servers,omitempty"`
	Tags       []Tag                `json:"tags,omitempty" yaml:"tags,omitempty"`
	Paths      map[string]*PathItem `json:"paths" yaml:"paths"`
	Components Components           `json:"components" yaml:"components"`
}

type Info struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string   `json:"version" yaml:"version"`
	Contact     *Contact `json:"contact,omitempty" yaml:"contact,omitempty"`
	License     *License `json:"license,omitempty" yaml:"license,omitempty"`
}

type Contact struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

type License struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

type Server struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type Tag struct {
	Name string `json:"name" yaml:"name"`
}

// PathItem holds the operations of one path. Parameters lists the path
// parameters shared by all of them.
type PathItem struct {
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Get        *Operation  `json:"get,omitempty" yaml:"get,omitempty"`
	Put        *Operation  `json:"put,omitempty" yaml:"put,omitempty"`
	Post       *Operation  `json:"post,omitempty" yaml:"post,omitempty"`
	Delete     *Operation  `json:"delete,omitempty" yaml:"delete,omitempty"`
}

// slot returns the field holding the operation for method.
func (p *PathItem) slot(method string) **Operation {
	switch method {
	case "GET":
		return &p.Get
	case "PUT":
		return &p.Put
	case "POST":
		return &p.Post
	case "DELETE":
		return &p.Delete
	}
	return nil
}

// Operations returns the operations of p keyed by upper-case method.
func (p *PathItem) Operations() map[string]*Operation {
	ops := make(map[string]*Operation)
	for _, m := range []string{"GET", "PUT", "POST", "DELETE"} {
		if op := *p.slot(m); op != nil {
			ops[m] = op
		}
	}
	return ops
}

type Operation struct {
	OperationID string                `json:"operationId" yaml:"operationId"`
	Summary     string                `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string              `json:"tags,omitempty" yaml:"tags,omitempty"`
	Parameters  []Parameter           `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody          `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Security    []map[string][]string `json:"security,omitempty" yaml:"security,omitempty"`
	Responses   map[string]*Response  `json:"responses" yaml:"responses"`
}

type Parameter struct {
	Name        string         `json:"name" yaml:"name"`
	In          string         `json:"in" yaml:"in"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool           `json:"required,omitempty" yaml:"required,omitempty"`
	Schema      map[string]any `json:"schema,omitempty" yaml:"schema,omitempty"`
}

type RequestBody struct {
	Content map[string]MediaType `json:"content" yaml:"content"`
}

type MediaType struct {
	Schema map[string]any `json:"schema" yaml:"schema"`
}

// Response is either a $ref to a shared response or an inline one.
type Response struct {
	Ref         string               `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Content     map[string]MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

type Components struct {
	Responses       map[string]*Response       `json:"responses,omitempty" yaml:"responses,omitempty"`
	SecuritySchemes map[string]*SecurityScheme `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`
}

type SecurityScheme struct {
	Type         string `json:"type" yaml:"type"`
	Scheme       string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	BearerFormat string `json:"bearerFormat,omitempty" yaml:"bearerFormat,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
}

const jsonContent = "application/json"

// SecuritySchemeName is the scheme referenced by operations that require
// authentication.
const SecuritySchemeName = "JWT"

func errorResponse(status int, description, example string) *Response {
	return &Response{
		Description: description,
		Content: map[string]MediaType{
			jsonContent: {Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status":  map[string]any{"type": "number"},
					"message": map[string]any{"type": "string"},
				},
				"example": map[string]any{"status": status, "message": example},
			}},
		},
	}
}

func sharedComponents() Components {
	return Components{
		Responses: map[string]*Response{
			"400": errorResponse(400, "Bad Request Error", "A message describing what was invalid about the request."),
			"401": errorResponse(401, "Unauthorized", "You must be authenticated to access this resource."),
			"403": errorResponse(403, "Forbidden", "Current user does not have permission to access this resource."),
			"500": errorResponse(500, "Internal Server Error", "Internal Server Error"),
		},
		SecuritySchemes: map[string]*SecurityScheme{
			SecuritySchemeName: {
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
				Description:  "A bearer JWT sent in the Authorization header.",
			},
		},
	}
}
