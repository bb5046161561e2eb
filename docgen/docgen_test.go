package docgen

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v4"

	"github.com/kolah/veritas"
	"github.com/kolah/veritas/middleware"
	"github.com/kolah/veritas/schema"
)

func noop(c *middleware.Context, next middleware.Next) error {
	return nil
}

func usersService(t *testing.T) *veritas.Service {
	t.Helper()
	user := schema.Object(schema.Props{"id": schema.UUID(), "name": schema.String()})

	c := veritas.NewController(veritas.ControllerOptions{Prefix: "/users", Tags: []string{"users"}})
	require.NoError(t, c.AddOperation(veritas.Definition{
		Name:   "Get User By Id",
		Method: "GET",
		Path:   "/:userId",
		Params: schema.Object(schema.Props{"userId": schema.Describe(schema.UUID(), "The user to fetch.")}),
		Res:    user,
		Auth:   true,
	}, noop))
	require.NoError(t, c.AddOperation(veritas.Definition{
		Name:   "Create User",
		Method: "POST",
		Path:   "/",
		Req:    schema.Object(schema.Props{"name": schema.String(), "email": schema.Email()}),
		Res:    user,
	}, noop))
	require.NoError(t, c.AddOperation(veritas.Definition{
		Name:   "List Users",
		Method: "GET",
		Path:   "/",
		Query:  schema.PartialObject(schema.Props{"search": schema.String(), "page": schema.String()}),
		Res:    schema.Array(user),
	}, noop))
	require.NoError(t, c.AddOperation(veritas.Definition{
		Name:   "Files",
		Method: "GET",
		Path:   "(/files/*)",
	}, noop))

	return veritas.NewService(veritas.ServiceOptions{
		Title:       "Users",
		Description: "User management.",
		Version:     "1.2.0",
		Contact:     &veritas.Contact{Name: "Team", Email: "team@example.com"},
		License:     &veritas.License{Name: "MIT"},
		Servers:     []veritas.Server{{URL: "https://api.example.com", Description: "Production"}, {}},
		Controllers: []*veritas.Controller{c},
	})
}

func internalService(t *testing.T) *veritas.Service {
	t.Helper()
	c := veritas.NewController(veritas.ControllerOptions{})
	require.NoError(t, c.AddOperation(veritas.Definition{Name: "health", Method: "GET", Path: "/health"}, noop))
	return veritas.NewService(veritas.ServiceOptions{Internal: true, Controllers: []*veritas.Controller{c}})
}

func TestBuild(t *testing.T) {
	doc, err := Build(usersService(t))
	require.NoError(t, err)

	require.Equal(t, Version, doc.OpenAPI)
	require.Equal(t, "Users", doc.Info.Title)
	require.Equal(t, "1.2.0", doc.Info.Version)
	require.Equal(t, &Contact{Name: "Team", Email: "team@example.com"}, doc.Info.Contact)
	require.Equal(t, []Server{{URL: "https://api.example.com", Description: "Production"}}, doc.Servers)
	require.Equal(t, []Tag{{Name: "users"}}, doc.Tags)

	require.Len(t, doc.Paths, 2)
	require.Contains(t, doc.Paths, "/users/{userId}")
	require.Contains(t, doc.Paths, "/users")

	byID := doc.Paths["/users/{userId}"]
	require.Equal(t, []Parameter{{
		Name:        "userId",
		In:          "path",
		Description: "The user to fetch.",
		Required:    true,
		Schema:      map[string]any{"type": "string", "format": "uuid", "description": "The user to fetch."},
	}}, byID.Parameters)

	get := byID.Get
	require.NotNil(t, get)
	require.Equal(t, "get-user-by-id", get.OperationID)
	require.Equal(t, "Get User By Id", get.Summary)
	require.Equal(t, []string{"users"}, get.Tags)
	require.Nil(t, get.RequestBody)
	require.Equal(t, []map[string][]string{{SecuritySchemeName: {}}}, get.Security)
	require.Equal(t, "Success", get.Responses["200"].Description)
	for _, code := range []string{"400", "401", "403", "500"} {
		require.Equal(t, "#/components/responses/"+code, get.Responses[code].Ref)
		require.Contains(t, doc.Components.Responses, code)
	}

	users := doc.Paths["/users"]
	require.Empty(t, users.Parameters)
	require.NotNil(t, users.Post.RequestBody)
	require.Empty(t, users.Post.Security)
	require.Equal(t, "object", users.Post.RequestBody.Content[jsonContent].Schema["type"])

	require.Len(t, users.Get.Parameters, 2)
	require.Equal(t, "page", users.Get.Parameters[0].Name)
	require.Equal(t, "search", users.Get.Parameters[1].Name)
	require.Equal(t, "query", users.Get.Parameters[0].In)
	require.False(t, users.Get.Parameters[0].Required)
	require.Equal(t, "array", users.Get.Responses["200"].Content[jsonContent].Schema["type"])
}

func TestBuildCombined(t *testing.T) {
	users := usersService(t)
	combined, err := veritas.CombineServices([]*veritas.Service{users, internalService(t)}, veritas.CombinedConfig{
		Title:  "Gateway",
		Prefix: "/api",
	})
	require.NoError(t, err)

	doc, err := Build(combined)
	require.NoError(t, err)
	require.Equal(t, "Gateway", doc.Info.Title)
	require.Equal(t, DefaultVersion, doc.Info.Version)
	require.Nil(t, doc.Info.Contact)
	require.Empty(t, doc.Servers)

	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	require.ElementsMatch(t, []string{"/api/users/{userId}", "/api/users"}, paths)
}

func TestBuildSchemaShape(t *testing.T) {
	tests := []struct {
		name  string
		def   veritas.Definition
		field string
	}{
		{
			name:  "params",
			def:   veritas.Definition{Name: "bad", Method: "GET", Path: "/:id", Params: schema.String()},
			field: "params",
		},
		{
			name:  "query",
			def:   veritas.Definition{Name: "bad", Method: "GET", Path: "/", Query: schema.Array(schema.String())},
			field: "query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := veritas.NewController(veritas.ControllerOptions{})
			require.NoError(t, c.AddOperation(tt.def, noop))

			_, err := Build(veritas.NewService(veritas.ServiceOptions{Controllers: []*veritas.Controller{c}}))
			var shapeErr *SchemaShapeError
			require.ErrorAs(t, err, &shapeErr)
			require.Equal(t, tt.field, shapeErr.Field)
			require.Equal(t, "bad", shapeErr.Operation)
		})
	}
}

func TestMarshal(t *testing.T) {
	svc := usersService(t)

	t.Run("yaml", func(t *testing.T) {
		data, err := Generate(svc, FormatYAML)
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, yaml.Unmarshal(data, &out))
		require.Equal(t, "3.1.0", out["openapi"])
		require.Contains(t, out["paths"], "/users/{userId}")
		require.NoError(t, Verify(data))
	})

	t.Run("json", func(t *testing.T) {
		data, err := Generate(svc, FormatJSON)
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(data, &out))
		require.Equal(t, "3.1.0", out["openapi"])
		require.NoError(t, Verify(data))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Marshal(&Document{}, Format("toml"))
		require.Error(t, err)
	})
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("yml")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, f)
	require.Equal(t, ".yaml", f.Extension())

	f, err = ParseFormat("json")
	require.NoError(t, err)
	require.Equal(t, ".json", f.Extension())

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestVerifyRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "swagger 2", data: "swagger: \"2.0\"\ninfo:\n  title: x\n  version: \"1\"\npaths: {}\n"},
		{name: "missing info", data: "openapi: 3.1.0\npaths: {}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, Verify([]byte(tt.data)))
		})
	}
}

func TestContract(t *testing.T) {
	contract, err := NewContract(usersService(t), ContractOptions{})
	require.NoError(t, err)

	valid := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Ann","email":"ann@example.com"}`))
	valid.Header.Set("Content-Type", "application/json")
	require.NoError(t, contract.Check(valid))

	missing := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"email":"ann@example.com"}`))
	missing.Header.Set("Content-Type", "application/json")
	require.Error(t, contract.Check(missing))

	unknown := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	err = contract.Check(unknown)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, middleware.StatusOf(err))

	called := false
	h := contract.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.False(t, called)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContractSkipUndocumented(t *testing.T) {
	contract, err := NewContract(usersService(t), ContractOptions{SkipUndocumented: true})
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		wantErr bool
	}{
		{name: "unknown path", method: http.MethodGet, target: "/nowhere"},
		{name: "raw route", method: http.MethodGet, target: "/users/files/a.txt"},
		{name: "unknown method", method: http.MethodDelete, target: "/users"},
		{name: "documented and invalid", method: http.MethodPost, target: "/users", body: `{"email":"ann@example.com"}`, wantErr: true},
		{name: "documented and valid", method: http.MethodPost, target: "/users", body: `{"name":"Ann","email":"ann@example.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			err := contract.Check(req)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
