package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/kolah/veritas"
	"github.com/kolah/veritas/middleware"
	"github.com/kolah/veritas/schema"
)

func pingFactory(title string) Factory {
	return func(cfg veritas.Config, logger *log.Logger) (*veritas.Service, error) {
		c := veritas.NewController(veritas.ControllerOptions{Prefix: "/ping"})
		err := c.AddOperation(veritas.Definition{
			Name:   "Ping",
			Method: "GET",
			Path:   "/",
			Res:    schema.Object(schema.Props{"pong": schema.Boolean()}),
		}, func(c *middleware.Context, next middleware.Next) error {
			c.Response = map[string]any{"pong": true}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return veritas.NewService(veritas.ServiceOptions{
			Title:       title,
			Version:     "1.0.0",
			Controllers: []*veritas.Controller{c},
			Config:      cfg,
			Logger:      logger,
		}), nil
	}
}

func run(t *testing.T, reg *Registry, args ...string) (string, error) {
	t.Helper()
	var stderr bytes.Buffer
	root := RootCmd(reg)
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&stderr)
	err := root.Execute()
	return stderr.String(), err
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("ping", pingFactory("Ping")))
	require.Error(t, reg.Register("ping", pingFactory("Ping")))
	require.Error(t, reg.Register("", pingFactory("Ping")))
	require.Error(t, reg.Register("nil", nil))

	svc, err := reg.Build("", veritas.Config{}, log.Default())
	require.NoError(t, err)
	require.Equal(t, "Ping", svc.Title())

	require.NoError(t, reg.Register("admin", pingFactory("Admin")))
	require.Equal(t, []string{"admin", "ping"}, reg.Names())

	_, err = reg.Build("", veritas.Config{}, log.Default())
	var usage *UsageError
	require.ErrorAs(t, err, &usage)
	require.Contains(t, usage.Message, "admin, ping")

	_, err = reg.Build("missing", veritas.Config{}, log.Default())
	require.ErrorAs(t, err, &usage)
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		file     string
		warning  bool
		decodeFn func([]byte, any) error
	}{
		{
			name:     "json",
			args:     []string{"--json", "-o", "docs/openapi"},
			file:     "docs/openapi.json",
			decodeFn: json.Unmarshal,
		},
		{
			name:    "yaml default",
			args:    []string{"-o", "openapi"},
			file:    "openapi.yaml",
			warning: true,
		},
		{
			name: "yml extension kept",
			args: []string{"-y", "-o", "openapi.yml"},
			file: "openapi.yml",
		},
		{
			name:     "extension kept",
			args:     []string{"-j", "-o", "spec.json"},
			file:     "spec.json",
			decodeFn: json.Unmarshal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)

			reg := NewRegistry()
			reg.MustRegister("ping", pingFactory("Ping"))

			stderr, err := run(t, reg, append([]string{"generate", "-i", "ping"}, tt.args...)...)
			require.NoError(t, err)

			if tt.warning {
				require.Contains(t, stderr, "[!] Neither --yaml or --json")
			} else {
				require.NotContains(t, stderr, "[!]")
			}

			path := filepath.Join(dir, tt.file)
			require.Contains(t, stderr, "Written: ")
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Contains(t, string(data), "/ping")

			if tt.decodeFn != nil {
				var doc map[string]any
				require.NoError(t, tt.decodeFn(data, &doc))
				require.Equal(t, "3.1.0", doc["openapi"])
			}
		})
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		usage   bool
		message string
	}{
		{
			name:    "both formats",
			args:    []string{"generate", "-i", "ping", "-o", "out", "--yaml", "--json"},
			usage:   true,
			message: "cannot be used together",
		},
		{
			name:    "missing output",
			args:    []string{"generate", "-i", "ping"},
			usage:   true,
			message: "--output is required",
		},
		{
			name:    "unknown service",
			args:    []string{"generate", "-i", "nope", "-o", "out"},
			usage:   true,
			message: "unknown service",
		},
		{
			name:    "bad log level",
			args:    []string{"generate", "-i", "ping", "-o", "out", "--log-level", "loud"},
			message: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())

			reg := NewRegistry()
			reg.MustRegister("ping", pingFactory("Ping"))

			_, err := run(t, reg, tt.args...)
			require.ErrorContains(t, err, tt.message)

			var usage *UsageError
			require.Equal(t, tt.usage, errors.As(err, &usage))
		})
	}
}

func TestGenerateConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("veritas.yaml", []byte("input: ping\noutput: from-config\nformat: json\n"), 0644))

	reg := NewRegistry()
	reg.MustRegister("ping", pingFactory("Ping"))
	reg.MustRegister("other", pingFactory("Other"))

	_, err := run(t, reg, "generate")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "from-config.json"))
	require.NoError(t, err)
}

func TestServe(t *testing.T) {
	t.Chdir(t.TempDir())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	reg := NewRegistry()
	reg.MustRegister("ping", pingFactory("Ping"))

	root := RootCmd(reg)
	root.SetArgs([]string{"serve", "-p", strconv.Itoa(port), "--log-level", "error"})
	root.SetErr(&bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/ping"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func notesService(t *testing.T) *veritas.Service {
	t.Helper()
	ok := func(c *middleware.Context, next middleware.Next) error {
		c.Response = map[string]any{"ok": true}
		return nil
	}
	c := veritas.NewController(veritas.ControllerOptions{Prefix: "/notes"})
	require.NoError(t, c.AddOperation(veritas.Definition{
		Name:   "Create Note",
		Method: "POST",
		Path:   "/",
		Req:    schema.Object(schema.Props{"title": schema.String()}),
	}, ok))
	require.NoError(t, c.AddOperation(veritas.Definition{Name: "Health", Method: "GET", Path: "(/health)"}, ok))
	return veritas.NewService(veritas.ServiceOptions{
		Title:       "Notes",
		Controllers: []*veritas.Controller{c},
		Config:      veritas.Config{ValidatorWarnOnly: true},
		Logger:      log.New(&bytes.Buffer{}),
	})
}

func TestServeHandlerContract(t *testing.T) {
	tests := []struct {
		name     string
		contract bool
		method   string
		target   string
		body     string
		want     int
	}{
		{name: "valid body", contract: true, method: http.MethodPost, target: "/notes", body: `{"title":"a"}`, want: http.StatusOK},
		{name: "invalid body", contract: true, method: http.MethodPost, target: "/notes", body: `{"title":1}`, want: http.StatusBadRequest},
		{name: "invalid body unchecked", contract: false, method: http.MethodPost, target: "/notes", body: `{"title":1}`, want: http.StatusOK},
		{name: "undocumented route", contract: true, method: http.MethodGet, target: "/notes/health", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := serveHandler(notesService(t), tt.contract, log.New(&bytes.Buffer{}))
			require.NoError(t, err)

			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			require.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	reg := NewRegistry()
	reg.MustRegister("ping", pingFactory("Ping"))

	_, err := run(t, reg, "generate", "--yaml", "-o", "openapi", "--skip-verify")
	require.NoError(t, err)

	stderr, err := run(t, reg, "verify", "openapi.yaml")
	require.NoError(t, err)
	require.Contains(t, stderr, "Valid OpenAPI 3.1.0 document")

	require.NoError(t, os.WriteFile("broken.yaml", []byte("openapi: 3.1.0\npaths: {}\n"), 0644))
	_, err = run(t, reg, "verify", "broken.yaml")
	require.Error(t, err)

	_, err = run(t, reg, "verify", "missing.yaml")
	require.ErrorContains(t, err, "reading document")

	_, err = run(t, reg, "verify")
	require.Error(t, err)
}
