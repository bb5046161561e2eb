package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "valid json format",
			modify:  func(c *Config) { c.Format = "json" },
			wantErr: false,
		},
		{
			name:    "valid yml format",
			modify:  func(c *Config) { c.Format = "yml" },
			wantErr: false,
		},
		{
			name:        "invalid format",
			modify:      func(c *Config) { c.Format = "toml" },
			wantErr:     true,
			errContains: "invalid format",
		},
		{
			name:        "zero port",
			modify:      func(c *Config) { c.Server.Port = 0 },
			wantErr:     true,
			errContains: "invalid port",
		},
		{
			name:        "port out of range",
			modify:      func(c *Config) { c.Server.Port = 70000 },
			wantErr:     true,
			errContains: "invalid port",
		},
		{
			name:        "invalid log level",
			modify:      func(c *Config) { c.Log.Level = "loud" },
			wantErr:     true,
			errContains: "invalid log level",
		},
		{
			name:    "debug log level",
			modify:  func(c *Config) { c.Log.Level = "debug" },
			wantErr: false,
		},
		{
			name:        "invalid log format",
			modify:      func(c *Config) { c.Log.Format = "xml" },
			wantErr:     true,
			errContains: "invalid log format",
		},
		{
			name:    "json log format",
			modify:  func(c *Config) { c.Log.Format = "json" },
			wantErr: false,
		},
		{
			name:        "negative body limit",
			modify:      func(c *Config) { c.Service.MaxBodyBytes = -1 },
			wantErr:     true,
			errContains: "invalid max body bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					require.Contains(t, err.Error(), tt.errContains)
				}
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := &cobra.Command{}
	BindCommonFlags(cmd)
	bindCommandFlags(cmd)

	cfg, err := Load(cmd)
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format)
	require.Empty(t, cfg.Format)
	require.False(t, cfg.Service.ValidatorWarnOnly)
	require.False(t, cfg.Server.Contract)
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
input: users
output: ./docs/openapi
format: json
skip-verify: true
server:
  port: 9090
  addresses:
    - 0.0.0.0
  contract: true
service:
  validator-warn-only: true
  max-body-bytes: 2048
  cors:
    allowed-origins:
      - https://example.com
    allow-credentials: true
log:
  level: debug
  format: json
`
	err := os.WriteFile(filepath.Join(tmpDir, DefaultFile), []byte(configContent), 0644)
	require.NoError(t, err)

	// Change to temp dir so veritas.yaml is found
	t.Chdir(tmpDir)

	cmd := &cobra.Command{}
	BindCommonFlags(cmd)
	bindCommandFlags(cmd)

	cfg, err := Load(cmd)
	require.NoError(t, err)

	require.Equal(t, "users", cfg.Input)
	require.Equal(t, "./docs/openapi", cfg.Output)
	require.Equal(t, "json", cfg.Format)
	require.True(t, cfg.SkipVerify)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, []string{"0.0.0.0"}, cfg.Server.Addresses)
	require.True(t, cfg.Server.Contract)
	require.True(t, cfg.Service.ValidatorWarnOnly)
	require.EqualValues(t, 2048, cfg.Service.MaxBodyBytes)
	require.Equal(t, []string{"https://example.com"}, cfg.Service.CORS.AllowedOrigins)
	require.True(t, cfg.Service.CORS.AllowCredentials)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
input: users
format: json
server:
  port: 9090
service:
  validator-warn-only: true
`
	err := os.WriteFile(filepath.Join(tmpDir, DefaultFile), []byte(configContent), 0644)
	require.NoError(t, err)

	t.Chdir(tmpDir)

	cmd := &cobra.Command{}
	BindCommonFlags(cmd)
	bindCommandFlags(cmd)

	// Set flags that should override file config
	require.NoError(t, cmd.Flags().Set("input", "gateway"))
	require.NoError(t, cmd.Flags().Set("yaml", "true"))
	require.NoError(t, cmd.Flags().Set("port", "3000"))
	require.NoError(t, cmd.Flags().Set("warn-only", "false"))

	cfg, err := Load(cmd)
	require.NoError(t, err)

	require.Equal(t, "gateway", cfg.Input)
	require.Equal(t, "yaml", cfg.Format)
	require.Equal(t, 3000, cfg.Server.Port)
	require.False(t, cfg.Service.ValidatorWarnOnly)
}

func TestLoadWithExplicitConfigPath(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
input: custom
server:
  port: 1234
`
	configPath := filepath.Join(tmpDir, "custom-config.yaml")
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cmd := &cobra.Command{}
	BindCommonFlags(cmd)
	bindCommandFlags(cmd)
	require.NoError(t, cmd.PersistentFlags().Set("config", configPath))

	cfg, err := Load(cmd)
	require.NoError(t, err)

	require.Equal(t, "custom", cfg.Input)
	require.Equal(t, 1234, cfg.Server.Port)
}

func TestLoadInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log:\n  level: loud\n"), 0644))

	cmd := &cobra.Command{}
	BindCommonFlags(cmd)
	bindCommandFlags(cmd)
	require.NoError(t, cmd.PersistentFlags().Set("config", configPath))

	_, err := Load(cmd)
	require.ErrorContains(t, err, "invalid log level")

	require.NoError(t, cmd.PersistentFlags().Set("config", filepath.Join(tmpDir, "missing.yaml")))
	_, err = Load(cmd)
	require.ErrorContains(t, err, "reading config file")
}

func TestBuildFlagsMap(t *testing.T) {
	cmd := &cobra.Command{}
	BindCommonFlags(cmd)
	bindCommandFlags(cmd)

	require.NoError(t, cmd.Flags().Set("input", "users"))
	require.NoError(t, cmd.Flags().Set("output", "./out"))
	require.NoError(t, cmd.Flags().Set("json", "true"))
	require.NoError(t, cmd.Flags().Set("skip-verify", "true"))
	require.NoError(t, cmd.Flags().Set("address", "0.0.0.0"))
	require.NoError(t, cmd.Flags().Set("address", "::1"))
	require.NoError(t, cmd.Flags().Set("log-level", "warn"))
	require.NoError(t, cmd.Flags().Set("contract", "true"))

	m := buildFlagsMap(cmd)

	require.Equal(t, "users", m["input"])
	require.Equal(t, "./out", m["output"])
	require.Equal(t, "json", m["format"])
	require.Equal(t, true, m["skip-verify"])
	require.Equal(t, []string{"0.0.0.0", "::1"}, m["server.addresses"])
	require.Equal(t, "warn", m["log.level"])
	require.Equal(t, true, m["server.contract"])
	require.NotContains(t, m, "server.port")
	require.NotContains(t, m, "service.validator-warn-only")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
	require.Contains(t, buf.String(), `"key":"value"`)

	_, err = LogConfig{Level: "loud"}.NewLogger(&buf)
	require.Error(t, err)
}

// Helper to bind the command flags read by buildFlagsMap for testing
func bindCommandFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Registered service")
	flags.StringP("output", "o", "", "Output file")
	flags.BoolP("yaml", "y", false, "Write YAML")
	flags.BoolP("json", "j", false, "Write JSON")
	flags.Bool("skip-verify", false, "Skip document verification")
	flags.IntP("port", "p", 0, "Port to listen on")
	flags.StringSlice("address", nil, "Addresses to listen on")
	flags.Bool("warn-only", false, "Log validation failures instead of rejecting")
	flags.Bool("contract", false, "Check requests against the generated document")
	flags.String("log-level", "", "Log level")
	flags.String("log-format", "", "Log format")
}
