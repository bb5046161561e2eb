package config

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	"github.com/kolah/veritas"
)

// DefaultFile is read when no --config flag is given and it exists in the
// working directory.
const DefaultFile = "veritas.yaml"

type Config struct {
	Input      string         `koanf:"input"`
	Output     string         `koanf:"output"`
	Format     string         `koanf:"format"`
	SkipVerify bool           `koanf:"skip-verify"`
	Server     ServerConfig   `koanf:"server"`
	Service    veritas.Config `koanf:"service"`
	Log        LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port      int      `koanf:"port"`
	Addresses []string `koanf:"addresses"`
	Contract  bool     `koanf:"contract"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

var defaults = map[string]any{
	"server.port": 8080,
	"log.level":   "info",
	"log.format":  "text",
}

// BindCommonFlags binds the flags shared by every command.
func BindCommonFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (default: veritas.yaml)")
}

// Load merges, in increasing priority, the defaults, the config file and the
// flags set on cmd.
func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		configFile, _ = cmd.PersistentFlags().GetString("config")
	}
	if configFile == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			configFile = DefaultFile
		}
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	flagsMap := buildFlagsMap(cmd)
	if len(flagsMap) > 0 {
		if err := k.Load(confmap.Provider(flagsMap, "."), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func buildFlagsMap(cmd *cobra.Command) map[string]any {
	m := make(map[string]any)
	flags := cmd.Flags()

	getString := func(name string) string {
		if v, err := flags.GetString(name); err == nil && v != "" {
			return v
		}
		return ""
	}

	if v := getString("input"); v != "" {
		m["input"] = v
	}
	if v := getString("output"); v != "" {
		m["output"] = v
	}

	// --yaml and --json are mutually exclusive; the command rejects both.
	if v, err := flags.GetBool("json"); err == nil && v {
		m["format"] = "json"
	}
	if v, err := flags.GetBool("yaml"); err == nil && v {
		m["format"] = "yaml"
	}

	if flags.Changed("skip-verify") {
		v, _ := flags.GetBool("skip-verify")
		m["skip-verify"] = v
	}
	if flags.Changed("port") {
		v, _ := flags.GetInt("port")
		m["server.port"] = v
	}
	if v, err := flags.GetStringSlice("address"); err == nil && len(v) > 0 {
		m["server.addresses"] = v
	}
	if flags.Changed("contract") {
		v, _ := flags.GetBool("contract")
		m["server.contract"] = v
	}
	if flags.Changed("warn-only") {
		v, _ := flags.GetBool("warn-only")
		m["service.validator-warn-only"] = v
	}
	if v := getString("log-level"); v != "" {
		m["log.level"] = v
	}
	if v := getString("log-format"); v != "" {
		m["log.format"] = v
	}

	return m
}

func (c *Config) Validate() error {
	validFormats := map[string]bool{"": true, "yaml": true, "yml": true, "json": true}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid format: %s (valid: yaml, json)", c.Format)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (valid: 1-65535)", c.Server.Port)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error, fatal)", c.Log.Level)
	}

	validLogFormats := map[string]bool{"": true, "text": true, "json": true, "logfmt": true}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (valid: text, json, logfmt)", c.Log.Format)
	}

	if c.Service.MaxBodyBytes < 0 {
		return fmt.Errorf("invalid max body bytes: %d", c.Service.MaxBodyBytes)
	}

	return nil
}

// NewLogger builds the logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	formatter := log.TextFormatter
	switch c.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
	}), nil
}
