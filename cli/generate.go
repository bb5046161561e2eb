package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kolah/veritas/docgen"
	"github.com/kolah/veritas/internal/config"
)

func GenerateCommand(reg *Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the OpenAPI document of a service",
		Args:  cobra.NoArgs,
		RunE:  runGenerate(reg),
	}

	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Registered service to document")
	flags.StringP("output", "o", "", "Output file path")
	flags.BoolP("yaml", "y", false, "Write YAML")
	flags.BoolP("json", "j", false, "Write JSON")
	flags.Bool("skip-verify", false, "Write the document without validating it")

	return cmd
}

func runGenerate(reg *Registry) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		asYAML, _ := cmd.Flags().GetBool("yaml")
		asJSON, _ := cmd.Flags().GetBool("json")
		if asYAML && asJSON {
			return usageError("--yaml and --json cannot be used together")
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}
		if cfg.Output == "" {
			return usageError("--output is required")
		}

		format := docgen.FormatYAML
		if cfg.Format == "" {
			cmd.PrintErrln("[!] Neither --yaml or --json was specified, writing YAML")
		} else if format, err = docgen.ParseFormat(cfg.Format); err != nil {
			return err
		}

		logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		svc, err := reg.Build(cfg.Input, cfg.Service, logger)
		if err != nil {
			return err
		}

		data, err := docgen.Generate(svc, format)
		if err != nil {
			return fmt.Errorf("generating document: %w", err)
		}
		if !cfg.SkipVerify {
			if err := docgen.Verify(data); err != nil {
				return err
			}
		}

		path, err := filepath.Abs(withExtension(cfg.Output, format))
		if err != nil {
			return fmt.Errorf("resolving output path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}

		cmd.PrintErrf("Written: %s\n", path)
		return nil
	}
}

// withExtension appends the extension of format to path unless path already
// ends with it.
func withExtension(path string, format docgen.Format) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == format.Extension() || (format == docgen.FormatYAML && ext == ".yml") {
		return path
	}
	return path + format.Extension()
}
