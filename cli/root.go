// Package cli is the command tree of the veritas binary. Applications embed it
// by registering their services in a Registry and executing RootCmd.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kolah/veritas/internal/config"
)

const Version = "1.0.0"

// UsageError reports a command invoked with invalid arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

func RootCmd(reg *Registry) *cobra.Command {
	root := &cobra.Command{
		Use:           "veritas",
		Short:         "Serve and document schema-validated HTTP services",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	config.BindCommonFlags(root)
	bindLogFlags(root.PersistentFlags())

	root.AddCommand(GenerateCommand(reg), ServeCommand(reg), VerifyCommand())

	return root
}

func bindLogFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "", "Log level: debug, info, warn, error (default: info)")
	flags.String("log-format", "", "Log format: text, json, logfmt (default: text)")
}
