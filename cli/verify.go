package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/kolah/veritas/docgen"
)

func VerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Validate an OpenAPI document against the OpenAPI schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := docgen.VerifyFile(args[0])
			if err != nil {
				return err
			}
			if strings.HasPrefix(version, "3.0") {
				cmd.PrintErrln("[!] OpenAPI 3.0.x detected; some 3.1 features unavailable")
			}
			cmd.PrintErrf("Valid OpenAPI %s document: %s\n", version, args[0])
			return nil
		},
	}
}
