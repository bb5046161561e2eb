package cli

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/kolah/veritas"
	"github.com/kolah/veritas/docgen"
	"github.com/kolah/veritas/internal/config"
	"github.com/kolah/veritas/middleware"
)

func ServeCommand(reg *Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a registered service",
		Args:  cobra.NoArgs,
		RunE:  runServe(reg),
	}

	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Registered service to serve")
	flags.IntP("port", "p", 8080, "Port to listen on")
	flags.StringSlice("address", nil, "Address to listen on, repeatable (default: 127.0.0.1)")
	flags.Bool("warn-only", false, "Log validation failures instead of rejecting requests")
	flags.Bool("contract", false, "Reject requests that do not match the generated document")

	return cmd
}

func runServe(reg *Registry) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd)
		if err != nil {
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
		handler, err := serveHandler(svc, cfg.Server.Contract, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("starting", "service", svc.Title(), "port", cfg.Server.Port,
			"warnOnly", cfg.Service.ValidatorWarnOnly, "contract", cfg.Server.Contract)
		return svc.Serve(ctx, handler, cfg.Server.Port, cfg.Server.Addresses...)
	}
}

// serveHandler returns the service handler, behind a contract check of the
// generated document when contract is set. Routes missing from the document
// are served unchecked.
func serveHandler(svc *veritas.Service, contract bool, logger *log.Logger) (http.Handler, error) {
	handler, err := svc.Handler()
	if err != nil || !contract {
		return handler, err
	}
	c, err := docgen.NewContract(svc, docgen.ContractOptions{
		OnError:          middleware.JSONErrorHandler(logger),
		SkipUndocumented: true,
	})
	if err != nil {
		return nil, err
	}
	return c.Handler(handler), nil
}
