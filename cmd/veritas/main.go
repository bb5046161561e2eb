package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kolah/veritas/cli"
	"github.com/kolah/veritas/internal/demo"
)

func main() {
	reg := cli.NewRegistry()
	if err := demo.New().Register(reg); err != nil {
		fail(err)
	}

	cmd := cli.RootCmd(reg)
	if err := cmd.Execute(); err != nil {
		var usage *cli.UsageError
		if errors.As(err, &usage) {
			fmt.Fprintf(os.Stderr, "[X] %s\nRun 'veritas --help' for usage.\n", usage.Message)
			os.Exit(1)
		}
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "[X] %s\n", err.Error())
	os.Exit(1)
}
