package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/felixgeelhaar/crew/internal/infrastructure/cli"
)

func main() {
	os.Exit(run(os.Stderr))
}

func run(stderr io.Writer) int {
	err := cli.Execute()
	if err == nil {
		return 0
	}
	var cliErr *cli.CLIError
	if errors.As(err, &cliErr) {
		fmt.Fprintf(stderr, "Error: %s\n", cliErr.Error())
		if cliErr.Hint != "" {
			fmt.Fprintf(stderr, "Hint: %s\n", cliErr.Hint)
		}
		return cliErr.ExitCode
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}
