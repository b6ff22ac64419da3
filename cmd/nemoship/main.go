package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"nemoship/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			if hint := services.Hint(err); hint != "" && hint != "check logs for details" {
				fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
			}
		}
		os.Exit(max(services.ExitCode(err), 1))
	}
}
