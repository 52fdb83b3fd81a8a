// Command queue is the process-per-invocation front-end to the ticket
// Coordinator: the subcommand tree of spec §6, run by agents inside
// containers and by operators at a shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	err := Execute(context.Background())
	if err == nil {
		os.Exit(0)
	}

	var ce *cliError
	if errors.As(err, &ce) {
		fmt.Fprintln(os.Stderr, ce.msg)
		os.Exit(ce.code)
	}

	// Any error not already classified by a subcommand (missing required
	// flags, unknown subcommand, wrong argument count) comes from cobra
	// itself and is a usage error.
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}
