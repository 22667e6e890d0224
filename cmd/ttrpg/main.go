// Command ttrpg applies versioned SQL migrations to the TTRPG club database and
// offers an interactive menu with pool and cancellation experiments.
package main

import (
	"context"
	"os"

	"github.com/platforma-dev/ttrpg/log"
)

func main() {
	ctx := context.Background()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		log.ErrorContext(ctx, "command failed", "error", err)
		os.Exit(1)
	}
}
