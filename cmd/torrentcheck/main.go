package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/afero"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd(afero.NewOsFs()).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
