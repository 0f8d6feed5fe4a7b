// Package main provides extidsctl, the operator CLI. It works directly on the
// database rather than through the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/mikepea/extids/pkg/extids/errs"
)

const (
	exitSuccess  = 0
	exitError    = 1
	exitNotFound = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var unknown *errs.UnknownSystemError
	if errors.Is(err, errs.ErrNotFound) || errors.As(err, &unknown) {
		return exitNotFound
	}
	return exitError
}
