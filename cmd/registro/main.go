// Command registro reads and edits the account ledgers of a tenant.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"registri/internal/cli"
	"registri/internal/core"
	"registri/internal/log"
	"registri/internal/middleware/trace"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, os.Stderr)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = trace.WithRequestID(ctx, trace.GenerateRequestID())

	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", log.FieldError, err)
			}
		}
	}()

	a := &app{
		books:      res.Backend,
		categories: res.Categories,
		scope:      cfg.Scope(),
		openedOn:   cfg.OpeningDate(time.Now()),
		logger:     logger,
		out:        os.Stdout,
	}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		report(err)
		return exitCode(err)
	}
	return 0
}

func report(err error) {
	var verrs core.ValidationErrors
	var verr *core.ValidationError
	switch {
	case errors.Is(err, errUsage):
		return
	case errors.As(err, &verrs):
		for _, e := range verrs {
			fmt.Fprintf(os.Stderr, "%s: %s\n", e.Field, e.Message)
		}
	case errors.As(err, &verr):
		fmt.Fprintf(os.Stderr, "%s: %s\n", verr.Field, verr.Message)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errUsage):
		return 2
	case core.IsValidation(err), errors.Is(err, core.ErrLocked):
		return 3
	case errors.Is(err, core.ErrNotFound):
		return 4
	}
	return 1
}
