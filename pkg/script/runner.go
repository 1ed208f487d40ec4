// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package script runs analysis scripts inside the runner process.
//
// Scripts are Starlark. The executable unit binds the global SI to a Context
// whose parameter accessors, query, chart and finalize primitives behave
// according to the run's mode. Structured artifacts are written to stdout
// through the side channel; ordinary prints become log lines.
package script

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.uber.org/zap"

	"github.com/teradata-labs/sibridge/pkg/fabric"
)

// Runner exit codes.
const (
	ExitOK          = 0
	ExitScriptError = 1
	ExitSetupError  = 2
)

func init() {
	// Analysis scripts are written top to bottom like notebooks.
	resolve.AllowGlobalReassign = true
	resolve.AllowSet = true
	resolve.AllowRecursion = true
}

// Exec runs the unit in filename (or src, when non-nil) against sc. The
// schema is published even when the script fails part way.
func Exec(ctx context.Context, sc *Context, filename string, src interface{}) error {
	thread := &starlark.Thread{
		Name: "sibridge",
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(sc.out, msg)
		},
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	predeclared := starlark.StringDict{
		"SI": sc,
		"sibridge": &starlarkstruct.Module{
			Name: "sibridge",
			Members: starlark.StringDict{
				"context": starlark.NewBuiltin("context", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
					if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
						return nil, err
					}
					return sc, nil
				}),
			},
		},
		"json": json.Module,
		"math": math.Module,
	}

	_, err := starlark.ExecFile(thread, filename, src, predeclared)
	if ferr := sc.Finalize(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

// Main is the runner process entry point. args holds the unit path; the run
// envelope comes from EnvRunContext. It returns the process exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: runner <unit-file>")
		return ExitSetupError
	}

	rc, err := DecodeRunContext(os.Getenv(EnvRunContext))
	if err != nil {
		fmt.Fprintf(stderr, "runner: %v\n", err)
		return ExitSetupError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := bufio.NewWriter(stdout)
	defer func() { _ = out.Flush() }()

	var (
		backend fabric.ExecutionBackend
		source  string
	)
	if rc.Source != nil {
		source = rc.Source.Name
		backend, err = fabric.Open(ctx, *rc.Source, zap.NewNop())
		if err != nil {
			// Queries report the missing backend individually.
			fmt.Fprintf(out, "Data source error: %v\n", err)
			backend = nil
		} else {
			defer func() { _ = backend.Close() }()
		}
	}

	sc, err := NewContext(ctx, Options{
		Mode:    rc.Mode,
		Values:  rc.Params,
		Backend: backend,
		Source:  source,
		Stdout:  out,
	})
	if err != nil {
		fmt.Fprintf(stderr, "runner: %v\n", err)
		return ExitSetupError
	}

	if err := Exec(ctx, sc, args[0], nil); err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			fmt.Fprintln(stderr, evalErr.Backtrace())
		} else {
			fmt.Fprintln(stderr, err)
		}
		return ExitScriptError
	}
	return ExitOK
}
