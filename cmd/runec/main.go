// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"fmt"

	"go.astrophena.name/runec/internal/caps"
	"go.astrophena.name/runec/internal/cli"
)

func main() { cli.Main(new(app)) }

type app struct {
	kernel caps.Kernel // replaced in tests
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	if len(env.Args) < 1 {
		return fmt.Errorf("%w: usage: runec <executable> [args...]", cli.ErrInvalidArgs)
	}
	target, args := env.Args[0], env.Args[1:]

	if a.kernel == nil {
		a.kernel = caps.NewSysKernel()
	}

	engine, err := caps.NewEngine(grantSet(), a.kernel, traceLogf(env))
	if err != nil {
		return err
	}

	// On success this replaces the process image and never returns.
	return engine.Run(target, args)
}
