// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

//go:build capdebug

package main

import (
	"fmt"

	"go.astrophena.name/runec/internal/cli"
	"go.astrophena.name/runec/internal/logger"
)

// traceLogf returns a logger that dumps the capability state at each
// transition stage to stderr. For auditing and debugging only; the output
// format is not a contract.
func traceLogf(env *cli.Env) logger.Logf {
	return func(format string, args ...any) {
		fmt.Fprintf(env.Stderr, "runec: "+format+"\n", args...)
	}
}
