// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

//go:build !capdebug

package main

import (
	"go.astrophena.name/runec/internal/cli"
	"go.astrophena.name/runec/internal/logger"
)

// traceLogf returns nil: per-stage capability tracing is compiled out
// unless the capdebug build tag is set.
func traceLogf(*cli.Env) logger.Logf { return nil }
