// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Capview prints the identity and capability state of its own process.

# Usage

	$ capview [flags...]

It reports the real uid/gid, the effective uid, and the permitted,
effective, inheritable and ambient capability sets decoded to names.
Run it through runec to verify an installation:

	$ runec capview
*/
package main

import (
	_ "embed"

	"go.astrophena.name/runec/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
