// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

//go:build netrawonly

package main

import (
	"go.astrophena.name/runec/internal/caps"

	"github.com/syndtr/gocapability/capability"
)

// grantSet returns the capabilities granted to the target. Built with the
// netrawonly tag, runec grants only CAP_NET_RAW.
func grantSet() caps.Set {
	return caps.Set{capability.CAP_NET_RAW}
}
