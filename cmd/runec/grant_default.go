// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

//go:build !netrawonly

package main

import (
	"go.astrophena.name/runec/internal/caps"

	"github.com/syndtr/gocapability/capability"
)

// grantSet returns the capabilities granted to the target. The set is
// fixed when runec is built; there is deliberately no flag or environment
// variable that can change it.
func grantSet() caps.Set {
	return caps.Set{capability.CAP_NET_RAW, capability.CAP_NET_ADMIN}
}
