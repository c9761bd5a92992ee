// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Runec runs a program with elevated network capabilities.

# Usage

	$ runec <executable> [args...]

Runec starts with an elevated identity, narrows itself down to a fixed set
of network capabilities (CAP_NET_RAW and CAP_NET_ADMIN by default), drops
to the invoking user's real uid and gid, and replaces itself with
<executable>. The launched program runs as the invoking user with exactly
those capabilities and nothing else, so raw-socket tools work without
running as root and without tagging every binary with setcap.

The granted set is chosen when runec is built (the netrawonly build tag
limits it to CAP_NET_RAW); it cannot be changed at run time.

Runec must be installed setuid root or with matching file capabilities:

	$ sudo chown root:root runec && sudo chmod 4755 runec

or

	$ sudo setcap cap_net_raw,cap_net_admin+ep runec
*/
package main

import (
	_ "embed"

	"go.astrophena.name/runec/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
