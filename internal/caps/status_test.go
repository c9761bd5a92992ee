// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package caps

import (
	"strings"
	"testing"

	"go.astrophena.name/runec/internal/testutil"

	"github.com/syndtr/gocapability/capability"
)

const statusFixture = `Name:	capview
Umask:	0022
State:	R (running)
Uid:	1000	1000	1000	1000
Gid:	100	100	100	100
Groups:	100
CapInh:	0000000000003000
CapPrm:	0000000000003000
CapEff:	0000000000003000
CapBnd:	000001ffffffffff
CapAmb:	0000000000003000
Seccomp:	0
`

func TestParseStatus(t *testing.T) {
	t.Parallel()

	st, err := ParseStatus(strings.NewReader(statusFixture))
	if err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, st, &Status{
		UID:         1000,
		GID:         100,
		EUID:        1000,
		Permitted:   0x3000,
		Effective:   0x3000,
		Inheritable: 0x3000,
		Ambient:     0x3000,
	})
}

func TestParseStatusMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"bad uid":  "Uid:\tnope\t0\t0\t0\n",
		"bad gid":  "Gid:\tnope\t0\t0\t0\n",
		"bad mask": "CapEff:\txyzzy\n",
	}
	for name, fixture := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseStatus(strings.NewReader(fixture)); err == nil {
				t.Fatal("ParseStatus must fail on malformed input")
			}
		})
	}
}

func TestDecodeMask(t *testing.T) {
	t.Parallel()

	// Bits 12 and 13 are CAP_NET_ADMIN and CAP_NET_RAW.
	testutil.AssertEqual(t, DecodeMask(0x3000), []capability.Cap{
		capability.CAP_NET_ADMIN,
		capability.CAP_NET_RAW,
	})

	testutil.AssertEqual(t, len(DecodeMask(0)), 0)
}
