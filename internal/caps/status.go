// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package caps

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/syndtr/gocapability/capability"
)

// Status is a process's identity and capability state as reported by
// /proc/<pid>/status.
type Status struct {
	UID, GID, EUID int

	Permitted   uint64
	Effective   uint64
	Inheritable uint64
	Ambient     uint64
}

// ParseStatus extracts the identity and capability masks from a
// /proc/<pid>/status stream.
func ParseStatus(r io.Reader) (*Status, error) {
	st := new(Status)
	s := bufio.NewScanner(r)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 2 {
			continue
		}
		var err error
		switch fields[0] {
		case "Uid:":
			// Real, effective, saved, filesystem.
			if len(fields) < 3 {
				return nil, fmt.Errorf("caps: malformed Uid line: %q", s.Text())
			}
			if st.UID, err = strconv.Atoi(fields[1]); err != nil {
				return nil, fmt.Errorf("caps: parsing Uid: %w", err)
			}
			if st.EUID, err = strconv.Atoi(fields[2]); err != nil {
				return nil, fmt.Errorf("caps: parsing Uid: %w", err)
			}
		case "Gid:":
			if st.GID, err = strconv.Atoi(fields[1]); err != nil {
				return nil, fmt.Errorf("caps: parsing Gid: %w", err)
			}
		case "CapPrm:":
			if st.Permitted, err = parseMask(fields[1]); err != nil {
				return nil, err
			}
		case "CapEff:":
			if st.Effective, err = parseMask(fields[1]); err != nil {
				return nil, err
			}
		case "CapInh:":
			if st.Inheritable, err = parseMask(fields[1]); err != nil {
				return nil, err
			}
		case "CapAmb:":
			if st.Ambient, err = parseMask(fields[1]); err != nil {
				return nil, err
			}
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return st, nil
}

func parseMask(s string) (uint64, error) {
	m, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("caps: parsing capability mask %q: %w", s, err)
	}
	return m, nil
}

// DecodeMask expands a capability bitmask into capability identifiers,
// in ascending bit order.
func DecodeMask(mask uint64) []capability.Cap {
	var caps []capability.Cap
	for _, c := range capability.List() {
		if mask&(1<<uint(c)) != 0 {
			caps = append(caps, c)
		}
	}
	return caps
}
