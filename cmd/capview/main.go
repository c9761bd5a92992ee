// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"go.astrophena.name/runec/internal/caps"
	"go.astrophena.name/runec/internal/cli"
	"go.astrophena.name/runec/internal/cli/restrict"

	"github.com/landlock-lsm/go-landlock/landlock"
)

func main() { cli.Main(new(app)) }

type app struct {
	jsonOutput bool

	// statusPath lets tests point the tool at a fixture file.
	statusPath string
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.BoolVar(&a.jsonOutput, "json", false, "Print the state as JSON.")
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	if len(env.Args) > 0 {
		return fmt.Errorf("%w: capview takes no arguments", cli.ErrInvalidArgs)
	}

	// Drop privileges if not inside tests.
	if !testing.Testing() {
		restrict.Do(ctx, landlock.RODirs("/proc"))
	}

	path := a.statusPath
	if path == "" {
		path = "/proc/self/status"
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := caps.ParseStatus(f)
	if err != nil {
		return err
	}

	if a.jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(newReport(st))
	}
	_, err = io.WriteString(env.Stdout, render(st))
	return err
}

type report struct {
	UID         int      `json:"uid"`
	GID         int      `json:"gid"`
	EUID        int      `json:"euid"`
	Permitted   []string `json:"permitted"`
	Effective   []string `json:"effective"`
	Inheritable []string `json:"inheritable"`
	Ambient     []string `json:"ambient"`
}

func newReport(st *caps.Status) report {
	return report{
		UID:         st.UID,
		GID:         st.GID,
		EUID:        st.EUID,
		Permitted:   nameList(st.Permitted),
		Effective:   nameList(st.Effective),
		Inheritable: nameList(st.Inheritable),
		Ambient:     nameList(st.Ambient),
	}
}

func render(st *caps.Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "uid:  %d\n", st.UID)
	fmt.Fprintf(&sb, "gid:  %d\n", st.GID)
	fmt.Fprintf(&sb, "euid: %d\n", st.EUID)
	fmt.Fprintf(&sb, "permitted:   %s\n", names(st.Permitted))
	fmt.Fprintf(&sb, "effective:   %s\n", names(st.Effective))
	fmt.Fprintf(&sb, "inheritable: %s\n", names(st.Inheritable))
	fmt.Fprintf(&sb, "ambient:     %s\n", names(st.Ambient))
	return sb.String()
}

func nameList(mask uint64) []string {
	decoded := caps.DecodeMask(mask)
	ns := make([]string, len(decoded))
	for i, c := range decoded {
		ns[i] = c.String()
	}
	return ns
}

func names(mask uint64) string {
	ns := nameList(mask)
	if len(ns) == 0 {
		return "(none)"
	}
	return strings.Join(ns, ", ")
}
