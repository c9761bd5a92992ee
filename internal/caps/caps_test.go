// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package caps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.astrophena.name/runec/internal/testutil"

	"github.com/syndtr/gocapability/capability"
)

var testSet = Set{capability.CAP_NET_RAW, capability.CAP_NET_ADMIN}

// fakeKernel records every privilege operation in order and lets tests
// inject failures at any stage.
type fakeKernel struct {
	uid, gid, euid int

	effective map[capability.Cap]bool
	calls     []string

	keepCapsErr  error
	setresgidErr error
	setresuidErr error
	applyErr     error
	ambientErr   map[capability.Cap]error
	execErr      error

	// dropAfterApply simulates capabilities that ApplyCaps reports as
	// granted but that never end up in the effective set.
	dropAfterApply []capability.Cap

	execPath string
	execArgv []string
	execEnv  []string
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		uid:       1000,
		gid:       100,
		euid:      0,
		effective: make(map[capability.Cap]bool),
	}
}

func (k *fakeKernel) Getuid() int  { return k.uid }
func (k *fakeKernel) Getgid() int  { return k.gid }
func (k *fakeKernel) Geteuid() int { return k.euid }

func (k *fakeKernel) EffectiveCap(c capability.Cap) (bool, error) {
	k.calls = append(k.calls, "effective "+Name(c))
	return k.effective[c], nil
}

func (k *fakeKernel) KeepCaps() error {
	k.calls = append(k.calls, "keepcaps")
	return k.keepCapsErr
}

func (k *fakeKernel) Setresgid(gid int) error {
	k.calls = append(k.calls, fmt.Sprintf("setresgid %d", gid))
	return k.setresgidErr
}

func (k *fakeKernel) Setresuid(uid int) error {
	k.calls = append(k.calls, fmt.Sprintf("setresuid %d", uid))
	return k.setresuidErr
}

func (k *fakeKernel) ApplyCaps(set []capability.Cap) error {
	k.calls = append(k.calls, "applycaps")
	if k.applyErr != nil {
		return k.applyErr
	}
	for _, c := range set {
		k.effective[c] = true
	}
	for _, c := range k.dropAfterApply {
		k.effective[c] = false
	}
	return nil
}

func (k *fakeKernel) RaiseAmbient(c capability.Cap) error {
	k.calls = append(k.calls, "ambient "+Name(c))
	if err, ok := k.ambientErr[c]; ok {
		return err
	}
	return nil
}

func (k *fakeKernel) Snapshot() (string, error) {
	k.calls = append(k.calls, "snapshot")
	return "fake capability state", nil
}

func (k *fakeKernel) Exec(path string, argv, environ []string) error {
	k.calls = append(k.calls, "exec")
	if k.execErr != nil {
		return k.execErr
	}
	k.execPath = path
	k.execArgv = argv
	k.execEnv = environ
	return nil
}

// mutations returns the recorded calls that change process state,
// filtering out pure reads.
func (k *fakeKernel) mutations() []string {
	var muts []string
	for _, c := range k.calls {
		if strings.HasPrefix(c, "effective") || c == "snapshot" {
			continue
		}
		muts = append(muts, c)
	}
	return muts
}

// writeTarget creates an executable fixture file and returns its path.
func writeTarget(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestEngine(t *testing.T, k Kernel) *Engine {
	t.Helper()
	e, err := NewEngine(testSet, k, nil)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestRunCallOrder(t *testing.T) {
	t.Parallel()

	target := writeTarget(t)
	k := newFakeKernel()
	e := newTestEngine(t, k)

	if err := e.Run(target, []string{"-c", "1"}); err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, k.calls, []string{
		"keepcaps",
		fmt.Sprintf("setresgid %d", k.gid),
		fmt.Sprintf("setresuid %d", k.uid),
		"applycaps",
		"ambient CAP_NET_RAW",
		"ambient CAP_NET_ADMIN",
		"effective CAP_NET_RAW",
		"effective CAP_NET_ADMIN",
		"exec",
	})
	testutil.AssertEqual(t, k.execPath, target)
	testutil.AssertEqual(t, k.execArgv, []string{target, "-c", "1"})
	testutil.AssertEqual(t, k.execEnv, os.Environ())
}

func TestInvalidTargetPerformsNoMutation(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	e := newTestEngine(t, k)

	err := e.Run(filepath.Join(t.TempDir(), "missing"), nil)
	if !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("got %v, want ErrInvalidTarget", err)
	}
	testutil.AssertEqual(t, len(k.calls), 0)
}

func TestNotExecutableTargetPerformsNoMutation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, []byte("not a program"), 0o644); err != nil {
		t.Fatal(err)
	}

	k := newFakeKernel()
	e := newTestEngine(t, k)

	err := e.Run(path, nil)
	if !errors.Is(err, ErrNotExecutable) {
		t.Fatalf("got %v, want ErrNotExecutable", err)
	}
	testutil.AssertEqual(t, len(k.calls), 0)
}

func TestInsufficientPrivilegePerformsNoMutation(t *testing.T) {
	t.Parallel()

	target := writeTarget(t)
	k := newFakeKernel()
	k.euid = 1000 // not root, and no effective capabilities
	e := newTestEngine(t, k)

	err := e.Run(target, nil)
	if !errors.Is(err, ErrInsufficientPrivilege) {
		t.Fatalf("got %v, want ErrInsufficientPrivilege", err)
	}
	testutil.AssertEqual(t, len(k.mutations()), 0)
}

func TestFileGrantedCapabilitiesSatisfyPreconditions(t *testing.T) {
	t.Parallel()

	target := writeTarget(t)
	k := newFakeKernel()
	k.euid = 1000
	// The binary was installed with file capabilities instead of setuid
	// root: the grant set is already effective.
	for _, c := range testSet {
		k.effective[c] = true
	}
	e := newTestEngine(t, k)

	if err := e.Run(target, nil); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, k.calls[len(k.calls)-1], "exec")
}

func TestKeepCapsFailureIsFatal(t *testing.T) {
	t.Parallel()

	target := writeTarget(t)
	k := newFakeKernel()
	k.keepCapsErr = errors.New("EPERM")
	e := newTestEngine(t, k)

	err := e.Run(target, nil)
	if !errors.Is(err, ErrKernelOperation) {
		t.Fatalf("got %v, want ErrKernelOperation", err)
	}
	testutil.AssertEqual(t, k.mutations(), []string{"keepcaps"})
}

func TestGroupDropFailureStopsBeforeUserDrop(t *testing.T) {
	t.Parallel()

	target := writeTarget(t)
	k := newFakeKernel()
	k.setresgidErr = errors.New("EPERM")
	e := newTestEngine(t, k)

	err := e.Run(target, nil)
	if !errors.Is(err, ErrKernelOperation) {
		t.Fatalf("got %v, want ErrKernelOperation", err)
	}
	testutil.AssertEqual(t, k.mutations(), []string{
		"keepcaps",
		fmt.Sprintf("setresgid %d", k.gid),
	})
}

func TestUserDropFailureStopsPipeline(t *testing.T) {
	t.Parallel()

	target := writeTarget(t)
	k := newFakeKernel()
	k.setresuidErr = errors.New("EPERM")
	e := newTestEngine(t, k)

	err := e.Run(target, nil)
	if !errors.Is(err, ErrKernelOperation) {
		t.Fatalf("got %v, want ErrKernelOperation", err)
	}
	last := k.mutations()[len(k.mutations())-1]
	testutil.AssertEqual(t, last, fmt.Sprintf("setresuid %d", k.uid))
}

func TestReconstructFailureStopsPipeline(t *testing.T) {
	t.Parallel()

	target := writeTarget(t)
	k := newFakeKernel()
	k.applyErr = errors.New("EPERM")
	e := newTestEngine(t, k)

	err := e.Run(target, nil)
	if !errors.Is(err, ErrKernelOperation) {
		t.Fatalf("got %v, want ErrKernelOperation", err)
	}
	last := k.mutations()[len(k.mutations())-1]
	testutil.AssertEqual(t, last, "applycaps")
}

func TestPartialAmbientGrantAborts(t *testing.T) {
	t.Parallel()

	target := writeTarget(t)
	k := newFakeKernel()
	k.ambientErr = map[capability.Cap]error{
		capability.CAP_NET_ADMIN: errors.New("EINVAL"),
	}
	e := newTestEngine(t, k)

	err := e.Run(target, nil)
	if !errors.Is(err, ErrKernelOperation) {
		t.Fatalf("got %v, want ErrKernelOperation", err)
	}
	if !strings.Contains(err.Error(), "CAP_NET_ADMIN") {
		t.Errorf("error must name the failed capability, got: %v", err)
	}
	last := k.mutations()[len(k.mutations())-1]
	testutil.AssertEqual(t, last, "ambient CAP_NET_ADMIN")
}

func TestVerifyCatchesSilentlyDroppedCapability(t *testing.T) {
	t.Parallel()

	target := writeTarget(t)
	k := newFakeKernel()
	k.dropAfterApply = []capability.Cap{capability.CAP_NET_ADMIN}
	e := newTestEngine(t, k)

	err := e.Run(target, nil)
	if !errors.Is(err, ErrCapVerification) {
		t.Fatalf("got %v, want ErrCapVerification", err)
	}
	if !strings.Contains(err.Error(), "CAP_NET_ADMIN") {
		t.Errorf("error must name the missing capability, got: %v", err)
	}
	last := k.mutations()[len(k.mutations())-1]
	if last == "exec" {
		t.Fatal("must not exec with a missing capability")
	}
}

func TestExecFailure(t *testing.T) {
	t.Parallel()

	target := writeTarget(t)
	k := newFakeKernel()
	k.execErr = errors.New("ENOEXEC")
	e := newTestEngine(t, k)

	err := e.Run(target, nil)
	if !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("got %v, want ErrLaunchFailed", err)
	}
}

func TestEmptySetRejected(t *testing.T) {
	t.Parallel()

	if _, err := NewEngine(nil, newFakeKernel(), nil); err == nil {
		t.Fatal("NewEngine must reject an empty capability set")
	}
}

func TestIdentityCapturedAtStart(t *testing.T) {
	t.Parallel()

	k := newFakeKernel()
	e := newTestEngine(t, k)

	testutil.AssertEqual(t, e.Identity(), Identity{UID: 1000, GID: 100, EUID: 0})
}

func TestRepeatedRunsAreIdentical(t *testing.T) {
	t.Parallel()

	target := writeTarget(t)

	run := func() []string {
		k := newFakeKernel()
		e := newTestEngine(t, k)
		if err := e.Run(target, nil); err != nil {
			t.Fatal(err)
		}
		return k.calls
	}

	testutil.AssertEqual(t, run(), run())
}

func TestTraceSnapshotsEachStage(t *testing.T) {
	t.Parallel()

	target := writeTarget(t)
	k := newFakeKernel()

	var lines []string
	logf := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	e, err := NewEngine(testSet, k, logf)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Run(target, nil); err != nil {
		t.Fatal(err)
	}

	var snapshots int
	for _, c := range k.calls {
		if c == "snapshot" {
			snapshots++
		}
	}
	testutil.AssertEqual(t, snapshots, 3)
	testutil.AssertEqual(t, len(lines), 3)
	for _, l := range lines {
		if !strings.Contains(l, "fake capability state") {
			t.Errorf("trace line %q must contain the snapshot", l)
		}
	}
}

func TestSetString(t *testing.T) {
	t.Parallel()

	testutil.AssertEqual(t, testSet.String(), "CAP_NET_RAW, CAP_NET_ADMIN")
}
