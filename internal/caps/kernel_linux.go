// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

//go:build linux && !android

package caps

import (
	"os"

	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"
)

// NewSysKernel returns a [Kernel] backed by the running process.
func NewSysKernel() Kernel { return sysKernel{} }

type sysKernel struct{}

func (sysKernel) Getuid() int  { return os.Getuid() }
func (sysKernel) Getgid() int  { return os.Getgid() }
func (sysKernel) Geteuid() int { return os.Geteuid() }

func (sysKernel) EffectiveCap(c capability.Cap) (bool, error) {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return false, err
	}
	if err := caps.Load(); err != nil {
		return false, err
	}
	return caps.Get(capability.EFFECTIVE, c), nil
}

func (sysKernel) KeepCaps() error {
	return unix.Prctl(unix.PR_SET_KEEPCAPS, 1, 0, 0, 0)
}

func (sysKernel) Setresgid(gid int) error { return unix.Setresgid(gid, gid, gid) }
func (sysKernel) Setresuid(uid int) error { return unix.Setresuid(uid, uid, uid) }

func (sysKernel) ApplyCaps(set []capability.Cap) error {
	// A fresh container starts out empty, so committing it clears
	// everything except the requested capabilities.
	caps, err := capability.NewPid2(0)
	if err != nil {
		return err
	}
	caps.Set(capability.PERMITTED|capability.EFFECTIVE|capability.INHERITABLE, set...)
	return caps.Apply(capability.CAPS)
}

func (sysKernel) RaiseAmbient(c capability.Cap) error {
	return unix.Prctl(unix.PR_CAP_AMBIENT, unix.PR_CAP_AMBIENT_RAISE, uintptr(c), 0, 0)
}

func (sysKernel) Snapshot() (string, error) {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return "", err
	}
	if err := caps.Load(); err != nil {
		return "", err
	}
	return caps.String(), nil
}

func (sysKernel) Exec(path string, argv, environ []string) error {
	return unix.Exec(path, argv, environ)
}
