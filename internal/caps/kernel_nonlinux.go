//go:build android || !linux

package caps

import (
	"errors"
	"os"

	"github.com/syndtr/gocapability/capability"
)

var errUnsupported = errors.New("capabilities are not supported on this platform")

// NewSysKernel returns a [Kernel] whose mutating operations always fail:
// capability transitions only exist on Linux.
func NewSysKernel() Kernel { return unsupportedKernel{} }

type unsupportedKernel struct{}

func (unsupportedKernel) Getuid() int  { return os.Getuid() }
func (unsupportedKernel) Getgid() int  { return os.Getgid() }
func (unsupportedKernel) Geteuid() int { return os.Geteuid() }

func (unsupportedKernel) EffectiveCap(capability.Cap) (bool, error) { return false, errUnsupported }
func (unsupportedKernel) KeepCaps() error                           { return errUnsupported }
func (unsupportedKernel) Setresgid(int) error                       { return errUnsupported }
func (unsupportedKernel) Setresuid(int) error                       { return errUnsupported }
func (unsupportedKernel) ApplyCaps([]capability.Cap) error          { return errUnsupported }
func (unsupportedKernel) RaiseAmbient(capability.Cap) error         { return errUnsupported }
func (unsupportedKernel) Snapshot() (string, error)                 { return "", errUnsupported }
func (unsupportedKernel) Exec(string, []string, []string) error     { return errUnsupported }
