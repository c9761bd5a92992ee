// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package caps implements the privilege transition that lets an unprivileged
// user run a program with a small, fixed set of Linux capabilities.
//
// The transition is a strictly ordered pipeline: validate the target,
// check preconditions, ask the kernel to keep capabilities across the
// identity change, drop to the real uid/gid, rebuild the capability sets,
// raise the ambient set, verify the result, and finally replace the process
// image with the target. Every stage either succeeds or terminates the run;
// nothing is retried and nothing is skipped.
package caps

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"go.astrophena.name/runec/internal/logger"

	"github.com/syndtr/gocapability/capability"
)

// Errors returned by the transition pipeline. Each one is terminal: the
// process must exit without launching the target.
var (
	// ErrInvalidTarget means the target doesn't exist or is not a regular file.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrNotExecutable means the target is not executable by the real identity.
	ErrNotExecutable = errors.New("target not executable")
	// ErrInsufficientPrivilege means the helper runs neither with an elevated
	// effective identity nor with file-granted capabilities.
	ErrInsufficientPrivilege = errors.New("insufficient privilege")
	// ErrKernelOperation means an identity or capability mutation was refused
	// by the kernel.
	ErrKernelOperation = errors.New("kernel operation failed")
	// ErrCapVerification means a capability reported as granted is missing
	// from the effective set right before exec.
	ErrCapVerification = errors.New("capability verification failed")
	// ErrLaunchFailed means the final process image replacement failed.
	ErrLaunchFailed = errors.New("launch failed")
)

// Set is the fixed collection of capabilities granted to the target.
// It is chosen at build time, never derived from input, and stays
// identical across all stages of one run.
type Set []capability.Cap

// String implements the fmt.Stringer interface.
func (s Set) String() string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = Name(c)
	}
	return strings.Join(names, ", ")
}

// Name returns the canonical upper-case name of c, e.g. "CAP_NET_RAW".
func Name(c capability.Cap) string {
	return "CAP_" + strings.ToUpper(c.String())
}

// Identity is the process identity captured once at engine construction.
// UID and GID are the real (invoking) identity the target will run as;
// EUID is the possibly elevated effective identity the helper starts with.
type Identity struct {
	UID, GID, EUID int
}

// Kernel is the narrow interface to the process-wide privilege state.
//
// That state is owned by the kernel, not by this package: it is only ever
// read or mutated through these operations, and it is re-queried after
// mutations instead of being assumed.
type Kernel interface {
	Getuid() int
	Getgid() int
	Geteuid() int

	// EffectiveCap reports whether c is currently in the effective set.
	EffectiveCap(c capability.Cap) (bool, error)
	// KeepCaps instructs the kernel to keep the permitted set across the
	// coming identity change.
	KeepCaps() error
	// Setresgid sets the real, effective and saved group ids.
	Setresgid(gid int) error
	// Setresuid sets the real, effective and saved user ids.
	Setresuid(uid int) error
	// ApplyCaps commits a fresh capability state with set raised in the
	// permitted, effective and inheritable sets simultaneously.
	ApplyCaps(set []capability.Cap) error
	// RaiseAmbient raises a single capability in the ambient set.
	RaiseAmbient(c capability.Cap) error
	// Snapshot returns a human-readable dump of the current capability
	// state, for tracing only.
	Snapshot() (string, error)
	// Exec replaces the process image. It returns only on failure.
	Exec(path string, argv, environ []string) error
}

// Engine performs the capability transition against a [Kernel].
type Engine struct {
	set    Set
	kernel Kernel
	logf   logger.Logf // nil disables tracing
	id     Identity
}

// NewEngine returns an Engine that will grant set to the target.
//
// The real and effective identities are captured here, once; the real
// identity is what the target will run as. A nil logf disables the
// per-stage capability tracing.
func NewEngine(set Set, kernel Kernel, logf logger.Logf) (*Engine, error) {
	if len(set) == 0 {
		return nil, errors.New("caps: empty capability set")
	}
	return &Engine{
		set:    slices.Clone(set),
		kernel: kernel,
		logf:   logf,
		id: Identity{
			UID:  kernel.Getuid(),
			GID:  kernel.Getgid(),
			EUID: kernel.Geteuid(),
		},
	}, nil
}

// Identity returns the identity captured at construction.
func (e *Engine) Identity() Identity { return e.id }

// Run performs the full transition and replaces the current process image
// with target. On success it does not return. Any error means no exec
// happened and the process must exit non-zero.
//
// args become the target's argument vector after its own name: argv[0] is
// the target path itself. The environment is passed through unmodified.
func (e *Engine) Run(target string, args []string) error {
	if err := ValidateTarget(target); err != nil {
		return err
	}
	if err := e.preconditions(); err != nil {
		return err
	}
	e.trace("initial")

	if err := e.keepCaps(); err != nil {
		return err
	}
	if err := e.dropIdentity(); err != nil {
		return err
	}
	e.trace("after identity drop")

	if err := e.reconstructCaps(); err != nil {
		return err
	}
	if err := e.propagateAmbient(); err != nil {
		return err
	}
	e.trace("before exec")

	if err := e.verify(); err != nil {
		return err
	}

	argv := append([]string{target}, args...)
	if err := e.kernel.Exec(target, argv, os.Environ()); err != nil {
		return fmt.Errorf("%w: exec %s: %v", ErrLaunchFailed, target, err)
	}
	return nil
}

// preconditions checks that the helper currently holds every capability it
// is about to grant: either the effective identity is root, or the binary
// was installed with matching file capabilities. Pure read, no mutation.
func (e *Engine) preconditions() error {
	if e.id.EUID == 0 {
		return nil
	}
	for _, c := range e.set {
		on, err := e.kernel.EffectiveCap(c)
		if err != nil {
			return fmt.Errorf("%w: querying %s: %v", ErrInsufficientPrivilege, Name(c), err)
		}
		if !on {
			return fmt.Errorf("%w: %s is not effective; install setuid root or with file capabilities", ErrInsufficientPrivilege, Name(c))
		}
	}
	return nil
}

func (e *Engine) keepCaps() error {
	if err := e.kernel.KeepCaps(); err != nil {
		return fmt.Errorf("%w: prctl(PR_SET_KEEPCAPS): %v", ErrKernelOperation, err)
	}
	return nil
}

// dropIdentity switches to the real uid/gid. The group is dropped first:
// dropping the user first can remove the permission needed to change the
// group.
func (e *Engine) dropIdentity() error {
	if err := e.kernel.Setresgid(e.id.GID); err != nil {
		return fmt.Errorf("%w: setresgid(%d): %v", ErrKernelOperation, e.id.GID, err)
	}
	if err := e.kernel.Setresuid(e.id.UID); err != nil {
		return fmt.Errorf("%w: setresuid(%d): %v", ErrKernelOperation, e.id.UID, err)
	}
	return nil
}

// reconstructCaps commits a fresh capability state with the grant set
// raised in the permitted, effective and inheritable sets at once. All
// three are needed for the kernel to carry the set across exec; a missing
// one drops the capability silently at exec time.
func (e *Engine) reconstructCaps() error {
	if err := e.kernel.ApplyCaps(e.set); err != nil {
		return fmt.Errorf("%w: applying %s: %v", ErrKernelOperation, e.set, err)
	}
	return nil
}

// propagateAmbient raises each capability in the ambient set, one by one.
// The first failure aborts the run: a partial ambient grant would
// under-privilege the target in a way indistinguishable from success.
func (e *Engine) propagateAmbient() error {
	for _, c := range e.set {
		if err := e.kernel.RaiseAmbient(c); err != nil {
			return fmt.Errorf("%w: raising ambient %s (kernel >= 4.3 required): %v", ErrKernelOperation, Name(c), err)
		}
	}
	return nil
}

// verify re-reads the effective set and confirms every granted capability
// is present. Each earlier stage can report success while the aggregate
// effect is wrong; this is the single authoritative gate before exec.
func (e *Engine) verify() error {
	for _, c := range e.set {
		on, err := e.kernel.EffectiveCap(c)
		if err != nil {
			return fmt.Errorf("%w: querying %s: %v", ErrCapVerification, Name(c), err)
		}
		if !on {
			return fmt.Errorf("%w: %s is not in the effective set", ErrCapVerification, Name(c))
		}
	}
	return nil
}

func (e *Engine) trace(stage string) {
	if e.logf == nil {
		return
	}
	s, err := e.kernel.Snapshot()
	if err != nil {
		e.logf("capability snapshot (%s) failed: %v", stage, err)
		return
	}
	e.logf("%s: %s", stage, s)
}
