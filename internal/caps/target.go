// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package caps

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ValidateTarget checks that path names a regular file that the real
// identity may execute. It runs before any identity or capability change,
// so a failure leaves the process state untouched.
//
// There is a window between this check and the final exec during which the
// target can be swapped out. Closing it would require holding an open
// handle across the identity drop; the window is accepted instead.
func ValidateTarget(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInvalidTarget, path)
	}
	// access(2) checks against the real uid/gid, which is exactly the
	// identity the target will run as.
	if err := unix.Access(path, unix.X_OK); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotExecutable, path, err)
	}
	return nil
}
