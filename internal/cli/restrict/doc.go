// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package restrict allows programs to use [Landlock] LSM on supported systems
// for sandboxing. On unsupported systems it does nothing.
//
// Landlock restrictions survive execve, so this package must never be used
// by a program that goes on to replace itself with another one: the rules
// would silently apply to the replacement too.
//
// [Landlock]: https://landlock.io
package restrict
