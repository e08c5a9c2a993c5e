// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tracking.
//
// go-tracking is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package version reports the build version of folo.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version and Commit are set at build time:
//
//	go build -ldflags "-X github.com/jeremyhahn/go-tracking/pkg/version.Version=1.0.0 -X github.com/jeremyhahn/go-tracking/pkg/version.Commit=abc123"
var (
	Version = "0.1.0-alpha"
	Commit  = ""
)

// Get returns the application version string.
func Get() string {
	return Version
}

// Revision returns the commit the binary was built from, preferring the
// value stamped by the Go toolchain when none was set with ldflags.
func Revision() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}

// String returns "folo <version>" with the short revision when known.
func String() string {
	rev := Revision()
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev == "" {
		return fmt.Sprintf("folo %s", Version)
	}
	return fmt.Sprintf("folo %s (%s)", Version, rev)
}
