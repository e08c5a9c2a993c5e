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

package tracking

import (
	"strings"
)

const (
	maxTrackingIDLength = 256
	maxPathLength       = 4096
	maxLogValueLength   = 512
)

// ValidateTrackingID checks a session identifier supplied by a caller.
// Identifiers become URL path segments and archive entry names, so slashes
// and control characters are rejected.
func ValidateTrackingID(id string) error {
	if strings.TrimSpace(id) == "" {
		return validationError("trackingKey", "id must not be blank")
	}
	if len(id) > maxTrackingIDLength {
		return validationError("trackingKey", "id longer than %d characters", maxTrackingIDLength)
	}
	if hasControl(id) {
		return validationError("trackingKey", "id contains control characters")
	}
	if strings.ContainsAny(id, "/\\") {
		return validationError("trackingKey", "id must not contain path separators")
	}
	if id == "." || id == ".." {
		return validationError("trackingKey", "id must not be a relative path reference")
	}
	return nil
}

// ValidatePath checks an artifact path. Leading slashes are tolerated since
// some package types report rooted paths; parent references are not.
func ValidatePath(path string) error {
	if path == "" {
		return validationError("path", "must not be empty")
	}
	if len(path) > maxPathLength {
		return validationError("path", "longer than %d characters", maxPathLength)
	}
	if hasControl(path) {
		return validationError("path", "contains control characters")
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return validationError("path", "contains parent directory reference")
		}
	}
	return nil
}

// SanitizeForLog strips control characters and truncates s so caller-supplied
// values cannot forge log lines.
func SanitizeForLog(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	if len(s) > maxLogValueLength {
		s = s[:maxLogValueLength] + "...[truncated]"
	}
	return s
}

func hasControl(s string) bool {
	for _, r := range s {
		if r < 32 || r == 127 {
			return true
		}
	}
	return false
}
