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
	"net/url"
	"sort"
	"strings"
)

// JoinURL appends path segments to base. Empty segments are skipped and
// leading slashes on segments are ignored.
func JoinURL(base string, segments ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", validationError("url", "invalid base %q: %v", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", validationError("url", "base %q must be absolute", base)
	}

	elems := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			elems = append(elems, s)
		}
	}
	return u.JoinPath(elems...).String(), nil
}

// MergeTimestamps returns the sorted union of timestamp sets.
func MergeTimestamps(sets ...[]int64) []int64 {
	seen := make(map[int64]struct{})
	for _, set := range sets {
		for _, ts := range set {
			seen[ts] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for ts := range seen {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParentFolder returns the portion of path before its last '/', or false when
// the path has no parent segment.
func ParentFolder(path string) (string, bool) {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "", false
	}
	return path[:idx], true
}
