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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinURL(t *testing.T) {
	got, err := JoinURL("http://indy.example.com/api/", "content", "maven", "hosted", "builds", "/org/foo/foo.jar")
	require.NoError(t, err)
	assert.Equal(t, "http://indy.example.com/api/content/maven/hosted/builds/org/foo/foo.jar", got)

	got, err = JoinURL("https://repo1.maven.org/maven2", "", "org/foo/foo.pom")
	require.NoError(t, err)
	assert.Equal(t, "https://repo1.maven.org/maven2/org/foo/foo.pom", got)

	_, err = JoinURL("not a url", "x")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMergeTimestamps(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3, 5}, MergeTimestamps([]int64{3, 1}, []int64{5, 3}, nil, []int64{2}))
	assert.Empty(t, MergeTimestamps())
}

func TestParentFolder(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"org/foo/1.0/foo.jar", "org/foo/1.0", true},
		{"/org/foo.jar", "/org", true},
		{"/foo.jar", "", false},
		{"foo.jar", "", false},
	}
	for _, tt := range tests {
		got, ok := ParentFolder(tt.path)
		assert.Equal(t, tt.wantOK, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath("org/foo/1.0/foo-1.0.jar"))
	assert.NoError(t, ValidatePath("/@types/node/-/node-20.0.0.tgz"))
	assert.NoError(t, ValidatePath("org/foo..bar/x.jar"))

	assert.ErrorIs(t, ValidatePath(""), ErrValidation)
	assert.ErrorIs(t, ValidatePath("a/../b"), ErrValidation)
	assert.ErrorIs(t, ValidatePath("a/b\n"), ErrValidation)
	assert.ErrorIs(t, ValidatePath(strings.Repeat("a", maxPathLength+1)), ErrValidation)
}

func TestSanitizeForLog(t *testing.T) {
	assert.Equal(t, "forgedline", SanitizeForLog("forged\nline"))
	long := SanitizeForLog(strings.Repeat("x", maxLogValueLength+10))
	assert.True(t, strings.HasSuffix(long, "...[truncated]"))
}
