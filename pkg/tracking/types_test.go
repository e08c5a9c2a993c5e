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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStoreKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    StoreKey
		wantErr bool
	}{
		{
			name:  "canonical form",
			input: "maven:hosted:local-deployments",
			want:  StoreKey{PackageType: "maven", Type: StoreTypeHosted, Name: "local-deployments"},
		},
		{
			name:  "bare name defaults to maven remote",
			input: "central",
			want:  StoreKey{PackageType: "maven", Type: StoreTypeRemote, Name: "central"},
		},
		{
			name:  "type and name",
			input: "group:public",
			want:  StoreKey{PackageType: "maven", Type: StoreTypeGroup, Name: "public"},
		},
		{
			name:  "type is case insensitive",
			input: "npm:HOSTED:builds",
			want:  StoreKey{PackageType: "npm", Type: StoreTypeHosted, Name: "builds"},
		},
		{name: "blank", input: "  ", wantErr: true},
		{name: "unknown type", input: "maven:virtual:x", wantErr: true},
		{name: "missing name", input: "maven:hosted:", wantErr: true},
		{name: "too many segments", input: "a:b:c:d", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStoreKey(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStoreKeyRoundTrip(t *testing.T) {
	key := NewStoreKey("generic-http", StoreTypeRemote, "httprox_example")
	parsed, err := ParseStoreKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
	assert.Equal(t, "generic-http:remote:httprox_example", key.String())
}

func TestStoreKeyJSON(t *testing.T) {
	type wrapper struct {
		Store StoreKey `json:"store"`
	}
	data, err := json.Marshal(wrapper{Store: NewStoreKey("maven", StoreTypeHosted, "builds")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"store":"maven:hosted:builds"}`, string(data))

	var decoded wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"store":"central"}`), &decoded))
	assert.Equal(t, NewStoreKey("maven", StoreTypeRemote, "central"), decoded.Store)
}

func TestTrackingKeyJSON(t *testing.T) {
	data, err := json.Marshal(TrackingKey("build-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"build-1"}`, string(data))

	var fromObject, fromString TrackingKey
	require.NoError(t, json.Unmarshal([]byte(`{"id":"build-2"}`), &fromObject))
	require.NoError(t, json.Unmarshal([]byte(`"build-3"`), &fromString))
	assert.Equal(t, TrackingKey("build-2"), fromObject)
	assert.Equal(t, TrackingKey("build-3"), fromString)
}

func TestNewTrackingKey(t *testing.T) {
	k, err := NewTrackingKey("build-42")
	require.NoError(t, err)
	assert.Equal(t, "build-42", k.ID())

	for _, bad := range []string{"", "   ", "a/b", "..", "bad\x00id"} {
		_, err := NewTrackingKey(bad)
		assert.ErrorIs(t, err, ErrValidation, "id %q", bad)
	}
}

func TestParseStoreEffect(t *testing.T) {
	e, err := ParseStoreEffect("UPLOAD")
	require.NoError(t, err)
	assert.Equal(t, EffectUpload, e)

	_, err = ParseStoreEffect("download")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseStoreEffect("")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseAccessChannel(t *testing.T) {
	c, err := ParseAccessChannel("GENERIC_PROXY")
	require.NoError(t, err)
	assert.Equal(t, AccessChannelGenericProxy, c)

	c, err = ParseAccessChannel("")
	require.NoError(t, err)
	assert.Equal(t, AccessChannelNative, c)

	_, err = ParseAccessChannel("CARRIER_PIGEON")
	assert.ErrorIs(t, err, ErrValidation)
}

func validEntry() TrackedContentEntry {
	return TrackedContentEntry{
		TrackingKey:   "build-1",
		StoreKey:      NewStoreKey("maven", StoreTypeRemote, "central"),
		AccessChannel: AccessChannelNative,
		Path:          "org/foo/1.0/foo-1.0.jar",
		Effect:        EffectDownload,
		Size:          12,
	}
}

func TestEntryValidate(t *testing.T) {
	require.NoError(t, validEntry().Validate())

	tests := []struct {
		name   string
		mutate func(*TrackedContentEntry)
	}{
		{"blank tracking key", func(e *TrackedContentEntry) { e.TrackingKey = "" }},
		{"missing store", func(e *TrackedContentEntry) { e.StoreKey = StoreKey{} }},
		{"empty path", func(e *TrackedContentEntry) { e.Path = "" }},
		{"traversal path", func(e *TrackedContentEntry) { e.Path = "org/../../etc/passwd" }},
		{"unknown effect", func(e *TrackedContentEntry) { e.Effect = "DELETE" }},
		{"unknown channel", func(e *TrackedContentEntry) { e.AccessChannel = "FTP" }},
		{"negative size", func(e *TrackedContentEntry) { e.Size = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEntry()
			tt.mutate(&e)
			assert.ErrorIs(t, e.Validate(), ErrValidation)
		})
	}
}

func TestTrackedContentHelpers(t *testing.T) {
	hosted := NewStoreKey("maven", StoreTypeHosted, "builds")
	c := NewTrackedContent("build-1")
	assert.True(t, c.IsEmpty())

	up := validEntry()
	up.Effect = EffectUpload
	up.StoreKey = hosted
	up.Path = "z/last.jar"
	up2 := up
	up2.Path = "a/first.jar"
	other := up
	other.StoreKey = NewStoreKey("maven", StoreTypeHosted, "other")

	c.Uploads = []TrackedContentEntry{up, other, up2}
	c.Downloads = []TrackedContentEntry{validEntry()}
	c.Sort()

	assert.Equal(t, "a/first.jar", c.Uploads[0].Path)
	assert.Equal(t, "z/last.jar", c.Uploads[1].Path)
	assert.Len(t, c.UploadsFor(hosted), 2)
	assert.Len(t, c.Entries(), 4)
	assert.False(t, c.IsEmpty())
}

func TestCollaboratorError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewCollaboratorError("promote", 503, "", cause)

	assert.ErrorIs(t, err, ErrCollaborator)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "promote returned status 503")

	var ce *CollaboratorError
	require.ErrorAs(t, error(err), &ce)
	assert.Equal(t, 503, ce.StatusCode)
}
