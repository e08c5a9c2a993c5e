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

package archive

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

func sample(key tracking.TrackingKey) *tracking.TrackedContent {
	c := tracking.NewTrackedContent(key)
	c.Uploads = append(c.Uploads, tracking.TrackedContentEntry{
		TrackingKey:   key,
		StoreKey:      tracking.NewStoreKey("maven", tracking.StoreTypeHosted, "builds"),
		AccessChannel: tracking.AccessChannelNative,
		Path:          "org/foo/1.0/foo-1.0.jar",
		Effect:        tracking.EffectUpload,
		Size:          100,
		SHA256:        "abc",
		Timestamps:    []int64{1, 2},
	})
	c.Downloads = append(c.Downloads, tracking.TrackedContentEntry{
		TrackingKey:   key,
		StoreKey:      tracking.NewStoreKey("maven", tracking.StoreTypeRemote, "central"),
		AccessChannel: tracking.AccessChannelGenericProxy,
		OriginURL:     "https://repo1.maven.org/maven2/org/bar/bar.pom",
		Path:          "org/bar/bar.pom",
		Effect:        tracking.EffectDownload,
		Size:          10,
		Timestamps:    []int64{3},
	})
	return c
}

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer
	in := []*tracking.TrackedContent{sample("build-1"), sample("build 2")}
	require.NoError(t, Write(&buf, in))

	out, err := ReadBytes(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[1], out[1])
}

func TestWriteRejectsKeylessContent(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []*tracking.TrackedContent{sample("ok"), {}})
	assert.ErrorIs(t, err, tracking.ErrValidation)
	assert.Zero(t, buf.Len())
}

func TestEntryName(t *testing.T) {
	assert.Equal(t, "build-1.json", EntryName("build-1"))
	assert.Equal(t, "build%202.json", EntryName("build 2"))
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadFailsWholeArchiveOnBadDocument(t *testing.T) {
	var good bytes.Buffer
	require.NoError(t, Write(&good, []*tracking.TrackedContent{sample("good")}))
	goodDocs, err := ReadBytes(good.Bytes())
	require.NoError(t, err)
	require.Len(t, goodDocs, 1)

	data := buildZip(t, map[string]string{
		"good.json": `{"key":{"id":"good"},"uploads":[],"downloads":[]}`,
		"bad.json":  `{"key":`,
	})
	out, err := ReadBytes(data)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, tracking.ErrValidation)
	assert.Nil(t, out)
}

func TestReadRejectsInvalidEntries(t *testing.T) {
	tests := map[string]string{
		"traversal path": `{"key":{"id":"k"},"downloads":[{"storeKey":"maven:remote:c","path":"../x","effect":"DOWNLOAD"}]}`,
		"wrong effect":   `{"key":{"id":"k"},"uploads":[{"storeKey":"maven:remote:c","path":"x","effect":"DOWNLOAD"}]}`,
		"foreign key":    `{"key":{"id":"k"},"uploads":[{"trackingKey":{"id":"other"},"storeKey":"maven:remote:c","path":"x"}]}`,
		"bad store key":  `{"key":{"id":"k"},"uploads":[{"storeKey":"maven:nope:c","path":"x"}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadBytes(buildZip(t, map[string]string{"k.json": doc}))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestReadFillsDefaults(t *testing.T) {
	data := buildZip(t, map[string]string{
		"build-9.json": `{"uploads":[{"storeKey":"maven:hosted:b","path":"x.jar"}]}`,
		"README.txt":   "ignored",
	})
	out, err := ReadBytes(data)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, tracking.TrackingKey("build-9"), out[0].Key)
	assert.Equal(t, tracking.EffectUpload, out[0].Uploads[0].Effect)
	assert.Equal(t, tracking.TrackingKey("build-9"), out[0].Uploads[0].TrackingKey)
	assert.NotNil(t, out[0].Downloads)
}

func TestReadRejectsNonZip(t *testing.T) {
	_, err := ReadBytes([]byte("definitely not a zip"))
	assert.ErrorIs(t, err, ErrMalformed)
}
