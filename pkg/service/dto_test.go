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

package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tracking/pkg/memory"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

func renderFixture() *tracking.TrackedContent {
	c := tracking.NewTrackedContent("build-42")
	c.Uploads = append(c.Uploads, tracking.TrackedContentEntry{
		TrackingKey:   "build-42",
		StoreKey:      hostedStore,
		AccessChannel: tracking.AccessChannelNative,
		Path:          "/org/foo/1.0/foo-1.0.jar",
		Effect:        tracking.EffectUpload,
		Size:          2048,
		MD5:           "d41d8cd98f00b204e9800998ecf8427e",
		SHA1:          "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		SHA256:        "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Timestamps:    []int64{1700000000000, 1700000005000},
	})
	c.Downloads = append(c.Downloads,
		tracking.TrackedContentEntry{
			TrackingKey: "build-42",
			StoreKey:    remoteStore,
			Path:        "/org/bar/2.0/bar-2.0.pom",
			OriginURL:   "https://repo.example.com/maven2/org/bar/2.0/bar-2.0.pom",
			Effect:      tracking.EffectDownload,
			Size:        512,
			Timestamps:  []int64{1700000001000},
		},
		tracking.TrackedContentEntry{
			TrackingKey:   "build-42",
			StoreKey:      tracking.NewStoreKey("npm", tracking.StoreTypeRemote, "npmjs"),
			AccessChannel: tracking.AccessChannelGenericProxy,
			Path:          "/left-pad/-/left-pad-1.3.0.tgz",
			Effect:        tracking.EffectDownload,
			Size:          1024,
			Timestamps:    []int64{1700000002000},
		},
	)
	return c
}

func renderGolden(t *testing.T, name string, dto *ContentDTO) {
	t.Helper()
	data, err := json.MarshalIndent(dto, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden.json"),
	)
	g.Assert(t, name, data)
}

func TestRenderWithLocalURL(t *testing.T) {
	svc := New(Config{Store: memory.New(), ContentBaseURL: "http://indy.example.com/api"})
	renderGolden(t, "content_with_local_url", svc.Render(context.Background(), renderFixture()))
}

func TestRenderWithoutBaseURL(t *testing.T) {
	svc := New(Config{Store: memory.New()})
	renderGolden(t, "content_without_local_url", svc.Render(context.Background(), renderFixture()))
}

func TestRenderBadBaseURLLeavesLocalURLEmpty(t *testing.T) {
	svc := New(Config{Store: memory.New(), ContentBaseURL: "not a url"})
	dto := svc.Render(context.Background(), renderFixture())
	for _, e := range append(dto.Uploads, dto.Downloads...) {
		assert.Empty(t, e.LocalURL)
	}
	assert.Nil(t, svc.Render(context.Background(), nil))
}
