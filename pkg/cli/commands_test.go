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

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

func newTestContext(t *testing.T) (*CommandContext, *bytes.Buffer) {
	t.Helper()
	cfg := loadConfig(t, "")
	cfg.BaseDir = t.TempDir()
	logs := &bytes.Buffer{}
	ctx, err := NewCommandContext(cfg, WithLogOutput(logs))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, logs
}

func seed(t *testing.T, ctx *CommandContext, id, path string, effect tracking.StoreEffect) {
	t.Helper()
	_, err := ctx.Service.Record(context.Background(), tracking.TrackedContentEntry{
		TrackingKey:   tracking.TrackingKey(id),
		StoreKey:      tracking.NewStoreKey("maven", tracking.StoreTypeRemote, "central"),
		AccessChannel: tracking.AccessChannelNative,
		Path:          path,
		Effect:        effect,
		Size:          10,
	})
	require.NoError(t, err)
}

func auditEvents(t *testing.T, logs *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var m map[string]any
		if json.Unmarshal([]byte(line), &m) == nil && m["event_type"] != nil {
			out = append(out, m)
		}
	}
	return out
}

func TestNewCommandContextRejectsInvalidConfig(t *testing.T) {
	cfg := loadConfig(t, "")
	cfg.StoreBackend = "sqlite"
	_, err := NewCommandContext(cfg)
	assert.ErrorIs(t, err, ErrStorePathRequired)

	cfg = loadConfig(t, "")
	cfg.LogLevel = "chatty"
	_, err = NewCommandContext(cfg)
	assert.Error(t, err)
}

func TestSealGetDelete(t *testing.T) {
	ctx, logs := newTestContext(t)
	c := context.Background()
	seed(t, ctx, "build-1", "org/foo/1.0/foo-1.0.jar", tracking.EffectDownload)

	dto, err := ctx.SealCommand(c, "build-1")
	require.NoError(t, err)
	assert.Len(t, dto.Downloads, 1)

	dto, err = ctx.GetCommand(c, "build-1", false)
	require.NoError(t, err)
	assert.Equal(t, tracking.TrackingKey("build-1"), dto.Key)

	_, err = ctx.GetCommand(c, "build-1", true)
	assert.ErrorIs(t, err, tracking.ErrNotFound)

	require.NoError(t, ctx.DeleteCommand(c, "build-1"))
	_, err = ctx.GetCommand(c, "build-1", false)
	assert.ErrorIs(t, err, tracking.ErrNotFound)

	events := auditEvents(t, logs)
	require.Len(t, events, 2)
	assert.Equal(t, "RECORD_SEALED", events[0]["event_type"])
	assert.Equal(t, "RECORD_DELETED", events[1]["event_type"])
	assert.Equal(t, "cli", events[0]["source"])
}

func TestIDsCommand(t *testing.T) {
	ctx, _ := newTestContext(t)
	c := context.Background()
	seed(t, ctx, "b", "x.jar", tracking.EffectUpload)
	seed(t, ctx, "a", "y.jar", tracking.EffectUpload)

	ids, err := ctx.IDsCommand(c, "sealed")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids.Sealed)

	_, err = ctx.IDsCommand(c, "in_progress")
	assert.ErrorIs(t, err, tracking.ErrUnsupported)

	_, err = ctx.IDsCommand(c, "bogus")
	assert.ErrorIs(t, err, tracking.ErrValidation)
}

func TestExportImport(t *testing.T) {
	src, _ := newTestContext(t)
	c := context.Background()
	seed(t, src, "build-1", "a.jar", tracking.EffectDownload)
	seed(t, src, "build-2", "b.jar", tracking.EffectUpload)

	location, n, err := src.ExportCommand(c, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, filepath.Join(src.Config.BaseDir, "folo", "folo-sealed.zip"), location)

	dst, logs := newTestContext(t)
	imported, err := dst.ImportCommand(c, location)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	dto, err := dst.GetCommand(c, "build-2", false)
	require.NoError(t, err)
	assert.Len(t, dto.Uploads, 1)

	events := auditEvents(t, logs)
	require.Len(t, events, 1)
	assert.Equal(t, "RECORDS_IMPORTED", events[0]["event_type"])

	_, err = dst.ImportCommand(c, filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)
}

func TestRecalculateCommand(t *testing.T) {
	content := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var transfers []tracking.ContentTransfer
		require.NoError(t, json.NewDecoder(r.Body).Decode(&transfers))
		entries := make([]tracking.TrackedContentEntry, 0, len(transfers))
		for _, tr := range transfers {
			entries = append(entries, tracking.TrackedContentEntry{
				TrackingKey: tr.TrackingKey, StoreKey: tr.StoreKey, AccessChannel: tr.AccessChannel,
				Path: tr.Path, Effect: tr.Effect, Size: 99, SHA256: "fresh",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	}))
	defer content.Close()

	cfg := loadConfig(t, "")
	cfg.ContentURL = content.URL
	ctx, err := NewCommandContext(cfg, WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer ctx.Close()
	seed(t, ctx, "build-1", "a.jar", tracking.EffectDownload)

	dto, err := ctx.RecalculateCommand(context.Background(), "build-1")
	require.NoError(t, err)
	require.Len(t, dto.Downloads, 1)
	assert.Equal(t, int64(99), dto.Downloads[0].Size)
	assert.Equal(t, "fresh", dto.Downloads[0].SHA256)
}

func TestRecalculateWithoutContentService(t *testing.T) {
	ctx, _ := newTestContext(t)
	seed(t, ctx, "build-1", "a.jar", tracking.EffectDownload)
	_, err := ctx.RecalculateCommand(context.Background(), "build-1")
	assert.ErrorIs(t, err, tracking.ErrUnsupported)
}
