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
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tracking/pkg/ledger"
	"github.com/jeremyhahn/go-tracking/pkg/memory"
	"github.com/jeremyhahn/go-tracking/pkg/metrics"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

var (
	remoteStore = tracking.NewStoreKey("maven", tracking.StoreTypeRemote, "store_key_1")
	hostedStore = tracking.NewStoreKey("maven", tracking.StoreTypeHosted, "builds")
)

type fakeContent struct {
	mu       sync.Mutex
	calls    int
	failOn   int
	size     int64
	zipBody  string
	received []*tracking.TrackedContent
	// rewrite, when set, alters every recalculated entry.
	rewrite func(*tracking.TrackedContentEntry)
}

func (f *fakeContent) Recalculate(_ context.Context, transfers []tracking.ContentTransfer) ([]tracking.TrackedContentEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn == f.calls {
		return nil, tracking.NewCollaboratorError("content", 500, "boom", nil)
	}
	out := make([]tracking.TrackedContentEntry, 0, len(transfers))
	for _, tr := range transfers {
		out = append(out, tracking.TrackedContentEntry{
			TrackingKey:   tr.TrackingKey,
			StoreKey:      tr.StoreKey,
			AccessChannel: tr.AccessChannel,
			Path:          tr.Path,
			OriginURL:     tr.OriginURL,
			Effect:        tr.Effect,
			Size:          f.size,
			MD5:           "recalculated",
		})
		if f.rewrite != nil {
			f.rewrite(&out[len(out)-1])
		}
	}
	return out, nil
}

func (f *fakeContent) RepositoryZip(_ context.Context, content *tracking.TrackedContent) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, content)
	return io.NopCloser(strings.NewReader(f.zipBody)), nil
}

func newService(t *testing.T, content ContentService) (*Service, *memory.Memory) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Configure(nil))
	return New(Config{Store: store, Content: content}), store
}

func entry(id string, store tracking.StoreKey, path string, effect tracking.StoreEffect) tracking.TrackedContentEntry {
	return tracking.TrackedContentEntry{
		TrackingKey:   tracking.TrackingKey(id),
		StoreKey:      store,
		AccessChannel: tracking.AccessChannelNative,
		Path:          path,
		Effect:        effect,
		Size:          1024,
		MD5:           "md5",
		SHA1:          "sha1",
		SHA256:        "sha256",
	}
}

func TestRecordThenGet(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	ok := svc.RecordArtifact(ctx, entry("abc123", remoteStore, "/path/to/file", tracking.EffectDownload))
	require.True(t, ok)

	content, err := svc.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Empty(t, content.Uploads)
	require.Len(t, content.Downloads, 1)

	got := content.Downloads[0]
	assert.Equal(t, remoteStore, got.StoreKey)
	assert.Equal(t, "/path/to/file", got.Path)
	assert.Equal(t, int64(1024), got.Size)
	assert.Equal(t, "md5", got.MD5)
	assert.Equal(t, "sha1", got.SHA1)
	assert.Equal(t, "sha256", got.SHA256)
	assert.Len(t, got.Timestamps, 1)
}

func TestRecordRejectsInvalidEntries(t *testing.T) {
	svc, _ := newService(t, nil)

	_, err := svc.Record(context.Background(), entry("", remoteStore, "/a", tracking.EffectDownload))
	assert.ErrorIs(t, err, tracking.ErrValidation)

	_, err = svc.Record(context.Background(), entry("k", tracking.StoreKey{}, "/a", tracking.EffectDownload))
	assert.ErrorIs(t, err, tracking.ErrValidation)

	assert.False(t, svc.RecordArtifact(context.Background(), entry("k", remoteStore, "/a", "MOVE")))
}

func TestRecordAfterSeal(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	e := entry("build-1", hostedStore, "/a.jar", tracking.EffectUpload)

	_, err := svc.Record(ctx, e)
	require.NoError(t, err)
	_, err = svc.Seal(ctx, "build-1")
	require.NoError(t, err)

	outcome, err := svc.Record(ctx, e)
	assert.ErrorIs(t, err, tracking.ErrAlreadySealed)
	assert.Equal(t, ledger.AlreadySealed, outcome)
	assert.False(t, svc.RecordArtifact(ctx, e))
}

func TestGetFallsBackToLegacy(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()
	store.LoadLegacy(ledger.Record{
		TrackingKey: "old-build",
		StoreKey:    "maven:remote:central",
		Path:        "/old.jar",
		StoreEffect: "DOWNLOAD",
		Sealed:      true,
		Timestamps:  []int64{5},
	})

	content, err := svc.Get(ctx, "old-build")
	require.NoError(t, err)
	require.Len(t, content.Downloads, 1)
	assert.Equal(t, tracking.AccessChannelNative, content.Downloads[0].AccessChannel)

	legacy, err := svc.GetLegacy(ctx, "old-build")
	require.NoError(t, err)
	assert.Equal(t, content, legacy)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, tracking.ErrNotFound)
}

func TestGetPrefersCurrentTable(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()
	store.LoadLegacy(ledger.Record{
		TrackingKey: "b", StoreKey: "maven:remote:central", Path: "/legacy", StoreEffect: "DOWNLOAD",
	})
	_, err := svc.Record(ctx, entry("b", remoteStore, "/current", tracking.EffectDownload))
	require.NoError(t, err)

	content, err := svc.Get(ctx, "b")
	require.NoError(t, err)
	require.Len(t, content.Downloads, 1)
	assert.Equal(t, "/current", content.Downloads[0].Path)
}

func TestSealUnknownAndDelete(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	content, err := svc.Seal(ctx, "nothing-yet")
	require.NoError(t, err)
	assert.True(t, content.IsEmpty())

	_, err = svc.Record(ctx, entry("gone", remoteStore, "/a", tracking.EffectDownload))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "gone"))
	require.NoError(t, svc.Delete(ctx, "gone"))

	_, err = svc.Get(ctx, "gone")
	assert.ErrorIs(t, err, tracking.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "../x"), tracking.ErrValidation)
}

func TestTrackingIDs(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()
	store.LoadLegacy(ledger.Record{TrackingKey: "legacy-1", StoreKey: "maven:remote:c", Path: "/a", StoreEffect: "DOWNLOAD"})
	for _, id := range []string{"b", "a"} {
		_, err := svc.Record(ctx, entry(id, remoteStore, "/a", tracking.EffectDownload))
		require.NoError(t, err)
	}

	ids, err := svc.TrackingIDs(ctx, IDsSealed)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids.Sealed)
	assert.Nil(t, ids.InProgress)

	ids, err = svc.TrackingIDs(ctx, IDsLegacy)
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy-1"}, ids.Sealed)

	for _, kind := range []IDKind{IDsInProgress, IDsAll} {
		_, err = svc.TrackingIDs(ctx, kind)
		assert.ErrorIs(t, err, tracking.ErrUnsupported, kind)
	}

	_, err = ParseIDKind("bogus")
	assert.ErrorIs(t, err, tracking.ErrValidation)
}

func TestExportImport(t *testing.T) {
	src, _ := newService(t, nil)
	ctx := context.Background()
	_, err := src.Record(ctx, entry("one", remoteStore, "/a", tracking.EffectDownload))
	require.NoError(t, err)
	_, err = src.Record(ctx, entry("two", hostedStore, "/b", tracking.EffectUpload))
	require.NoError(t, err)

	data, n, err := src.ExportBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := memory.New()
	require.NoError(t, store.Configure(nil))
	dst := New(Config{Store: store, Metrics: m})

	imported, err := dst.ImportAll(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Imported))

	want, err := src.Get(ctx, "two")
	require.NoError(t, err)
	got, err := dst.Get(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Imported records are sealed.
	_, err = dst.Record(ctx, entry("two", hostedStore, "/c", tracking.EffectUpload))
	assert.ErrorIs(t, err, tracking.ErrAlreadySealed)
}

func TestImportMalformedWritesNothing(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.ImportAll(ctx, []byte("not a zip"))
	require.Error(t, err)

	ids, err := svc.TrackingIDs(ctx, IDsSealed)
	require.NoError(t, err)
	assert.Empty(t, ids.Sealed)
}

func TestRecalculate(t *testing.T) {
	content := &fakeContent{size: 2048}
	svc, _ := newService(t, content)
	ctx := context.Background()
	_, err := svc.Record(ctx, entry("r", hostedStore, "/up.jar", tracking.EffectUpload))
	require.NoError(t, err)
	_, err = svc.Record(ctx, entry("r", remoteStore, "/down.jar", tracking.EffectDownload))
	require.NoError(t, err)
	before, err := svc.Get(ctx, "r")
	require.NoError(t, err)

	out, err := svc.Recalculate(ctx, "r")
	require.NoError(t, err)
	require.Len(t, out.Uploads, 1)
	require.Len(t, out.Downloads, 1)
	assert.Equal(t, int64(2048), out.Uploads[0].Size)
	assert.Equal(t, before.Uploads[0].Timestamps, out.Uploads[0].Timestamps)
	assert.Equal(t, 2, content.calls)

	stored, err := svc.Get(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "recalculated", stored.Downloads[0].MD5)
	assert.Equal(t, int64(2048), stored.Downloads[0].Size)
}

func TestRecalculatePartialFailureLeavesLedgerUnchanged(t *testing.T) {
	content := &fakeContent{size: 1, failOn: 2}
	svc, _ := newService(t, content)
	ctx := context.Background()
	_, err := svc.Record(ctx, entry("r", hostedStore, "/up.jar", tracking.EffectUpload))
	require.NoError(t, err)
	_, err = svc.Record(ctx, entry("r", remoteStore, "/down.jar", tracking.EffectDownload))
	require.NoError(t, err)
	before, err := svc.Get(ctx, "r")
	require.NoError(t, err)

	_, err = svc.Recalculate(ctx, "r")
	require.ErrorIs(t, err, tracking.ErrCollaborator)

	after, err := svc.Get(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Still unsealed, so further writes are accepted.
	_, err = svc.Record(ctx, entry("r", remoteStore, "/more.jar", tracking.EffectDownload))
	assert.NoError(t, err)
}

func TestRecalculateRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name    string
		rewrite func(*tracking.TrackedContentEntry)
	}{
		{"blank path", func(e *tracking.TrackedContentEntry) { e.Path = "" }},
		{"other session", func(e *tracking.TrackedContentEntry) { e.TrackingKey = "someone-else" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newService(t, &fakeContent{size: 9, rewrite: tt.rewrite})
			ctx := context.Background()
			_, err := svc.Record(ctx, entry("r", hostedStore, "/up.jar", tracking.EffectUpload))
			require.NoError(t, err)
			before, err := svc.Get(ctx, "r")
			require.NoError(t, err)

			_, err = svc.Recalculate(ctx, "r")
			require.ErrorIs(t, err, tracking.ErrCollaborator)
			assert.NotErrorIs(t, err, tracking.ErrValidation)

			after, err := svc.Get(ctx, "r")
			require.NoError(t, err)
			assert.Equal(t, before, after)
			_, err = store.Get(ctx, "someone-else")
			assert.ErrorIs(t, err, tracking.ErrNotFound)
		})
	}
}

func TestRecalculateErrors(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.Recalculate(context.Background(), "r")
	assert.ErrorIs(t, err, ErrNoContentService)
	assert.ErrorIs(t, err, tracking.ErrUnsupported)

	svc, _ = newService(t, &fakeContent{})
	_, err = svc.Recalculate(context.Background(), "missing")
	assert.ErrorIs(t, err, tracking.ErrNotFound)
}

func TestRepositoryZip(t *testing.T) {
	content := &fakeContent{zipBody: "PK"}
	svc, _ := newService(t, content)
	ctx := context.Background()
	_, err := svc.Record(ctx, entry("z", hostedStore, "/up.jar", tracking.EffectUpload))
	require.NoError(t, err)

	rc, err := svc.RepositoryZip(ctx, "z")
	require.NoError(t, err)
	defer rc.Close()
	var buf bytes.Buffer
	_, err = io.Copy(&buf, rc)
	require.NoError(t, err)
	assert.Equal(t, "PK", buf.String())
	require.Len(t, content.received, 1)
	assert.Equal(t, tracking.TrackingKey("z"), content.received[0].Key)

	_, err = svc.RepositoryZip(ctx, "missing")
	assert.True(t, errors.Is(err, tracking.ErrNotFound))
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := memory.New()
	require.NoError(t, store.Configure(nil))
	svc := New(Config{Store: store, Metrics: m})
	ctx := context.Background()
	e := entry("m", remoteStore, "/a", tracking.EffectDownload)

	_, err := svc.Record(ctx, e)
	require.NoError(t, err)
	_, err = svc.Seal(ctx, "m")
	require.NoError(t, err)
	_, _ = svc.Record(ctx, e)
	require.NoError(t, svc.Delete(ctx, "m"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues("DOWNLOAD", "recorded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Records.WithLabelValues("DOWNLOAD", "already_sealed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Seals))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deletes))
}
