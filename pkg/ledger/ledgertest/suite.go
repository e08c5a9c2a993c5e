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

// Package ledgertest provides a conformance suite shared by every ledger
// backend.
package ledgertest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tracking/pkg/ledger"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// Factory returns a fresh, configured store whose legacy table holds the
// given rows. The suite closes the store when the test ends.
type Factory func(t *testing.T, legacy []ledger.Record) ledger.Store

var (
	hosted  = tracking.NewStoreKey("maven", tracking.StoreTypeHosted, "builds")
	central = tracking.NewStoreKey("maven", tracking.StoreTypeRemote, "central")
)

// Entry returns a valid entry for the suite's fixtures.
func Entry(key tracking.TrackingKey, store tracking.StoreKey, path string, effect tracking.StoreEffect) tracking.TrackedContentEntry {
	return tracking.TrackedContentEntry{
		TrackingKey:   key,
		StoreKey:      store,
		AccessChannel: tracking.AccessChannelNative,
		OriginURL:     "http://repo.example.com/" + path,
		Path:          path,
		Effect:        effect,
		Size:          42,
		MD5:           "d41d8cd98f00b204e9800998ecf8427e",
		SHA1:          "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		SHA256:        "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	}
}

// Option adjusts the suite to a backend's documented guarantees.
type Option func(*options)

type options struct {
	sealRaceAccepted bool
}

// SealRaceAccepted skips the concurrent Put and Seal case for stores whose
// Seal may miss records written while it runs.
func SealRaceAccepted() Option {
	return func(o *options) { o.sealRaceAccepted = true }
}

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory, opts ...Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	open := func(t *testing.T, legacy ...ledger.Record) ledger.Store {
		t.Helper()
		s := newStore(t, legacy)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("PutThenGet", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		up := Entry("k1", hosted, "org/foo/1.0/foo-1.0.jar", tracking.EffectUpload)
		down := Entry("k1", central, "org/bar/2.0/bar-2.0.pom", tracking.EffectDownload)
		mustRecord(t, s, up)
		mustRecord(t, s, down)

		content, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		require.Len(t, content.Uploads, 1)
		require.Len(t, content.Downloads, 1)
		assertSameEntry(t, up, content.Uploads[0])
		assertSameEntry(t, down, content.Downloads[0])
	})

	t.Run("GetUnknownIsNotFound", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, tracking.ErrNotFound)
	})

	t.Run("OverwriteAccumulatesTimestamps", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		first := Entry("k1", central, "a.jar", tracking.EffectDownload)
		first.Timestamps = []int64{1000}
		second := first
		second.Size = 99
		second.SHA1 = "changed"
		second.Timestamps = []int64{2000}
		mustRecord(t, s, first)
		mustRecord(t, s, second)

		content, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		require.Len(t, content.Downloads, 1)
		got := content.Downloads[0]
		assert.Equal(t, int64(99), got.Size)
		assert.Equal(t, "changed", got.SHA1)
		assert.Contains(t, got.Timestamps, int64(1000))
		assert.Contains(t, got.Timestamps, int64(2000))
	})

	t.Run("SameArtifactBothEffects", func(t *testing.T) {
		s := open(t)
		mustRecord(t, s, Entry("k1", hosted, "x.jar", tracking.EffectUpload))
		mustRecord(t, s, Entry("k1", hosted, "x.jar", tracking.EffectDownload))

		content, err := s.Get(context.Background(), "k1")
		require.NoError(t, err)
		assert.Len(t, content.Uploads, 1)
		assert.Len(t, content.Downloads, 1)
	})

	t.Run("SealRejectsFurtherPuts", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		e := Entry("k1", central, "a.jar", tracking.EffectDownload)
		mustRecord(t, s, e)

		sealed, err := s.Seal(ctx, "k1")
		require.NoError(t, err)
		require.Len(t, sealed.Downloads, 1)

		outcome, err := s.Put(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, ledger.AlreadySealed, outcome)

		// a natural key the session has not seen yet is refused as well
		outcome, err = s.Put(ctx, Entry("k1", central, "new.jar", tracking.EffectDownload))
		require.NoError(t, err)
		assert.Equal(t, ledger.AlreadySealed, outcome)

		content, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Len(t, content.Downloads, 1)
	})

	t.Run("SealIsIdempotent", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		mustRecord(t, s, Entry("k1", central, "a.jar", tracking.EffectDownload))
		mustRecord(t, s, Entry("k1", hosted, "b.jar", tracking.EffectUpload))

		first, err := s.Seal(ctx, "k1")
		require.NoError(t, err)
		second, err := s.Seal(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("SealUnknownKeyIsEmpty", func(t *testing.T) {
		s := open(t)
		content, err := s.Seal(context.Background(), "never-seen")
		require.NoError(t, err)
		assert.Equal(t, tracking.TrackingKey("never-seen"), content.Key)
		assert.True(t, content.IsEmpty())
	})

	t.Run("SealDoesNotTouchOtherKeys", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		mustRecord(t, s, Entry("k1", central, "a.jar", tracking.EffectDownload))
		mustRecord(t, s, Entry("k2", central, "a.jar", tracking.EffectDownload))

		_, err := s.Seal(ctx, "k1")
		require.NoError(t, err)

		outcome, err := s.Put(ctx, Entry("k2", central, "b.jar", tracking.EffectDownload))
		require.NoError(t, err)
		assert.Equal(t, ledger.Recorded, outcome)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		mustRecord(t, s, Entry("k1", central, "a.jar", tracking.EffectDownload))

		require.NoError(t, s.Delete(ctx, "k1"))
		require.NoError(t, s.Delete(ctx, "k1"))
		require.NoError(t, s.Delete(ctx, "never-seen"))

		_, err := s.Get(ctx, "k1")
		assert.ErrorIs(t, err, tracking.ErrNotFound)
	})

	t.Run("DeleteThenPutStartsFresh", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		mustRecord(t, s, Entry("k1", central, "a.jar", tracking.EffectDownload))
		_, err := s.Seal(ctx, "k1")
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, "k1"))

		mustRecord(t, s, Entry("k1", central, "b.jar", tracking.EffectDownload))
		content, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		require.Len(t, content.Downloads, 1)
		assert.Equal(t, "b.jar", content.Downloads[0].Path)
	})

	t.Run("SealedKeysListsEveryKey", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		mustRecord(t, s, Entry("k1", central, "a.jar", tracking.EffectDownload))
		mustRecord(t, s, Entry("k1", central, "b.jar", tracking.EffectDownload))
		mustRecord(t, s, Entry("k2", hosted, "a.jar", tracking.EffectUpload))
		_, err := s.Seal(ctx, "k1")
		require.NoError(t, err)

		keys, err := s.SealedKeys(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []tracking.TrackingKey{"k1", "k2"}, keys)
	})

	t.Run("LegacyIsSeparate", func(t *testing.T) {
		legacy := ledger.FromSealedEntry(Entry("old", central, "legacy.jar", tracking.EffectDownload), time.UnixMilli(10))
		s := open(t, legacy)
		ctx := context.Background()

		content, err := s.GetLegacy(ctx, "old")
		require.NoError(t, err)
		require.Len(t, content.Downloads, 1)
		assert.Equal(t, "legacy.jar", content.Downloads[0].Path)

		_, err = s.Get(ctx, "old")
		assert.ErrorIs(t, err, tracking.ErrNotFound)

		_, err = s.GetLegacy(ctx, "missing")
		assert.ErrorIs(t, err, tracking.ErrNotFound)

		keys, err := s.LegacyKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []tracking.TrackingKey{"old"}, keys)

		current, err := s.SealedKeys(ctx)
		require.NoError(t, err)
		assert.Empty(t, current)

		require.NoError(t, s.Delete(ctx, "old"))
		_, err = s.GetLegacy(ctx, "old")
		assert.NoError(t, err)
	})

	t.Run("ReplaceWritesSealedRecords", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		mustRecord(t, s, Entry("k1", central, "a.jar", tracking.EffectDownload))
		_, err := s.Seal(ctx, "k1")
		require.NoError(t, err)

		replacement := Entry("k1", central, "a.jar", tracking.EffectDownload)
		replacement.SHA256 = "recomputed"
		replacement.Timestamps = []int64{7}
		added := Entry("k1", hosted, "b.jar", tracking.EffectUpload)
		added.Timestamps = []int64{8}

		content := tracking.NewTrackedContent("k1")
		content.Downloads = append(content.Downloads, replacement)
		content.Uploads = append(content.Uploads, added)
		require.NoError(t, s.Replace(ctx, content))

		got, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		require.Len(t, got.Downloads, 1)
		require.Len(t, got.Uploads, 1)
		assert.Equal(t, "recomputed", got.Downloads[0].SHA256)
		assert.Equal(t, "b.jar", got.Uploads[0].Path)

		outcome, err := s.Put(ctx, Entry("k1", hosted, "b.jar", tracking.EffectUpload))
		require.NoError(t, err)
		assert.Equal(t, ledger.AlreadySealed, outcome)
	})

	t.Run("ImportIntoEmptyLedger", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		content := tracking.NewTrackedContent("imported")
		e := Entry("imported", central, "a.jar", tracking.EffectDownload)
		e.Timestamps = []int64{1}
		content.Downloads = append(content.Downloads, e)
		require.NoError(t, s.Replace(ctx, content))

		outcome, err := s.Put(ctx, Entry("imported", central, "b.jar", tracking.EffectDownload))
		require.NoError(t, err)
		assert.Equal(t, ledger.AlreadySealed, outcome)
	})

	t.Run("ConcurrentPuts", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		paths := []string{"a.jar", "b.jar", "c.jar", "d.jar", "e.jar", "f.jar", "g.jar", "h.jar"}

		var wg sync.WaitGroup
		for _, p := range paths {
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				_, err := s.Put(ctx, Entry("k1", central, path, tracking.EffectDownload))
				assert.NoError(t, err)
			}(p)
		}
		wg.Wait()

		content, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Len(t, content.Downloads, len(paths))
	})

	t.Run("PutRacingSeal", func(t *testing.T) {
		if o.sealRaceAccepted {
			t.Skip("store does not serialize Put against Seal")
		}
		s := open(t)
		ctx := context.Background()
		existing := []string{"existing-0.jar", "existing-1.jar", "existing-2.jar"}
		for _, p := range existing {
			mustRecord(t, s, Entry("race", central, p, tracking.EffectDownload))
		}

		var (
			mu       sync.Mutex
			recorded = map[string]bool{}
			wg       sync.WaitGroup
			start    = make(chan struct{})
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				for j := 0; j < 6; j++ {
					path := fmt.Sprintf("new-%d-%d.jar", i, j)
					if j%2 == 0 {
						path = existing[(i+j)%len(existing)]
					}
					outcome, err := s.Put(ctx, Entry("race", central, path, tracking.EffectDownload))
					if !assert.NoError(t, err) {
						continue
					}
					assert.Contains(t, []ledger.PutOutcome{ledger.Recorded, ledger.AlreadySealed}, outcome)
					if outcome == ledger.Recorded {
						mu.Lock()
						recorded[path] = true
						mu.Unlock()
					}
				}
			}(i)
		}

		sealed := make(chan *tracking.TrackedContent, 1)
		go func() {
			<-start
			content, err := s.Seal(ctx, "race")
			assert.NoError(t, err)
			sealed <- content
		}()
		close(start)

		atSeal := <-sealed
		require.NotNil(t, atSeal)
		outcome, err := s.Put(ctx, Entry("race", central, "late.jar", tracking.EffectDownload))
		require.NoError(t, err)
		assert.Equal(t, ledger.AlreadySealed, outcome)
		wg.Wait()

		sealedPaths := map[string]bool{}
		for _, e := range atSeal.Downloads {
			sealedPaths[e.Path] = true
		}
		for p := range recorded {
			assert.True(t, sealedPaths[p], "recorded %s escaped the seal", p)
		}
		for _, p := range existing {
			assert.True(t, sealedPaths[p], "existing %s not sealed", p)
		}

		after, err := s.Get(ctx, "race")
		require.NoError(t, err)
		assert.Len(t, after.Downloads, len(atSeal.Downloads))
	})
}

func mustRecord(t *testing.T, s ledger.Store, e tracking.TrackedContentEntry) {
	t.Helper()
	outcome, err := s.Put(context.Background(), e)
	require.NoError(t, err)
	require.Equal(t, ledger.Recorded, outcome)
}

func assertSameEntry(t *testing.T, want, got tracking.TrackedContentEntry) {
	t.Helper()
	assert.Equal(t, want.TrackingKey, got.TrackingKey)
	assert.Equal(t, want.StoreKey, got.StoreKey)
	assert.Equal(t, want.AccessChannel, got.AccessChannel)
	assert.Equal(t, want.OriginURL, got.OriginURL)
	assert.Equal(t, want.Path, got.Path)
	assert.Equal(t, want.Effect, got.Effect)
	assert.Equal(t, want.Size, got.Size)
	assert.Equal(t, want.MD5, got.MD5)
	assert.Equal(t, want.SHA1, got.SHA1)
	assert.Equal(t, want.SHA256, got.SHA256)
	assert.NotEmpty(t, got.Timestamps)
}
