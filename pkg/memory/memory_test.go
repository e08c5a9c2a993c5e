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

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tracking/pkg/ledger"
	"github.com/jeremyhahn/go-tracking/pkg/ledger/ledgertest"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

func TestMemoryConformance(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T, legacy []ledger.Record) ledger.Store {
		m := New()
		require.NoError(t, m.Configure(nil))
		m.LoadLegacy(legacy...)
		return m
	})
}

func TestMemoryStartedKeepsFirstWrite(t *testing.T) {
	m := New()
	clock := time.UnixMilli(1000)
	m.now = func() time.Time { return clock }
	ctx := context.Background()
	store := tracking.NewStoreKey("maven", tracking.StoreTypeRemote, "central")
	e := ledgertest.Entry("k1", store, "a.jar", tracking.EffectDownload)

	_, err := m.Put(ctx, e)
	require.NoError(t, err)
	clock = time.UnixMilli(5000)
	_, err = m.Put(ctx, e)
	require.NoError(t, err)

	rec := m.current["k1"][e.NaturalKey()]
	assert.Equal(t, int64(1000), rec.Started)
	assert.Equal(t, []int64{1000, 5000}, rec.Timestamps)
}

func TestMemoryCancelledContext(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Put(ctx, ledgertest.Entry("k1", tracking.NewStoreKey("maven", tracking.StoreTypeRemote, "c"), "a", tracking.EffectDownload))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.Get(ctx, "k1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.Delete(ctx, "k1"), context.Canceled)
}
