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

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/ledger"
	"github.com/jeremyhahn/go-tracking/pkg/ledger/ledgertest"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s := New(adapters.NewNoOpLogger())
	require.NoError(t, s.Configure(map[string]string{
		"path": filepath.Join(t.TempDir(), "ledger.db"),
	}))
	return s
}

func TestSQLiteConformance(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T, legacy []ledger.Record) ledger.Store {
		s := openTestStore(t)
		for _, r := range legacy {
			require.NoError(t, insertRecord(context.Background(), s.db, ledger.LegacyTable, r))
		}
		return s
	})
}

func TestConfigureRequiresPath(t *testing.T) {
	err := New(nil).Configure(map[string]string{})
	assert.ErrorIs(t, err, ErrPathNotSet)
}

func TestConfigureIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()
	store := tracking.NewStoreKey("maven", tracking.StoreTypeRemote, "central")

	first := New(nil)
	require.NoError(t, first.Configure(map[string]string{"path": path}))
	_, err := first.Put(ctx, ledgertest.Entry("k1", store, "a.jar", tracking.EffectDownload))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := New(nil)
	require.NoError(t, second.Configure(map[string]string{"path": path}))
	defer second.Close()

	content, err := second.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Len(t, content.Downloads, 1)
}

func TestGetSkipsUnknownEffects(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()
	ctx := context.Background()
	store := tracking.NewStoreKey("maven", tracking.StoreTypeRemote, "central")

	_, err := s.Put(ctx, ledgertest.Entry("k1", store, "a.jar", tracking.EffectDownload))
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records2 (tracking_key, store_key, path, store_effect) VALUES ('k1', 'maven:remote:central', 'b.jar', 'NONE')`)
	require.NoError(t, err)

	content, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Len(t, content.Downloads, 1)
	assert.Empty(t, content.Uploads)
}

func TestGetFailsOnUnknownChannel(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records2 (tracking_key, store_key, path, store_effect, access_channel) VALUES ('k1', 'maven:remote:central', 'b.jar', 'DOWNLOAD', 'GOPHER')`)
	require.NoError(t, err)

	_, err = s.Get(ctx, "k1")
	assert.ErrorIs(t, err, tracking.ErrValidation)
}
