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


//go:build integration

package cassandra

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tracking/pkg/factory"
	"github.com/jeremyhahn/go-tracking/pkg/ledger"
	"github.com/jeremyhahn/go-tracking/pkg/ledger/ledgertest"
)

var keyspaceSeq atomic.Int64

func cassandraHosts() string {
	if hosts := os.Getenv("FOLO_TEST_CASSANDRA_HOSTS"); hosts != "" {
		return hosts
	}
	return "cassandra"
}

// seedLegacy writes legacy rows with a plain gocql session, as the previous
// release left them.
func seedLegacy(t *testing.T, keyspace string, rows []ledger.Record) {
	t.Helper()
	if len(rows) == 0 {
		return
	}
	cluster := gocql.NewCluster(strings.Split(cassandraHosts(), ",")...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.One
	cluster.Timeout = 10 * time.Second
	session, err := cluster.CreateSession()
	require.NoError(t, err)
	defer session.Close()

	stmt := fmt.Sprintf(`INSERT INTO %s.%s (tracking_key, sealed, store_key, access_channel, path, origin_url,
		local_url, store_effect, md5, sha256, sha1, size, started, timestamps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, keyspace, ledger.LegacyTable)
	for _, r := range rows {
		err := session.Query(stmt, r.TrackingKey, r.Sealed, r.StoreKey, r.AccessChannel, r.Path, r.OriginURL,
			r.LocalURL, r.StoreEffect, r.MD5, r.SHA256, r.SHA1, r.Size, r.Started, r.Timestamps).
			WithContext(context.Background()).Exec()
		require.NoError(t, err)
	}
}

func TestCassandraConformance(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T, legacy []ledger.Record) ledger.Store {
		keyspace := fmt.Sprintf("folo_it_%d_%d", time.Now().Unix(), keyspaceSeq.Add(1))
		store, err := factory.NewStore("cassandra", map[string]string{
			"hosts":       cassandraHosts(),
			"keyspace":    keyspace,
			"replicas":    "1",
			"consistency": "ONE",
			"timeout":     "20s",
		}, nil)
		require.NoError(t, err)
		seedLegacy(t, keyspace, legacy)
		return store
	}, ledgertest.SealRaceAccepted())
}
