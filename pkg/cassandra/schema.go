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

package cassandra

import (
	"fmt"

	"github.com/jeremyhahn/go-tracking/pkg/ledger"
)

func schemaStatements(keyspace string, replicas int) []string {
	stmts := []string{
		fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}`,
			keyspace, replicas),
	}
	for _, table := range []string{ledger.CurrentTable, ledger.LegacyTable} {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			tracking_key text,
			sealed boolean,
			store_key text,
			access_channel text,
			path text,
			origin_url text,
			local_url text,
			store_effect text,
			md5 text,
			sha256 text,
			sha1 text,
			size bigint,
			started bigint,
			timestamps set<bigint>,
			PRIMARY KEY ((tracking_key), store_key, path, store_effect)
		)`, keyspace, table))
	}
	return stmts
}

// statements holds the CQL used by the store, qualified with the keyspace.
type statements struct {
	selectRecord  string
	selectByKey   string
	selectLegacy  string
	selectSealed  string
	selectKeys    string
	selectLegKeys string
	upsert        string
	sealRecord    string
	deleteByKey   string
}

func newStatements(keyspace string) statements {
	current := keyspace + "." + ledger.CurrentTable
	legacy := keyspace + "." + ledger.LegacyTable
	const cols = `tracking_key, sealed, store_key, access_channel, path, origin_url, local_url, store_effect, md5, sha256, sha1, size, started, timestamps`
	return statements{
		selectRecord: `SELECT ` + cols + ` FROM ` + current +
			` WHERE tracking_key = ? AND store_key = ? AND path = ? AND store_effect = ?`,
		selectByKey:   `SELECT ` + cols + ` FROM ` + current + ` WHERE tracking_key = ?`,
		selectLegacy:  `SELECT ` + cols + ` FROM ` + legacy + ` WHERE tracking_key = ?`,
		selectSealed:  `SELECT sealed FROM ` + current + ` WHERE tracking_key = ? AND sealed = true LIMIT 1 ALLOW FILTERING`,
		selectKeys:    `SELECT DISTINCT tracking_key FROM ` + current,
		selectLegKeys: `SELECT DISTINCT tracking_key FROM ` + legacy,
		upsert: `UPDATE ` + current + ` SET sealed = ?, access_channel = ?, origin_url = ?, local_url = ?,` +
			` md5 = ?, sha256 = ?, sha1 = ?, size = ?, started = ?, timestamps = timestamps + ?` +
			` WHERE tracking_key = ? AND store_key = ? AND path = ? AND store_effect = ?`,
		sealRecord: `UPDATE ` + current + ` SET sealed = true` +
			` WHERE tracking_key = ? AND store_key = ? AND path = ? AND store_effect = ?`,
		deleteByKey: `DELETE FROM ` + current + ` WHERE tracking_key = ?`,
	}
}
