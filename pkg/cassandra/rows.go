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
	"sort"

	"github.com/jeremyhahn/go-tracking/pkg/ledger"
)

// decodeRecord converts a driver row map into a Record. Null columns read as
// zero values.
func decodeRecord(row map[string]any) (ledger.Record, error) {
	r := ledger.Record{
		TrackingKey:   text(row, "tracking_key"),
		StoreKey:      text(row, "store_key"),
		Path:          text(row, "path"),
		StoreEffect:   text(row, "store_effect"),
		AccessChannel: text(row, "access_channel"),
		OriginURL:     text(row, "origin_url"),
		LocalURL:      text(row, "local_url"),
		MD5:           text(row, "md5"),
		SHA1:          text(row, "sha1"),
		SHA256:        text(row, "sha256"),
	}
	if v, ok := row["sealed"].(bool); ok {
		r.Sealed = v
	}

	var err error
	if r.Size, err = bigint(row, "size"); err != nil {
		return r, err
	}
	if r.Started, err = bigint(row, "started"); err != nil {
		return r, err
	}

	switch ts := row["timestamps"].(type) {
	case nil:
	case []int64:
		r.Timestamps = append([]int64(nil), ts...)
	case map[int64]struct{}:
		for v := range ts {
			r.Timestamps = append(r.Timestamps, v)
		}
	default:
		return r, fmt.Errorf("column timestamps: unexpected type %T", ts)
	}
	sort.Slice(r.Timestamps, func(i, j int) bool { return r.Timestamps[i] < r.Timestamps[j] })
	return r, nil
}

func text(row map[string]any, col string) string {
	if v, ok := row[col].(string); ok {
		return v
	}
	return ""
}

func bigint(row map[string]any, col string) (int64, error) {
	switch v := row[col].(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("column %s: unexpected type %T", col, v)
	}
}
