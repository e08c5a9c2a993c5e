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

//go:build !nosqlite

package factory

import (
	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/ledger"
	"github.com/jeremyhahn/go-tracking/pkg/sqlite"
)

func init() {
	RegisterStore("sqlite", func(settings map[string]string, logger adapters.Logger) (ledger.Store, error) {
		return configured(sqlite.New(logger), settings)
	})
}
