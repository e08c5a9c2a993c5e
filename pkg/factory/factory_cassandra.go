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

//go:build !nocassandra

package factory

import (
	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/cassandra"
	"github.com/jeremyhahn/go-tracking/pkg/ledger"
)

func init() {
	RegisterStore("cassandra", func(settings map[string]string, logger adapters.Logger) (ledger.Store, error) {
		return configured(cassandra.New(logger), settings)
	})
}
