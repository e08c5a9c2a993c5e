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

import "errors"

var (
	// Configuration errors

	// ErrStorePathRequired is returned when the sqlite backend has no store.path.
	ErrStorePathRequired = errors.New("store.path is required for the sqlite backend")

	// ErrCassandraHostsRequired is returned when the cassandra backend has no hosts.
	ErrCassandraHostsRequired = errors.New("cassandra.hosts is required for the cassandra backend")

	// ErrUnsupportedBackend is returned when an unsupported backend is specified.
	ErrUnsupportedBackend = errors.New("unsupported backend")

	// ErrUnsupportedOutputFormat is returned when an unsupported output format is specified.
	ErrUnsupportedOutputFormat = errors.New("unsupported output format")

	// ErrPromoteURLRequired is returned when guarded batch deletes are enabled
	// without a promotion service to check against.
	ErrPromoteURLRequired = errors.New("services.promote-url is required when tracking.deletion-guard-check is enabled")

	// ErrInvalidPort is returned for a server port outside 1-65535.
	ErrInvalidPort = errors.New("server.port must be between 1 and 65535")
)
