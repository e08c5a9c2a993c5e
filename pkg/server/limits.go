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


// Package server holds limits shared by the admin API transports.
package server

import "time"

// Admin server limits.
const (
	// MaxRequestSize bounds request bodies. Imports carry a whole export
	// archive, so it is sized for those (512 MB).
	MaxRequestSize = 512 * 1024 * 1024

	// MaxBatchDeletePaths is the maximum number of paths in one batch delete.
	MaxBatchDeletePaths = 10000

	// ReadTimeout bounds reading a request, including an import upload.
	ReadTimeout = 60 * time.Second

	// WriteTimeout bounds writing a response, including a full export.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout is how long a keep-alive connection may sit idle.
	IdleTimeout = 120 * time.Second

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 15 * time.Second
)
