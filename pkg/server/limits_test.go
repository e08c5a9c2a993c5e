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


package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimits(t *testing.T) {
	assert.Equal(t, 512*1024*1024, MaxRequestSize)
	assert.Greater(t, MaxBatchDeletePaths, 0)
	assert.Less(t, ReadTimeout, WriteTimeout)
	assert.Less(t, ShutdownTimeout, IdleTimeout)
}
