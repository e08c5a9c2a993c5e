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

package guard

import (
	"context"
	"sort"
	"time"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/client"
	"github.com/jeremyhahn/go-tracking/pkg/metrics"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
	"github.com/jeremyhahn/go-tracking/pkg/worker"
)

const defaultCleanupTimeout = time.Minute

// FolderCleaner removes empty folders from a filesystem.
type FolderCleaner interface {
	CleanupEmptyFolders(ctx context.Context, req client.StorageBatchDeleteRequest) error
}

// Submitter queues background work without blocking.
type Submitter interface {
	TrySubmit(task worker.Task) error
}

// Cleaner removes the folders left empty by a batch delete. Cleanup runs in
// the background and its failures are only logged.
type Cleaner struct {
	storage FolderCleaner
	pool    Submitter
	enabled bool
	timeout time.Duration
	logger  adapters.Logger
	metrics *metrics.Metrics
}

// CleanerConfig configures a Cleaner.
type CleanerConfig struct {
	Storage FolderCleaner
	Pool    Submitter
	Enabled bool
	// Timeout bounds each cleanup call (default 1m).
	Timeout time.Duration
	Logger  adapters.Logger
	Metrics *metrics.Metrics
}

// NewCleaner creates a Cleaner. It is disabled when no storage client or
// pool is given.
func NewCleaner(cfg CleanerConfig) *Cleaner {
	if cfg.Logger == nil {
		cfg.Logger = adapters.NewNoOpLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCleanupTimeout
	}
	return &Cleaner{
		storage: cfg.Storage,
		pool:    cfg.Pool,
		enabled: cfg.Enabled && cfg.Storage != nil && cfg.Pool != nil,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// ParentFolders returns the distinct immediate parents of paths, sorted.
// Paths at the root have no parent and are skipped.
func ParentFolders(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if folder, ok := tracking.ParentFolder(p); ok {
			seen[folder] = struct{}{}
		}
	}
	folders := make([]string, 0, len(seen))
	for f := range seen {
		folders = append(folders, f)
	}
	sort.Strings(folders)
	return folders
}

// Cleanup queues removal of the parent folders of paths in filesystem. It
// never blocks: when the pool queue is full the cleanup is dropped.
func (c *Cleaner) Cleanup(ctx context.Context, trackingID, filesystem string, paths []string) {
	if !c.enabled {
		return
	}
	folders := ParentFolders(paths)
	if len(folders) == 0 {
		c.logger.Debug(ctx, "No folders to clean up", adapters.F("tracking_id", trackingID))
		return
	}

	req := client.StorageBatchDeleteRequest{
		InternalID: trackingID,
		Filesystem: filesystem,
		Paths:      folders,
	}
	err := c.pool.TrySubmit(worker.Task{
		Name: "cleanup-empty-folders",
		Run: func(ctx context.Context) error {
			return c.run(ctx, req)
		},
	})
	if err != nil {
		c.metrics.RecordCleanupDropped()
		c.logger.Warn(ctx, "Cleanup of empty folders not scheduled",
			adapters.F("tracking_id", trackingID), adapters.Err(err))
	}
}

func (c *Cleaner) run(ctx context.Context, req client.StorageBatchDeleteRequest) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.storage.CleanupEmptyFolders(ctx, req)
	c.metrics.RecordCleanup(err)
	if err != nil {
		c.logger.Warn(ctx, "Failed to clean up empty folders",
			adapters.F("tracking_id", req.InternalID),
			adapters.F("filesystem", req.Filesystem),
			adapters.F("folders", len(req.Paths)),
			adapters.Err(err))
		return nil
	}
	c.logger.Info(ctx, "Cleaned up empty folders",
		adapters.F("tracking_id", req.InternalID),
		adapters.F("filesystem", req.Filesystem),
		adapters.F("folders", len(req.Paths)))
	return nil
}
