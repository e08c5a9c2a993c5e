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

import (
	"context"
	"time"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/client"
	"github.com/jeremyhahn/go-tracking/pkg/events"
	"github.com/jeremyhahn/go-tracking/pkg/guard"
	"github.com/jeremyhahn/go-tracking/pkg/server/middleware"
	"github.com/jeremyhahn/go-tracking/pkg/server/rest"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
	"github.com/jeremyhahn/go-tracking/pkg/worker"
)

// drainTimeout bounds how long pending cleanup tasks may run after the
// server stops.
const drainTimeout = 30 * time.Second

// newDeleter assembles the guarded batch delete and its cleanup pool. The
// returned stop function drains the pool.
func (ctx *CommandContext) newDeleter() (*guard.Deleter, func(), error) {
	cfg := ctx.Config
	if cfg.MaintenanceURL != "" && cfg.DeletionGuardCheck && cfg.PromoteURL == "" {
		return nil, nil, ErrPromoteURLRequired
	}

	var promote guard.PromotionSource
	if cfg.PromoteURL != "" {
		pc, err := client.NewPromoteClient(cfg.clientConfig(cfg.PromoteURL))
		if err != nil {
			return nil, nil, err
		}
		promote = pc
	}

	var storage guard.FolderCleaner
	if cfg.StorageURL != "" {
		sc, err := client.NewStorageClient(cfg.clientConfig(cfg.StorageURL))
		if err != nil {
			return nil, nil, err
		}
		storage = sc
	}

	var maintenance guard.ContentRemover
	if cfg.MaintenanceURL != "" {
		mc, err := client.NewMaintenanceClient(cfg.clientConfig(cfg.MaintenanceURL))
		if err != nil {
			return nil, nil, err
		}
		maintenance = mc
	}

	pool := worker.New(worker.Config{
		Workers:   cfg.CleanupWorkers,
		QueueSize: cfg.CleanupQueueSize,
		Logger:    ctx.Logger.WithFields(adapters.F("component", "cleanup")),
	})
	pool.Start()
	stop := func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := pool.Shutdown(drainCtx); err != nil {
			ctx.Logger.Warn(drainCtx, "Cleanup pool did not drain", adapters.Err(err))
		}
	}

	g := guard.NewGuard(promote, cfg.DeletionGuardCheck, ctx.Logger, ctx.Metrics)
	cleaner := guard.NewCleaner(guard.CleanerConfig{
		Storage: storage,
		Pool:    pool,
		Enabled: cfg.CleanupEmptyFolders,
		Timeout: cfg.ServicesTimeout,
		Logger:  ctx.Logger,
		Metrics: ctx.Metrics,
	})
	return guard.NewDeleter(ctx.Service, g, maintenance, cleaner, ctx.Logger), stop, nil
}

// NewServer assembles the admin server: event ingestion, the guarded batch
// delete and the REST surface. The returned stop function drains the
// cleanup pool.
func (ctx *CommandContext) NewServer() (*rest.Server, func(), error) {
	cfg := ctx.Config
	deleter, stop, err := ctx.newDeleter()
	if err != nil {
		return nil, nil, err
	}

	handler, err := rest.NewHandler(rest.HandlerConfig{
		Service: ctx.Service,
		Deleter: deleter,
		Events:  events.NewListener(ctx.Service, cfg.TrackGroupContent, ctx.Logger),
		Logger:  ctx.Logger,
	})
	if err != nil {
		stop()
		return nil, nil, err
	}

	serverCfg := rest.DefaultServerConfig()
	serverCfg.Host = cfg.ServerHost
	serverCfg.Port = cfg.ServerPort
	serverCfg.Mode = cfg.ServerMode
	serverCfg.Logger = ctx.Logger
	serverCfg.AuditLogger = ctx.Audit
	serverCfg.EnableAudit = cfg.AuditEnabled
	serverCfg.EnableMetrics = cfg.MetricsEnabled
	if cfg.ServerRateLimit > 0 {
		serverCfg.EnableRateLimit = true
		serverCfg.RateLimitConfig = &middleware.RateLimitConfig{
			RequestsPerSecond: cfg.ServerRateLimit,
			Burst:             int(cfg.ServerRateLimit * 2),
			PerIP:             true,
		}
	}

	srv, err := rest.NewServer(handler, serverCfg)
	if err != nil {
		stop()
		return nil, nil, err
	}
	return srv, stop, nil
}

// ServeCommand runs the admin server until ctx is cancelled.
func (ctx *CommandContext) ServeCommand(c context.Context) error {
	srv, stop, err := ctx.NewServer()
	if err != nil {
		return err
	}
	defer stop()

	ctx.Logger.Info(c, "Tracking ledger ready",
		adapters.F("backend", ctx.Config.StoreBackend),
		adapters.F("guard", ctx.Config.DeletionGuardCheck),
		adapters.F("track_group_content", ctx.Config.TrackGroupContent))
	return srv.Run(c)
}

// BatchDeleteCommand removes tracked uploads of id from store through the
// maintenance service once the deletion guard allows it, then waits for the
// empty folder cleanup. Without paths every upload to store is removed.
func (ctx *CommandContext) BatchDeleteCommand(c context.Context, id, store string, paths []string) (client.BatchDeleteRequest, error) {
	key, err := tracking.ParseStoreKey(store)
	if err != nil {
		return client.BatchDeleteRequest{}, err
	}
	deleter, stop, err := ctx.newDeleter()
	if err != nil {
		return client.BatchDeleteRequest{}, err
	}
	done, err := deleter.Delete(c, client.BatchDeleteRequest{TrackingID: id, StoreKey: key, Paths: paths})
	stop()
	_ = ctx.Audit.LogBatchDelete(c, id, key.String(), auditSource, len(done.Paths), err) // #nosec G104 -- Audit logging errors are logged internally, should not block operations
	return done, err
}
