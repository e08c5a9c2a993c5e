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
	"fmt"
	"io"
	"os"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/audit"
	"github.com/jeremyhahn/go-tracking/pkg/client"
	"github.com/jeremyhahn/go-tracking/pkg/factory"
	"github.com/jeremyhahn/go-tracking/pkg/ledger"
	"github.com/jeremyhahn/go-tracking/pkg/metrics"
	"github.com/jeremyhahn/go-tracking/pkg/service"
	"github.com/jeremyhahn/go-tracking/pkg/sink"
)

// auditSource tags audit events raised by commands.
const auditSource = "cli"

// CommandContext holds the context for executing commands.
type CommandContext struct {
	Service *service.Service
	Store   ledger.Store
	Config  *Config
	Logger  adapters.Logger
	Audit   audit.AuditLogger
	Metrics *metrics.Metrics
}

// Option customizes a CommandContext.
type Option func(*options)

type options struct {
	logOutput io.Writer
	metrics   *metrics.Metrics
}

// WithLogOutput sends logs and audit events to w (default stderr).
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithMetrics records ledger activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// NewCommandContext creates a new command context from the configuration.
func NewCommandContext(cfg *Config, opts ...Option) (*CommandContext, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	o := options{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	logger, err := adapters.NewLogger(adapters.Config{
		Backend: cfg.LogBackend,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
		Output:  o.logOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	auditLogger := audit.NewNoOpAuditLogger()
	if cfg.AuditEnabled {
		auditLogger = audit.NewAuditLogger(&audit.Config{
			Enabled: true,
			Format:  audit.OutputFormat(cfg.AuditFormat),
			Level:   adapters.InfoLevel,
			Output:  o.logOutput,
		})
	}

	store, err := factory.NewStore(cfg.StoreBackend, cfg.StoreSettings(), logger)
	if err != nil {
		return nil, err
	}

	svcCfg := service.Config{
		Store:          store,
		ContentBaseURL: cfg.ContentBaseURL,
		Logger:         logger,
		Metrics:        o.metrics,
	}
	if cfg.ContentURL != "" {
		content, err := client.NewContentClient(cfg.clientConfig(cfg.ContentURL))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		svcCfg.Content = content
	}

	return &CommandContext{
		Service: service.New(svcCfg),
		Store:   store,
		Config:  cfg,
		Logger:  logger,
		Audit:   auditLogger,
		Metrics: o.metrics,
	}, nil
}

func (c *Config) clientConfig(baseURL string) client.Config {
	return client.Config{
		BaseURL: baseURL,
		Timeout: c.ServicesTimeout,
		Retry:   &client.RetryConfig{},
	}
}

// Close releases the ledger store.
func (ctx *CommandContext) Close() error {
	return ctx.Store.Close()
}

// GetCommand returns the record of id. With legacy set only the legacy table
// is read; otherwise the current table is tried first.
func (ctx *CommandContext) GetCommand(c context.Context, id string, legacy bool) (*service.ContentDTO, error) {
	get := ctx.Service.Get
	if legacy {
		get = ctx.Service.GetLegacy
	}
	content, err := get(c, id)
	if err != nil {
		return nil, err
	}
	return ctx.Service.Render(c, content), nil
}

// SealCommand seals id.
func (ctx *CommandContext) SealCommand(c context.Context, id string) (*service.ContentDTO, error) {
	content, err := ctx.Service.Seal(c, id)
	count := 0
	if content != nil {
		count = len(content.Uploads) + len(content.Downloads)
	}
	_ = ctx.Audit.LogRecordMutation(c, audit.EventRecordSealed, id, auditSource, count, err) // #nosec G104 -- Audit logging errors are logged internally, should not block operations
	if err != nil {
		return nil, err
	}
	return ctx.Service.Render(c, content), nil
}

// DeleteCommand removes every record of id.
func (ctx *CommandContext) DeleteCommand(c context.Context, id string) error {
	err := ctx.Service.Delete(c, id)
	_ = ctx.Audit.LogRecordMutation(c, audit.EventRecordDeleted, id, auditSource, 0, err) // #nosec G104 -- Audit logging errors are logged internally, should not block operations
	return err
}

// IDsCommand lists tracking ids of the given kind.
func (ctx *CommandContext) IDsCommand(c context.Context, kind string) (service.TrackingIDs, error) {
	k, err := service.ParseIDKind(kind)
	if err != nil {
		return service.TrackingIDs{}, err
	}
	return ctx.Service.TrackingIDs(c, k)
}

// ExportCommand writes an archive of every record to dest and returns where
// it went and how many records it holds.
func (ctx *CommandContext) ExportCommand(c context.Context, dest string) (string, int, error) {
	location, n, err := ctx.export(c, dest)
	_ = ctx.Audit.LogRecordMutation(c, audit.EventRecordsExported, "", auditSource, n, err) // #nosec G104 -- Audit logging errors are logged internally, should not block operations
	return location, n, err
}

func (ctx *CommandContext) export(c context.Context, dest string) (string, int, error) {
	out, err := sink.Open(c, dest, sink.Options{
		BaseDir:     ctx.Config.BaseDir,
		S3Region:    ctx.Config.ExportS3Region,
		S3Endpoint:  ctx.Config.ExportS3Endpoint,
		S3AccessKey: ctx.Config.ExportS3AccessKey,
		S3SecretKey: ctx.Config.ExportS3SecretKey,
	})
	if err != nil {
		return "", 0, err
	}

	data, n, err := ctx.Service.ExportBytes(c)
	if err != nil {
		return "", 0, err
	}
	location, err := out.Write(c, data)
	if err != nil {
		return "", 0, err
	}
	return location, n, nil
}

// ImportCommand replaces ledger records with those in the archive at path.
// A path of "-" reads standard input.
func (ctx *CommandContext) ImportCommand(c context.Context, path string) (int, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) // #nosec G304 -- User-provided path for CLI file operations, intended behavior
	}
	if err != nil {
		return 0, fmt.Errorf("read archive: %w", err)
	}

	n, err := ctx.Service.ImportAll(c, data)
	_ = ctx.Audit.LogRecordMutation(c, audit.EventRecordsImported, "", auditSource, n, err) // #nosec G104 -- Audit logging errors are logged internally, should not block operations
	return n, err
}

// RecalculateCommand re-derives the entries of id through the content
// service.
func (ctx *CommandContext) RecalculateCommand(c context.Context, id string) (*service.ContentDTO, error) {
	content, err := ctx.Service.Recalculate(c, id)
	count := 0
	if content != nil {
		count = len(content.Uploads) + len(content.Downloads)
	}
	_ = ctx.Audit.LogRecordMutation(c, audit.EventRecordRecalculated, id, auditSource, count, err) // #nosec G104 -- Audit logging errors are logged internally, should not block operations
	if err != nil {
		return nil, err
	}
	return ctx.Service.Render(c, content), nil
}
