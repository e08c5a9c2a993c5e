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

// Package cassandra provides the production ledger store on Apache
// Cassandra. Every statement runs at the configured consistency (QUORUM by
// default) and transient session loss is retried once after reconnecting.
package cassandra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/ledger"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

var (
	// ErrHostsNotSet is returned when no contact points are configured.
	ErrHostsNotSet = errors.New("cassandra: hosts not set")

	// ErrInvalidKeyspace is returned for keyspace names that are not plain identifiers.
	ErrInvalidKeyspace = errors.New("cassandra: invalid keyspace name")

	keyspacePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,47}$`)
)

const (
	defaultPort     = 9042
	defaultKeyspace = "folo"
	defaultTimeout  = 10 * time.Second
)

type config struct {
	hosts       []string
	port        int
	user        string
	password    string
	keyspace    string
	replicas    int
	consistency gocql.Consistency
	timeout     time.Duration
}

func parseConfig(settings map[string]string) (config, error) {
	cfg := config{
		port:        defaultPort,
		keyspace:    defaultKeyspace,
		replicas:    1,
		consistency: gocql.Quorum,
		timeout:     defaultTimeout,
		user:        settings["user"],
		password:    settings["password"],
	}

	for _, h := range strings.Split(settings["hosts"], ",") {
		if h = strings.TrimSpace(h); h != "" {
			cfg.hosts = append(cfg.hosts, h)
		}
	}
	if len(cfg.hosts) == 0 {
		return cfg, ErrHostsNotSet
	}

	if v := settings["port"]; v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 {
			return cfg, fmt.Errorf("cassandra: invalid port %q", v)
		}
		cfg.port = p
	}
	if v := settings["keyspace"]; v != "" {
		cfg.keyspace = v
	}
	if !keyspacePattern.MatchString(cfg.keyspace) {
		return cfg, fmt.Errorf("%w: %q", ErrInvalidKeyspace, cfg.keyspace)
	}
	if v := settings["replicas"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("cassandra: invalid replicas %q", v)
		}
		cfg.replicas = n
	}
	if v := settings["consistency"]; v != "" {
		c, err := gocql.ParseConsistencyWrapper(v)
		if err != nil {
			return cfg, fmt.Errorf("cassandra: %w", err)
		}
		cfg.consistency = c
	}
	if v := settings["timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("cassandra: invalid timeout %q: %w", v, err)
		}
		cfg.timeout = d
	}
	return cfg, nil
}

// Cassandra is a ledger store on a Cassandra cluster.
type Cassandra struct {
	conn   *connector
	stmts  statements
	logger adapters.Logger
	now    func() time.Time
}

// New creates an unconfigured Cassandra store.
func New(logger adapters.Logger) *Cassandra {
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	return &Cassandra{logger: logger, now: time.Now}
}

// Configure reads hosts, port, user, password, keyspace, replicas,
// consistency and timeout, then opens the first session.
func (c *Cassandra) Configure(settings map[string]string) error {
	cfg, err := parseConfig(settings)
	if err != nil {
		return err
	}
	c.stmts = newStatements(cfg.keyspace)
	c.conn = newConnector(clusterDialer(cfg), c.logger)

	if _, _, err := c.conn.acquire(); err != nil {
		return fmt.Errorf("%w: %v", tracking.ErrTransportUnavailable, err)
	}
	c.logger.Info(context.Background(), "connected to cassandra",
		adapters.F("hosts", strings.Join(cfg.hosts, ",")),
		adapters.F("keyspace", cfg.keyspace),
		adapters.F("consistency", cfg.consistency.String()))
	return nil
}

// Put records an entry unless its session holds sealed records.
func (c *Cassandra) Put(ctx context.Context, entry tracking.TrackedContentEntry) (ledger.PutOutcome, error) {
	next := ledger.FromEntry(entry, c.now())
	outcome := ledger.Recorded

	err := c.conn.do(ctx, "put", func(s session) error {
		sealed, err := s.Query(ctx, c.stmts.selectSealed, next.TrackingKey)
		if err != nil {
			return err
		}
		if len(sealed) > 0 {
			outcome = ledger.AlreadySealed
			return nil
		}

		existing, err := c.selectOne(ctx, s, next)
		if err != nil {
			return err
		}
		if existing != nil && existing.Sealed {
			outcome = ledger.AlreadySealed
			return nil
		}
		outcome = ledger.Recorded
		return c.write(ctx, s, ledger.Merge(existing, next))
	})
	return outcome, err
}

// Get aggregates the current records of key.
func (c *Cassandra) Get(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	return c.get(ctx, c.stmts.selectByKey, key)
}

// GetLegacy aggregates the legacy records of key.
func (c *Cassandra) GetLegacy(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	return c.get(ctx, c.stmts.selectLegacy, key)
}

func (c *Cassandra) get(ctx context.Context, stmt string, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	var records []ledger.Record
	err := c.conn.do(ctx, "get", func(s session) error {
		var err error
		records, err = c.selectRecords(ctx, s, stmt, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, tracking.ErrNotFound
	}
	return c.aggregate(ctx, key, records)
}

// Seal marks every record of key sealed. Seal reads the partition and then
// updates each row, with no lock or lightweight transaction around the pair,
// so a Put that passes its sealed check before the update lands can leave an
// unsealed record behind. Later Puts see the sealed rows and are refused.
func (c *Cassandra) Seal(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	var records []ledger.Record
	err := c.conn.do(ctx, "seal", func(s session) error {
		var err error
		records, err = c.selectRecords(ctx, s, c.stmts.selectByKey, key)
		if err != nil {
			return err
		}
		for i, r := range records {
			if r.Sealed {
				continue
			}
			if err := s.Exec(ctx, c.stmts.sealRecord, r.TrackingKey, r.StoreKey, r.Path, r.StoreEffect); err != nil {
				return err
			}
			records[i].Sealed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.aggregate(ctx, key, records)
}

// Delete removes the current partition of key.
func (c *Cassandra) Delete(ctx context.Context, key tracking.TrackingKey) error {
	return c.conn.do(ctx, "delete", func(s session) error {
		return s.Exec(ctx, c.stmts.deleteByKey, key.ID())
	})
}

// SealedKeys lists the tracking keys of the current table.
func (c *Cassandra) SealedKeys(ctx context.Context) ([]tracking.TrackingKey, error) {
	return c.keys(ctx, c.stmts.selectKeys)
}

// LegacyKeys lists the tracking keys of the legacy table.
func (c *Cassandra) LegacyKeys(ctx context.Context) ([]tracking.TrackingKey, error) {
	return c.keys(ctx, c.stmts.selectLegKeys)
}

func (c *Cassandra) keys(ctx context.Context, stmt string) ([]tracking.TrackingKey, error) {
	var keys []tracking.TrackingKey
	err := c.conn.do(ctx, "keys", func(s session) error {
		rows, err := s.Query(ctx, stmt)
		if err != nil {
			return err
		}
		keys = make([]tracking.TrackingKey, 0, len(rows))
		for _, row := range rows {
			keys = append(keys, tracking.TrackingKey(text(row, "tracking_key")))
		}
		return nil
	})
	return keys, err
}

// Replace writes every entry of content as a sealed record.
func (c *Cassandra) Replace(ctx context.Context, content *tracking.TrackedContent) error {
	now := c.now()
	return c.conn.do(ctx, "replace", func(s session) error {
		for _, e := range content.Entries() {
			next := ledger.FromSealedEntry(e, now)
			existing, err := c.selectOne(ctx, s, next)
			if err != nil {
				return err
			}
			if err := c.write(ctx, s, ledger.Merge(existing, next)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close shuts the session down.
func (c *Cassandra) Close() error {
	if c.conn != nil {
		c.conn.close()
	}
	return nil
}

func (c *Cassandra) aggregate(ctx context.Context, key tracking.TrackingKey, records []ledger.Record) (*tracking.TrackedContent, error) {
	content, dropped, err := ledger.Aggregate(key, records)
	if len(dropped) > 0 {
		c.logger.Warn(ctx, "skipped records with unknown store effect",
			adapters.F("tracking_key", key.ID()),
			adapters.F("count", len(dropped)))
	}
	return content, err
}

func (c *Cassandra) selectOne(ctx context.Context, s session, r ledger.Record) (*ledger.Record, error) {
	rows, err := s.Query(ctx, c.stmts.selectRecord, r.TrackingKey, r.StoreKey, r.Path, r.StoreEffect)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	rec, err := decodeRecord(rows[0])
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Cassandra) selectRecords(ctx context.Context, s session, stmt string, key tracking.TrackingKey) ([]ledger.Record, error) {
	rows, err := s.Query(ctx, stmt, key.ID())
	if err != nil {
		return nil, err
	}
	records := make([]ledger.Record, 0, len(rows))
	for _, row := range rows {
		r, err := decodeRecord(row)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// write upserts r. Timestamps are appended server-side, so the column only
// ever grows.
func (c *Cassandra) write(ctx context.Context, s session, r ledger.Record) error {
	return s.Exec(ctx, c.stmts.upsert,
		r.Sealed, r.AccessChannel, r.OriginURL, r.LocalURL,
		r.MD5, r.SHA256, r.SHA1, r.Size, r.Started, r.Timestamps,
		r.TrackingKey, r.StoreKey, r.Path, r.StoreEffect)
}
