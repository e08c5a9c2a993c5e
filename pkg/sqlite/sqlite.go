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

// Package sqlite provides a single-node ledger store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/ledger"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

//go:embed schema.sql
var schemaSQL string

// ErrPathNotSet is returned when Configure is called without a database path.
var ErrPathNotSet = errors.New("sqlite: path not set")

const columns = `tracking_key, store_key, path, store_effect, sealed, access_channel,
	origin_url, local_url, md5, sha1, sha256, size, started, timestamps`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite is a ledger store backed by a SQLite database file. The pool holds a
// single connection, so transactions serialize Put against Seal.
type SQLite struct {
	db     *sql.DB
	logger adapters.Logger
	now    func() time.Time
}

// New creates an unconfigured SQLite store.
func New(logger adapters.Logger) *SQLite {
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	return &SQLite{logger: logger, now: time.Now}
}

// Configure opens the database named by the "path" setting, applies pragmas
// and creates the schema.
func (s *SQLite) Configure(settings map[string]string) error {
	path := settings["path"]
	if path == "" {
		return ErrPathNotSet
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	s.db = db
	return nil
}

// Put records an entry unless its session holds sealed records.
func (s *SQLite) Put(ctx context.Context, entry tracking.TrackedContentEntry) (ledger.PutOutcome, error) {
	next := ledger.FromEntry(entry, s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Recorded, fmt.Errorf("begin put: %w", err)
	}
	defer tx.Rollback()

	var sealed int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM `+ledger.CurrentTable+` WHERE tracking_key = ? AND sealed = 1`,
		next.TrackingKey).Scan(&sealed)
	if err != nil {
		return ledger.Recorded, fmt.Errorf("check sealed: %w", err)
	}
	if sealed > 0 {
		return ledger.AlreadySealed, nil
	}

	if err := upsert(ctx, tx, next); err != nil {
		return ledger.Recorded, err
	}
	if err := tx.Commit(); err != nil {
		return ledger.Recorded, fmt.Errorf("commit put: %w", err)
	}
	return ledger.Recorded, nil
}

// Get aggregates the current records of key.
func (s *SQLite) Get(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	return s.get(ctx, s.db, ledger.CurrentTable, key)
}

// GetLegacy aggregates the legacy records of key.
func (s *SQLite) GetLegacy(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	return s.get(ctx, s.db, ledger.LegacyTable, key)
}

func (s *SQLite) get(ctx context.Context, q querier, table string, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	records, err := selectRecords(ctx, q, table, key)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, tracking.ErrNotFound
	}
	return s.aggregate(ctx, key, records)
}

func (s *SQLite) aggregate(ctx context.Context, key tracking.TrackingKey, records []ledger.Record) (*tracking.TrackedContent, error) {
	content, dropped, err := ledger.Aggregate(key, records)
	if len(dropped) > 0 {
		s.logger.Warn(ctx, "skipped records with unknown store effect",
			adapters.F("tracking_key", key.ID()),
			adapters.F("count", len(dropped)))
	}
	return content, err
}

// Seal marks every record of key sealed.
func (s *SQLite) Seal(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin seal: %w", err)
	}
	defer tx.Rollback()

	records, err := selectRecords(ctx, tx, ledger.CurrentTable, key)
	if err != nil {
		return nil, err
	}
	if !ledger.AllSealed(records) {
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+ledger.CurrentTable+` SET sealed = 1 WHERE tracking_key = ? AND sealed = 0`,
			key.ID()); err != nil {
			return nil, fmt.Errorf("seal %s: %w", key, err)
		}
		for i := range records {
			records[i].Sealed = true
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seal: %w", err)
	}
	return s.aggregate(ctx, key, records)
}

// Delete removes the current records of key.
func (s *SQLite) Delete(ctx context.Context, key tracking.TrackingKey) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+ledger.CurrentTable+` WHERE tracking_key = ?`, key.ID())
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// SealedKeys lists the tracking keys of the current table.
func (s *SQLite) SealedKeys(ctx context.Context) ([]tracking.TrackingKey, error) {
	return selectKeys(ctx, s.db, ledger.CurrentTable)
}

// LegacyKeys lists the tracking keys of the legacy table.
func (s *SQLite) LegacyKeys(ctx context.Context) ([]tracking.TrackingKey, error) {
	return selectKeys(ctx, s.db, ledger.LegacyTable)
}

// Replace writes every entry of content as a sealed record in one transaction.
func (s *SQLite) Replace(ctx context.Context, content *tracking.TrackedContent) error {
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	for _, e := range content.Entries() {
		if err := upsert(ctx, tx, ledger.FromSealedEntry(e, now)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// upsert merges next into any existing row with the same natural key.
func upsert(ctx context.Context, q querier, next ledger.Record) error {
	existing, err := selectOne(ctx, q, next)
	if err != nil {
		return err
	}
	return insertRecord(ctx, q, ledger.CurrentTable, ledger.Merge(existing, next))
}

func insertRecord(ctx context.Context, q querier, table string, r ledger.Record) error {
	ts, err := json.Marshal(tracking.MergeTimestamps(r.Timestamps))
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT OR REPLACE INTO `+table+` (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TrackingKey, r.StoreKey, r.Path, r.StoreEffect, r.Sealed, r.AccessChannel,
		r.OriginURL, r.LocalURL, r.MD5, r.SHA1, r.SHA256, r.Size, r.Started, string(ts))
	if err != nil {
		return fmt.Errorf("write record %s: %w", r.Path, err)
	}
	return nil
}

func selectOne(ctx context.Context, q querier, r ledger.Record) (*ledger.Record, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+columns+` FROM `+ledger.CurrentTable+`
		 WHERE tracking_key = ? AND store_key = ? AND path = ? AND store_effect = ?`,
		r.TrackingKey, r.StoreKey, r.Path, r.StoreEffect)
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", r.Path, err)
	}
	records, err := scanRecords(rows)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

func selectRecords(ctx context.Context, q querier, table string, key tracking.TrackingKey) ([]ledger.Record, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+columns+` FROM `+table+` WHERE tracking_key = ?`, key.ID())
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", key, table, err)
	}
	return scanRecords(rows)
}

func selectKeys(ctx context.Context, q querier, table string) ([]tracking.TrackingKey, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT tracking_key FROM `+table+` ORDER BY tracking_key`)
	if err != nil {
		return nil, fmt.Errorf("list keys in %s: %w", table, err)
	}
	defer rows.Close()

	keys := []tracking.TrackingKey{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, tracking.TrackingKey(k))
	}
	return keys, rows.Err()
}

func scanRecords(rows *sql.Rows) ([]ledger.Record, error) {
	defer rows.Close()

	var out []ledger.Record
	for rows.Next() {
		var (
			r  ledger.Record
			ts string
		)
		if err := rows.Scan(&r.TrackingKey, &r.StoreKey, &r.Path, &r.StoreEffect, &r.Sealed,
			&r.AccessChannel, &r.OriginURL, &r.LocalURL, &r.MD5, &r.SHA1, &r.SHA256,
			&r.Size, &r.Started, &ts); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(ts), &r.Timestamps); err != nil {
			return nil, fmt.Errorf("decode timestamps of %s: %w", r.Path, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
