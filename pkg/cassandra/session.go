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

package cassandra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/metrics"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// session is the slice of a driver session the store needs.
type session interface {
	Exec(ctx context.Context, stmt string, values ...any) error
	Query(ctx context.Context, stmt string, values ...any) ([]map[string]any, error)
	Closed() bool
	Close()
}

// dialFunc opens a new session, creating the schema if needed.
type dialFunc func() (session, error)

// connector owns the shared session. Reconnects are serialized by mu and
// keyed by generation so callers that observed the same broken session
// trigger a single redial.
type connector struct {
	mu     sync.Mutex
	dial   dialFunc
	sess   session
	gen    uint64
	logger adapters.Logger
}

func newConnector(dial dialFunc, logger adapters.Logger) *connector {
	return &connector{dial: dial, logger: logger}
}

// acquire returns a live session, dialing when none is open.
func (c *connector) acquire() (session, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil && !c.sess.Closed() {
		return c.sess, c.gen, nil
	}
	if err := c.redialLocked(); err != nil {
		return nil, c.gen, err
	}
	return c.sess, c.gen, nil
}

// reconnect replaces the session observed at generation seen. When another
// caller already replaced it, the newer session is returned as is.
func (c *connector) reconnect(seen uint64) (session, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != seen && c.sess != nil && !c.sess.Closed() {
		return c.sess, c.gen, nil
	}
	if err := c.redialLocked(); err != nil {
		return nil, c.gen, err
	}
	metrics.Get().RecordReconnect()
	return c.sess, c.gen, nil
}

func (c *connector) redialLocked() error {
	if c.sess != nil {
		c.sess.Close()
		c.sess = nil
	}
	s, err := c.dial()
	if err != nil {
		return err
	}
	c.sess = s
	c.gen++
	return nil
}

// do runs op on the shared session. A missing, closed or disconnected
// session is reinitialized and op is retried exactly once; a second failure
// becomes tracking.ErrTransportUnavailable.
func (c *connector) do(ctx context.Context, name string, op func(session) error) error {
	sess, gen, err := c.acquire()
	if err == nil {
		err = op(sess)
		if err == nil || !isConnectionLoss(err) {
			return err
		}
	}

	c.logger.Warn(ctx, "ledger session unavailable, reconnecting",
		adapters.F("operation", name), adapters.Err(err))

	sess, _, rerr := c.reconnect(gen)
	if rerr != nil {
		return fmt.Errorf("%w: %s: %v", tracking.ErrTransportUnavailable, name, rerr)
	}
	if err := op(sess); err != nil {
		if isConnectionLoss(err) {
			return fmt.Errorf("%w: %s: %v", tracking.ErrTransportUnavailable, name, err)
		}
		return err
	}
	return nil
}

func (c *connector) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		c.sess.Close()
		c.sess = nil
	}
}

// isConnectionLoss reports driver errors that mean the session is unusable.
func isConnectionLoss(err error) bool {
	return errors.Is(err, gocql.ErrSessionClosed) ||
		errors.Is(err, gocql.ErrNoConnections) ||
		errors.Is(err, gocql.ErrNoConnectionsStarted)
}

// cqlSession adapts *gocql.Session to session.
type cqlSession struct {
	s           *gocql.Session
	consistency gocql.Consistency
}

func (c *cqlSession) Exec(ctx context.Context, stmt string, values ...any) error {
	return c.s.Query(stmt, values...).WithContext(ctx).Consistency(c.consistency).Exec()
}

func (c *cqlSession) Query(ctx context.Context, stmt string, values ...any) ([]map[string]any, error) {
	iter := c.s.Query(stmt, values...).WithContext(ctx).Consistency(c.consistency).Iter()
	rows, err := iter.SliceMap()
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	return rows, err
}

func (c *cqlSession) Closed() bool {
	return c.s.Closed()
}

func (c *cqlSession) Close() {
	c.s.Close()
}

// clusterDialer opens gocql sessions for cfg and applies the schema.
func clusterDialer(cfg config) dialFunc {
	return func() (session, error) {
		cluster := gocql.NewCluster(cfg.hosts...)
		cluster.Port = cfg.port
		cluster.Timeout = cfg.timeout
		cluster.ConnectTimeout = cfg.timeout
		cluster.Consistency = cfg.consistency
		if cfg.user != "" {
			cluster.Authenticator = gocql.PasswordAuthenticator{
				Username: cfg.user,
				Password: cfg.password,
			}
		}

		s, err := cluster.CreateSession()
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout(cfg.timeout))
		defer cancel()
		for _, stmt := range schemaStatements(cfg.keyspace, cfg.replicas) {
			if err := s.Query(stmt).WithContext(ctx).Exec(); err != nil {
				s.Close()
				return nil, fmt.Errorf("apply schema: %w", err)
			}
		}
		return &cqlSession{s: s, consistency: cfg.consistency}, nil
	}
}

func schemaTimeout(op time.Duration) time.Duration {
	if op <= 0 {
		return time.Minute
	}
	return 10 * op
}
