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

package client

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// RetryConfig defines retry behavior for transient failures.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 2)
	MaxRetries int

	// InitialBackoff is the initial backoff duration (default: 100ms)
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration (default: 2s)
	MaxBackoff time.Duration
}

// withRetry runs operation, retrying transient collaborator failures with
// exponential backoff and jitter.
func withRetry[T any](ctx context.Context, cfg *RetryConfig, operation func() (T, error)) (T, error) {
	if cfg == nil {
		return operation()
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	ceiling := cfg.MaxBackoff
	if ceiling <= 0 {
		ceiling = 2 * time.Second
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := operation()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == maxRetries || !isTransient(err) {
			break
		}

		select {
		case <-ctx.Done():
			return zero, lastErr
		case <-time.After(backoff(attempt, initial, ceiling)):
		}
	}
	return zero, lastErr
}

// isTransient reports connection failures and 502/503/504 answers.
func isTransient(err error) bool {
	var ce *tracking.CollaboratorError
	if !errors.As(err, &ce) {
		return false
	}
	switch ce.StatusCode {
	case 0:
		return ce.Err != nil && !errors.Is(ce.Err, context.Canceled)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func backoff(attempt int, initial, ceiling time.Duration) time.Duration {
	d := float64(initial) * math.Pow(2, float64(attempt))
	if d > float64(ceiling) {
		d = float64(ceiling)
	}
	return time.Duration(rand.Float64() * d)
}
