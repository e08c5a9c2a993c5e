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

// Package client implements HTTP clients for the services the ledger
// depends on: content, promotion, storage and maintenance.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// ErrNoBaseURL is returned when a client is created without a base URL.
var ErrNoBaseURL = errors.New("collaborator base URL not set")

const defaultTimeout = 30 * time.Second

// Config configures a collaborator client.
type Config struct {
	// BaseURL is the scheme, host and optional prefix of the service.
	BaseURL string

	// Timeout bounds each request (default 30s).
	Timeout time.Duration

	// Retry applies to idempotent reads only. Nil disables retries.
	Retry *RetryConfig

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// restClient holds what every collaborator client shares.
type restClient struct {
	service    string
	baseURL    string
	httpClient *http.Client
	retry      *RetryConfig
}

func newRESTClient(service string, cfg Config) (*restClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s: %w", service, ErrNoBaseURL)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%s: invalid base URL: %w", service, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: timeout,
		}
	}

	return &restClient{
		service:    service,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		retry:      cfg.Retry,
	}, nil
}

// send issues one request. A JSON body is encoded when body is non-nil.
// Transport failures are wrapped as collaborator errors; the caller owns the
// response body.
func (c *restClient) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", c.service, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, tracking.NewCollaboratorError(c.service, 0, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, tracking.NewCollaboratorError(c.service, 0, method+" "+path, err)
	}
	return resp, nil
}

// statusError drains resp and describes the unexpected status.
func (c *restClient) statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return tracking.NewCollaboratorError(c.service, resp.StatusCode, strings.TrimSpace(string(msg)), nil)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
