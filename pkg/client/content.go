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
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

const (
	contentRecalculatePath = "/api/admin/content/tracking/recalculate"
	contentRepoZipPath     = "/api/admin/content/repo/zip"
)

// ContentClient talks to the content service.
type ContentClient struct {
	rest *restClient
}

// NewContentClient creates a content service client.
func NewContentClient(cfg Config) (*ContentClient, error) {
	rest, err := newRESTClient("content", cfg)
	if err != nil {
		return nil, err
	}
	return &ContentClient{rest: rest}, nil
}

// Recalculate asks the content service to re-derive size and checksums for
// each transfer. The returned entries replace the originals.
func (c *ContentClient) Recalculate(ctx context.Context, transfers []tracking.ContentTransfer) ([]tracking.TrackedContentEntry, error) {
	resp, err := c.rest.send(ctx, http.MethodPost, contentRecalculatePath, transfers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, c.rest.statusError(resp)
	}

	var entries []tracking.TrackedContentEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, tracking.NewCollaboratorError(c.rest.service, resp.StatusCode, "decode recalculated entries", err)
	}
	return entries, nil
}

// RepositoryZip asks the content service to bundle the artifacts of content
// into a zip. The caller must close the returned reader.
func (c *ContentClient) RepositoryZip(ctx context.Context, content *tracking.TrackedContent) (io.ReadCloser, error) {
	resp, err := c.rest.send(ctx, http.MethodPost, contentRepoZipPath, content)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, c.rest.statusError(resp)
	}
	return resp.Body, nil
}

// String identifies the client in logs.
func (c *ContentClient) String() string {
	return fmt.Sprintf("content(%s)", c.rest.baseURL)
}
