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
	"net/http"
)

const storageEmptyFoldersPath = "/api/storage/maint/folders/empty"

// StorageBatchDeleteRequest names folders to remove if they are empty.
type StorageBatchDeleteRequest struct {
	InternalID string   `json:"internalId"`
	Filesystem string   `json:"filesystem"`
	Paths      []string `json:"paths"`
}

// StorageClient talks to the storage service.
type StorageClient struct {
	rest *restClient
}

// NewStorageClient creates a storage service client.
func NewStorageClient(cfg Config) (*StorageClient, error) {
	rest, err := newRESTClient("storage", cfg)
	if err != nil {
		return nil, err
	}
	return &StorageClient{rest: rest}, nil
}

// CleanupEmptyFolders asks storage to delete the listed folders that hold
// no files.
func (c *StorageClient) CleanupEmptyFolders(ctx context.Context, req StorageBatchDeleteRequest) error {
	resp, err := c.rest.send(ctx, http.MethodPost, storageEmptyFoldersPath, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return c.rest.statusError(resp)
	}
	return nil
}
