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
	"io"
	"net/http"

	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

const maintenanceBatchDeletePath = "/api/admin/maint/content/batch/delete"

// BatchDeleteRequest asks for the removal of paths from one store.
type BatchDeleteRequest struct {
	TrackingID string            `json:"trackingID"`
	StoreKey   tracking.StoreKey `json:"storeKey"`
	Paths      []string          `json:"paths"`
}

// MaintenanceClient talks to the maintenance service.
type MaintenanceClient struct {
	rest *restClient
}

// NewMaintenanceClient creates a maintenance service client.
func NewMaintenanceClient(cfg Config) (*MaintenanceClient, error) {
	rest, err := newRESTClient("maintenance", cfg)
	if err != nil {
		return nil, err
	}
	return &MaintenanceClient{rest: rest}, nil
}

// BatchDelete removes req.Paths from req.StoreKey. Any non-2xx answer is a
// collaborator error.
func (c *MaintenanceClient) BatchDelete(ctx context.Context, req BatchDeleteRequest) error {
	resp, err := c.rest.send(ctx, http.MethodPost, maintenanceBatchDeletePath, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return c.rest.statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
