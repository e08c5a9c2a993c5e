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
	"net/http"
	"net/url"

	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

const promoteRecordsPath = "/api/promote/tracking/%s"

// PromoteRequest is the source and target of one promotion.
type PromoteRequest struct {
	Source tracking.StoreKey `json:"source"`
	Target tracking.StoreKey `json:"target"`
}

// PromoteResult is the outcome of one promotion.
type PromoteResult struct {
	Request        PromoteRequest `json:"request"`
	CompletedPaths []string       `json:"completedPaths,omitempty"`
}

// PromoteTrackingRecords lists the promotions performed under a tracking id,
// keyed by promotion id.
type PromoteTrackingRecords struct {
	TrackingID string                   `json:"trackingId"`
	ResultMap  map[string]PromoteResult `json:"resultMap"`
}

// PromoteClient talks to the promotion service.
type PromoteClient struct {
	rest *restClient
}

// NewPromoteClient creates a promotion service client.
func NewPromoteClient(cfg Config) (*PromoteClient, error) {
	rest, err := newRESTClient("promote", cfg)
	if err != nil {
		return nil, err
	}
	return &PromoteClient{rest: rest}, nil
}

// PromotionRecords fetches the promotion records of trackingID. A 404 maps to
// tracking.ErrNotFound; every other failure is a collaborator error.
func (c *PromoteClient) PromotionRecords(ctx context.Context, trackingID string) (*PromoteTrackingRecords, error) {
	path := fmt.Sprintf(promoteRecordsPath, url.PathEscape(trackingID))

	return withRetry(ctx, c.rest.retry, func() (*PromoteTrackingRecords, error) {
		resp, err := c.rest.send(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("promotion records for %s: %w", trackingID, tracking.ErrNotFound)
		case !isSuccess(resp.StatusCode):
			return nil, c.rest.statusError(resp)
		}

		var records PromoteTrackingRecords
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			return nil, tracking.NewCollaboratorError(c.rest.service, resp.StatusCode, "decode promotion records", err)
		}
		return &records, nil
	})
}
