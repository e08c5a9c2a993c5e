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

package service

import (
	"context"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// EntryDTO is the rendered form of one tracked entry.
type EntryDTO struct {
	StoreKey      tracking.StoreKey      `json:"storeKey" yaml:"storeKey"`
	AccessChannel tracking.AccessChannel `json:"accessChannel" yaml:"accessChannel"`
	Path          string                 `json:"path" yaml:"path"`
	OriginURL     string                 `json:"originUrl,omitempty" yaml:"originUrl,omitempty"`
	LocalURL      string                 `json:"localUrl,omitempty" yaml:"localUrl,omitempty"`
	MD5           string                 `json:"md5,omitempty" yaml:"md5,omitempty"`
	SHA1          string                 `json:"sha1,omitempty" yaml:"sha1,omitempty"`
	SHA256        string                 `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	Size          int64                  `json:"size" yaml:"size"`
	Timestamps    []int64                `json:"timestamps,omitempty" yaml:"timestamps,omitempty"`
}

// ContentDTO is the rendered form of a tracking record.
type ContentDTO struct {
	Key       tracking.TrackingKey `json:"key" yaml:"key"`
	Uploads   []EntryDTO           `json:"uploads" yaml:"uploads"`
	Downloads []EntryDTO           `json:"downloads" yaml:"downloads"`
}

// Render converts content for display, sorting entries by store and path.
// Entries get a localUrl when a content base URL is configured.
func (s *Service) Render(ctx context.Context, content *tracking.TrackedContent) *ContentDTO {
	if content == nil {
		return nil
	}
	return &ContentDTO{
		Key:       content.Key,
		Uploads:   s.renderEntries(ctx, content.Uploads),
		Downloads: s.renderEntries(ctx, content.Downloads),
	}
}

func (s *Service) renderEntries(ctx context.Context, entries []tracking.TrackedContentEntry) []EntryDTO {
	sorted := append([]tracking.TrackedContentEntry(nil), entries...)
	tracking.SortEntries(sorted)

	out := make([]EntryDTO, 0, len(sorted))
	for _, e := range sorted {
		channel := e.AccessChannel
		if channel == "" {
			channel = tracking.AccessChannelNative
		}
		out = append(out, EntryDTO{
			StoreKey:      e.StoreKey,
			AccessChannel: channel,
			Path:          e.Path,
			OriginURL:     e.OriginURL,
			LocalURL:      s.localURL(ctx, e),
			MD5:           e.MD5,
			SHA1:          e.SHA1,
			SHA256:        e.SHA256,
			Size:          e.Size,
			Timestamps:    e.Timestamps,
		})
	}
	return out
}

// localURL is <base>/content/<packageType>/<type>/<name>/<path>.
func (s *Service) localURL(ctx context.Context, e tracking.TrackedContentEntry) string {
	if s.contentBaseURL == "" {
		return ""
	}
	u, err := tracking.JoinURL(s.contentBaseURL, "content",
		e.StoreKey.PackageType, string(e.StoreKey.Type), e.StoreKey.Name, e.Path)
	if err != nil {
		s.logger.Warn(ctx, "Cannot build local URL",
			adapters.F("base_url", s.contentBaseURL),
			adapters.F("store", e.StoreKey.String()),
			adapters.F("path", tracking.SanitizeForLog(e.Path)),
			adapters.F("tracking_id", e.TrackingKey.ID()),
			adapters.Err(err))
		return ""
	}
	return u
}
