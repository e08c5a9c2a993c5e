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

package sink

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// gcsWriterFn opens a writer for bucket/object; replaced in tests.
type gcsWriterFn func(ctx context.Context, bucket, object string) io.WriteCloser

// GCS uploads the archive to a Google Cloud Storage bucket.
type GCS struct {
	newWriter gcsWriterFn
	bucket    string
	object    string
}

var gcsNewClient = func(ctx context.Context) (*storage.Client, error) { return storage.NewClient(ctx) }

// NewGCS builds a GCS sink using application default credentials.
func NewGCS(ctx context.Context, bucket, object string) (*GCS, error) {
	client, err := gcsNewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCS{
		bucket: bucket,
		object: object,
		newWriter: func(ctx context.Context, bucket, object string) io.WriteCloser {
			w := client.Bucket(bucket).Object(object).NewWriter(ctx)
			w.ContentType = "application/zip"
			return w
		},
	}, nil
}

// Write uploads data as one object. The upload is committed by Close.
func (g *GCS) Write(ctx context.Context, data []byte) (string, error) {
	w := g.newWriter(ctx, g.bucket, g.object)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("upload gs://%s/%s: %w", g.bucket, g.object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload gs://%s/%s: %w", g.bucket, g.object, err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, g.object), nil
}
