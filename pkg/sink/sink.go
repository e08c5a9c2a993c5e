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

// Package sink delivers exported ledger archives to a destination: a local
// file, an S3 object or a Google Cloud Storage object.
package sink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// DefaultArchiveName is the archive path under the base directory when no
// destination is given.
const DefaultArchiveName = "folo/folo-sealed.zip"

var (
	// ErrInvalidDestination is returned for destinations that cannot be parsed.
	ErrInvalidDestination = errors.New("invalid export destination")

	// ErrUnsupportedScheme is returned for destination schemes without a sink.
	ErrUnsupportedScheme = errors.New("unsupported export destination scheme")
)

// Sink stores one archive.
type Sink interface {
	// Write stores data and returns where it was written.
	Write(ctx context.Context, data []byte) (string, error)
}

// Options carries credentials and endpoints for cloud sinks.
type Options struct {
	// BaseDir anchors the default local destination.
	BaseDir string

	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// Open returns the sink for dest: a local path, s3://bucket/key or
// gs://bucket/object. An empty dest writes DefaultArchiveName under BaseDir.
func Open(ctx context.Context, dest string, opts Options) (Sink, error) {
	if dest == "" {
		base := opts.BaseDir
		if base == "" {
			base = "."
		}
		return NewFile(filepath.Join(base, DefaultArchiveName)), nil
	}

	if !strings.Contains(dest, "://") {
		return NewFile(dest), nil
	}

	u, err := url.Parse(dest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	object := strings.TrimPrefix(u.Path, "/")

	switch u.Scheme {
	case "file":
		return NewFile(u.Path), nil
	case "s3":
		if u.Host == "" || object == "" {
			return nil, fmt.Errorf("%w: %s needs bucket and key", ErrInvalidDestination, dest)
		}
		return NewS3(ctx, u.Host, object, opts)
	case "gs":
		if u.Host == "" || object == "" {
			return nil, fmt.Errorf("%w: %s needs bucket and object", ErrInvalidDestination, dest)
		}
		return NewGCS(ctx, u.Host, object)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}
