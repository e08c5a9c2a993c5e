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

// Package archive encodes tracked content as a zip with one JSON document per
// tracking session, the format used for bulk export and import.
package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

const (
	entrySuffix = ".json"
	// maxEntrySize bounds one decompressed document.
	maxEntrySize = 256 << 20
)

// ErrMalformed is returned when an archive or one of its documents cannot be
// decoded. It wraps tracking.ErrValidation.
var ErrMalformed = fmt.Errorf("%w: malformed archive", tracking.ErrValidation)

// EntryName returns the zip entry name for key.
func EntryName(key tracking.TrackingKey) string {
	return url.PathEscape(key.ID()) + entrySuffix
}

// Write encodes contents into w. Entries without a key are rejected before
// anything is written.
func Write(w io.Writer, contents []*tracking.TrackedContent) error {
	for _, c := range contents {
		if c == nil || c.Key == "" {
			return fmt.Errorf("%w: content without tracking key", tracking.ErrValidation)
		}
	}

	zw := zip.NewWriter(w)
	modified := time.Now()
	for _, c := range contents {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     EntryName(c.Key),
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("create entry for %s: %w", c.Key, err)
		}
		enc := json.NewEncoder(fw)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode %s: %w", c.Key, err)
		}
	}
	return zw.Close()
}

// Read decodes every document in the archive. It either returns all of them
// or an error; a single bad document fails the whole archive.
func Read(r io.ReaderAt, size int64) ([]*tracking.TrackedContent, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var out []*tracking.TrackedContent
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, entrySuffix) {
			continue
		}
		c, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, f.Name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ReadBytes is Read over an in-memory archive.
func ReadBytes(data []byte) ([]*tracking.TrackedContent, error) {
	return Read(bytes.NewReader(data), int64(len(data)))
}

func readEntry(f *zip.File) (*tracking.TrackedContent, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxEntrySize {
		return nil, errors.New("document too large")
	}

	var c tracking.TrackedContent
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Key == "" {
		name := strings.TrimSuffix(path.Base(f.Name), entrySuffix)
		if id, err := url.PathUnescape(name); err == nil {
			c.Key = tracking.TrackingKey(id)
		}
	}
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// validate normalizes entry keys to the document key and checks each entry.
func validate(c *tracking.TrackedContent) error {
	if err := tracking.ValidateTrackingID(c.Key.ID()); err != nil {
		return err
	}
	check := func(entries []tracking.TrackedContentEntry, effect tracking.StoreEffect) error {
		for i := range entries {
			e := &entries[i]
			if e.TrackingKey == "" {
				e.TrackingKey = c.Key
			}
			if e.Effect == "" {
				e.Effect = effect
			}
			if e.TrackingKey != c.Key {
				return fmt.Errorf("entry %s belongs to %s", e.Path, e.TrackingKey)
			}
			if e.Effect != effect {
				return fmt.Errorf("entry %s listed as %s but has effect %s", e.Path, effect, e.Effect)
			}
			if err := e.Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	if c.Uploads == nil {
		c.Uploads = []tracking.TrackedContentEntry{}
	}
	if c.Downloads == nil {
		c.Downloads = []tracking.TrackedContentEntry{}
	}
	if err := check(c.Uploads, tracking.EffectUpload); err != nil {
		return err
	}
	return check(c.Downloads, tracking.EffectDownload)
}
