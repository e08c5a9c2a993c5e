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

package ledger

import (
	"fmt"
	"time"

	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// Record is the stored form of one entry. Enumerations and store keys are
// kept as strings so rows written by other versions still load.
type Record struct {
	TrackingKey   string
	StoreKey      string
	Path          string
	StoreEffect   string
	Sealed        bool
	AccessChannel string
	OriginURL     string
	LocalURL      string
	MD5           string
	SHA1          string
	SHA256        string
	Size          int64
	Started       int64
	Timestamps    []int64
}

// NaturalKey returns the record's identity within the ledger.
func (r Record) NaturalKey() tracking.NaturalKey {
	return tracking.NaturalKey{
		TrackingKey: tracking.TrackingKey(r.TrackingKey),
		StoreKey:    r.StoreKey,
		Path:        r.Path,
		Effect:      tracking.StoreEffect(r.StoreEffect),
	}
}

// FromEntry builds an unsealed record stamped with now. Timestamps already on
// the entry are kept.
func FromEntry(e tracking.TrackedContentEntry, now time.Time) Record {
	ms := now.UnixMilli()
	return Record{
		TrackingKey:   e.TrackingKey.ID(),
		StoreKey:      e.StoreKey.String(),
		Path:          e.Path,
		StoreEffect:   string(e.Effect),
		AccessChannel: string(e.AccessChannel),
		OriginURL:     e.OriginURL,
		MD5:           e.MD5,
		SHA1:          e.SHA1,
		SHA256:        e.SHA256,
		Size:          e.Size,
		Started:       ms,
		Timestamps:    tracking.MergeTimestamps(e.Timestamps, []int64{ms}),
	}
}

// FromSealedEntry builds a sealed record for reconciliation writes. Entries
// without timestamps are stamped with now.
func FromSealedEntry(e tracking.TrackedContentEntry, now time.Time) Record {
	r := FromEntry(e, now)
	r.Sealed = true
	if len(e.Timestamps) > 0 {
		r.Timestamps = tracking.MergeTimestamps(e.Timestamps)
		r.Started = r.Timestamps[0]
	}
	return r
}

// Merge applies an overwrite onto the existing record: every field comes from
// next except started, which keeps the first write, and timestamps, which
// accumulate.
func Merge(existing *Record, next Record) Record {
	if existing == nil {
		return next
	}
	merged := next
	if existing.Started != 0 && (next.Started == 0 || existing.Started < next.Started) {
		merged.Started = existing.Started
	}
	merged.Timestamps = tracking.MergeTimestamps(existing.Timestamps, next.Timestamps)
	return merged
}

// ToEntry converts the record back to a domain entry. Unknown effect or
// channel values fail rather than being guessed.
func (r Record) ToEntry() (tracking.TrackedContentEntry, error) {
	storeKey, err := tracking.ParseStoreKey(r.StoreKey)
	if err != nil {
		return tracking.TrackedContentEntry{}, fmt.Errorf("record %s: %w", r.Path, err)
	}
	effect, err := tracking.ParseStoreEffect(r.StoreEffect)
	if err != nil {
		return tracking.TrackedContentEntry{}, fmt.Errorf("record %s: %w", r.Path, err)
	}
	channel, err := tracking.ParseAccessChannel(r.AccessChannel)
	if err != nil {
		return tracking.TrackedContentEntry{}, fmt.Errorf("record %s: %w", r.Path, err)
	}

	return tracking.TrackedContentEntry{
		TrackingKey:   tracking.TrackingKey(r.TrackingKey),
		StoreKey:      storeKey,
		AccessChannel: channel,
		OriginURL:     r.OriginURL,
		Path:          r.Path,
		Effect:        effect,
		Size:          r.Size,
		MD5:           r.MD5,
		SHA1:          r.SHA1,
		SHA256:        r.SHA256,
		Timestamps:    tracking.MergeTimestamps(r.Timestamps),
	}, nil
}

// Aggregate partitions records into uploads and downloads. Records whose
// effect is neither DOWNLOAD nor UPLOAD are skipped and returned in dropped
// so callers can report them.
func Aggregate(key tracking.TrackingKey, records []Record) (content *tracking.TrackedContent, dropped []Record, err error) {
	content = tracking.NewTrackedContent(key)
	for _, r := range records {
		switch tracking.StoreEffect(r.StoreEffect) {
		case tracking.EffectUpload, tracking.EffectDownload:
		default:
			dropped = append(dropped, r)
			continue
		}

		entry, err := r.ToEntry()
		if err != nil {
			return nil, dropped, err
		}
		if entry.Effect == tracking.EffectUpload {
			content.Uploads = append(content.Uploads, entry)
		} else {
			content.Downloads = append(content.Downloads, entry)
		}
	}
	content.Sort()
	return content, dropped, nil
}

// AllSealed reports whether every record is sealed.
func AllSealed(records []Record) bool {
	for _, r := range records {
		if !r.Sealed {
			return false
		}
	}
	return true
}

// AnySealed reports whether any record is sealed.
func AnySealed(records []Record) bool {
	for _, r := range records {
		if r.Sealed {
			return true
		}
	}
	return false
}
