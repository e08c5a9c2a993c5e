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

// Package tracking defines the content tracking domain: tracking sessions,
// repository store references, per-artifact ledger entries and the
// aggregated view of a session.
package tracking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TrackingKey identifies one build or tracking session.
type TrackingKey string

// NewTrackingKey returns a TrackingKey for id, rejecting blank ids.
func NewTrackingKey(id string) (TrackingKey, error) {
	if err := ValidateTrackingID(id); err != nil {
		return "", err
	}
	return TrackingKey(id), nil
}

// ID returns the session identifier.
func (k TrackingKey) ID() string {
	return string(k)
}

func (k TrackingKey) String() string {
	return string(k)
}

// MarshalJSON renders the key as {"id": "..."}.
func (k TrackingKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID string `json:"id"`
	}{ID: string(k)})
}

// UnmarshalJSON accepts either {"id": "..."} or a bare string.
func (k *TrackingKey) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = TrackingKey(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*k = TrackingKey(obj.ID)
	return nil
}

// StoreType is the kind of repository store.
type StoreType string

const (
	StoreTypeHosted StoreType = "hosted"
	StoreTypeRemote StoreType = "remote"
	StoreTypeGroup  StoreType = "group"
)

// ParseStoreType parses a store type case-insensitively.
func ParseStoreType(s string) (StoreType, error) {
	switch t := StoreType(strings.ToLower(strings.TrimSpace(s))); t {
	case StoreTypeHosted, StoreTypeRemote, StoreTypeGroup:
		return t, nil
	default:
		return "", validationError("storeType", "unknown store type %q", s)
	}
}

// Package types with well-known defaults.
const (
	PackageTypeMaven   = "maven"
	PackageTypeNPM     = "npm"
	PackageTypeGeneric = "generic-http"
)

// StoreKey identifies a repository store as packageType:type:name.
type StoreKey struct {
	PackageType string
	Type        StoreType
	Name        string
}

// NewStoreKey creates a StoreKey from its parts.
func NewStoreKey(packageType string, storeType StoreType, name string) StoreKey {
	return StoreKey{PackageType: packageType, Type: storeType, Name: name}
}

// ParseStoreKey parses the canonical packageType:type:name form. A bare name
// defaults to maven:remote:name and a two-part type:name defaults the package
// type to maven.
func ParseStoreKey(s string) (StoreKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return StoreKey{}, validationError("storeKey", "must not be blank")
	}

	parts := strings.Split(s, ":")
	var (
		pkg  = PackageTypeMaven
		kind = string(StoreTypeRemote)
		name string
	)
	switch len(parts) {
	case 1:
		name = parts[0]
	case 2:
		kind, name = parts[0], parts[1]
	case 3:
		pkg, kind, name = parts[0], parts[1], parts[2]
	default:
		return StoreKey{}, validationError("storeKey", "too many segments in %q", s)
	}

	if pkg == "" {
		return StoreKey{}, validationError("storeKey", "package type missing in %q", s)
	}
	storeType, err := ParseStoreType(kind)
	if err != nil {
		return StoreKey{}, err
	}
	if name == "" {
		return StoreKey{}, validationError("storeKey", "name missing in %q", s)
	}
	return StoreKey{PackageType: pkg, Type: storeType, Name: name}, nil
}

// String returns the canonical packageType:type:name form.
func (k StoreKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.PackageType, k.Type, k.Name)
}

// IsZero reports whether the key is unset.
func (k StoreKey) IsZero() bool {
	return k == StoreKey{}
}

// MarshalText implements encoding.TextMarshaler.
func (k StoreKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *StoreKey) UnmarshalText(text []byte) error {
	parsed, err := ParseStoreKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// AccessChannel is the protocol through which content was accessed.
type AccessChannel string

const (
	AccessChannelNative       AccessChannel = "NATIVE"
	AccessChannelGenericProxy AccessChannel = "GENERIC_PROXY"
	AccessChannelMavenRepo    AccessChannel = "MAVEN_REPO"
)

// ParseAccessChannel parses an access channel name. An empty value reads as
// NATIVE since older records were written without a channel.
func ParseAccessChannel(s string) (AccessChannel, error) {
	switch c := AccessChannel(strings.TrimSpace(s)); c {
	case "":
		return AccessChannelNative, nil
	case AccessChannelNative, AccessChannelGenericProxy, AccessChannelMavenRepo:
		return c, nil
	default:
		return "", validationError("accessChannel", "unknown access channel %q", s)
	}
}

// StoreEffect is the direction of a content transfer.
type StoreEffect string

const (
	EffectDownload StoreEffect = "DOWNLOAD"
	EffectUpload   StoreEffect = "UPLOAD"
)

// ParseStoreEffect parses a store effect, which must match exactly.
func ParseStoreEffect(s string) (StoreEffect, error) {
	switch e := StoreEffect(s); e {
	case EffectDownload, EffectUpload:
		return e, nil
	default:
		return "", validationError("effect", "unknown store effect %q", s)
	}
}

// TrackedContentEntry is one observed transfer of one artifact.
type TrackedContentEntry struct {
	TrackingKey   TrackingKey   `json:"trackingKey"`
	StoreKey      StoreKey      `json:"storeKey"`
	AccessChannel AccessChannel `json:"accessChannel"`
	OriginURL     string        `json:"originUrl,omitempty"`
	Path          string        `json:"path"`
	Effect        StoreEffect   `json:"effect"`
	Size          int64         `json:"size"`
	MD5           string        `json:"md5,omitempty"`
	SHA1          string        `json:"sha1,omitempty"`
	SHA256        string        `json:"sha256,omitempty"`
	Timestamps    []int64       `json:"timestamps,omitempty"`
}

// NaturalKey identifies an entry within the ledger.
type NaturalKey struct {
	TrackingKey TrackingKey
	StoreKey    string
	Path        string
	Effect      StoreEffect
}

// NaturalKey returns the (tracking key, store key, path, effect) tuple.
func (e TrackedContentEntry) NaturalKey() NaturalKey {
	return NaturalKey{
		TrackingKey: e.TrackingKey,
		StoreKey:    e.StoreKey.String(),
		Path:        e.Path,
		Effect:      e.Effect,
	}
}

// Validate checks the fields every stored entry needs.
func (e TrackedContentEntry) Validate() error {
	if err := ValidateTrackingID(string(e.TrackingKey)); err != nil {
		return err
	}
	if e.StoreKey.IsZero() || e.StoreKey.Name == "" {
		return validationError("storeKey", "must be set")
	}
	if err := ValidatePath(e.Path); err != nil {
		return err
	}
	if _, err := ParseStoreEffect(string(e.Effect)); err != nil {
		return err
	}
	if e.AccessChannel != "" {
		if _, err := ParseAccessChannel(string(e.AccessChannel)); err != nil {
			return err
		}
	}
	if e.Size < 0 {
		return validationError("size", "must not be negative")
	}
	return nil
}

// TrackedContent is the aggregated view of a tracking session.
type TrackedContent struct {
	Key       TrackingKey           `json:"key"`
	Uploads   []TrackedContentEntry `json:"uploads"`
	Downloads []TrackedContentEntry `json:"downloads"`
}

// NewTrackedContent returns an empty aggregate for key.
func NewTrackedContent(key TrackingKey) *TrackedContent {
	return &TrackedContent{
		Key:       key,
		Uploads:   []TrackedContentEntry{},
		Downloads: []TrackedContentEntry{},
	}
}

// IsEmpty reports whether the aggregate holds no entries.
func (c *TrackedContent) IsEmpty() bool {
	return len(c.Uploads) == 0 && len(c.Downloads) == 0
}

// Entries returns uploads followed by downloads.
func (c *TrackedContent) Entries() []TrackedContentEntry {
	all := make([]TrackedContentEntry, 0, len(c.Uploads)+len(c.Downloads))
	all = append(all, c.Uploads...)
	return append(all, c.Downloads...)
}

// UploadsFor returns upload entries written to store.
func (c *TrackedContent) UploadsFor(store StoreKey) []TrackedContentEntry {
	var out []TrackedContentEntry
	for _, e := range c.Uploads {
		if e.StoreKey == store {
			out = append(out, e)
		}
	}
	return out
}

// Sort orders both entry sets by store key then path.
func (c *TrackedContent) Sort() {
	SortEntries(c.Uploads)
	SortEntries(c.Downloads)
}

// SortEntries orders entries by store key then path.
func SortEntries(entries []TrackedContentEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		si, sj := entries[i].StoreKey.String(), entries[j].StoreKey.String()
		if si != sj {
			return si < sj
		}
		return entries[i].Path < entries[j].Path
	})
}

// ContentTransfer describes an entry to be re-derived by the content service.
type ContentTransfer struct {
	StoreKey      StoreKey      `json:"storeKey"`
	TrackingKey   TrackingKey   `json:"trackingKey"`
	AccessChannel AccessChannel `json:"accessChannel"`
	Path          string        `json:"path"`
	OriginURL     string        `json:"originUrl,omitempty"`
	Effect        StoreEffect   `json:"effect"`
}

// TransferOf converts an entry into its transfer descriptor.
func TransferOf(e TrackedContentEntry) ContentTransfer {
	return ContentTransfer{
		StoreKey:      e.StoreKey,
		TrackingKey:   e.TrackingKey,
		AccessChannel: e.AccessChannel,
		Path:          e.Path,
		OriginURL:     e.OriginURL,
		Effect:        e.Effect,
	}
}
