package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ProviderTag namespaces external ids and records which adapter sourced a file.
type ProviderTag string

const (
	ProviderPrimary   ProviderTag = "catalog_primary"
	ProviderSecondary ProviderTag = "catalog_secondary"
	ProviderPeer      ProviderTag = "peer"
)

// CatalogTags lists the tags a descriptor may carry an id for, in strategy order.
var CatalogTags = []ProviderTag{ProviderPrimary, ProviderSecondary}

// Valid reports whether t is a known provider tag.
func (t ProviderTag) Valid() bool {
	switch t {
	case ProviderPrimary, ProviderSecondary, ProviderPeer:
		return true
	}
	return false
}

// ExternalID is one (provider_tag, id_value) pair.
type ExternalID struct {
	Provider ProviderTag `json:"provider_tag" db:"provider_tag"`
	Value    string      `json:"id_value" db:"id_value"`
}

func (e ExternalID) String() string {
	return string(e.Provider) + ":" + e.Value
}

// ParseExternalID accepts "tag:value".
func ParseExternalID(s string) (ExternalID, error) {
	tag, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return ExternalID{}, fmt.Errorf("%w: external id must be tag:value, got %q", ErrInvalidRequest, s)
	}
	id := ExternalID{Provider: ProviderTag(tag), Value: value}
	if !id.Provider.Valid() {
		return ExternalID{}, fmt.Errorf("%w: unknown provider tag %q", ErrInvalidRequest, tag)
	}
	return id, nil
}

// ExternalIDs maps a provider tag to its opaque id.
type ExternalIDs map[ProviderTag]string

// List returns the pairs ordered by provider tag.
func (m ExternalIDs) List() []ExternalID {
	out := make([]ExternalID, 0, len(m))
	for tag, value := range m {
		out = append(out, ExternalID{Provider: tag, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// Quality is a streaming tier.
type Quality string

const (
	QualityLow      Quality = "low"
	QualityMedium   Quality = "medium"
	QualityHigh     Quality = "high"
	QualityLossless Quality = "lossless"
)

// ParseQuality maps a request value to a tier; empty means high.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case "":
		return QualityHigh, nil
	case QualityLow, QualityMedium, QualityHigh, QualityLossless:
		return q, nil
	}
	return "", fmt.Errorf("%w: unknown quality %q", ErrInvalidRequest, s)
}

// RecordKind is the kind of a normalized catalog record.
type RecordKind string

const (
	KindSong   RecordKind = "song"
	KindAlbum  RecordKind = "album"
	KindArtist RecordKind = "artist"
)
