// Package mapper translates spreadsheet headers into internal lead field names
// using a campaign's field mapping.
package mapper

import (
	"context"
	"strings"

	appErrors "github.com/unclebandit/lead-ingest/internal/errors"
	"github.com/unclebandit/lead-ingest/internal/model"
)

// Source is the field-mapping store.
type Source interface {
	GetFieldMapping(ctx context.Context, campaignID string) ([]model.FieldMapping, error)
}

// FieldMap resolves readable headers to internal field names.
type FieldMap struct {
	exact  map[string]string
	folded map[string]string
	size   int
}

// New builds a FieldMap. When a readable field is configured twice the first
// entry wins.
func New(mappings []model.FieldMapping) *FieldMap {
	m := &FieldMap{
		exact:  make(map[string]string, len(mappings)),
		folded: make(map[string]string, len(mappings)),
	}
	for _, fm := range mappings {
		readable := strings.TrimSpace(fm.ReadableField)
		internal := strings.TrimSpace(fm.InternalField)
		if readable == "" || internal == "" {
			continue
		}
		if _, ok := m.exact[readable]; !ok {
			m.exact[readable] = internal
			m.size++
		}
		lower := strings.ToLower(readable)
		if _, ok := m.folded[lower]; !ok {
			m.folded[lower] = internal
		}
	}
	return m
}

// Load reads the campaign's mapping. No entries is ErrConfigNotFound.
func Load(ctx context.Context, src Source, campaignID string) (*FieldMap, error) {
	mappings, err := src.GetFieldMapping(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	m := New(mappings)
	if m.Len() == 0 {
		return nil, appErrors.NewConfigNotFound(campaignID)
	}
	return m, nil
}

// Len is the number of distinct readable fields.
func (m *FieldMap) Len() int { return m.size }

// Resolve returns the internal field for a header: exact match after
// trimming, then a case-insensitive match.
func (m *FieldMap) Resolve(header string) (string, bool) {
	h := strings.TrimSpace(header)
	if h == "" {
		return "", false
	}
	if internal, ok := m.exact[h]; ok {
		return internal, true
	}
	internal, ok := m.folded[strings.ToLower(h)]
	return internal, ok
}

// Map resolves a header row. Unmatched columns map to "".
func (m *FieldMap) Map(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i], _ = m.Resolve(h)
	}
	return out
}
