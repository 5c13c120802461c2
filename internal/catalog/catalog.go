// Package catalog defines the item model the scheduling engine consumes.
//
// The engine treats items as opaque content: it never parses question
// text or options. The only fields it reads are the ones that affect
// scheduling (topic, option count, the rich-content flag, and the
// origin-priority flag). Content loading and rendering belong to the
// host.
package catalog

import (
	"fmt"
	"os"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Item is one reviewable entry in the catalog.
//
// IDs and topics are NFC-normalized on load so that the same item
// authored on different platforms hashes and compares identically.
type Item struct {
	ID             string `yaml:"id"`
	Topic          string `yaml:"topic"`
	OptionCount    int    `yaml:"options"`
	RichContent    bool   `yaml:"rich,omitempty"`
	OriginPriority bool   `yaml:"priority,omitempty"`
}

// Reviewable reports whether the item can appear in a review session.
// Items without answer options or with rich (code/diagram) content are
// excluded from scheduling entirely.
func (i Item) Reviewable() bool {
	return i.OptionCount > 0 && !i.RichContent
}

// Normalize returns the NFC normalization of s.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

// Load reads a YAML catalog file and returns its items in file order.
//
// Each entry must carry a non-empty, unique id. IDs and topics are
// NFC-normalized before any comparison or indexing.
func Load(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML catalog data. See Load.
func Parse(data []byte) ([]Item, error) {
	var items []Item
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(items))
	for idx := range items {
		items[idx].ID = Normalize(items[idx].ID)
		items[idx].Topic = Normalize(items[idx].Topic)

		id := items[idx].ID
		if id == "" {
			return nil, fmt.Errorf("parse catalog: entry %d has empty id", idx)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("parse catalog: duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	return items, nil
}

// Index builds an id lookup over the given items.
func Index(items []Item) map[string]Item {
	byID := make(map[string]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	return byID
}
