// Package category maps tools onto a fixed functional taxonomy. The
// taxonomy and its keyword rules are external configuration; inference
// itself is pure so it can run at load time and in migration passes.
package category

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCategory is used when no table entry matches and the table itself
// does not name a fallback.
const DefaultCategory = "ai_assistant"

// Definition describes one category of the taxonomy.
type Definition struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label,omitempty"`
}

// KeywordRule maps a keyword occurrence to a category. Rules are ordered;
// the first match wins.
type KeywordRule struct {
	Keyword  string `yaml:"keyword"`
	Category string `yaml:"category"`
}

type tableFile struct {
	Default    string            `yaml:"default"`
	Categories []Definition      `yaml:"categories"`
	Exact      map[string]string `yaml:"exact"`
	Keywords   []KeywordRule     `yaml:"keywords"`
}

// Table is an immutable category table. Build one with NewTable or
// LoadTable and share it freely; it is safe for concurrent use.
type Table struct {
	defaultID string
	defs      []Definition
	exact     map[string]string
	keywords  []KeywordRule
	known     map[string]struct{}
}

// NewTable validates and indexes a parsed table file.
func NewTable(defs []Definition, exact map[string]string, keywords []KeywordRule, defaultID string) (*Table, error) {
	if defaultID == "" {
		defaultID = DefaultCategory
	}
	known := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		id := strings.TrimSpace(def.ID)
		if id == "" {
			return nil, fmt.Errorf("category definition with empty id")
		}
		if _, dup := known[id]; dup {
			return nil, fmt.Errorf("duplicate category id %q", id)
		}
		known[id] = struct{}{}
	}
	if _, ok := known[defaultID]; !ok {
		return nil, fmt.Errorf("default category %q is not defined", defaultID)
	}
	for key, cat := range exact {
		if _, ok := known[cat]; !ok {
			return nil, fmt.Errorf("exact mapping %q targets unknown category %q", key, cat)
		}
	}
	normalized := make([]KeywordRule, 0, len(keywords))
	for _, rule := range keywords {
		keyword := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if keyword == "" {
			continue
		}
		if _, ok := known[rule.Category]; !ok {
			return nil, fmt.Errorf("keyword %q targets unknown category %q", rule.Keyword, rule.Category)
		}
		normalized = append(normalized, KeywordRule{Keyword: keyword, Category: rule.Category})
	}

	lowered := make(map[string]string, len(exact))
	for key, cat := range exact {
		lowered[strings.ToLower(strings.TrimSpace(key))] = cat
	}

	return &Table{
		defaultID: defaultID,
		defs:      append([]Definition(nil), defs...),
		exact:     lowered,
		keywords:  normalized,
		known:     known,
	}, nil
}

// LoadTable reads a YAML category table from disk.
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category table: %w", err)
	}
	table, err := ParseTable(raw)
	if err != nil {
		return nil, fmt.Errorf("category table %s: %w", path, err)
	}
	return table, nil
}

// ParseTable decodes a YAML category table.
func ParseTable(data []byte) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse category table: %w", err)
	}
	return NewTable(file.Categories, file.Exact, file.Keywords, file.Default)
}

// Known reports whether id is part of the taxonomy.
func (t *Table) Known(id string) bool {
	_, ok := t.known[id]
	return ok
}

// Default returns the fallback category id.
func (t *Table) Default() string {
	return t.defaultID
}

// Definitions returns the category definitions in declaration order.
func (t *Table) Definitions() []Definition {
	return append([]Definition(nil), t.defs...)
}

// IDs returns the sorted set of known category ids.
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.known))
	for id := range t.known {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
