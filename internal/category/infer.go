package category

import (
	"fmt"
	"strings"

	"github.com/jin-never/logicworld-sub001/internal/domain"
)

// Infer resolves the functional category for a tool. Resolution order, each
// step tried only when the previous produced no match:
//
//  1. exact lookup of source/rawTypeHint, then the tool id
//  2. keyword match against the name
//  3. keyword match against the description
//  4. keyword match against each capability tag
//  5. the table's default category
//
// Infer is pure: no side effects, no I/O.
func (t *Table) Infer(tool domain.Tool) string {
	if hint := strings.TrimSpace(tool.RawTypeHint); hint != "" {
		key := strings.ToLower(fmt.Sprintf("%s/%s", tool.SourceType, hint))
		if cat, ok := t.exact[key]; ok {
			return cat
		}
	}
	if cat, ok := t.exact[strings.ToLower(tool.ID)]; ok {
		return cat
	}
	if cat, ok := t.matchKeywords(tool.Name); ok {
		return cat
	}
	if cat, ok := t.matchKeywords(tool.Description); ok {
		return cat
	}
	for _, capability := range tool.Capabilities {
		if cat, ok := t.matchKeywords(capability); ok {
			return cat
		}
	}
	return t.defaultID
}

// matchKeywords returns the category of the first rule whose keyword occurs
// in text, case-insensitively. Rule order is the tie-breaker.
func (t *Table) matchKeywords(text string) (string, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", false
	}
	for _, rule := range t.keywords {
		if strings.Contains(text, rule.Keyword) {
			return rule.Category, true
		}
	}
	return "", false
}
