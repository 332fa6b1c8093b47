package category

import (
	"fmt"
	"time"

	"github.com/jin-never/logicworld-sub001/internal/domain"
)

// Migrate applies inference to every tool that lacks a category, stamping
// the migration marker and timestamp. Tools that already carry a category
// pass through unchanged. The input slice is not mutated.
func (t *Table) Migrate(tools []domain.Tool, now time.Time) []domain.Tool {
	out := make([]domain.Tool, len(tools))
	for i, tool := range tools {
		out[i] = tool.Clone()
		if out[i].FunctionalCategory != "" {
			continue
		}
		out[i].FunctionalCategory = t.Infer(tool)
		out[i].Migrated = true
		out[i].MigratedAt = now
	}
	return out
}

// Report summarizes category health across a tool set. It is a diagnostic,
// not a gate: callers log it and move on.
type Report struct {
	Total               int      `json:"total"`
	Categorized         int      `json:"categorized"`
	CompletenessPercent float64  `json:"completenessPercent"`
	Errors              []string `json:"errors,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
}

// ValidateCategories reports how many tools are uncategorized or carry a
// category id outside the known set.
func (t *Table) ValidateCategories(tools []domain.Tool) Report {
	report := Report{Total: len(tools)}
	for _, tool := range tools {
		switch {
		case tool.FunctionalCategory == "":
			report.Warnings = append(report.Warnings, fmt.Sprintf("tool %s (%s) has no category", tool.ID, tool.Name))
		case !t.Known(tool.FunctionalCategory):
			report.Errors = append(report.Errors, fmt.Sprintf("tool %s (%s) has unknown category %q", tool.ID, tool.Name, tool.FunctionalCategory))
		default:
			report.Categorized++
		}
	}
	if report.Total > 0 {
		report.CompletenessPercent = float64(report.Categorized) / float64(report.Total) * 100
	} else {
		report.CompletenessPercent = 100
	}
	return report
}
