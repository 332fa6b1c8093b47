package domain

import (
	"fmt"
	"strings"
)

// CategoryChecker reports whether a category id is part of the known set.
// The category table itself is external configuration; the validator only
// needs membership.
type CategoryChecker func(id string) bool

// Validate checks the structural invariants of a tool. It returns a single
// *Error with CodeInvalidArgument carrying every violation, or nil. Callers
// must validate before mutating so partial writes cannot happen.
func Validate(tool Tool, knownCategory CategoryChecker) error {
	var problems []string

	if strings.TrimSpace(tool.ID) == "" {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(tool.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !KnownSource(tool.SourceType) {
		problems = append(problems, fmt.Sprintf("unknown source type %q", tool.SourceType))
	}
	if tool.FunctionalCategory != "" && knownCategory != nil && !knownCategory(tool.FunctionalCategory) {
		problems = append(problems, fmt.Sprintf("unknown category %q", tool.FunctionalCategory))
	}

	switch {
	case tool.SourceType.HasApprovalLifecycle():
		switch tool.ApprovalStatus {
		case ApprovalDraft, ApprovalPending, ApprovalApproved, ApprovalRejected:
		default:
			problems = append(problems, fmt.Sprintf("approval status %q is not valid for source %q", tool.ApprovalStatus, tool.SourceType))
		}
		if strings.TrimSpace(tool.OwnerID) == "" {
			problems = append(problems, fmt.Sprintf("owner is required for source %q", tool.SourceType))
		}
	case tool.SourceType == SourceSystem:
		if tool.ApprovalStatus != ApprovalNotApplicable && tool.ApprovalStatus != ApprovalApproved {
			problems = append(problems, "system tools carry no approval lifecycle")
		}
		if !tool.Enabled {
			problems = append(problems, "system tools are always enabled")
		}
	case tool.SourceType == SourceAI:
		if tool.ApprovalStatus != ApprovalNotApplicable {
			problems = append(problems, "ai tools carry no approval lifecycle")
		}
		if strings.TrimSpace(tool.OwnerID) == "" {
			problems = append(problems, "owner is required for source \"ai\"")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return E(CodeInvalidArgument, "domain.Validate", strings.Join(problems, "; "), nil)
}
