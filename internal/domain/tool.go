package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceType identifies which backend a tool was discovered from.
type SourceType string

const (
	// SourceSystem: the built-in system catalog. Always approved and enabled,
	// no owner, no approval lifecycle.
	SourceSystem SourceType = "system"

	// SourceAI: tools derived from a user's AI-service configurations.
	// Owned, but outside the approval lifecycle.
	SourceAI SourceType = "ai"

	// SourceMCP: MCP-protocol tool configurations. Owned, subject to the
	// draft/pending/approved lifecycle.
	SourceMCP SourceType = "mcp"

	// SourceAPI: generic API-tool configurations. Owned, subject to the
	// draft/pending/approved lifecycle.
	SourceAPI SourceType = "api"

	// SourceUser: purely local user-defined tools.
	SourceUser SourceType = "user"
)

// SourceOrder is the fixed merge order used when aggregating sources.
// Earlier sources win id collisions.
var SourceOrder = []SourceType{SourceSystem, SourceAI, SourceMCP, SourceAPI, SourceUser}

// KnownSource reports whether s is one of the five known source types.
func KnownSource(s SourceType) bool {
	switch s {
	case SourceSystem, SourceAI, SourceMCP, SourceAPI, SourceUser:
		return true
	}
	return false
}

// ApprovalStatus tracks where a tool sits in the approval lifecycle.
type ApprovalStatus string

const (
	// ApprovalNotApplicable is reserved for system and ai sourced tools.
	ApprovalNotApplicable ApprovalStatus = "not_applicable"
	ApprovalDraft         ApprovalStatus = "draft"
	ApprovalPending       ApprovalStatus = "pending"
	ApprovalApproved      ApprovalStatus = "approved"
	ApprovalRejected      ApprovalStatus = "rejected"
)

// HasApprovalLifecycle reports whether tools from this source move through
// the draft/pending/approved state machine.
func (s SourceType) HasApprovalLifecycle() bool {
	switch s {
	case SourceMCP, SourceAPI, SourceUser:
		return true
	}
	return false
}

// TestResult is the last verdict produced by a testing collaborator.
type TestResult struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// Tool is the normalized record every source loader produces.
// Instances are value types; the registry owns the canonical copy and
// hands out clones so callers can never mutate the index in place.
type Tool struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	SourceType         SourceType `json:"sourceType"`
	FunctionalCategory string     `json:"functionalCategory,omitempty"`
	RawTypeHint        string     `json:"rawTypeHint,omitempty"`
	Capabilities       []string   `json:"capabilities,omitempty"`

	ApprovalStatus ApprovalStatus `json:"approvalStatus"`
	Enabled        bool           `json:"enabled"`
	Tested         bool           `json:"tested"`
	TestResults    *TestResult    `json:"testResults,omitempty"`

	OwnerID string `json:"ownerId,omitempty"`

	// Config is the backend-specific opaque configuration. Key names listed
	// in SensitiveFields must never be surfaced verbatim to other users.
	Config          map[string]string `json:"config,omitempty"`
	SensitiveFields []string          `json:"sensitiveFields,omitempty"`

	// Presentation hints copied through unchanged.
	GroupLabel string `json:"groupLabel,omitempty"`
	GroupColor string `json:"groupColor,omitempty"`

	Migrated   bool      `json:"migrated,omitempty"`
	MigratedAt time.Time `json:"migratedAt,omitzero"`

	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Clone returns a deep copy of the tool.
func (t Tool) Clone() Tool {
	out := t
	if t.Capabilities != nil {
		out.Capabilities = make([]string, len(t.Capabilities))
		copy(out.Capabilities, t.Capabilities)
	}
	if t.SensitiveFields != nil {
		out.SensitiveFields = make([]string, len(t.SensitiveFields))
		copy(out.SensitiveFields, t.SensitiveFields)
	}
	if t.Config != nil {
		out.Config = make(map[string]string, len(t.Config))
		for k, v := range t.Config {
			out.Config[k] = v
		}
	}
	if t.TestResults != nil {
		res := *t.TestResults
		out.TestResults = &res
	}
	return out
}

// CloneTools deep-copies a slice of tools.
func CloneTools(tools []Tool) []Tool {
	if tools == nil {
		return nil
	}
	out := make([]Tool, len(tools))
	for i, t := range tools {
		out[i] = t.Clone()
	}
	return out
}

// StableToolID derives a collision-resistant id for a raw record whose
// backend supplied none. The name is normalized so the same record keeps
// the same id across loads within the fetch window.
func StableToolID(source SourceType, name string, fetchedAt time.Time) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	if slug == "" {
		return fmt.Sprintf("%s-%s", source, uuid.NewString())
	}
	return fmt.Sprintf("%s-%s-%d", source, slug, fetchedAt.UnixMilli())
}

// MaskedSecretValue replaces sensitive config values in redacted views.
const MaskedSecretValue = "**********"

// Redacted returns a copy with every sensitive config value masked.
func (t Tool) Redacted() Tool {
	out := t.Clone()
	if len(out.SensitiveFields) == 0 || len(out.Config) == 0 {
		return out
	}
	sensitive := make(map[string]struct{}, len(out.SensitiveFields))
	for _, field := range out.SensitiveFields {
		sensitive[field] = struct{}{}
	}
	for key, value := range out.Config {
		if _, ok := sensitive[key]; ok && strings.TrimSpace(value) != "" {
			out.Config[key] = MaskedSecretValue
		}
	}
	return out
}

// ApprovalRequest records one pass through the pending state. It is
// resolved (approved or rejected) exactly once.
type ApprovalRequest struct {
	ID          string    `json:"id"`
	ToolID      string    `json:"toolId"`
	RequesterID string    `json:"requesterId"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Resolved    bool      `json:"resolved"`
	ResolvedAt  time.Time `json:"resolvedAt,omitzero"`
	ApproverID  string    `json:"approverId,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// NewApprovalRequest creates an unresolved request for the given tool.
func NewApprovalRequest(toolID, requesterID, reason string, now time.Time) ApprovalRequest {
	return ApprovalRequest{
		ID:          uuid.NewString(),
		ToolID:      toolID,
		RequesterID: requesterID,
		Reason:      reason,
		CreatedAt:   now,
	}
}
