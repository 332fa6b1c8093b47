package registry

import (
	"context"
	"fmt"

	"github.com/jin-never/logicworld-sub001/internal/domain"
	"github.com/jin-never/logicworld-sub001/internal/event"
)

// Update carries the patchable fields of a tool. Nil fields are left
// untouched. SourceType is deliberately absent: it never changes.
type Update struct {
	Name               *string
	Description        *string
	FunctionalCategory *string
	Capabilities       *[]string
	Enabled            *bool
	Config             *map[string]string
	GroupLabel         *string
	GroupColor         *string
}

// AddTool admits a user-authored tool. Defaults are filled (id, approval
// status, category), then the result is validated before any state
// changes. The stored tool is returned.
func (r *Registry) AddTool(tool domain.Tool) (domain.Tool, error) {
	tool = tool.Clone()
	now := r.now()

	if tool.SourceType == "" {
		tool.SourceType = domain.SourceUser
	}
	if tool.ID == "" {
		tool.ID = newToolID(tool.SourceType)
	}
	if tool.ApprovalStatus == "" {
		if tool.SourceType.HasApprovalLifecycle() {
			tool.ApprovalStatus = domain.ApprovalDraft
		} else {
			tool.ApprovalStatus = domain.ApprovalNotApplicable
		}
	}
	if tool.SourceType == domain.SourceSystem {
		tool.Enabled = true
	}
	if tool.FunctionalCategory == "" && r.table != nil {
		tool.FunctionalCategory = r.table.Infer(tool)
	}

	if err := domain.Validate(tool, r.knownCategory); err != nil {
		return domain.Tool{}, domain.Wrap(domain.CodeInvalidArgument, "registry.AddTool", err)
	}

	r.mu.Lock()
	if _, exists := r.tools[tool.ID]; exists {
		r.mu.Unlock()
		return domain.Tool{}, domain.E(domain.CodeInvalidArgument, "registry.AddTool",
			fmt.Sprintf("tool id %q already exists", tool.ID), nil)
	}
	tool.CreatedAt = now
	tool.UpdatedAt = now
	r.tools[tool.ID] = tool
	r.locals[tool.ID] = struct{}{}
	r.mu.Unlock()

	r.bus.Publish(event.Event{Name: event.ToolAdded, ToolAdded: &event.ToolPayload{Tool: tool.Clone()}})
	return tool.Clone(), nil
}

// UpdateTool applies a patch to an existing tool. The patched result is
// validated before it replaces the stored record, so a failing update
// leaves the index untouched.
func (r *Registry) UpdateTool(id string, patch Update) (domain.Tool, error) {
	r.mu.Lock()
	current, ok := r.tools[id]
	if !ok {
		r.mu.Unlock()
		return domain.Tool{}, domain.E(domain.CodeNotFound, "registry.UpdateTool",
			fmt.Sprintf("tool %q not found", id), nil)
	}

	next := current.Clone()
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.FunctionalCategory != nil {
		next.FunctionalCategory = *patch.FunctionalCategory
	}
	if patch.Capabilities != nil {
		next.Capabilities = append([]string(nil), (*patch.Capabilities)...)
	}
	if patch.Enabled != nil {
		next.Enabled = *patch.Enabled
	}
	if patch.Config != nil {
		config := make(map[string]string, len(*patch.Config))
		for k, v := range *patch.Config {
			config[k] = v
		}
		next.Config = config
	}
	if patch.GroupLabel != nil {
		next.GroupLabel = *patch.GroupLabel
	}
	if patch.GroupColor != nil {
		next.GroupColor = *patch.GroupColor
	}

	if err := domain.Validate(next, r.knownCategory); err != nil {
		r.mu.Unlock()
		return domain.Tool{}, domain.Wrap(domain.CodeInvalidArgument, "registry.UpdateTool", err)
	}

	next.UpdatedAt = r.now()
	r.tools[id] = next
	r.mu.Unlock()

	r.bus.Publish(event.Event{Name: event.ToolUpdated, ToolUpdated: &event.ToolPayload{Tool: next.Clone()}})
	return next.Clone(), nil
}

// DeleteTool removes a tool and any unresolved approval request for it.
func (r *Registry) DeleteTool(id string) error {
	r.mu.Lock()
	tool, ok := r.tools[id]
	if !ok {
		r.mu.Unlock()
		return domain.E(domain.CodeNotFound, "registry.DeleteTool",
			fmt.Sprintf("tool %q not found", id), nil)
	}
	delete(r.tools, id)
	delete(r.locals, id)
	if reqID, open := r.openRequests[id]; open {
		delete(r.openRequests, id)
		delete(r.requests, reqID)
	}
	r.mu.Unlock()

	r.bus.Publish(event.Event{Name: event.ToolDeleted, ToolDeleted: &event.ToolDeletedPayload{
		ToolID: id,
		Tool:   tool.Clone(),
	}})
	return nil
}

// TestTool runs the source-appropriate connectivity probe and records the
// verdict. The probe runs outside the registry lock; the verdict lands on
// the current record if the tool still exists afterwards.
func (r *Registry) TestTool(ctx context.Context, id string) (domain.TestResult, error) {
	r.mu.Lock()
	tool, ok := r.tools[id]
	if !ok {
		r.mu.Unlock()
		return domain.TestResult{}, domain.E(domain.CodeNotFound, "registry.TestTool",
			fmt.Sprintf("tool %q not found", id), nil)
	}
	candidate := tool.Clone()
	r.mu.Unlock()

	verdict := r.probes.For(candidate.SourceType).Test(ctx, candidate)

	r.mu.Lock()
	stored, ok := r.tools[id]
	if !ok {
		r.mu.Unlock()
		return domain.TestResult{}, domain.E(domain.CodeNotFound, "registry.TestTool",
			fmt.Sprintf("tool %q deleted during test", id), nil)
	}
	stored = stored.Clone()
	stored.Tested = verdict.Success
	result := verdict
	stored.TestResults = &result
	stored.UpdatedAt = r.now()
	r.tools[id] = stored
	r.mu.Unlock()

	r.bus.Publish(event.Event{Name: event.ToolTested, ToolTested: &event.ToolTestedPayload{
		Tool:    stored.Clone(),
		Verdict: verdict,
	}})
	return verdict, nil
}
