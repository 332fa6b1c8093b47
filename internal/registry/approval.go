package registry

import (
	"fmt"
	"time"

	"github.com/jin-never/logicworld-sub001/internal/domain"
	"github.com/jin-never/logicworld-sub001/internal/event"
)

// RequestApproval moves a tested draft into the pending state and records
// the approval request. Untested tools are refused: a reviewer should
// never see a candidate whose connectivity was not verified.
func (r *Registry) RequestApproval(id, requesterID, reason string) (domain.ApprovalRequest, error) {
	r.mu.Lock()
	tool, ok := r.tools[id]
	if !ok {
		r.mu.Unlock()
		return domain.ApprovalRequest{}, domain.E(domain.CodeNotFound, "registry.RequestApproval",
			fmt.Sprintf("tool %q not found", id), nil)
	}
	if !tool.SourceType.HasApprovalLifecycle() {
		r.mu.Unlock()
		return domain.ApprovalRequest{}, domain.E(domain.CodeFailedPrecond, "registry.RequestApproval",
			fmt.Sprintf("source %q has no approval lifecycle", tool.SourceType), nil)
	}
	if tool.ApprovalStatus != domain.ApprovalDraft {
		r.mu.Unlock()
		return domain.ApprovalRequest{}, domain.E(domain.CodeFailedPrecond, "registry.RequestApproval",
			fmt.Sprintf("tool %q is %s, approval can only be requested from draft", id, tool.ApprovalStatus), nil)
	}
	if !tool.Tested {
		r.mu.Unlock()
		return domain.ApprovalRequest{}, domain.E(domain.CodeFailedPrecond, "registry.RequestApproval",
			fmt.Sprintf("tool %q must pass a connectivity test before approval is requested", id), nil)
	}

	now := r.now()
	request := domain.NewApprovalRequest(id, requesterID, reason, now)
	updated := tool.Clone()
	updated.ApprovalStatus = domain.ApprovalPending
	updated.UpdatedAt = now

	r.tools[id] = updated
	r.requests[request.ID] = request
	r.openRequests[id] = request.ID
	r.mu.Unlock()

	r.metrics.ObserveTransition(string(domain.ApprovalDraft), string(domain.ApprovalPending))
	r.bus.Publish(event.Event{Name: event.ApprovalRequested, ApprovalRequested: &event.ApprovalRequestedPayload{
		Tool:    updated.Clone(),
		Request: request,
	}})
	return request, nil
}

// ApproveTool resolves a pending tool. The original is marked approved
// and kept for ownership and audit history; a converted, system-facing
// copy with a fresh id is added alongside it. That copy is what
// execution-facing consumers see, with sensitive config values masked
// and ownership cleared.
func (r *Registry) ApproveTool(id, approverID, notes string) (domain.Tool, error) {
	r.mu.Lock()
	tool, ok := r.tools[id]
	if !ok {
		r.mu.Unlock()
		return domain.Tool{}, domain.E(domain.CodeNotFound, "registry.ApproveTool",
			fmt.Sprintf("tool %q not found", id), nil)
	}
	if tool.ApprovalStatus != domain.ApprovalPending {
		r.mu.Unlock()
		return domain.Tool{}, domain.E(domain.CodeFailedPrecond, "registry.ApproveTool",
			fmt.Sprintf("tool %q is %s, only pending tools can be approved", id, tool.ApprovalStatus), nil)
	}

	now := r.now()
	original := tool.Clone()
	original.ApprovalStatus = domain.ApprovalApproved
	original.UpdatedAt = now

	converted := original.Redacted()
	converted.ID = newToolID(domain.SourceSystem)
	converted.SourceType = domain.SourceSystem
	converted.ApprovalStatus = domain.ApprovalApproved
	converted.Enabled = true
	converted.OwnerID = ""
	converted.CreatedAt = now
	converted.UpdatedAt = now

	r.tools[id] = original
	r.tools[converted.ID] = converted
	r.locals[converted.ID] = struct{}{}
	r.resolveRequest(id, approverID, notes, now)
	r.mu.Unlock()

	r.metrics.ObserveTransition(string(domain.ApprovalPending), string(domain.ApprovalApproved))
	r.bus.Publish(event.Event{Name: event.ToolApproved, ToolApproved: &event.ToolApprovedPayload{
		Original:  original.Clone(),
		Converted: converted.Clone(),
	}})
	return converted.Clone(), nil
}

// RejectTool resolves a pending tool negatively. Rejected tools re-enter
// draft only through an explicit owner action, never automatically.
func (r *Registry) RejectTool(id, approverID, notes string) error {
	r.mu.Lock()
	tool, ok := r.tools[id]
	if !ok {
		r.mu.Unlock()
		return domain.E(domain.CodeNotFound, "registry.RejectTool",
			fmt.Sprintf("tool %q not found", id), nil)
	}
	if tool.ApprovalStatus != domain.ApprovalPending {
		r.mu.Unlock()
		return domain.E(domain.CodeFailedPrecond, "registry.RejectTool",
			fmt.Sprintf("tool %q is %s, only pending tools can be rejected", id, tool.ApprovalStatus), nil)
	}

	now := r.now()
	updated := tool.Clone()
	updated.ApprovalStatus = domain.ApprovalRejected
	updated.UpdatedAt = now
	r.tools[id] = updated
	r.resolveRequest(id, approverID, notes, now)
	r.mu.Unlock()

	r.metrics.ObserveTransition(string(domain.ApprovalPending), string(domain.ApprovalRejected))
	r.bus.Publish(event.Event{Name: event.ToolUpdated, ToolUpdated: &event.ToolPayload{Tool: updated.Clone()}})
	return nil
}

// ReturnToDraft is the explicit owner action that re-enters a rejected
// tool into the draft state for rework.
func (r *Registry) ReturnToDraft(id, ownerID string) error {
	r.mu.Lock()
	tool, ok := r.tools[id]
	if !ok {
		r.mu.Unlock()
		return domain.E(domain.CodeNotFound, "registry.ReturnToDraft",
			fmt.Sprintf("tool %q not found", id), nil)
	}
	if tool.OwnerID != ownerID {
		r.mu.Unlock()
		return domain.E(domain.CodePermissionDenied, "registry.ReturnToDraft",
			fmt.Sprintf("tool %q is not owned by %q", id, ownerID), nil)
	}
	if tool.ApprovalStatus != domain.ApprovalRejected {
		r.mu.Unlock()
		return domain.E(domain.CodeFailedPrecond, "registry.ReturnToDraft",
			fmt.Sprintf("tool %q is %s, only rejected tools return to draft", id, tool.ApprovalStatus), nil)
	}

	updated := tool.Clone()
	updated.ApprovalStatus = domain.ApprovalDraft
	updated.UpdatedAt = r.now()
	r.tools[id] = updated
	r.mu.Unlock()

	r.metrics.ObserveTransition(string(domain.ApprovalRejected), string(domain.ApprovalDraft))
	r.bus.Publish(event.Event{Name: event.ToolUpdated, ToolUpdated: &event.ToolPayload{Tool: updated.Clone()}})
	return nil
}

// resolveRequest closes the tool's open request, if any. Caller holds the
// lock.
func (r *Registry) resolveRequest(toolID, approverID, notes string, now time.Time) {
	reqID, open := r.openRequests[toolID]
	if !open {
		return
	}
	request := r.requests[reqID]
	request.Resolved = true
	request.ResolvedAt = now
	request.ApproverID = approverID
	request.Notes = notes
	r.requests[reqID] = request
	delete(r.openRequests, toolID)
}
