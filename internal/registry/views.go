package registry

import (
	"sort"

	"github.com/jin-never/logicworld-sub001/internal/domain"
)

// Bucket names for the "my tools" screens.
const (
	BucketAI         = "ai"
	BucketPendingMCP = "pending_mcp"
	BucketPendingAPI = "pending_api"
	BucketDraft      = "draft"
	BucketCustom     = "custom"
)

// bucketOrder fixes the presentation order of non-empty buckets.
var bucketOrder = []string{BucketAI, BucketPendingMCP, BucketPendingAPI, BucketDraft, BucketCustom}

// GetTool returns one tool by id.
func (r *Registry) GetTool(id string) (domain.Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tool, ok := r.tools[id]
	if !ok {
		return domain.Tool{}, false
	}
	return tool.Clone(), true
}

// AllTools returns every registered tool, ordered by source then id for
// deterministic output.
func (r *Registry) AllTools() []domain.Tool {
	return r.collect(func(domain.Tool) bool { return true })
}

// ToolsBySource filters on the tool's origin.
func (r *Registry) ToolsBySource(src domain.SourceType) []domain.Tool {
	return r.collect(func(tool domain.Tool) bool { return tool.SourceType == src })
}

// ToolsByCategory filters on the functional category.
func (r *Registry) ToolsByCategory(categoryID string) []domain.Tool {
	return r.collect(func(tool domain.Tool) bool { return tool.FunctionalCategory == categoryID })
}

// accessible is the single access predicate every filtered view builds
// on: a tool is visible to a user when it is system-sourced, approved,
// or owned by that user.
func accessible(tool domain.Tool, userID string) bool {
	if tool.SourceType == domain.SourceSystem {
		return true
	}
	if tool.ApprovalStatus == domain.ApprovalApproved {
		return true
	}
	return userID != "" && tool.OwnerID == userID
}

// AccessibleTools returns every tool visible to the user.
func (r *Registry) AccessibleTools(userID string) []domain.Tool {
	return r.collect(func(tool domain.Tool) bool { return accessible(tool, userID) })
}

// ExecutableTools is the execution-facing view: accessible and enabled.
// Disabled tools stay in the registry but never show up here.
func (r *Registry) ExecutableTools(userID string) []domain.Tool {
	return r.collect(func(tool domain.Tool) bool { return accessible(tool, userID) && tool.Enabled })
}

// myTool is the stricter "my tools" predicate: owned ai tools, owned
// mcp/api tools that are not yet approved, and owned user tools.
// Approved mcp/api tools graduate out of this view.
func myTool(tool domain.Tool, userID string) bool {
	if userID == "" || tool.OwnerID != userID {
		return false
	}
	switch tool.SourceType {
	case domain.SourceAI, domain.SourceUser:
		return true
	case domain.SourceMCP, domain.SourceAPI:
		return tool.ApprovalStatus != domain.ApprovalApproved
	}
	return false
}

// UserTools returns the user's own tools for "my tools" screens.
func (r *Registry) UserTools(userID string) []domain.Tool {
	return r.collect(func(tool domain.Tool) bool { return myTool(tool, userID) })
}

func bucketFor(tool domain.Tool) string {
	switch tool.SourceType {
	case domain.SourceAI:
		return BucketAI
	case domain.SourceUser:
		return BucketCustom
	case domain.SourceMCP:
		if tool.ApprovalStatus == domain.ApprovalPending {
			return BucketPendingMCP
		}
		return BucketDraft
	case domain.SourceAPI:
		if tool.ApprovalStatus == domain.ApprovalPending {
			return BucketPendingAPI
		}
		return BucketDraft
	}
	return ""
}

// MyToolsCategories groups the user's tools into named buckets. Buckets
// with zero members are omitted; map iteration order is fixed by
// bucketOrder for callers that range over Names.
type MyToolsCategories struct {
	Names   []string
	Buckets map[string][]domain.Tool
}

// GetMyToolsCategories buckets UserTools output by source and approval
// state.
func (r *Registry) GetMyToolsCategories(userID string) MyToolsCategories {
	buckets := make(map[string][]domain.Tool)
	for _, tool := range r.UserTools(userID) {
		name := bucketFor(tool)
		if name == "" {
			continue
		}
		buckets[name] = append(buckets[name], tool)
	}
	out := MyToolsCategories{Buckets: buckets}
	for _, name := range bucketOrder {
		if len(buckets[name]) > 0 {
			out.Names = append(out.Names, name)
		}
	}
	return out
}

// MyToolsStats summarizes the user's tools per bucket.
type MyToolsStats struct {
	Total   int            `json:"total"`
	Tested  int            `json:"tested"`
	Buckets map[string]int `json:"buckets"`
}

// GetMyToolsStats counts the user's tools per bucket.
func (r *Registry) GetMyToolsStats(userID string) MyToolsStats {
	stats := MyToolsStats{Buckets: make(map[string]int)}
	for _, tool := range r.UserTools(userID) {
		name := bucketFor(tool)
		if name == "" {
			continue
		}
		stats.Total++
		stats.Buckets[name]++
		if tool.Tested {
			stats.Tested++
		}
	}
	return stats
}

// ApprovalRequests returns every recorded approval request.
func (r *Registry) ApprovalRequests() []domain.ApprovalRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ApprovalRequest, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Registry) collect(keep func(domain.Tool) bool) []domain.Tool {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		if keep(tool) {
			out = append(out, tool.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceType != out[j].SourceType {
			return sourceRank(out[i].SourceType) < sourceRank(out[j].SourceType)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sourceRank(src domain.SourceType) int {
	for i, candidate := range domain.SourceOrder {
		if candidate == src {
			return i
		}
	}
	return len(domain.SourceOrder)
}
