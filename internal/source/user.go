package source

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/category"
	"github.com/jin-never/logicworld-sub001/internal/domain"
)

// LocalList supplies the purely local user-defined tools merged into the
// user source. The registry never writes through this interface.
type LocalList interface {
	Tools() ([]domain.Tool, error)
}

// UserLoader loads user-authored tools from the backend and merges the
// local-only list into the result, skipping any id the backend already
// returned in the same call.
type UserLoader struct {
	base
	backend Backend
	local   LocalList
}

type rawUserTool struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Type         string            `json:"type"`
	Status       string            `json:"approvalStatus"`
	Tested       bool              `json:"tested"`
	OwnerID      string            `json:"ownerId"`
	Capabilities []string          `json:"capabilities"`
	Config       map[string]string `json:"config"`
	Enabled      *bool             `json:"enabled"`
	GroupLabel   string            `json:"groupLabel"`
	GroupColor   string            `json:"groupColor"`
}

func NewUserLoader(backend Backend, local LocalList, table *category.Table, ttl time.Duration, logger *zap.Logger) *UserLoader {
	return &UserLoader{
		base:    newBase(domain.SourceUser, ttl, table, logger),
		backend: backend,
		local:   local,
	}
}

func (l *UserLoader) Load(ctx context.Context) ([]domain.Tool, error) {
	now := l.now()
	if tools, ok := l.cache.get(now); ok {
		return tools, nil
	}

	records, err := l.backend.Fetch(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, "source.user.Load", err)
	}

	seen := make(map[string]struct{})
	tools := make([]domain.Tool, 0, len(records))
	for _, record := range records {
		var raw rawUserTool
		if err := json.Unmarshal(record, &raw); err != nil {
			l.logger.Warn("skip malformed user record", zap.Error(err))
			continue
		}
		if raw.OwnerID == "" {
			l.logger.Warn("skip user record without owner", zap.String("id", raw.ID), zap.String("name", raw.Name))
			continue
		}

		status := domain.ApprovalDraft
		switch domain.ApprovalStatus(raw.Status) {
		case domain.ApprovalDraft, domain.ApprovalPending, domain.ApprovalApproved, domain.ApprovalRejected:
			status = domain.ApprovalStatus(raw.Status)
		}

		tool := domain.Tool{
			ID:             raw.ID,
			Name:           raw.Name,
			Description:    raw.Description,
			RawTypeHint:    raw.Type,
			Capabilities:   raw.Capabilities,
			ApprovalStatus: status,
			Tested:         raw.Tested,
			Enabled:        raw.Enabled == nil || *raw.Enabled,
			OwnerID:        raw.OwnerID,
			Config:         raw.Config,
			GroupLabel:     raw.GroupLabel,
			GroupColor:     raw.GroupColor,
		}
		if !l.admit(&tool, now) {
			l.logger.Warn("skip unusable user record", zap.String("id", raw.ID))
			continue
		}
		seen[tool.ID] = struct{}{}
		tools = append(tools, tool)
	}

	tools = l.mergeLocal(tools, seen, now)

	l.cache.set(tools, now)
	return tools, nil
}

// mergeLocal appends local-only tools not shadowed by this call's backend
// result. A failing local store degrades to the backend result alone.
func (l *UserLoader) mergeLocal(tools []domain.Tool, seen map[string]struct{}, now time.Time) []domain.Tool {
	if l.local == nil {
		return tools
	}
	localTools, err := l.local.Tools()
	if err != nil {
		l.logger.Warn("local tool list unavailable", zap.Error(err))
		return tools
	}
	for _, tool := range localTools {
		if tool.Name == "" {
			continue
		}
		if _, dup := seen[tool.ID]; dup && tool.ID != "" {
			continue
		}
		switch tool.ApprovalStatus {
		case domain.ApprovalDraft, domain.ApprovalPending, domain.ApprovalApproved, domain.ApprovalRejected:
		default:
			tool.ApprovalStatus = domain.ApprovalDraft
		}
		if !l.admit(&tool, now) {
			continue
		}
		seen[tool.ID] = struct{}{}
		tools = append(tools, tool)
	}
	return tools
}
