package source

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/category"
	"github.com/jin-never/logicworld-sub001/internal/domain"
)

// MCPLoader loads MCP-protocol tool configurations. The backend's
// `approved` boolean maps onto the lifecycle: true is approved, false is
// pending (the owner already asked), absent means the tool is still a
// draft.
type MCPLoader struct {
	base
	backend Backend
}

type rawMCPTool struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	ServerType   string            `json:"serverType"`
	Endpoint     string            `json:"endpoint"`
	Command      string            `json:"command"`
	Approved     *bool             `json:"approved"`
	Tested       bool              `json:"tested"`
	OwnerID      string            `json:"ownerId"`
	Capabilities []string          `json:"capabilities"`
	Config       map[string]string `json:"config"`
	Enabled      *bool             `json:"enabled"`
	GroupLabel   string            `json:"groupLabel"`
	GroupColor   string            `json:"groupColor"`
}

func NewMCPLoader(backend Backend, table *category.Table, ttl time.Duration, logger *zap.Logger) *MCPLoader {
	return &MCPLoader{
		base:    newBase(domain.SourceMCP, ttl, table, logger),
		backend: backend,
	}
}

func (l *MCPLoader) Load(ctx context.Context) ([]domain.Tool, error) {
	now := l.now()
	if tools, ok := l.cache.get(now); ok {
		return tools, nil
	}

	records, err := l.backend.Fetch(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, "source.mcp.Load", err)
	}

	tools := make([]domain.Tool, 0, len(records))
	for _, record := range records {
		var raw rawMCPTool
		if err := json.Unmarshal(record, &raw); err != nil {
			l.logger.Warn("skip malformed mcp record", zap.Error(err))
			continue
		}
		if raw.OwnerID == "" {
			l.logger.Warn("skip mcp record without owner", zap.String("id", raw.ID), zap.String("name", raw.Name))
			continue
		}

		status := domain.ApprovalDraft
		if raw.Approved != nil {
			if *raw.Approved {
				status = domain.ApprovalApproved
			} else {
				status = domain.ApprovalPending
			}
		}

		config := raw.Config
		if config == nil {
			config = map[string]string{}
		}
		if raw.Endpoint != "" {
			config["endpoint"] = raw.Endpoint
		}
		if raw.Command != "" {
			config["command"] = raw.Command
		}

		tool := domain.Tool{
			ID:             raw.ID,
			Name:           raw.Name,
			Description:    raw.Description,
			RawTypeHint:    raw.ServerType,
			Capabilities:   raw.Capabilities,
			ApprovalStatus: status,
			Tested:         raw.Tested,
			Enabled:        raw.Enabled == nil || *raw.Enabled,
			OwnerID:        raw.OwnerID,
			Config:         config,
			GroupLabel:     raw.GroupLabel,
			GroupColor:     raw.GroupColor,
		}
		if !l.admit(&tool, now) {
			l.logger.Warn("skip unusable mcp record", zap.String("id", raw.ID))
			continue
		}
		tools = append(tools, tool)
	}

	l.cache.set(tools, now)
	return tools, nil
}
