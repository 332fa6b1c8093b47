package source

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/category"
	"github.com/jin-never/logicworld-sub001/internal/domain"
)

// AILoader loads tools derived from the user's AI-service configurations.
// They are owned but sit outside the approval lifecycle.
type AILoader struct {
	base
	backend Backend
}

type rawAITool struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	OwnerID      string   `json:"ownerId"`
	Capabilities []string `json:"capabilities"`
	Enabled      *bool    `json:"enabled"`
	GroupLabel   string   `json:"groupLabel"`
	GroupColor   string   `json:"groupColor"`
}

func NewAILoader(backend Backend, table *category.Table, ttl time.Duration, logger *zap.Logger) *AILoader {
	return &AILoader{
		base:    newBase(domain.SourceAI, ttl, table, logger),
		backend: backend,
	}
}

func (l *AILoader) Load(ctx context.Context) ([]domain.Tool, error) {
	now := l.now()
	if tools, ok := l.cache.get(now); ok {
		return tools, nil
	}

	records, err := l.backend.Fetch(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, "source.ai.Load", err)
	}

	tools := make([]domain.Tool, 0, len(records))
	for _, record := range records {
		var raw rawAITool
		if err := json.Unmarshal(record, &raw); err != nil {
			l.logger.Warn("skip malformed ai record", zap.Error(err))
			continue
		}
		if raw.OwnerID == "" {
			l.logger.Warn("skip ai record without owner", zap.String("id", raw.ID), zap.String("name", raw.Name))
			continue
		}
		tool := domain.Tool{
			ID:             raw.ID,
			Name:           raw.Name,
			Description:    raw.Description,
			RawTypeHint:    raw.Provider,
			Capabilities:   raw.Capabilities,
			ApprovalStatus: domain.ApprovalNotApplicable,
			Enabled:        raw.Enabled == nil || *raw.Enabled,
			OwnerID:        raw.OwnerID,
			GroupLabel:     raw.GroupLabel,
			GroupColor:     raw.GroupColor,
		}
		if raw.Provider != "" || raw.Model != "" {
			tool.Config = map[string]string{}
			if raw.Provider != "" {
				tool.Config["provider"] = raw.Provider
			}
			if raw.Model != "" {
				tool.Config["model"] = raw.Model
			}
		}
		if !l.admit(&tool, now) {
			l.logger.Warn("skip unusable ai record", zap.String("id", raw.ID))
			continue
		}
		tools = append(tools, tool)
	}

	l.cache.set(tools, now)
	return tools, nil
}
