package source

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/category"
	"github.com/jin-never/logicworld-sub001/internal/domain"
)

// SystemLoader loads the built-in system catalog. System tools carry no
// approval lifecycle and are always enabled.
type SystemLoader struct {
	base
	backend Backend
}

type rawSystemTool struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	Category     string   `json:"category"`
	Capabilities []string `json:"capabilities"`
	GroupLabel   string   `json:"groupLabel"`
	GroupColor   string   `json:"groupColor"`
}

func NewSystemLoader(backend Backend, table *category.Table, ttl time.Duration, logger *zap.Logger) *SystemLoader {
	return &SystemLoader{
		base:    newBase(domain.SourceSystem, ttl, table, logger),
		backend: backend,
	}
}

func (l *SystemLoader) Load(ctx context.Context) ([]domain.Tool, error) {
	now := l.now()
	if tools, ok := l.cache.get(now); ok {
		return tools, nil
	}

	records, err := l.backend.Fetch(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, "source.system.Load", err)
	}

	tools := make([]domain.Tool, 0, len(records))
	for _, record := range records {
		var raw rawSystemTool
		if err := json.Unmarshal(record, &raw); err != nil {
			l.logger.Warn("skip malformed system record", zap.Error(err))
			continue
		}
		tool := domain.Tool{
			ID:                 raw.ID,
			Name:               raw.Name,
			Description:        raw.Description,
			RawTypeHint:        raw.Type,
			FunctionalCategory: raw.Category,
			Capabilities:       raw.Capabilities,
			ApprovalStatus:     domain.ApprovalNotApplicable,
			Enabled:            true,
			GroupLabel:         raw.GroupLabel,
			GroupColor:         raw.GroupColor,
		}
		if !l.admit(&tool, now) {
			l.logger.Warn("skip unusable system record", zap.String("id", raw.ID))
			continue
		}
		tools = append(tools, tool)
	}

	l.cache.set(tools, now)
	return tools, nil
}
