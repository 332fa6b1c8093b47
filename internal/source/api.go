package source

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/category"
	"github.com/jin-never/logicworld-sub001/internal/domain"
)

// sensitiveMarkers are substrings that flag a config key as holding a
// credential. Matched case-insensitively.
var sensitiveMarkers = []string{"key", "secret", "token", "password", "auth", "credential"}

// ScanSensitiveFields returns the config keys that look like credentials,
// sorted for stable output.
func ScanSensitiveFields(config map[string]string) []string {
	var fields []string
	for key := range config {
		lowered := strings.ToLower(key)
		for _, marker := range sensitiveMarkers {
			if strings.Contains(lowered, marker) {
				fields = append(fields, key)
				break
			}
		}
	}
	sort.Strings(fields)
	return fields
}

// APILoader loads generic API-tool configurations. Credential-looking
// config keys are recorded so other users never see them verbatim.
type APILoader struct {
	base
	backend Backend
}

type rawAPITool struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Method       string            `json:"method"`
	Endpoint     string            `json:"endpoint"`
	Status       string            `json:"approvalStatus"`
	Tested       bool              `json:"tested"`
	OwnerID      string            `json:"ownerId"`
	Capabilities []string          `json:"capabilities"`
	Config       map[string]string `json:"config"`
	Enabled      *bool             `json:"enabled"`
	GroupLabel   string            `json:"groupLabel"`
	GroupColor   string            `json:"groupColor"`
}

func NewAPILoader(backend Backend, table *category.Table, ttl time.Duration, logger *zap.Logger) *APILoader {
	return &APILoader{
		base:    newBase(domain.SourceAPI, ttl, table, logger),
		backend: backend,
	}
}

func (l *APILoader) Load(ctx context.Context) ([]domain.Tool, error) {
	now := l.now()
	if tools, ok := l.cache.get(now); ok {
		return tools, nil
	}

	records, err := l.backend.Fetch(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, "source.api.Load", err)
	}

	tools := make([]domain.Tool, 0, len(records))
	for _, record := range records {
		var raw rawAPITool
		if err := json.Unmarshal(record, &raw); err != nil {
			l.logger.Warn("skip malformed api record", zap.Error(err))
			continue
		}
		if raw.OwnerID == "" {
			l.logger.Warn("skip api record without owner", zap.String("id", raw.ID), zap.String("name", raw.Name))
			continue
		}

		status := domain.ApprovalDraft
		switch domain.ApprovalStatus(raw.Status) {
		case domain.ApprovalDraft, domain.ApprovalPending, domain.ApprovalApproved, domain.ApprovalRejected:
			status = domain.ApprovalStatus(raw.Status)
		}

		config := raw.Config
		if config == nil {
			config = map[string]string{}
		}
		if raw.Endpoint != "" {
			config["endpoint"] = raw.Endpoint
		}
		if raw.Method != "" {
			config["method"] = raw.Method
		}

		tool := domain.Tool{
			ID:              raw.ID,
			Name:            raw.Name,
			Description:     raw.Description,
			RawTypeHint:     raw.Method,
			Capabilities:    raw.Capabilities,
			ApprovalStatus:  status,
			Tested:          raw.Tested,
			Enabled:         raw.Enabled == nil || *raw.Enabled,
			OwnerID:         raw.OwnerID,
			Config:          config,
			SensitiveFields: ScanSensitiveFields(config),
			GroupLabel:      raw.GroupLabel,
			GroupColor:      raw.GroupColor,
		}
		if !l.admit(&tool, now) {
			l.logger.Warn("skip unusable api record", zap.String("id", raw.ID))
			continue
		}
		tools = append(tools, tool)
	}

	l.cache.set(tools, now)
	return tools, nil
}
