package category

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jin-never/logicworld-sub001/internal/domain"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable(
		[]Definition{
			{ID: "ai_assistant", Label: "AI Assistant"},
			{ID: "document_processing", Label: "Documents"},
			{ID: "data_retrieval", Label: "Data"},
			{ID: "automation", Label: "Automation"},
		},
		map[string]string{
			"mcp/weather-service": "data_retrieval",
			"tool-42":             "automation",
		},
		[]KeywordRule{
			{Keyword: "pdf", Category: "document_processing"},
			{Keyword: "invoice", Category: "document_processing"},
			{Keyword: "scrape", Category: "data_retrieval"},
			{Keyword: "schedule", Category: "automation"},
		},
		"ai_assistant",
	)
	require.NoError(t, err)
	return table
}

func TestInfer_ExactHintWinsOverKeywords(t *testing.T) {
	table := testTable(t)
	tool := domain.Tool{
		ID:          "m1",
		Name:        "pdf fetcher",
		SourceType:  domain.SourceMCP,
		RawTypeHint: "Weather-Service",
	}
	require.Equal(t, "data_retrieval", table.Infer(tool))
}

func TestInfer_ExactToolID(t *testing.T) {
	table := testTable(t)
	tool := domain.Tool{ID: "tool-42", Name: "mystery", SourceType: domain.SourceAPI}
	require.Equal(t, "automation", table.Infer(tool))
}

func TestInfer_NameBeforeDescription(t *testing.T) {
	table := testTable(t)
	tool := domain.Tool{
		ID:          "a1",
		Name:        "Scrape runner",
		Description: "generates PDF invoices",
		SourceType:  domain.SourceAPI,
	}
	require.Equal(t, "data_retrieval", table.Infer(tool))
}

func TestInfer_DescriptionKeyword(t *testing.T) {
	table := testTable(t)
	tool := domain.Tool{
		ID:          "a2",
		Name:        "exporter",
		Description: "generates PDF invoices",
		SourceType:  domain.SourceAPI,
	}
	require.Equal(t, "document_processing", table.Infer(tool))
}

func TestInfer_CapabilitiesThenDefault(t *testing.T) {
	table := testTable(t)
	tool := domain.Tool{
		ID:           "u1",
		Name:         "helper",
		SourceType:   domain.SourceUser,
		Capabilities: []string{"chat", "schedule-jobs"},
	}
	require.Equal(t, "automation", table.Infer(tool))

	tool.Capabilities = nil
	require.Equal(t, "ai_assistant", table.Infer(tool))
}

func TestInfer_FirstKeywordRuleWinsTies(t *testing.T) {
	table := testTable(t)
	// Both "pdf" and "invoice" occur; the earlier rule decides.
	tool := domain.Tool{ID: "a3", Name: "invoice pdf mill", SourceType: domain.SourceAPI}
	require.Equal(t, "document_processing", table.Infer(tool))
}

func TestMigrate_OnlyTouchesUncategorized(t *testing.T) {
	table := testTable(t)
	now := time.Now()
	tools := []domain.Tool{
		{ID: "a", Name: "pdf mill", SourceType: domain.SourceAPI},
		{ID: "b", Name: "left alone", SourceType: domain.SourceAPI, FunctionalCategory: "automation"},
	}

	migrated := table.Migrate(tools, now)
	require.Equal(t, "document_processing", migrated[0].FunctionalCategory)
	require.True(t, migrated[0].Migrated)
	require.Equal(t, now, migrated[0].MigratedAt)

	require.Equal(t, "automation", migrated[1].FunctionalCategory)
	require.False(t, migrated[1].Migrated)

	// Input slice untouched.
	require.Empty(t, tools[0].FunctionalCategory)
}

func TestMigrate_EveryToolEndsCategorized(t *testing.T) {
	table := testTable(t)
	tools := []domain.Tool{
		{ID: "a", Name: "zzz", SourceType: domain.SourceUser},
		{ID: "b", Name: "scrape it", SourceType: domain.SourceMCP},
		{ID: "c", Name: "", SourceType: domain.SourceAPI},
	}
	for _, tool := range table.Migrate(tools, time.Now()) {
		require.True(t, table.Known(tool.FunctionalCategory), "tool %s", tool.ID)
	}
}

func TestValidateCategories_Report(t *testing.T) {
	table := testTable(t)
	tools := []domain.Tool{
		{ID: "a", Name: "ok", FunctionalCategory: "automation"},
		{ID: "b", Name: "missing"},
		{ID: "c", Name: "bogus", FunctionalCategory: "time_travel"},
		{ID: "d", Name: "ok2", FunctionalCategory: "ai_assistant"},
	}

	report := table.ValidateCategories(tools)
	require.Equal(t, 4, report.Total)
	require.Equal(t, 2, report.Categorized)
	require.InDelta(t, 50.0, report.CompletenessPercent, 0.01)
	require.Len(t, report.Warnings, 1)
	require.Len(t, report.Errors, 1)
	require.Contains(t, report.Errors[0], `unknown category "time_travel"`)
}

func TestNewTable_RejectsBadConfig(t *testing.T) {
	_, err := NewTable([]Definition{{ID: "a"}}, nil, nil, "missing")
	require.Error(t, err)

	_, err = NewTable([]Definition{{ID: "a"}, {ID: "a"}}, nil, nil, "a")
	require.Error(t, err)

	_, err = NewTable([]Definition{{ID: "a"}}, map[string]string{"x": "nope"}, nil, "a")
	require.Error(t, err)

	_, err = NewTable([]Definition{{ID: "a"}}, nil, []KeywordRule{{Keyword: "k", Category: "nope"}}, "a")
	require.Error(t, err)
}

func TestLoadTable_YAML(t *testing.T) {
	path := t.TempDir() + "/categories.yaml"
	content := `
default: ai_assistant
categories:
  - id: ai_assistant
    label: AI Assistant
  - id: document_processing
    label: Documents
exact:
  mcp/pdf-mill: document_processing
keywords:
  - keyword: pdf
    category: document_processing
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := LoadTable(path)
	require.NoError(t, err)
	require.True(t, table.Known("document_processing"))
	require.Equal(t, "ai_assistant", table.Default())
	require.Equal(t, []string{"ai_assistant", "document_processing"}, table.IDs())
}
