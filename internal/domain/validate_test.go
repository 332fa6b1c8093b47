package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func knownCats(ids ...string) CategoryChecker {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(id string) bool {
		_, ok := set[id]
		return ok
	}
}

func validMCPTool() Tool {
	return Tool{
		ID:             "m1",
		Name:           "weather",
		SourceType:     SourceMCP,
		ApprovalStatus: ApprovalDraft,
		OwnerID:        "u1",
	}
}

func TestValidate_AcceptsWellFormedTool(t *testing.T) {
	require.NoError(t, Validate(validMCPTool(), knownCats("ai_assistant")))
}

func TestValidate_RequiresIDAndName(t *testing.T) {
	tool := validMCPTool()
	tool.ID = "  "
	tool.Name = ""

	err := Validate(tool, nil)
	require.Error(t, err)
	require.True(t, IsCode(err, CodeInvalidArgument))
	require.Contains(t, err.Error(), "id is required")
	require.Contains(t, err.Error(), "name is required")
}

func TestValidate_RejectsUnknownSource(t *testing.T) {
	tool := validMCPTool()
	tool.SourceType = "plugin"

	err := Validate(tool, nil)
	require.True(t, IsCode(err, CodeInvalidArgument))
	require.Contains(t, err.Error(), `unknown source type "plugin"`)
}

func TestValidate_RejectsUnknownCategory(t *testing.T) {
	tool := validMCPTool()
	tool.FunctionalCategory = "time_travel"

	err := Validate(tool, knownCats("ai_assistant", "document_processing"))
	require.True(t, IsCode(err, CodeInvalidArgument))
	require.Contains(t, err.Error(), `unknown category "time_travel"`)
}

func TestValidate_ApprovalStatusMustFitSource(t *testing.T) {
	tool := validMCPTool()
	tool.ApprovalStatus = ApprovalNotApplicable

	err := Validate(tool, nil)
	require.True(t, IsCode(err, CodeInvalidArgument))

	system := Tool{ID: "s1", Name: "search", SourceType: SourceSystem, ApprovalStatus: ApprovalDraft}
	err = Validate(system, nil)
	require.True(t, IsCode(err, CodeInvalidArgument))
	require.Contains(t, err.Error(), "no approval lifecycle")
}

func TestValidate_SystemToolsAlwaysEnabled(t *testing.T) {
	tool := Tool{ID: "s1", Name: "search", SourceType: SourceSystem, ApprovalStatus: ApprovalNotApplicable}

	err := Validate(tool, nil)
	require.True(t, IsCode(err, CodeInvalidArgument))
	require.Contains(t, err.Error(), "always enabled")

	tool.Enabled = true
	require.NoError(t, Validate(tool, nil))
}

func TestValidate_OwnerRequiredForOwnedSources(t *testing.T) {
	tool := validMCPTool()
	tool.OwnerID = ""

	err := Validate(tool, nil)
	require.True(t, IsCode(err, CodeInvalidArgument))
	require.Contains(t, err.Error(), "owner is required")
}

func TestStableToolID_NormalizesName(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	first := StableToolID(SourceAPI, "  Invoice   Export ", at)
	second := StableToolID(SourceAPI, "invoice export", at)
	require.Equal(t, first, second)
	require.Equal(t, "api-invoice-export-1700000000000", first)
}

func TestStableToolID_BlankNameStillUnique(t *testing.T) {
	at := time.Now()
	first := StableToolID(SourceUser, "", at)
	second := StableToolID(SourceUser, "", at)
	require.NotEqual(t, first, second)
}

func TestRedacted_MasksOnlySensitiveKeys(t *testing.T) {
	tool := validMCPTool()
	tool.Config = map[string]string{
		"endpoint": "https://example.com",
		"apiKey":   "s3cret",
	}
	tool.SensitiveFields = []string{"apiKey"}

	redacted := tool.Redacted()
	require.Equal(t, MaskedSecretValue, redacted.Config["apiKey"])
	require.Equal(t, "https://example.com", redacted.Config["endpoint"])
	// The original is untouched.
	require.Equal(t, "s3cret", tool.Config["apiKey"])
}

func TestClone_IsDeep(t *testing.T) {
	tool := validMCPTool()
	tool.Capabilities = []string{"fetch"}
	tool.Config = map[string]string{"endpoint": "https://example.com"}
	tool.TestResults = &TestResult{Success: true}

	clone := tool.Clone()
	clone.Capabilities[0] = "mutated"
	clone.Config["endpoint"] = "mutated"
	clone.TestResults.Success = false

	require.Equal(t, "fetch", tool.Capabilities[0])
	require.Equal(t, "https://example.com", tool.Config["endpoint"])
	require.True(t, tool.TestResults.Success)
}
