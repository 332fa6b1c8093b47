package main

import (
	"encoding/json"
	"fmt"

	"github.com/jin-never/logicworld-sub001/internal/category"
	"github.com/jin-never/logicworld-sub001/internal/domain"
)

func writeJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printTools(tools []domain.Tool, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(tools)
	}
	fmt.Printf("tools=%d\n", len(tools))
	for _, tool := range tools {
		status := string(tool.ApprovalStatus)
		if tool.ApprovalStatus == domain.ApprovalNotApplicable {
			status = "-"
		}
		fmt.Printf("%-40s %-8s %-24s %s\n", tool.ID, tool.SourceType, tool.FunctionalCategory, status)
	}
	return nil
}

func printCategoryReport(table *category.Table, report category.Report, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(map[string]any{
			"categories": table.Definitions(),
			"default":    table.Default(),
			"report":     report,
		})
	}
	for _, def := range table.Definitions() {
		label := def.Label
		if label == "" {
			label = def.ID
		}
		fmt.Printf("%-24s %s\n", def.ID, label)
	}
	fmt.Printf("completeness=%.1f%% categorized=%d/%d\n", report.CompletenessPercent, report.Categorized, report.Total)
	for _, warning := range report.Warnings {
		fmt.Println("warning:", warning)
	}
	for _, reportErr := range report.Errors {
		fmt.Println("error:", reportErr)
	}
	return nil
}

func printVerdict(toolID string, verdict domain.TestResult, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(map[string]any{"toolId": toolID, "result": verdict})
	}
	state := "FAIL"
	if verdict.Success {
		state = "OK"
	}
	fmt.Printf("%s %s: %s\n", state, toolID, verdict.Message)
	if verdict.Details != "" {
		fmt.Println(verdict.Details)
	}
	return nil
}
