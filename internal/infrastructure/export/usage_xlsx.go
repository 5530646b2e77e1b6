package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

const (
	summarySheet = "Summary"
	historySheet = "History"
)

// WriteUsageXLSX writes the usage snapshot as a workbook with a summary sheet
// and one row per history record.
func WriteUsageXLSX(w io.Writer, snap domain.UsageSnapshot, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	summary := [][]any{
		{"Plan", string(snap.Plan)},
		{"Tokens used", snap.TokensUsed},
		{"Token limit", maxTokensCell(snap)},
		{"Generated at", generatedAt.UTC().Format(time.RFC3339)},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	if _, err := f.NewSheet(historySheet); err != nil {
		return fmt.Errorf("create history sheet: %w", err)
	}
	header := []any{"Document", "Tokens", "Date"}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return fmt.Errorf("write history header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(historySheet, "A1", "C1", bold); err != nil {
		return fmt.Errorf("style history header: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return fmt.Errorf("create date style: %w", err)
	}

	for i, rec := range snap.History {
		rowNum := i + 2
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		row := []any{rec.Document, rec.Tokens, rec.Date.UTC()}
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return fmt.Errorf("write history row %d: %w", rowNum, err)
		}
		dateCell := fmt.Sprintf("C%d", rowNum)
		if err := f.SetCellStyle(historySheet, dateCell, dateCell, dateStyle); err != nil {
			return fmt.Errorf("style history row %d: %w", rowNum, err)
		}
	}
	if err := f.SetColWidth(historySheet, "A", "A", 40); err != nil {
		return fmt.Errorf("size history columns: %w", err)
	}
	if err := f.SetColWidth(historySheet, "C", "C", 20); err != nil {
		return fmt.Errorf("size history columns: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func maxTokensCell(snap domain.UsageSnapshot) any {
	if snap.Plan == domain.PlanEnterprise {
		return "Unlimited"
	}
	return snap.MaxTokens
}
