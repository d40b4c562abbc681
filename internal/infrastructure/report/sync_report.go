// Package report renders batch reconciliation results as Excel workbooks.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/service"
)

const (
	claimsSheet  = "Claims"
	summarySheet = "Summary"

	timeLayout = "2006-01-02 15:04:05"
)

var claimsHeader = []interface{}{
	"Claim ID", "Claim Number", "Result", "Previous Status", "New Status",
	"Carrier Status", "Changed", "Error Code", "Error", "Synced At",
}

// SyncReportWriter writes a SyncAllResult as an xlsx workbook with a per-claim
// sheet and a summary sheet.
type SyncReportWriter struct {
	logger *zap.Logger
}

// NewSyncReportWriter creates a new SyncReportWriter
func NewSyncReportWriter(logger *zap.Logger) *SyncReportWriter {
	return &SyncReportWriter{logger: logger}
}

// Filename returns the download name for a batch report
func Filename(result *service.SyncAllResult) string {
	return fmt.Sprintf("carrier-sync-%s-%s.xlsx", result.CarrierCode, result.StartedAt.UTC().Format("20060102-150405"))
}

// Write renders result to w
func (rw *SyncReportWriter) Write(w io.Writer, result *service.SyncAllResult) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", claimsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := file.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := rw.fillClaims(file, result, bold); err != nil {
		return fmt.Errorf("failed to fill claims: %w", err)
	}
	if err := rw.fillSummary(file, result, bold); err != nil {
		return fmt.Errorf("failed to fill summary: %w", err)
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	rw.logger.Info("Sync report written",
		zap.String("carrier", result.CarrierCode),
		zap.Int("rows", len(result.Results)))
	return nil
}

func (rw *SyncReportWriter) fillClaims(file *excelize.File, result *service.SyncAllResult, headerStyle int) error {
	if err := file.SetSheetRow(claimsSheet, "A1", &claimsHeader); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(claimsHeader))
	if err != nil {
		return err
	}
	if err := file.SetCellStyle(claimsSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, outcome := range result.Results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			outcome.ClaimID,
			outcome.ClaimNumber,
			resultLabel(outcome.Success),
			string(outcome.PreviousStatus),
			string(outcome.NewStatus),
			string(outcome.CarrierStatus),
			outcome.Changed,
			outcome.ErrorCode,
			outcome.Error,
			formatTime(outcome.SyncedAt),
		}
		if err := file.SetSheetRow(claimsSheet, cell, &row); err != nil {
			return err
		}
	}

	if err := file.SetColWidth(claimsSheet, "A", "B", 24); err != nil {
		return err
	}
	return file.SetColWidth(claimsSheet, "I", "I", 48)
}

func (rw *SyncReportWriter) fillSummary(file *excelize.File, result *service.SyncAllResult, headerStyle int) error {
	rows := [][]interface{}{
		{"Carrier", result.CarrierCode},
		{"Total", result.Total},
		{"Synced", result.Synced},
		{"Failed", result.Failed},
		{"Started At", formatTime(result.StartedAt)},
		{"Finished At", formatTime(result.FinishedAt)},
		{"Duration (s)", result.FinishedAt.Sub(result.StartedAt).Seconds()},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	if err := file.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), headerStyle); err != nil {
		return err
	}
	return file.SetColWidth(summarySheet, "A", "B", 22)
}

func resultLabel(success bool) string {
	if success {
		return "synced"
	}
	return "failed"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
