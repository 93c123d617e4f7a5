package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/domain/compensation"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
)

// Sheet names of the statement workbook
const (
	SheetPayouts   = "Payouts"
	SheetBreakdown = "Breakdown"
)

// StatementWriter renders payout statements as XLSX workbooks
type StatementWriter struct {
	logger *zap.Logger
}

// NewStatementWriter creates a new statement writer
func NewStatementWriter(logger *zap.Logger) *StatementWriter {
	return &StatementWriter{logger: logger}
}

// Write renders statement and the per-member breakdown of report to w
func (sw *StatementWriter) Write(w io.Writer, report *entity.Report, statement *compensation.Statement) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetPayouts); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetBreakdown); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	sw.setRow(f, SheetPayouts, 1, "Order", report.OrderRef)
	sw.setRow(f, SheetPayouts, 2, "Execution date", executionDate(report))
	sw.setRow(f, SheetPayouts, 3, "State", report.State.String())
	sw.setRow(f, SheetPayouts, 5, "Payee", "Name", "External ID", "Covers", "Amount")

	row := 6
	for _, line := range statement.Lines {
		covers := make([]string, len(line.Covers))
		for i, id := range line.Covers {
			covers[i] = string(id)
		}
		sw.setRow(f, SheetPayouts, row,
			string(line.Payee), line.PayeeName, line.ExternalID,
			strings.Join(covers, ", "), line.Amount.InexactFloat64())
		row++
	}
	sw.setRow(f, SheetPayouts, row, "Total", "", "", "", statement.Total.InexactFloat64())

	sw.setRow(f, SheetBreakdown, 1,
		"Member", "Hours", "Driver", "Transport", "Meal", "Work",
		"Accommodation", "Incidentals", "Total")
	row = 2
	for _, id := range report.Team.IDs() {
		calc, ok := report.Calculations[id]
		if !ok || calc == nil {
			continue
		}
		sw.setRow(f, SheetBreakdown, row,
			string(id), calc.WorkHours, calc.IsDriver,
			calc.Transport.InexactFloat64(), calc.MealAllowance.InexactFloat64(),
			calc.WorkAllowance.InexactFloat64(), calc.Accommodation.InexactFloat64(),
			calc.Incidentals.InexactFloat64(), calc.Total.InexactFloat64())
		row++
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	sw.logger.Debug("Statement workbook written",
		zap.Int64("report_id", report.ID),
		zap.Int("lines", len(statement.Lines)))
	return nil
}

// setRow writes values left to right starting in column A
func (sw *StatementWriter) setRow(f *excelize.File, sheet string, row int, values ...interface{}) {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		sw.logger.Warn("Invalid row", zap.Int("row", row), zap.Error(err))
		return
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		sw.logger.Warn("Failed to set row",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func executionDate(report *entity.Report) string {
	if d, ok := report.CalculationDate(); ok {
		return d.String()
	}
	return ""
}
