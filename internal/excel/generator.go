package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/freelancedao/escrow-service/internal/model"
)

const (
	summarySheet  = "Summary"
	contractSheet = "Contracts"
	statusSheet   = "Statuses"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(report model.ReconcileReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, report)

	if _, err := file.NewSheet(contractSheet); err != nil {
		return nil, err
	}
	g.writeRows(file, report.Summary.Rows)

	if _, err := file.NewSheet(statusSheet); err != nil {
		return nil, err
	}
	g.writeStatuses(file, report)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, report model.ReconcileReport) {
	s := report.Summary
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(summarySheet, cell, value)
	}

	set("A1", "Report")
	set("B1", "Milestone reconciliation")
	set("A2", "Generated at")
	set("B2", formatDateTime(report.GeneratedAt))
	set("A3", "Started at")
	set("B3", formatDateTime(s.StartedAt))
	set("A4", "Finished at")
	set("B4", formatDateTime(s.FinishedAt))
	set("A5", "Contracts checked")
	set("B5", s.Total)
	set("A6", "Jobs synced")
	set("B6", s.Synced)
	set("A7", "Unchanged")
	set("B7", s.Unchanged)
	set("A8", "Skipped")
	set("B8", s.Skipped)
	set("A9", "Errors")
	set("B9", s.Failed)

	for i, detail := range s.ErrorDetail {
		set(fmt.Sprintf("A%d", 11+i), detail)
	}

	_ = file.SetColWidth(summarySheet, "A", "A", 24)
	_ = file.SetColWidth(summarySheet, "B", "B", 28)
}

func (g *Generator) writeRows(file *excelize.File, rows []model.ReconcileRow) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(contractSheet, cell, value)
	}

	headers := []string{"Contract", "Job", "Outcome", "Milestones", "Progress, %", "Job status", "Detail"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, row := range rows {
		r := i + 2
		set(fmt.Sprintf("A%d", r), row.ContractID.String())
		set(fmt.Sprintf("B%d", r), row.JobID.String())
		set(fmt.Sprintf("C%d", r), string(row.Outcome))
		set(fmt.Sprintf("D%d", r), row.Milestones)
		set(fmt.Sprintf("E%d", r), row.Progress)
		set(fmt.Sprintf("F%d", r), string(row.JobStatus))
		set(fmt.Sprintf("G%d", r), row.Detail)
	}

	_ = file.SetColWidth(contractSheet, "A", "B", 38)
	_ = file.SetColWidth(contractSheet, "C", "F", 14)
	_ = file.SetColWidth(contractSheet, "G", "G", 40)
}

func (g *Generator) writeStatuses(file *excelize.File, report model.ReconcileReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(statusSheet, cell, value)
	}

	row := 1
	writeTable := func(title string, counts []model.StatusCount) {
		set(fmt.Sprintf("A%d", row), title)
		set(fmt.Sprintf("B%d", row), "Count")
		set(fmt.Sprintf("C%d", row), "Amount")
		row++
		for _, sc := range counts {
			set(fmt.Sprintf("A%d", row), sc.Status)
			set(fmt.Sprintf("B%d", row), sc.Total)
			set(fmt.Sprintf("C%d", row), formatAmount(sc.Amount))
			row++
		}
		row++
	}

	writeTable("Contract status", report.ContractStatuses)
	writeTable("Payment status", report.PaymentStatuses)

	_ = file.SetColWidth(statusSheet, "A", "A", 30)
	_ = file.SetColWidth(statusSheet, "B", "C", 16)
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatAmount(value float64) string {
	return fmt.Sprintf("%.2f", value)
}
