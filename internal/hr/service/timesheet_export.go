package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-hr/internal/hr/entity"
	"github.com/xuri/excelize/v2"
)

var timesheetExportHeaders = []string{
	"#", "Project", "Description", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun", "Total",
}

var approvalExportHeaders = []string{"Cycle", "Stage", "Approver", "Status", "Acted At", "Comment"}

// Export renders one timesheet as an XLSX workbook: a Rows sheet with daily
// hours and totals, and an Approvals sheet with the approval trail.
func (s *TimesheetService) Export(ctx context.Context, actor Actor, id string) (*excelize.File, string, error) {
	ts, err := s.repos.Timesheet.FindDetail(ctx, id)
	if err != nil {
		return nil, "", notFoundOr(err, "timesheet")
	}
	if !canViewTimesheet(actor, ts) {
		return nil, "", ErrAuthorization("timesheet is not visible to you")
	}

	f := excelize.NewFile()
	sheet := "Rows"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	writeHeader(f, sheet, timesheetExportHeaders, headerStyle)

	var dayTotals [7]float64
	for i, row := range ts.Rows {
		r := i + 2
		project := ""
		if row.Project != nil {
			project = row.Project.Name
		}
		f.SetCellValue(sheet, fmt.Sprintf("A%d", r), i+1)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", r), project)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", r), row.Description)
		for d, h := range row.DayHours() {
			col, _ := excelize.ColumnNumberToName(4 + d)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, r), h)
			dayTotals[d] += h
		}
		f.SetCellValue(sheet, fmt.Sprintf("K%d", r), row.TotalHours)
	}

	summaryRow := len(ts.Rows) + 2
	summaryStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "Total")
	for d, h := range dayTotals {
		col, _ := excelize.ColumnNumberToName(4 + d)
		f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, summaryRow), entity.Round2(h))
	}
	f.SetCellValue(sheet, fmt.Sprintf("K%d", summaryRow), ts.TotalHours())
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("K%d", summaryRow), summaryStyle)

	colWidths := []float64{5, 24, 36, 7, 7, 7, 7, 7, 7, 7, 9}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	approvals := "Approvals"
	if _, err := f.NewSheet(approvals); err != nil {
		return nil, "", fmt.Errorf("create approvals sheet: %w", err)
	}
	writeHeader(f, approvals, approvalExportHeaders, headerStyle)
	for i, a := range ts.Approvals {
		r := i + 2
		approver := ""
		if a.Approver != nil {
			approver = a.Approver.Name
		} else if a.ApproverID != nil {
			approver = *a.ApproverID
		}
		acted := ""
		if a.ActedAt != nil {
			acted = a.ActedAt.UTC().Format("2006-01-02 15:04")
		}
		f.SetCellValue(approvals, fmt.Sprintf("A%d", r), a.Cycle)
		f.SetCellValue(approvals, fmt.Sprintf("B%d", r), a.ApproverRole)
		f.SetCellValue(approvals, fmt.Sprintf("C%d", r), approver)
		f.SetCellValue(approvals, fmt.Sprintf("D%d", r), a.Status)
		f.SetCellValue(approvals, fmt.Sprintf("E%d", r), acted)
		f.SetCellValue(approvals, fmt.Sprintf("F%d", r), a.Comment)
	}

	employee := ts.EmployeeID
	if ts.Employee != nil {
		employee = ts.Employee.Name
	}
	filename := fmt.Sprintf("timesheet_%s_%s.xlsx", employee, ts.PeriodStart.Format("2006-01-02"))
	return f, filename, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
}
