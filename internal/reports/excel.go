// Package reports renders downloadable documents: the day-end workbook and fee invoices.
package reports

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"busops/internal/dayend"
	"busops/internal/models"
)

const (
	reportsSheet = "Reports"
	summarySheet = "Summary"
)

var reportHeaders = []string{"Date", "Bus", "Conductor", "Trips", "Passengers", "Revenue", "Expenses", "Profit", "Status", "Notes"}

// DayEndWorkbook builds an xlsx with one row per report and a summary sheet. Bus and
// conductor names are used when the references were preloaded.
func DayEndWorkbook(records []models.DayEnd, summary dayend.Summary) (*excelize.File, error) {
	f := excelize.NewFile()

	if _, err := f.NewSheet(reportsSheet); err != nil {
		return nil, fmt.Errorf("create reports sheet: %w", err)
	}
	if err := writeReportRows(f, records); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummary(f, summary); err != nil {
		return nil, err
	}

	if idx, err := f.GetSheetIndex(reportsSheet); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	return f, nil
}

// WorkbookName is the download file name for an export made at t.
func WorkbookName(t time.Time) string {
	return fmt.Sprintf("day-end-reports_%s.xlsx", t.Format(models.DateLayout))
}

func writeReportRows(f *excelize.File, records []models.DayEnd) error {
	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(reportsSheet, cell, h); err != nil {
			return err
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(reportHeaders), 1)
	if err := f.SetCellStyle(reportsSheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, r := range records {
		passengers := 0
		for _, t := range r.TripDetails {
			passengers += t.PassengerCount
		}
		row := []interface{}{
			r.Date.String(),
			busLabel(r),
			conductorLabel(r),
			len(r.TripDetails),
			passengers,
			r.TotalRevenue.InexactFloat64(),
			r.TotalExpenses.InexactFloat64(),
			r.Profit.InexactFloat64(),
			r.Status,
			r.Notes,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(reportsSheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(reportsSheet, "A", "J", 14)
}

func writeSummary(f *excelize.File, s dayend.Summary) error {
	rows := [][]interface{}{
		{"Total reports", s.TotalReports},
		{"Approved", s.ApprovedCount},
		{"Pending", s.PendingCount},
		{"Rejected", s.RejectedCount},
		{"Total revenue", s.TotalRevenueSum.InexactFloat64()},
		{"Total expenses", s.TotalExpenseSum.InexactFloat64()},
		{"Total profit", s.TotalProfit.InexactFloat64()},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 18)
}

func busLabel(r models.DayEnd) string {
	if b, ok := r.BusRef().Populated(); ok {
		return b.BusNumber
	}
	return fmt.Sprintf("#%d", r.BusID)
}

func conductorLabel(r models.DayEnd) string {
	if u, ok := r.ConductorRef().Populated(); ok {
		return u.Name
	}
	if r.ConductorID == 0 {
		return ""
	}
	return fmt.Sprintf("#%d", r.ConductorID)
}
