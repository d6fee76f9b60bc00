package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"busops/internal/config"
	"busops/internal/dayend"
	"busops/internal/events"
	"busops/internal/middleware"
	"busops/internal/models"
	"busops/internal/reports"
)

// maxExportRows bounds a single spreadsheet export.
const maxExportRows = 10000

type tripInput struct {
	TripNumber     int             `json:"tripNumber" binding:"gte=0"`
	StartTime      string          `json:"startTime"`
	EndTime        string          `json:"endTime"`
	PassengerCount int             `json:"passengerCount" binding:"gte=0"`
	TotalFare      decimal.Decimal `json:"totalFare"`
	CashInHand     decimal.Decimal `json:"cashInHand"`
}

type dayEndExpenseInput struct {
	ExpenseName string          `json:"expenseName" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
}

type dayEndInput struct {
	BusID       uint                 `json:"busId" binding:"required"`
	ConductorID uint                 `json:"conductorId"`
	Date        models.Date          `json:"date"`
	TripDetails []tripInput          `json:"tripDetails" binding:"dive"`
	Expenses    []dayEndExpenseInput `json:"expenses" binding:"dive"`
	Notes       string               `json:"notes"`
}

func (in dayEndInput) lineItems() ([]models.TripDetail, []models.DayEndExpense, error) {
	trips := make([]models.TripDetail, 0, len(in.TripDetails))
	for i, t := range in.TripDetails {
		if t.TotalFare.IsNegative() || t.CashInHand.IsNegative() {
			return nil, nil, invalid("trip %d: amounts must not be negative", i+1)
		}
		n := t.TripNumber
		if n == 0 {
			n = i + 1
		}
		trips = append(trips, models.TripDetail{
			TripNumber:     n,
			StartTime:      t.StartTime,
			EndTime:        t.EndTime,
			PassengerCount: t.PassengerCount,
			TotalFare:      t.TotalFare,
			CashInHand:     t.CashInHand,
		})
	}
	expenses := make([]models.DayEndExpense, 0, len(in.Expenses))
	for _, e := range in.Expenses {
		if e.Amount.IsNegative() {
			return nil, nil, invalid("expense %q: amount must not be negative", e.ExpenseName)
		}
		expenses = append(expenses, models.DayEndExpense{ExpenseName: strings.TrimSpace(e.ExpenseName), Amount: e.Amount})
	}
	return trips, expenses, nil
}

// ListDayEnds returns one page of reports for buses in scope, newest first.
// Query: startDate, endDate, busId, status, page, limit.
func ListDayEnds(c *gin.Context) {
	params, q, err := filteredDayEnds(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		respondError(c, err)
		return
	}

	var reports []models.DayEnd
	err = preloadDayEnd(q).
		Order("date DESC, id DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&reports).Error
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports":    reports,
		"count":      count,
		"totalPages": params.TotalPages(count),
		"page":       params.Page,
		"limit":      params.Limit,
	})
}

// DayEndSummary aggregates every report matching the filters, not just one page.
func DayEndSummary(c *gin.Context) {
	_, q, err := filteredDayEnds(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var rows []struct {
		Status   string
		Reports  int64
		Revenue  decimal.NullDecimal
		Expenses decimal.NullDecimal
		Profit   decimal.NullDecimal
	}
	err = q.Select("status, COUNT(*) AS reports, SUM(total_revenue) AS revenue, SUM(total_expenses) AS expenses, SUM(profit) AS profit").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		respondError(c, err)
		return
	}

	s := dayend.Summary{Scope: dayend.ScopeDataset}
	for _, r := range rows {
		s.TotalReports += r.Reports
		switch r.Status {
		case models.DayEndApproved:
			s.ApprovedCount += r.Reports
		case models.DayEndPending:
			s.PendingCount += r.Reports
		case models.DayEndRejected:
			s.RejectedCount += r.Reports
		}
		s.TotalRevenueSum = s.TotalRevenueSum.Add(r.Revenue.Decimal)
		s.TotalExpenseSum = s.TotalExpenseSum.Add(r.Expenses.Decimal)
		s.TotalProfit = s.TotalProfit.Add(r.Profit.Decimal)
	}
	c.JSON(http.StatusOK, gin.H{"summary": s})
}

func GetDayEnd(c *gin.Context) {
	report, err := loadScopedDayEnd(c, preloadDayEnd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// CreateDayEnd submits a report for review. Totals are computed from the line items.
func CreateDayEnd(c *gin.Context) {
	var input dayEndInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	scope, err := loadBusScope(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := activeBus(scope, input.BusID); err != nil {
		respondError(c, err)
		return
	}
	trips, expenses, err := input.lineItems()
	if err != nil {
		respondError(c, err)
		return
	}

	conductorID := input.ConductorID
	if conductorID == 0 {
		conductorID = middleware.CurrentUserID(c)
	} else if err := activeUser(conductorID); err != nil {
		respondError(c, err)
		return
	}
	if input.Date.IsZero() {
		input.Date = models.NewDate(now())
	}

	report := models.DayEnd{
		BusID:       input.BusID,
		ConductorID: conductorID,
		Date:        input.Date,
		TripDetails: trips,
		Expenses:    expenses,
		Status:      models.DayEndPending,
		Notes:       input.Notes,
	}
	report.TotalRevenue, report.TotalExpenses, report.Profit = dayend.Totals(trips, expenses)

	if err := config.DB.Create(&report).Error; err != nil {
		if cerr := classifyDBError(err, "Day-end report"); errors.As(cerr, new(ConflictError)) {
			respondError(c, ConflictError{Msg: "a day-end report for this bus and date already exists"})
			return
		}
		respondError(c, err)
		return
	}
	preloadDayEnd(config.DB).First(&report, report.ID)
	c.JSON(http.StatusCreated, gin.H{"report": report})
}

// UpdateDayEnd replaces the line items of a report that is still pending.
func UpdateDayEnd(c *gin.Context) {
	report, err := loadScopedDayEnd(c, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	if report.Status != models.DayEndPending {
		respondError(c, ConflictError{Msg: "only pending reports can be edited"})
		return
	}

	var input dayEndInput
	input.BusID = report.BusID
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	if input.BusID != report.BusID {
		respondError(c, invalid("busId cannot be changed"))
		return
	}
	trips, expenses, err := input.lineItems()
	if err != nil {
		respondError(c, err)
		return
	}
	if !input.Date.IsZero() {
		report.Date = input.Date
	}
	if input.ConductorID != 0 && input.ConductorID != report.ConductorID {
		if err := activeUser(input.ConductorID); err != nil {
			respondError(c, err)
			return
		}
		report.ConductorID = input.ConductorID
	}
	report.Notes = input.Notes
	report.TotalRevenue, report.TotalExpenses, report.Profit = dayend.Totals(trips, expenses)

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DayEnd{}).
			Where("id = ? AND status = ?", report.ID, models.DayEndPending).
			Updates(map[string]interface{}{
				"date":           report.Date,
				"conductor_id":   report.ConductorID,
				"notes":          report.Notes,
				"total_revenue":  report.TotalRevenue,
				"total_expenses": report.TotalExpenses,
				"profit":         report.Profit,
			})
		if res.Error != nil {
			return classifyDBError(res.Error, "Day-end report")
		}
		if res.RowsAffected == 0 {
			return ConflictError{Msg: "report was reviewed while you were editing it"}
		}
		if err := tx.Where("day_end_id = ?", report.ID).Delete(&models.TripDetail{}).Error; err != nil {
			return err
		}
		if err := tx.Where("day_end_id = ?", report.ID).Delete(&models.DayEndExpense{}).Error; err != nil {
			return err
		}
		for i := range trips {
			trips[i].DayEndID = report.ID
		}
		for i := range expenses {
			expenses[i].DayEndID = report.ID
		}
		if len(trips) > 0 {
			if err := tx.Create(&trips).Error; err != nil {
				return err
			}
		}
		if len(expenses) > 0 {
			return tx.Create(&expenses).Error
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	preloadDayEnd(config.DB).First(&report, report.ID)
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// UpdateDayEndStatus approves or rejects a pending report. The update is conditional on
// the stored status so two reviewers cannot both win.
func UpdateDayEndStatus(c *gin.Context) {
	var payload struct {
		Status string `json:"status" binding:"required"`
		Notes  string `json:"notes"`
	}
	if err := bindJSON(c, &payload); err != nil {
		respondError(c, err)
		return
	}
	target := strings.ToLower(strings.TrimSpace(payload.Status))
	if !dayend.IsValidStatus(target) {
		respondError(c, invalid("unknown status %q", payload.Status))
		return
	}

	report, err := loadScopedDayEnd(c, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := dayend.CheckTransition(report.Status, target); err != nil {
		respondError(c, ConflictError{Msg: err.Error()})
		return
	}

	reviewer := middleware.CurrentUserID(c)
	reviewedAt := now().UTC()
	updates := map[string]interface{}{
		"status":      target,
		"reviewed_by": reviewer,
		"reviewed_at": reviewedAt,
	}
	if payload.Notes != "" {
		updates["notes"] = payload.Notes
	}
	res := config.DB.Model(&models.DayEnd{}).
		Where("id = ? AND status = ?", report.ID, models.DayEndPending).
		Updates(updates)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, ConflictError{Msg: "report has already been reviewed"})
		return
	}

	if err := preloadDayEnd(config.DB).First(&report, report.ID).Error; err != nil {
		respondError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"day_end_id":  report.ID,
		"bus_id":      report.BusID,
		"status":      target,
		"reviewed_by": reviewer,
	}).Info("day-end report reviewed")

	publishReview(report, reviewer, reviewedAt)
	c.JSON(http.StatusOK, gin.H{"message": "Status updated", "report": report})
}

// publishReview notifies dashboards and downstream consumers; failures are logged only.
func publishReview(report models.DayEnd, reviewer uint, at time.Time) {
	e := events.Event{
		Type:       events.TypeDayEndStatusChanged,
		DayEndID:   report.ID,
		BusID:      report.BusID,
		Status:     report.Status,
		ReviewedBy: reviewer,
		At:         at,
	}
	if report.Bus != nil {
		e.OwnerID = report.Bus.OwnerID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := publisher.Publish(ctx, e); err != nil {
		logrus.WithError(err).WithField("day_end_id", report.ID).Warn("could not publish review event")
	}
}

// ExportDayEnds downloads every report matching the list filters as an xlsx workbook.
func ExportDayEnds(c *gin.Context) {
	_, q, err := filteredDayEnds(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var records []models.DayEnd
	if err := preloadDayEnd(q).Order("date DESC, id DESC").Limit(maxExportRows).Find(&records).Error; err != nil {
		respondError(c, err)
		return
	}
	summary := dayend.Summarize(records)
	summary.Scope = dayend.ScopeDataset

	f, err := reports.DayEndWorkbook(records, summary)
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", reports.WorkbookName(now())))
	c.Header("Content-Transfer-Encoding", "binary")
	if err := f.Write(c.Writer); err != nil {
		logrus.WithError(err).Error("ExportDayEnds: failed to write workbook")
	}
}

// DeleteDayEnd is limited to the super-admin and the bus owner.
func DeleteDayEnd(c *gin.Context) {
	if middleware.CurrentRole(c) == models.RoleManager {
		respondError(c, ForbiddenError{Msg: "Managers cannot delete reports"})
		return
	}
	report, err := loadScopedDayEnd(c, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("day_end_id = ?", report.ID).Delete(&models.TripDetail{}).Error; err != nil {
			return err
		}
		if err := tx.Where("day_end_id = ?", report.ID).Delete(&models.DayEndExpense{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.DayEnd{}, report.ID).Error
	})
	if err != nil {
		respondError(c, classifyDBError(err, "Day-end report"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report deleted"})
}

// filteredDayEnds parses the list filters and returns the matching scoped query.
func filteredDayEnds(c *gin.Context) (dayend.FilterParams, *gorm.DB, error) {
	params, err := dayend.ParseFilterParams(c.Request.URL.Query())
	if err != nil {
		return params, nil, invalid("%s", err.Error())
	}
	scope, err := loadBusScope(c)
	if err != nil {
		return params, nil, err
	}

	q := scope.apply(config.DB.Model(&models.DayEnd{}), "bus_id")
	if params.BusID != 0 {
		q = q.Where("bus_id = ?", params.BusID)
	}
	if params.Status != "" {
		q = q.Where("status = ?", params.Status)
	}
	if params.StartDate != "" {
		q = q.Where("date >= ?", params.StartDate)
	}
	if params.EndDate != "" {
		q = q.Where("date <= ?", params.EndDate)
	}
	// callers run both a count and a page query off q
	return params, q.Session(&gorm.Session{}), nil
}

func preloadDayEnd(q *gorm.DB) *gorm.DB {
	return q.Preload("Bus").
		Preload("Conductor").
		Preload("TripDetails", func(db *gorm.DB) *gorm.DB { return db.Order("trip_number") }).
		Preload("Expenses")
}

// loadScopedDayEnd resolves :id within the caller's bus scope; out of scope is not found.
func loadScopedDayEnd(c *gin.Context, preload func(*gorm.DB) *gorm.DB) (models.DayEnd, error) {
	var report models.DayEnd
	id, err := parseID(c, "id")
	if err != nil {
		return report, err
	}
	scope, err := loadBusScope(c)
	if err != nil {
		return report, err
	}
	q := config.DB
	if preload != nil {
		q = preload(q)
	}
	if err := q.First(&report, id).Error; err != nil {
		return report, classifyDBError(err, "Day-end report")
	}
	if !scope.allows(report.BusID) {
		return models.DayEnd{}, NotFoundError{Resource: "Day-end report"}
	}
	return report, nil
}

func activeUser(id uint) error {
	var u models.User
	if err := config.DB.First(&u, id).Error; err != nil {
		return classifyDBError(err, "Conductor")
	}
	if !u.IsActive {
		return invalid("user %s is inactive", u.Name)
	}
	return nil
}
