package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"busops/internal/config"
	"busops/internal/fees"
	"busops/internal/middleware"
	"busops/internal/models"
	"busops/internal/reports"
)

// ListMonthlyFees returns fees for buses in scope with their balance and derived status.
// Query: month (YYYY-MM), status, busId.
func ListMonthlyFees(c *gin.Context) {
	list, err := queryFees(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":    fees.Views(list, now()),
		"summary": fees.Summarize(list),
	})
}

// MonthlyFeeSummary returns only the billing cards for the filtered fees.
func MonthlyFeeSummary(c *gin.Context) {
	list, err := queryFees(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": fees.Summarize(list)})
}

func GetMonthlyFee(c *gin.Context) {
	fee, err := loadScopedFee(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fee": fees.NewView(fee, now())})
}

type feeInput struct {
	BusID   uint            `json:"busId" binding:"required"`
	Month   string          `json:"month" binding:"required"`
	Amount  decimal.Decimal `json:"amount"`
	LateFee decimal.Decimal `json:"lateFee"`
	DueDate models.Date     `json:"dueDate"`
	Status  string          `json:"status"`
	Notes   string          `json:"notes"`
}

// CreateMonthlyFee bills one bus for one month. The owner is taken from the bus.
func CreateMonthlyFee(c *gin.Context) {
	var input feeInput
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	month, err := fees.ParseMonth(input.Month)
	if err != nil {
		respondError(c, invalid("%s", err.Error()))
		return
	}
	if !input.Amount.IsPositive() {
		respondError(c, invalid("amount must be greater than zero"))
		return
	}
	if input.LateFee.IsNegative() {
		respondError(c, invalid("lateFee must not be negative"))
		return
	}
	bus, err := activeBus(busScope{all: true}, input.BusID)
	if err != nil {
		respondError(c, err)
		return
	}

	fee := models.MonthlyFee{
		BusID:   bus.ID,
		OwnerID: bus.OwnerID,
		Month:   month,
		Amount:  input.Amount,
		LateFee: input.LateFee,
		DueDate: input.DueDate,
		Notes:   input.Notes,
		Status:  models.FeePending,
	}
	if input.Status != "" {
		status, ok := fees.NormalizeStatus(input.Status)
		if !ok {
			respondError(c, invalid("unknown status %q", input.Status))
			return
		}
		fee.Status = status
	}

	if err := config.DB.Create(&fee).Error; err != nil {
		if cerr := classifyDBError(err, "Monthly fee"); errors.As(cerr, new(ConflictError)) {
			respondError(c, ConflictError{Msg: fmt.Sprintf("bus %s already has a fee for %s", bus.BusNumber, month)})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"fee": fees.NewView(fee, now())})
}

// GenerateMonthlyFees bills every active bus that has no fee for the month yet.
func GenerateMonthlyFees(c *gin.Context) {
	var input struct {
		Month   string          `json:"month" binding:"required"`
		Amount  decimal.Decimal `json:"amount"`
		DueDate models.Date     `json:"dueDate"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	month, err := fees.ParseMonth(input.Month)
	if err != nil {
		respondError(c, invalid("%s", err.Error()))
		return
	}
	if !input.Amount.IsPositive() {
		respondError(c, invalid("amount must be greater than zero"))
		return
	}

	var created []models.MonthlyFee
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		var buses []models.Bus
		billed := tx.Model(&models.MonthlyFee{}).Select("bus_id").Where("month = ?", month)
		if err := tx.Where("status = ? AND id NOT IN (?)", models.BusActive, billed).Order("id").Find(&buses).Error; err != nil {
			return err
		}
		for _, b := range buses {
			created = append(created, models.MonthlyFee{
				BusID:   b.ID,
				OwnerID: b.OwnerID,
				Month:   month,
				Amount:  input.Amount,
				DueDate: input.DueDate,
				Status:  models.FeePending,
			})
		}
		if len(created) == 0 {
			return nil
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		respondError(c, classifyDBError(err, "Monthly fee"))
		return
	}
	logrus.WithFields(logrus.Fields{"month": month, "created": len(created)}).Info("monthly fees generated")
	c.JSON(http.StatusCreated, gin.H{"data": fees.Views(created, now()), "created": len(created)})
}

// UpdateMonthlyFee edits billing fields. The stored status only changes when one is given;
// derivedStatus in the response follows the new amounts.
func UpdateMonthlyFee(c *gin.Context) {
	fee, err := loadScopedFee(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var input struct {
		Amount  *decimal.Decimal `json:"amount"`
		LateFee *decimal.Decimal `json:"lateFee"`
		DueDate *models.Date     `json:"dueDate"`
		Status  *string          `json:"status"`
		Notes   *string          `json:"notes"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			respondError(c, invalid("amount must be greater than zero"))
			return
		}
		if input.Amount.LessThan(fee.PaidAmount) {
			respondError(c, invalid("amount cannot be less than the %s already paid", fee.PaidAmount.StringFixed(2)))
			return
		}
		fee.Amount = *input.Amount
	}
	if input.LateFee != nil {
		if input.LateFee.IsNegative() {
			respondError(c, invalid("lateFee must not be negative"))
			return
		}
		fee.LateFee = *input.LateFee
	}
	if input.DueDate != nil {
		fee.DueDate = *input.DueDate
	}
	if input.Notes != nil {
		fee.Notes = *input.Notes
	}
	if input.Status != nil {
		status, ok := fees.NormalizeStatus(*input.Status)
		if !ok {
			respondError(c, invalid("unknown status %q", *input.Status))
			return
		}
		fee.Status = status
	}

	fee.Bus = nil
	if err := config.DB.Save(&fee).Error; err != nil {
		respondError(c, classifyDBError(err, "Monthly fee"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"fee": fees.NewView(fee, now())})
}

// RecordFeePayment adds a payment to a fee and moves its status accordingly.
func RecordFeePayment(c *gin.Context) {
	fee, err := loadScopedFee(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var input struct {
		Amount      decimal.Decimal `json:"amount"`
		PaymentDate models.Date     `json:"paymentDate"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	if err := fees.ApplyPayment(&fee, input.Amount, input.PaymentDate, now()); err != nil {
		respondError(c, invalid("%s", err.Error()))
		return
	}

	res := config.DB.Model(&models.MonthlyFee{}).
		Where("id = ? AND paid_amount = ?", fee.ID, fee.PaidAmount.Sub(input.Amount)).
		Updates(map[string]interface{}{
			"paid_amount":  fee.PaidAmount,
			"payment_date": fee.PaymentDate,
			"status":       fee.Status,
		})
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, ConflictError{Msg: "fee was updated concurrently, reload and retry"})
		return
	}
	logrus.WithFields(logrus.Fields{
		"fee_id":  fee.ID,
		"amount":  input.Amount.String(),
		"status":  fee.Status,
		"user_id": middleware.CurrentUserID(c),
	}).Info("fee payment recorded")
	c.JSON(http.StatusOK, gin.H{"message": "Payment recorded", "fee": fees.NewView(fee, now())})
}

// DeleteMonthlyFee refuses once payments were recorded against the fee.
func DeleteMonthlyFee(c *gin.Context) {
	fee, err := loadScopedFee(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if fee.PaidAmount.IsPositive() {
		respondError(c, ConflictError{Msg: "Monthly fee cannot be deleted: payments have been recorded"})
		return
	}
	if err := config.DB.Delete(&models.MonthlyFee{}, fee.ID).Error; err != nil {
		respondError(c, classifyDBError(err, "Monthly fee"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Monthly fee deleted"})
}

// FeeInvoice downloads the PDF invoice for a fee.
func FeeInvoice(c *gin.Context) {
	fee, err := loadScopedFee(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var owner models.User
	if err := config.DB.First(&owner, fee.OwnerID).Error; err != nil {
		respondError(c, classifyDBError(err, "Bus owner"))
		return
	}
	bus := models.Bus{}
	if fee.Bus != nil {
		bus = *fee.Bus
	}

	pdf, err := reports.FeeInvoice(fees.NewView(fee, now()), bus, owner, now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.pdf\"", reports.InvoiceNumber(fee)))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func queryFees(c *gin.Context) ([]models.MonthlyFee, error) {
	scope, err := loadBusScope(c)
	if err != nil {
		return nil, err
	}
	q := scope.apply(config.DB.Model(&models.MonthlyFee{}), "bus_id")
	if s := c.Query("month"); s != "" {
		month, err := fees.ParseMonth(s)
		if err != nil {
			return nil, invalid("%s", err.Error())
		}
		q = q.Where("month = ?", month)
	}
	if s := c.Query("status"); s != "" && s != "all" {
		status, ok := fees.NormalizeStatus(s)
		if !ok {
			return nil, invalid("unknown status %q", s)
		}
		q = q.Where("status = ?", status)
	}
	if s := c.Query("busId"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, invalid("busId must be numeric")
		}
		q = q.Where("bus_id = ?", id)
	}

	var list []models.MonthlyFee
	if err := q.Preload("Bus").Order("month DESC, id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func loadScopedFee(c *gin.Context) (models.MonthlyFee, error) {
	var fee models.MonthlyFee
	id, err := parseID(c, "id")
	if err != nil {
		return fee, err
	}
	scope, err := loadBusScope(c)
	if err != nil {
		return fee, err
	}
	if err := config.DB.Preload("Bus").First(&fee, id).Error; err != nil {
		return fee, classifyDBError(err, "Monthly fee")
	}
	if !scope.allows(fee.BusID) {
		return models.MonthlyFee{}, NotFoundError{Resource: "Monthly fee"}
	}
	return fee, nil
}
