package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"busops/internal/config"
	"busops/internal/middleware"
	"busops/internal/models"
)

// ListExpenseTypes returns the expense catalogue; ?active= narrows it.
func ListExpenseTypes(c *gin.Context) {
	q, err := activeFilter(c, config.DB.Model(&models.ExpenseType{}), "is_active")
	if err != nil {
		respondError(c, err)
		return
	}
	var types []models.ExpenseType
	if err := q.Order("name").Find(&types).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": types})
}

func GetExpenseType(c *gin.Context) {
	et, err := loadExpenseType(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expenseType": et})
}

func CreateExpenseType(c *gin.Context) {
	var input struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	et := models.ExpenseType{Name: strings.TrimSpace(input.Name), Description: input.Description, IsActive: true}
	if et.Name == "" {
		respondError(c, invalid("name is required"))
		return
	}
	if err := config.DB.Create(&et).Error; err != nil {
		respondError(c, classifyDBError(err, "Expense type"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"expenseType": et})
}

func UpdateExpenseType(c *gin.Context) {
	et, err := loadExpenseType(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var input struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		IsActive    *bool   `json:"isActive"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			respondError(c, invalid("name must not be empty"))
			return
		}
		et.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		et.Description = *input.Description
	}
	if input.IsActive != nil {
		et.IsActive = *input.IsActive
	}
	if err := config.DB.Save(&et).Error; err != nil {
		respondError(c, classifyDBError(err, "Expense type"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"expenseType": et})
}

func SetExpenseTypeActive(c *gin.Context) {
	et, err := loadExpenseType(c)
	if err != nil {
		respondError(c, err)
		return
	}
	setActive(c, &models.ExpenseType{}, et.ID)
}

// DeleteExpenseType refuses while transactions still use the type; deactivate it instead.
func DeleteExpenseType(c *gin.Context) {
	et, err := loadExpenseType(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := ensureUnreferenced("Expense type",
		refsTo("expense transactions", &models.ExpenseTransaction{}, "expense_type_id = ?", et.ID),
	); err != nil {
		respondError(c, err)
		return
	}
	if err := config.DB.Delete(&models.ExpenseType{}, et.ID).Error; err != nil {
		respondError(c, classifyDBError(err, "Expense type"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Expense type deleted"})
}

func loadExpenseType(c *gin.Context) (models.ExpenseType, error) {
	var et models.ExpenseType
	id, err := parseID(c, "id")
	if err != nil {
		return et, err
	}
	if err := config.DB.First(&et, id).Error; err != nil {
		return et, classifyDBError(err, "Expense type")
	}
	return et, nil
}

type expenseInput struct {
	BusID         uint            `json:"busId" binding:"required"`
	ExpenseTypeID uint            `json:"expenseTypeId" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Date          models.Date     `json:"date"`
	Description   string          `json:"description"`
}

// ListExpenses returns expense transactions for buses in scope, newest first.
// Supports ?busId=, ?expenseTypeId=, ?startDate= and ?endDate=.
func ListExpenses(c *gin.Context) {
	scope, err := loadBusScope(c)
	if err != nil {
		respondError(c, err)
		return
	}
	q := scope.apply(config.DB.Model(&models.ExpenseTransaction{}), "bus_id")
	if s := c.Query("busId"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			respondError(c, invalid("busId must be numeric"))
			return
		}
		q = q.Where("bus_id = ?", id)
	}
	if s := c.Query("expenseTypeId"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			respondError(c, invalid("expenseTypeId must be numeric"))
			return
		}
		q = q.Where("expense_type_id = ?", id)
	}
	for param, cond := range map[string]string{"startDate": "date >= ?", "endDate": "date <= ?"} {
		if s := c.Query(param); s != "" {
			d, err := models.ParseDate(s)
			if err != nil {
				respondError(c, invalid("%s: %s", param, err.Error()))
				return
			}
			q = q.Where(cond, d)
		}
	}

	var expenses []models.ExpenseTransaction
	if err := q.Preload("Bus").Preload("ExpenseType").Order("date DESC, id DESC").Find(&expenses).Error; err != nil {
		respondError(c, err)
		return
	}
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	c.JSON(http.StatusOK, gin.H{"data": expenses, "total": total})
}

// GetExpense returns one expense transaction of a bus in scope.
func GetExpense(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	scope, err := loadBusScope(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var expense models.ExpenseTransaction
	if err := config.DB.Preload("Bus").Preload("ExpenseType").First(&expense, id).Error; err != nil {
		respondError(c, classifyDBError(err, "Expense"))
		return
	}
	if !scope.allows(expense.BusID) {
		respondError(c, NotFoundError{Resource: "Expense"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// CreateExpense records a spend against an active bus and an active expense type.
func CreateExpense(c *gin.Context) {
	if middleware.CurrentRole(c) == models.RoleManager {
		respondError(c, ForbiddenError{Msg: "Managers cannot record expenses"})
		return
	}
	var input expenseInput
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
	if err := activeExpenseType(input.ExpenseTypeID); err != nil {
		respondError(c, err)
		return
	}
	if !input.Amount.IsPositive() {
		respondError(c, invalid("amount must be greater than zero"))
		return
	}
	if input.Date.IsZero() {
		input.Date = models.NewDate(now())
	}

	expense := models.ExpenseTransaction{
		BusID:         input.BusID,
		ExpenseTypeID: input.ExpenseTypeID,
		Amount:        input.Amount,
		Date:          input.Date,
		Description:   input.Description,
		CreatedBy:     middleware.CurrentUserID(c),
	}
	if err := config.DB.Create(&expense).Error; err != nil {
		respondError(c, classifyDBError(err, "Expense"))
		return
	}
	config.DB.Preload("Bus").Preload("ExpenseType").First(&expense, expense.ID)
	c.JSON(http.StatusCreated, gin.H{"expense": expense})
}

func UpdateExpense(c *gin.Context) {
	expense, scope, err := loadWritableExpense(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var input struct {
		BusID         *uint            `json:"busId"`
		ExpenseTypeID *uint            `json:"expenseTypeId"`
		Amount        *decimal.Decimal `json:"amount"`
		Date          *models.Date     `json:"date"`
		Description   *string          `json:"description"`
	}
	if err := bindJSON(c, &input); err != nil {
		respondError(c, err)
		return
	}
	if input.BusID != nil && *input.BusID != expense.BusID {
		if _, err := activeBus(scope, *input.BusID); err != nil {
			respondError(c, err)
			return
		}
		expense.BusID = *input.BusID
	}
	if input.ExpenseTypeID != nil && *input.ExpenseTypeID != expense.ExpenseTypeID {
		if err := activeExpenseType(*input.ExpenseTypeID); err != nil {
			respondError(c, err)
			return
		}
		expense.ExpenseTypeID = *input.ExpenseTypeID
	}
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			respondError(c, invalid("amount must be greater than zero"))
			return
		}
		expense.Amount = *input.Amount
	}
	if input.Date != nil && !input.Date.IsZero() {
		expense.Date = *input.Date
	}
	if input.Description != nil {
		expense.Description = *input.Description
	}

	expense.Bus, expense.ExpenseType = nil, nil
	if err := config.DB.Save(&expense).Error; err != nil {
		respondError(c, classifyDBError(err, "Expense"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

func DeleteExpense(c *gin.Context) {
	expense, _, err := loadWritableExpense(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := config.DB.Delete(&models.ExpenseTransaction{}, expense.ID).Error; err != nil {
		respondError(c, classifyDBError(err, "Expense"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Expense deleted"})
}

func loadWritableExpense(c *gin.Context) (models.ExpenseTransaction, busScope, error) {
	var expense models.ExpenseTransaction
	if middleware.CurrentRole(c) == models.RoleManager {
		return expense, busScope{}, ForbiddenError{Msg: "Managers cannot modify expenses"}
	}
	id, err := parseID(c, "id")
	if err != nil {
		return expense, busScope{}, err
	}
	scope, err := loadBusScope(c)
	if err != nil {
		return expense, scope, err
	}
	if err := config.DB.First(&expense, id).Error; err != nil {
		return expense, scope, classifyDBError(err, "Expense")
	}
	if !scope.allows(expense.BusID) {
		return expense, scope, NotFoundError{Resource: "Expense"}
	}
	return expense, scope, nil
}

func activeExpenseType(id uint) error {
	var et models.ExpenseType
	if err := config.DB.First(&et, id).Error; err != nil {
		return classifyDBError(err, "Expense type")
	}
	if !et.IsActive {
		return invalid("expense type %s is inactive", et.Name)
	}
	return nil
}
