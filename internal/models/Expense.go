package models

import "github.com/shopspring/decimal"

type ExpenseType struct {
	Base
	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive" gorm:"not null;default:true"`
}

// ExpenseTransaction is a bus expense recorded outside of a day-end report.
type ExpenseTransaction struct {
	Base
	BusID         uint            `json:"busId" gorm:"index;not null"`
	Bus           *Bus            `json:"bus,omitempty" gorm:"foreignKey:BusID;constraint:OnDelete:RESTRICT;"`
	ExpenseTypeID uint            `json:"expenseTypeId" gorm:"index;not null"`
	ExpenseType   *ExpenseType    `json:"expenseType,omitempty" gorm:"foreignKey:ExpenseTypeID;constraint:OnDelete:RESTRICT;"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Date          Date            `json:"date" gorm:"index"`
	Description   string          `json:"description"`
	CreatedBy     uint            `json:"createdBy"`
}
