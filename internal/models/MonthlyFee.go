package models

import "github.com/shopspring/decimal"

const (
	FeePending = "pending"
	FeePartial = "partial"
	FeePaid    = "paid"
	FeeOverdue = "overdue"
)

// MonthlyFee is the recurring amount a bus owner is billed for one bus and month.
// Status is stored as set by an administrator; the derived view is exposed beside it.
type MonthlyFee struct {
	Base
	BusID       uint            `json:"busId" gorm:"uniqueIndex:idx_fee_bus_month;not null"`
	Bus         *Bus            `json:"bus,omitempty" gorm:"foreignKey:BusID;constraint:OnDelete:RESTRICT;"`
	OwnerID     uint            `json:"ownerId" gorm:"index;not null"`
	Month       string          `json:"month" gorm:"uniqueIndex:idx_fee_bus_month;size:7;not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	LateFee     decimal.Decimal `json:"lateFee" gorm:"type:numeric(12,2);not null;default:0"`
	PaidAmount  decimal.Decimal `json:"paidAmount" gorm:"type:numeric(12,2);not null;default:0"`
	DueDate     Date            `json:"dueDate"`
	Status      string          `json:"status" gorm:"index;not null;default:pending"`
	PaymentDate *Date           `json:"paymentDate,omitempty"`
	Notes       string          `json:"notes"`
}

// Balance is what is still owed on the billed amount.
func (f MonthlyFee) Balance() decimal.Decimal {
	return f.Amount.Sub(f.PaidAmount)
}
