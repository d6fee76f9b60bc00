package models

import "github.com/shopspring/decimal"

// Section is a fare tier (category + price) attached to a stop.
type Section struct {
	Base
	StopID   uint            `json:"stopId" gorm:"index;not null"`
	Category string          `json:"category" gorm:"not null"`
	Price    decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	IsActive bool            `json:"isActive" gorm:"not null;default:true"`
}
