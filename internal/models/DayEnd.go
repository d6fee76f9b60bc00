package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DayEndPending  = "pending"
	DayEndApproved = "approved"
	DayEndRejected = "rejected"
)

// DayEnd is the daily financial reconciliation of one bus, submitted for review.
type DayEnd struct {
	Base

	BusID       uint  `json:"busId" gorm:"uniqueIndex:idx_dayend_bus_date;not null"`
	Bus         *Bus  `json:"-" gorm:"foreignKey:BusID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	ConductorID uint  `json:"conductorId" gorm:"index"`
	Conductor   *User `json:"-" gorm:"foreignKey:ConductorID;constraint:OnDelete:RESTRICT;"`
	Date        Date  `json:"date" gorm:"uniqueIndex:idx_dayend_bus_date;index;not null"`

	TripDetails []TripDetail    `json:"tripDetails" gorm:"foreignKey:DayEndID;constraint:OnDelete:CASCADE;"`
	Expenses    []DayEndExpense `json:"expenses" gorm:"foreignKey:DayEndID;constraint:OnDelete:CASCADE;"`

	TotalRevenue  decimal.Decimal `json:"totalRevenue" gorm:"type:numeric(14,2);not null;default:0"`
	TotalExpenses decimal.Decimal `json:"totalExpenses" gorm:"type:numeric(14,2);not null;default:0"`
	Profit        decimal.Decimal `json:"profit" gorm:"type:numeric(14,2);not null;default:0"`

	Status     string     `json:"status" gorm:"index;not null;default:pending"`
	Notes      string     `json:"notes"`
	ReviewedBy *uint      `json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
}

type TripDetail struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	DayEndID       uint            `json:"-" gorm:"index;not null"`
	TripNumber     int             `json:"tripNumber"`
	StartTime      string          `json:"startTime"`
	EndTime        string          `json:"endTime"`
	PassengerCount int             `json:"passengerCount"`
	TotalFare      decimal.Decimal `json:"totalFare" gorm:"type:numeric(12,2);not null;default:0"`
	CashInHand     decimal.Decimal `json:"cashInHand" gorm:"type:numeric(12,2);not null;default:0"`
}

type DayEndExpense struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	DayEndID    uint            `json:"-" gorm:"index;not null"`
	ExpenseName string          `json:"expenseName"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null;default:0"`
}

// BusRef returns the bus reference, populated when the bus was preloaded.
func (d DayEnd) BusRef() Ref[Bus] {
	return RefOf(d.BusID, d.Bus)
}

func (d DayEnd) ConductorRef() Ref[User] {
	return RefOf(d.ConductorID, d.Conductor)
}

// MarshalJSON emits busId and conductorId as populated objects when they were loaded.
func (d DayEnd) MarshalJSON() ([]byte, error) {
	type alias DayEnd
	return json.Marshal(struct {
		alias
		BusID       Ref[Bus]  `json:"busId"`
		ConductorID Ref[User] `json:"conductorId"`
	}{
		alias:       alias(d),
		BusID:       d.BusRef(),
		ConductorID: d.ConductorRef(),
	})
}

func (d *DayEnd) UnmarshalJSON(data []byte) error {
	type alias DayEnd
	aux := &struct {
		*alias
		BusID       Ref[Bus]  `json:"busId"`
		ConductorID Ref[User] `json:"conductorId"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	d.BusID = aux.BusID.ID()
	d.Bus, _ = aux.BusID.Populated()
	d.ConductorID = aux.ConductorID.ID()
	d.Conductor, _ = aux.ConductorID.Populated()
	return nil
}
