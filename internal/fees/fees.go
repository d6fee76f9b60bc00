// Package fees computes monthly fee balances, payment state and billing summaries.
package fees

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"busops/internal/models"
)

var (
	ErrNonPositivePayment = errors.New("payment amount must be greater than zero")
	ErrOverpayment        = errors.New("payment exceeds the outstanding balance")
)

// NormalizeStatus accepts the stored statuses plus "unpaid" as an alias of pending.
func NormalizeStatus(s string) (string, bool) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case models.FeePending, models.FeePartial, models.FeePaid, models.FeeOverdue:
		return v, true
	case "unpaid":
		return models.FeePending, true
	}
	return "", false
}

// ParseMonth validates a YYYY-MM key.
func ParseMonth(s string) (string, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid month %q, expected YYYY-MM", s)
	}
	return t.Format("2006-01"), nil
}

// DeriveStatus computes the status implied by the amounts and the due date.
// A fee is overdue when nothing has been paid and its due date is before today.
func DeriveStatus(f models.MonthlyFee, now time.Time) string {
	switch {
	case f.Amount.IsPositive() && f.PaidAmount.GreaterThanOrEqual(f.Amount):
		return models.FeePaid
	case f.PaidAmount.IsPositive():
		return models.FeePartial
	case !f.DueDate.IsZero() && f.DueDate.String() < models.NewDate(now).String():
		return models.FeeOverdue
	default:
		return models.FeePending
	}
}

// ApplyPayment records a payment against the fee and moves its status to the derived value.
func ApplyPayment(f *models.MonthlyFee, amount decimal.Decimal, on models.Date, now time.Time) error {
	if !amount.IsPositive() {
		return ErrNonPositivePayment
	}
	if f.PaidAmount.Add(amount).GreaterThan(f.Amount) {
		return fmt.Errorf("%w: balance is %s", ErrOverpayment, f.Balance().StringFixed(2))
	}
	f.PaidAmount = f.PaidAmount.Add(amount)
	if on.IsZero() {
		on = models.NewDate(now)
	}
	f.PaymentDate = &on
	f.Status = DeriveStatus(*f, now)
	return nil
}

// View is a fee as shown on the dashboard: the stored status next to the derived one.
type View struct {
	models.MonthlyFee
	Balance       decimal.Decimal `json:"balance"`
	DerivedStatus string          `json:"derivedStatus"`
}

func NewView(f models.MonthlyFee, now time.Time) View {
	return View{MonthlyFee: f, Balance: f.Balance(), DerivedStatus: DeriveStatus(f, now)}
}

func Views(list []models.MonthlyFee, now time.Time) []View {
	out := make([]View, 0, len(list))
	for _, f := range list {
		out = append(out, NewView(f, now))
	}
	return out
}

// Summary backs the billing cards.
type Summary struct {
	TotalCount   int             `json:"totalCount"`
	PaidCount    int             `json:"paidCount"`
	TotalPaid    decimal.Decimal `json:"totalPaid"`
	TotalPending decimal.Decimal `json:"totalPending"`
	TotalOverdue decimal.Decimal `json:"totalOverdue"`
	PaymentRate  int64           `json:"paymentRate"`
}

// Summarize totals the fees by their stored status. PaymentRate is the rounded share of
// paid fees, zero for an empty list.
func Summarize(list []models.MonthlyFee) Summary {
	s := Summary{TotalCount: len(list)}
	for _, f := range list {
		switch f.Status {
		case models.FeePaid:
			s.PaidCount++
			s.TotalPaid = s.TotalPaid.Add(f.Amount).Add(f.LateFee)
		case models.FeePending:
			s.TotalPending = s.TotalPending.Add(f.Amount)
		case models.FeeOverdue:
			s.TotalOverdue = s.TotalOverdue.Add(f.Amount)
		}
	}
	if s.TotalCount > 0 {
		rate := decimal.NewFromInt(int64(s.PaidCount)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(s.TotalCount))).
			Round(0)
		s.PaymentRate = rate.IntPart()
	}
	return s
}
