package fees

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busops/internal/models"
)

var today = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func fee(amount, paid int64, due string) models.MonthlyFee {
	f := models.MonthlyFee{Amount: decimal.NewFromInt(amount), PaidAmount: decimal.NewFromInt(paid), Status: models.FeePending}
	if due != "" {
		f.DueDate, _ = models.ParseDate(due)
	}
	return f
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name string
		fee  models.MonthlyFee
		want string
	}{
		{"nothing paid, not due", fee(5000, 0, "2024-03-31"), models.FeePending},
		{"nothing paid, due today", fee(5000, 0, "2024-03-15"), models.FeePending},
		{"nothing paid, past due", fee(5000, 0, "2024-03-01"), models.FeeOverdue},
		{"no due date", fee(5000, 0, ""), models.FeePending},
		{"partially paid past due", fee(5000, 1000, "2024-03-01"), models.FeePartial},
		{"fully paid", fee(5000, 5000, "2024-03-01"), models.FeePaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.fee, today))
		})
	}
}

func TestApplyPayment(t *testing.T) {
	f := fee(5000, 0, "2024-03-31")

	require.NoError(t, ApplyPayment(&f, decimal.NewFromInt(2000), models.Date{}, today))
	assert.Equal(t, models.FeePartial, f.Status)
	assert.Equal(t, "3000", f.Balance().String())
	require.NotNil(t, f.PaymentDate)
	assert.Equal(t, "2024-03-15", f.PaymentDate.String())

	err := ApplyPayment(&f, decimal.NewFromInt(3001), models.Date{}, today)
	assert.True(t, errors.Is(err, ErrOverpayment))
	assert.Equal(t, "2000", f.PaidAmount.String(), "rejected payment leaves the fee unchanged")

	assert.ErrorIs(t, ApplyPayment(&f, decimal.Zero, models.Date{}, today), ErrNonPositivePayment)
	assert.ErrorIs(t, ApplyPayment(&f, decimal.NewFromInt(-5), models.Date{}, today), ErrNonPositivePayment)

	on, _ := models.ParseDate("2024-03-20")
	require.NoError(t, ApplyPayment(&f, decimal.NewFromInt(3000), on, today))
	assert.Equal(t, models.FeePaid, f.Status)
	assert.True(t, f.Balance().IsZero())
	assert.Equal(t, "2024-03-20", f.PaymentDate.String())
}

func TestNormalizeStatus(t *testing.T) {
	s, ok := NormalizeStatus(" Unpaid ")
	assert.True(t, ok)
	assert.Equal(t, models.FeePending, s)

	s, ok = NormalizeStatus("OVERDUE")
	assert.True(t, ok)
	assert.Equal(t, models.FeeOverdue, s)

	_, ok = NormalizeStatus("waived")
	assert.False(t, ok)
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2024-03")
	require.NoError(t, err)
	assert.Equal(t, "2024-03", m)

	for _, bad := range []string{"2024-13", "03-2024", "2024/03", ""} {
		_, err := ParseMonth(bad)
		assert.Error(t, err, bad)
	}
}

func TestSummarize(t *testing.T) {
	assert.Zero(t, Summarize(nil).PaymentRate)

	paid := fee(1000, 1000, "")
	paid.Status = models.FeePaid
	paid.LateFee = decimal.NewFromInt(50)
	overdue := fee(2000, 0, "")
	overdue.Status = models.FeeOverdue
	partial := fee(500, 100, "")
	partial.Status = models.FeePartial

	s := Summarize([]models.MonthlyFee{paid, overdue, fee(3000, 0, ""), partial})
	assert.Equal(t, 4, s.TotalCount)
	assert.Equal(t, 1, s.PaidCount)
	assert.Equal(t, "1050", s.TotalPaid.String())
	assert.Equal(t, "3000", s.TotalPending.String())
	assert.Equal(t, "2000", s.TotalOverdue.String())
	assert.Equal(t, int64(25), s.PaymentRate)

	s = Summarize([]models.MonthlyFee{paid, overdue, fee(3000, 0, "")})
	assert.Equal(t, int64(33), s.PaymentRate)
}

func TestViewShowsBothStatuses(t *testing.T) {
	f := fee(5000, 0, "2024-03-01")
	v := NewView(f, today)
	assert.Equal(t, models.FeePending, v.Status)
	assert.Equal(t, models.FeeOverdue, v.DerivedStatus)
	assert.Equal(t, "5000", v.Balance.String())
	assert.Len(t, Views([]models.MonthlyFee{f, f}, today), 2)
}
