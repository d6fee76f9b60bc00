package dayend

import (
	"github.com/shopspring/decimal"

	"busops/internal/models"
)

const (
	ScopePage    = "page"
	ScopeDataset = "dataset"
)

// Summary feeds the dashboard cards. Scope says whether the counts cover only the
// loaded page or the whole filtered dataset.
type Summary struct {
	Scope           string          `json:"scope"`
	TotalReports    int64           `json:"totalReports"`
	ApprovedCount   int64           `json:"approvedCount"`
	PendingCount    int64           `json:"pendingCount"`
	RejectedCount   int64           `json:"rejectedCount"`
	TotalRevenueSum decimal.Decimal `json:"totalRevenueSum"`
	TotalExpenseSum decimal.Decimal `json:"totalExpenseSum"`
	TotalProfit     decimal.Decimal `json:"totalProfit"`
}

// Summarize aggregates the given records, typically the page currently on screen.
func Summarize(records []models.DayEnd) Summary {
	s := Summary{Scope: ScopePage}
	for _, r := range records {
		s.Add(r)
	}
	return s
}

// Add folds one record into the summary.
func (s *Summary) Add(r models.DayEnd) {
	s.TotalReports++
	switch r.Status {
	case models.DayEndApproved:
		s.ApprovedCount++
	case models.DayEndPending:
		s.PendingCount++
	case models.DayEndRejected:
		s.RejectedCount++
	}
	s.TotalRevenueSum = s.TotalRevenueSum.Add(r.TotalRevenue)
	s.TotalExpenseSum = s.TotalExpenseSum.Add(r.TotalExpenses)
	s.TotalProfit = s.TotalProfit.Add(r.Profit)
}

// Totals computes revenue, expenses and profit from the line items of a report.
func Totals(trips []models.TripDetail, expenses []models.DayEndExpense) (revenue, spent, profit decimal.Decimal) {
	for _, t := range trips {
		revenue = revenue.Add(t.TotalFare)
	}
	for _, e := range expenses {
		spent = spent.Add(e.Amount)
	}
	return revenue, spent, revenue.Sub(spent)
}
