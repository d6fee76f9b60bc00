package dayend

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"busops/internal/models"
)

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodWeek, PeriodMonth, PeriodAll:
		return p, nil
	case "":
		return PeriodAll, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// FilterParams is the server-side part of a day-end list query.
// StartDate and EndDate are YYYY-MM-DD or empty for no bound.
type FilterParams struct {
	StartDate string
	EndDate   string
	Page      int
	Limit     int
	BusID     uint
	Status    string
}

// BuildFilterParams turns a dashboard period selection into request parameters.
// week is seven days before now, month is one calendar month before now, all has no bound.
func BuildFilterParams(period Period, page, pageSize int, now time.Time) FilterParams {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	p := FilterParams{Page: page, Limit: pageSize}
	switch period {
	case PeriodWeek:
		p.StartDate = models.NewDate(now.AddDate(0, 0, -7)).String()
	case PeriodMonth:
		p.StartDate = models.NewDate(now.AddDate(0, -1, 0)).String()
	}
	return p
}

func (p FilterParams) Values() url.Values {
	v := url.Values{}
	if p.StartDate != "" {
		v.Set("startDate", p.StartDate)
	}
	if p.EndDate != "" {
		v.Set("endDate", p.EndDate)
	}
	if p.BusID != 0 {
		v.Set("busId", strconv.FormatUint(uint64(p.BusID), 10))
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("limit", strconv.Itoa(p.Limit))
	return v
}

// Offset is the number of rows to skip for the current page.
func (p FilterParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages rounds count/limit up; an empty result still has zero pages.
func (p FilterParams) TotalPages(count int64) int {
	if p.Limit <= 0 || count <= 0 {
		return 0
	}
	return int((count + int64(p.Limit) - 1) / int64(p.Limit))
}

// ParseFilterParams reads list query parameters, applying defaults and bounds.
func ParseFilterParams(q url.Values) (FilterParams, error) {
	p := FilterParams{Page: 1, Limit: DefaultPageSize}

	if s := strings.TrimSpace(q.Get("startDate")); s != "" {
		d, err := models.ParseDate(s)
		if err != nil {
			return p, fmt.Errorf("startDate: %w", err)
		}
		p.StartDate = d.String()
	}
	if s := strings.TrimSpace(q.Get("endDate")); s != "" {
		d, err := models.ParseDate(s)
		if err != nil {
			return p, fmt.Errorf("endDate: %w", err)
		}
		p.EndDate = d.String()
	}
	if p.StartDate != "" && p.EndDate != "" && p.StartDate > p.EndDate {
		return p, fmt.Errorf("startDate must not be after endDate")
	}
	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return p, fmt.Errorf("page must be a positive integer")
		}
		p.Page = n
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return p, fmt.Errorf("limit must be a positive integer")
		}
		if n > MaxPageSize {
			n = MaxPageSize
		}
		p.Limit = n
	}
	if s := q.Get("busId"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return p, fmt.Errorf("busId must be numeric")
		}
		p.BusID = uint(n)
	}
	if s := strings.ToLower(strings.TrimSpace(q.Get("status"))); s != "" && s != "all" {
		if !IsValidStatus(s) {
			return p, fmt.Errorf("unknown status %q", s)
		}
		p.Status = s
	}
	return p, nil
}
