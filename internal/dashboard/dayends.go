package dashboard

import (
	"context"
	"fmt"

	"busops/internal/dayend"
	"busops/internal/models"
)

// DayEndPage is one page of GET /day-ends.
type DayEndPage struct {
	Reports    []models.DayEnd `json:"reports"`
	Count      int64           `json:"count"`
	TotalPages int             `json:"totalPages"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
}

func (c *Client) ListDayEnds(ctx context.Context, p dayend.FilterParams) (DayEndPage, error) {
	var page DayEndPage
	err := c.Get(ctx, "/day-ends", p.Values(), &page)
	return page, err
}

func (c *Client) GetDayEnd(ctx context.Context, id uint) (models.DayEnd, error) {
	var resp struct {
		Report models.DayEnd `json:"report"`
	}
	err := c.Get(ctx, fmt.Sprintf("/day-ends/%d", id), nil, &resp)
	return resp.Report, err
}

// UpdateDayEndStatus asks the API to move a report to status and returns the stored record.
func (c *Client) UpdateDayEndStatus(ctx context.Context, id uint, status string) (models.DayEnd, error) {
	var resp struct {
		Report models.DayEnd `json:"report"`
	}
	err := c.Patch(ctx, fmt.Sprintf("/day-ends/%d/status", id), map[string]string{"status": status}, &resp)
	return resp.Report, err
}

func (c *Client) DeleteDayEnd(ctx context.Context, id uint) error {
	return c.Delete(ctx, fmt.Sprintf("/day-ends/%d", id))
}

// DayEndSummary fetches aggregates over every report matching the date filter.
func (c *Client) DayEndSummary(ctx context.Context, p dayend.FilterParams) (dayend.Summary, error) {
	q := p.Values()
	q.Del("page")
	q.Del("limit")
	var resp struct {
		Summary dayend.Summary `json:"summary"`
	}
	err := c.Get(ctx, "/day-ends/summary", q, &resp)
	return resp.Summary, err
}
