package dashboard

import (
	"context"
	"sync"
	"time"

	"busops/internal/dayend"
	"busops/internal/models"
)

// ListState is the lifecycle shared by every list screen.
type ListState int

const (
	StateIdle ListState = iota
	StateLoading
	StateReady
	StateFailed
)

func (s ListState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "idle"
}

// DayEndList drives the day-end reports table. The period and page go to the server;
// search and status are applied locally to the loaded page.
type DayEndList struct {
	client *Client
	seq    Sequence
	now    func() time.Time

	mu         sync.Mutex
	period     dayend.Period
	page       int
	pageSize   int
	search     string
	status     string
	state      ListState
	err        error
	records    []models.DayEnd
	count      int64
	totalPages int
	buses      dayend.BusDirectory
}

func NewDayEndList(client *Client) *DayEndList {
	return &DayEndList{
		client:   client,
		now:      time.Now,
		period:   dayend.PeriodAll,
		page:     1,
		pageSize: dayend.DefaultPageSize,
		status:   dayend.StatusAll,
		buses:    dayend.BusDirectory{},
	}
}

// Params is the request the next Load will send.
func (l *DayEndList) Params() dayend.FilterParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	return dayend.BuildFilterParams(l.period, l.page, l.pageSize, l.now())
}

// SetPeriod changes the date range, returns to page 1 and reloads.
func (l *DayEndList) SetPeriod(ctx context.Context, p dayend.Period) error {
	l.mu.Lock()
	l.period = p
	l.page = 1
	l.mu.Unlock()
	return l.Load(ctx)
}

// SetPage moves to page n and reloads.
func (l *DayEndList) SetPage(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	l.mu.Lock()
	l.page = n
	l.mu.Unlock()
	return l.Load(ctx)
}

// SetSearch and SetStatusFilter only narrow the loaded page; nothing is fetched.
func (l *DayEndList) SetSearch(term string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.search = term
}

func (l *DayEndList) SetStatusFilter(status string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = status
}

// SetBusDirectory supplies bus numbers for reports whose bus was not populated.
func (l *DayEndList) SetBusDirectory(dir dayend.BusDirectory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, n := range dir {
		l.buses[id] = n
	}
}

// Load fetches the current page. A response that arrives after a newer Load was started
// is dropped and ErrStale returned.
func (l *DayEndList) Load(ctx context.Context) error {
	gen := l.seq.Next()
	params := l.Params()

	l.mu.Lock()
	l.state = StateLoading
	l.mu.Unlock()

	page, err := l.client.ListDayEnds(ctx, params)

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.seq.IsLatest(gen) {
		return ErrStale
	}
	if err != nil {
		l.state = StateFailed
		l.err = err
		return err
	}
	l.state = StateReady
	l.err = nil
	l.records = page.Reports
	l.count = page.Count
	l.totalPages = page.TotalPages
	for _, r := range page.Reports {
		if b, ok := r.BusRef().Populated(); ok {
			l.buses[b.ID] = b.BusNumber
		}
	}
	return nil
}

// Records is a copy of the loaded page before local filters.
func (l *DayEndList) Records() []models.DayEnd {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Visible is a copy of the loaded page after search and status filters.
func (l *DayEndList) Visible() []models.DayEnd {
	l.mu.Lock()
	defer l.mu.Unlock()
	return dayend.ApplyLocalFilters(l.snapshot(), l.search, l.status, l.buses)
}

// snapshot copies the records so Replace never writes to a slice a caller holds.
// Callers hold l.mu.
func (l *DayEndList) snapshot() []models.DayEnd {
	out := make([]models.DayEnd, len(l.records))
	copy(out, l.records)
	return out
}

// Summary aggregates the visible rows only; it is labelled as page scope.
// Client.DayEndSummary gives the dataset-wide figures.
func (l *DayEndList) Summary() dayend.Summary {
	return dayend.Summarize(l.Visible())
}

// Replace swaps in an updated copy of a report, e.g. after a status change.
func (l *DayEndList) Replace(rec models.DayEnd) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.records {
		if l.records[i].ID == rec.ID {
			l.records[i] = rec
			return
		}
	}
}

// BusNumber resolves the display number of a report's bus.
func (l *DayEndList) BusNumber(rec models.DayEnd) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return dayend.BusNumber(rec.BusRef(), l.buses)
}

func (l *DayEndList) State() ListState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *DayEndList) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Page returns the current page number, the server-side total count and page count.
func (l *DayEndList) Page() (page int, count int64, totalPages int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page, l.count, l.totalPages
}
