package dayend

import (
	"strings"

	"busops/internal/models"
)

const StatusAll = "all"

// BusDirectory maps bus ids to bus numbers for references that arrived unpopulated.
type BusDirectory map[uint]string

// BusNumber resolves the display number of a bus reference.
func BusNumber(ref models.Ref[models.Bus], dir BusDirectory) string {
	if bus, ok := ref.Populated(); ok {
		return bus.BusNumber
	}
	return dir[ref.ID()]
}

// ApplyLocalFilters narrows an already fetched page by status and free-text search.
// With no active filter the input slice itself is returned.
func ApplyLocalFilters(records []models.DayEnd, search, status string, dir BusDirectory) []models.DayEnd {
	search = strings.ToLower(strings.TrimSpace(search))
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		status = StatusAll
	}
	if search == "" && status == StatusAll {
		return records
	}

	out := make([]models.DayEnd, 0, len(records))
	for _, r := range records {
		if status != StatusAll && r.Status != status {
			continue
		}
		if search != "" && !matchesSearch(r, search, dir) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesSearch(r models.DayEnd, term string, dir BusDirectory) bool {
	fields := []string{
		BusNumber(r.BusRef(), dir),
		r.Notes,
		r.TotalRevenue.String(),
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}
