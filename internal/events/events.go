// Package events carries day-end review notifications to live dashboards and to Kafka.
package events

import (
	"context"
	"errors"
	"time"
)

const TypeDayEndStatusChanged = "dayend.status_changed"

// Event describes a change that dashboards scoped to OwnerID or BusID care about.
type Event struct {
	Type       string    `json:"type"`
	DayEndID   uint      `json:"dayEndId"`
	BusID      uint      `json:"busId"`
	OwnerID    uint      `json:"ownerId"`
	Status     string    `json:"status"`
	ReviewedBy uint      `json:"reviewedBy"`
	At         time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
