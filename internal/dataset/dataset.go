package dataset

import (
	"sort"
	"time"

	"github.com/stwalsh4118/dissent/internal/models"
)

// Dataset is a read-only, in-memory copy of the event table. Callers must not modify
// the slice returned by Events.
type Dataset struct {
	loadedAt   time.Time
	minDate    *time.Time
	maxDate    *time.Time
	origin     string
	events     []models.Event
	states     []string
	sourceCols int
}

// New wraps already-parsed rows in a Dataset.
func New(events []models.Event, sourceCols int, origin string, loadedAt time.Time) *Dataset {
	if events == nil {
		events = []models.Event{}
	}
	ds := &Dataset{
		events:     events,
		sourceCols: sourceCols,
		origin:     origin,
		loadedAt:   loadedAt,
	}

	seen := make(map[string]struct{})
	for i := range events {
		e := &events[i]
		if e.State != "" {
			if _, ok := seen[e.State]; !ok {
				seen[e.State] = struct{}{}
				ds.states = append(ds.states, e.State)
			}
		}
		if e.Date != nil {
			if ds.minDate == nil || e.Date.Before(*ds.minDate) {
				ds.minDate = e.Date
			}
			if ds.maxDate == nil || e.Date.After(*ds.maxDate) {
				ds.maxDate = e.Date
			}
		}
	}
	sort.Strings(ds.states)
	return ds
}

// Events returns every row in file order.
func (d *Dataset) Events() []models.Event {
	return d.events
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.events)
}

// States returns the distinct non-blank state values, sorted.
func (d *Dataset) States() []string {
	out := make([]string, len(d.states))
	copy(out, d.states)
	return out
}

// Cities returns the distinct cities of rows in the given states, sorted. City options
// depend on a state selection, so an empty selection yields no cities.
func (d *Dataset) Cities(states []string) []string {
	out := []string{}
	if len(states) == 0 {
		return out
	}
	want := make(map[string]struct{}, len(states))
	for _, s := range states {
		want[s] = struct{}{}
	}

	seen := make(map[string]struct{})
	for i := range d.events {
		e := &d.events[i]
		if _, ok := want[e.State]; !ok {
			continue
		}
		city := e.City()
		if city == "" {
			continue
		}
		if _, ok := seen[city]; !ok {
			seen[city] = struct{}{}
			out = append(out, city)
		}
	}
	sort.Strings(out)
	return out
}

// DateBounds returns the earliest and latest event dates, or nils when no row is dated.
func (d *Dataset) DateBounds() (first, last *time.Time) {
	return d.minDate, d.maxDate
}

// SourceColumns returns the number of source_N citation columns.
func (d *Dataset) SourceColumns() int {
	return d.sourceCols
}

// LoadedAt returns when the dataset was loaded.
func (d *Dataset) LoadedAt() time.Time {
	return d.loadedAt
}

// Origin reports where the rows came from: OriginCSV, OriginSnapshot or OriginMemory.
func (d *Dataset) Origin() string {
	return d.origin
}
