package pipeline

import (
	"time"

	"github.com/stwalsh4118/dissent/internal/models"
)

func floatPtr(v float64) *float64 { return &v }
func strPtr(s string) *string      { return &s }

func day(s string) *time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

// event builds a row with an ID, date and optional size.
func event(id int, date string, size *float64) models.Event {
	e := models.Event{ID: id, SizeMean: size}
	if date != "" {
		e.Date = day(date)
	}
	return e
}

func located(id int, lat, lon float64, label string) models.Event {
	return models.Event{
		ID:       id,
		Lat:      floatPtr(lat),
		Lon:      floatPtr(lon),
		Location: label,
		Title:    "Event",
	}
}

// kpiFixture is three events on 2025-01-01 sized 100, unknown and 300, plus one on
// 2025-01-02 sized 50.
func kpiFixture() []models.Event {
	return []models.Event{
		event(1, "2025-01-01", floatPtr(100)),
		event(2, "2025-01-01", nil),
		event(3, "2025-01-01", floatPtr(300)),
		event(4, "2025-01-02", floatPtr(50)),
	}
}
