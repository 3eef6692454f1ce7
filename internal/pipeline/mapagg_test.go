package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/dissent/internal/models"
)

func TestJitter_SpreadsOverlappingRowsOnCircle(t *testing.T) {
	events := []models.Event{
		located(1, 40.0, -75.0, "A"),
		located(2, 40.0, -75.0, "A"),
		located(3, 40.0, -75.0, "A"),
		located(4, 41.0, -76.0, "B"),
	}

	got := Jitter(events, 0.03)

	require.Len(t, got, 4)
	// Center row and the non-overlapping row stay put.
	assert.Equal(t, 40.0, *got[0].Lat)
	assert.Equal(t, -75.0, *got[0].Lon)
	assert.Equal(t, 41.0, *got[3].Lat)

	// k=1 sits at angle 0, k=2 at angle π.
	assert.InDelta(t, 40.03, *got[1].Lat, 1e-9)
	assert.InDelta(t, -75.0, *got[1].Lon, 1e-9)
	assert.InDelta(t, 39.97, *got[2].Lat, 1e-9)
	assert.InDelta(t, -75.0, *got[2].Lon, 1e-9)

	for _, e := range got[1:3] {
		dist := math.Hypot(*e.Lat-40.0, *e.Lon+75.0)
		assert.InDelta(t, 0.03, dist, 1e-9)
	}

	// Inputs untouched.
	assert.Equal(t, 40.0, *events[1].Lat)
	assert.Equal(t, 40.0, *events[2].Lat)
}

func TestJitter_Deterministic(t *testing.T) {
	events := []models.Event{
		located(1, 10, 10, "A"),
		located(2, 10, 10, "A"),
		located(3, 10, 10, "A"),
		located(4, 10, 10, "A"),
	}

	first := Jitter(events, DefaultJitterRadius)
	second := Jitter(events, DefaultJitterRadius)

	for i := range first {
		assert.Equal(t, *first[i].Lat, *second[i].Lat)
		assert.Equal(t, *first[i].Lon, *second[i].Lon)
	}
}

func TestLocationLabel(t *testing.T) {
	tests := []struct {
		name  string
		event models.Event
		want  string
	}{
		{name: "location wins", event: models.Event{Location: "City Hall", Locality: "Austin"}, want: "City Hall"},
		{name: "locality fallback", event: models.Event{Locality: "Austin"}, want: "Austin"},
		{name: "nan location ignored", event: models.Event{Location: "nan", Locality: "Austin"}, want: "Austin"},
		{name: "state and date", event: models.Event{State: "TX", Date: day("2025-01-02")}, want: "TX, 2025-01-02"},
		{name: "unknown", event: models.Event{}, want: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocationLabel(&tt.event))
		})
	}
}

func TestAggregateForMap_GroupsByLabel(t *testing.T) {
	a1 := located(1, 30.0, -97.0, "Capitol")
	a1.SizeMean = floatPtr(100)
	a1.Title = "Rally"
	a1.Organizations = "Acme"
	a1.Date = day("2025-01-01")
	a2 := located(2, 30.0, -97.0, "Capitol")
	a2.SizeMean = floatPtr(300)
	b := located(3, 31.0, -98.0, "Park")
	noCoords := models.Event{ID: 4, Location: "Nowhere"}

	result := AggregateForMap([]models.Event{a1, a2, b, noCoords}, DefaultMapOptions())

	assert.Equal(t, 3, result.Events)
	require.Len(t, result.Sized, 1)
	require.Len(t, result.Unsized, 1)

	capitol := result.Sized[0]
	assert.Equal(t, "Capitol", capitol.Label)
	assert.Equal(t, 2, capitol.Count)
	assert.Equal(t, []int{1, 2}, capitol.EventIDs)
	require.NotNil(t, capitol.MeanSize)
	assert.Equal(t, 200.0, *capitol.MeanSize)
	assert.Equal(t, models.Point{Lat: 30.0, Lon: -97.0}, capitol.Position)
	assert.Contains(t, capitol.Hover, "<b>Capitol</b><br>Events at this site: 2")
	assert.Contains(t, capitol.Hover, "Rally (2025-01-01)<br>Org: Acme")
	assert.Contains(t, capitol.Hover, "<b>Mean Size:</b> 200")

	park := result.Unsized[0]
	assert.Equal(t, "Park", park.Label)
	assert.Nil(t, park.MeanSize)
	assert.Contains(t, park.Hover, "<b>Mean Size:</b> NA")
	assert.Contains(t, park.Hover, "Event ()<br>Org: Unknown")

	assert.Equal(t, 200.0, result.MaxSize)
	assert.InDelta(t, 2*200.0/2500, result.SizeRef, 1e-12)

	total := 0
	for _, m := range result.Markers() {
		total += m.Count
	}
	assert.Equal(t, result.Events, total)
}

func TestAggregateForMap_DistinctLabelsAtSharedCoordinate(t *testing.T) {
	events := []models.Event{
		located(1, 40.0, -75.0, "A"),
		located(2, 40.000001, -75.000001, "B"),
		located(3, 40.000001, -75.000001, "C"),
	}

	result := AggregateForMap(events, DefaultMapOptions())

	markers := result.Markers()
	require.Len(t, markers, 3)
	a, b, c := markers[0], markers[1], markers[2]
	assert.Equal(t, []string{"A", "B", "C"}, []string{a.Label, b.Label, c.Label})

	assert.Equal(t, models.Point{Lat: 40.0, Lon: -75.0}, a.Position)

	dist := func(p, q models.Point) float64 { return math.Hypot(p.Lat-q.Lat, p.Lon-q.Lon) }
	assert.InDelta(t, DefaultJitterRadius, dist(a.Position, b.Position), 1e-9)
	assert.InDelta(t, DefaultJitterRadius, dist(a.Position, c.Position), 1e-9)
	assert.InDelta(t, 2*DefaultJitterRadius, dist(b.Position, c.Position), 1e-9)

	for _, m := range markers {
		assert.Equal(t, 1, m.Count)
	}
}

func TestAggregateForMap_Empty(t *testing.T) {
	result := AggregateForMap(nil, DefaultMapOptions())

	assert.NotNil(t, result.Sized)
	assert.NotNil(t, result.Unsized)
	assert.Empty(t, result.Markers())
	assert.Equal(t, 1.0, result.SizeRef)
	assert.Zero(t, result.Events)
}

func TestEventsAtLocation(t *testing.T) {
	events := []models.Event{
		located(1, 1, 1, "Plaza"),
		located(2, 2, 2, "Plaza"),
		located(3, 3, 3, "Pier"),
		{ID: 4, Location: "Plaza"},
	}

	got, ok := EventsAtLocation(events, "Plaza")
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2}, ids(got))

	_, ok = EventsAtLocation(events, "Missing")
	assert.False(t, ok)

	_, ok = EventsAtLocation(events, "  ")
	assert.False(t, ok)
}
