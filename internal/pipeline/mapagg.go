package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/stwalsh4118/dissent/internal/models"
)

const (
	// DefaultJitterRadius is the circle radius, in degrees, used to separate overlapping markers.
	DefaultJitterRadius = 0.03

	// coordinatePrecision is the number of decimal places used to detect overlapping coordinates.
	coordinatePrecision = 5

	// markerAreaScale is the largest marker diameter, in pixels, a renderer should map MaxSize to.
	markerAreaScale = 50.0

	// MinMarkerSize is the smallest visible diameter for a sized marker.
	MinMarkerSize = 6
	// UnsizedMarkerSize is the fixed diameter for markers without a size estimate.
	UnsizedMarkerSize = 14

	unknownLabel = "Unknown"
)

// MapOptions tunes map aggregation.
type MapOptions struct {
	JitterRadius float64
}

// DefaultMapOptions returns the options used when none are configured.
func DefaultMapOptions() MapOptions {
	return MapOptions{JitterRadius: DefaultJitterRadius}
}

// Marker is one aggregated map point for a distinct location label.
type Marker struct {
	MeanSize *float64     `json:"meanSize"`
	Label    string       `json:"label"`
	Hover    string       `json:"hover"`
	Titles   []string     `json:"titles"`
	EventIDs []int        `json:"eventIds"`
	Position models.Point `json:"position"`
	Count    int          `json:"count"`
}

// HasSize reports whether any event at this location had a size estimate.
func (m *Marker) HasSize() bool {
	return m.MeanSize != nil
}

// MapResult holds the markers split into rendering buckets.
// Sized markers should be drawn with area proportional to MeanSize using SizeRef and
// MinMarkerSize; unsized markers at UnsizedMarkerSize in a distinct color.
type MapResult struct {
	Sized   []Marker `json:"sized"`
	Unsized []Marker `json:"unsized"`
	MaxSize float64  `json:"maxSize"`
	SizeRef float64  `json:"sizeRef"`
	Events  int      `json:"events"`
}

// Markers returns every marker, sized and unsized, ordered by label.
func (r MapResult) Markers() []Marker {
	all := make([]Marker, 0, len(r.Sized)+len(r.Unsized))
	all = append(all, r.Sized...)
	all = append(all, r.Unsized...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Label < all[j].Label })
	return all
}

// Jitter separates rows that share a coordinate rounded to five decimal places.
// Within each group the first row keeps its position and the remaining n-1 rows are
// placed evenly on a circle of the given radius around it, the k-th at angle
// 2π·(k-1)/(n-1). Placement depends only on input order. Rows without coordinates pass
// through untouched. The input is not modified.
func Jitter(events []models.Event, radius float64) []models.Event {
	out := make([]models.Event, len(events))
	copy(out, events)

	groups := make(map[string][]int)
	var order []string
	for i := range out {
		if !out[i].HasCoordinates() {
			continue
		}
		key := coordinateKey(*out[i].Lat, *out[i].Lon)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	for _, key := range order {
		idxs := groups[key]
		n := len(idxs)
		if n < 2 {
			continue
		}
		centerLat := *out[idxs[0]].Lat
		centerLon := *out[idxs[0]].Lon
		for k := 1; k < n; k++ {
			angle := 2 * math.Pi * float64(k-1) / float64(n-1)
			lat := centerLat + math.Cos(angle)*radius
			lon := centerLon + math.Sin(angle)*radius
			// Fresh pointers so the shared source rows are never touched.
			out[idxs[k]].Lat = &lat
			out[idxs[k]].Lon = &lon
		}
	}
	return out
}

func coordinateKey(lat, lon float64) string {
	return fmt.Sprintf("%.*f,%.*f", coordinatePrecision, lat, coordinatePrecision, lon)
}

// LocationLabel derives the grouping key for map markers: the specific location when
// present, else the locality, else "{state}, {date}", and "Unknown" when all are blank.
func LocationLabel(e *models.Event) string {
	if loc := cleanLabelPart(e.Location); loc != "" {
		return loc
	}
	if loc := cleanLabelPart(e.Locality); loc != "" {
		return loc
	}

	parts := make([]string, 0, 2)
	if state := cleanLabelPart(e.State); state != "" {
		parts = append(parts, state)
	}
	if date := e.DateString(); date != "" {
		parts = append(parts, date)
	}
	if len(parts) == 0 {
		return unknownLabel
	}
	return strings.Join(parts, ", ")
}

// cleanLabelPart trims a label candidate and treats the literal "nan" as blank, since
// upstream exports sometimes stringify missing values.
func cleanLabelPart(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

// AggregateForMap produces one marker per distinct location label from the filtered rows.
// Overlapping coordinates are jittered before grouping, so each marker sits at the
// (possibly jittered) position of the first row carrying its label.
func AggregateForMap(events []models.Event, opts MapOptions) MapResult {
	located := make([]models.Event, 0, len(events))
	for i := range events {
		if events[i].HasCoordinates() {
			located = append(located, events[i])
		}
	}
	located = Jitter(located, opts.JitterRadius)

	type group struct {
		marker  Marker
		sizeSum float64
		sized   int
		lines   []string
	}
	groups := make(map[string]*group)
	for i := range located {
		e := &located[i]
		label := LocationLabel(e)
		g, ok := groups[label]
		if !ok {
			g = &group{marker: Marker{
				Label:    label,
				Position: models.Point{Lat: *e.Lat, Lon: *e.Lon},
			}}
			groups[label] = g
		}
		g.marker.Count++
		g.marker.EventIDs = append(g.marker.EventIDs, e.ID)
		g.marker.Titles = append(g.marker.Titles, e.Title)
		g.lines = append(g.lines, eventHoverLine(e))
		if e.SizeMean != nil {
			g.sizeSum += *e.SizeMean
			g.sized++
		}
	}

	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	result := MapResult{Events: len(located), SizeRef: 1}
	for _, label := range labels {
		g := groups[label]
		if g.sized > 0 {
			mean := g.sizeSum / float64(g.sized)
			g.marker.MeanSize = &mean
		}
		g.marker.Hover = markerHover(&g.marker, g.lines)
		if g.marker.HasSize() {
			result.Sized = append(result.Sized, g.marker)
			if *g.marker.MeanSize > result.MaxSize {
				result.MaxSize = *g.marker.MeanSize
			}
		} else {
			result.Unsized = append(result.Unsized, g.marker)
		}
	}
	if result.MaxSize > 0 {
		result.SizeRef = 2.0 * result.MaxSize / (markerAreaScale * markerAreaScale)
	}
	if result.Sized == nil {
		result.Sized = []Marker{}
	}
	if result.Unsized == nil {
		result.Unsized = []Marker{}
	}
	return result
}

// EventsAtLocation returns the filtered rows behind the marker with the given label.
// The second return value is false when no mapped row carries that label.
func EventsAtLocation(events []models.Event, label string) ([]models.Event, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, false
	}
	var out []models.Event
	for i := range events {
		if !events[i].HasCoordinates() {
			continue
		}
		if LocationLabel(&events[i]) == label {
			out = append(out, events[i])
		}
	}
	return out, len(out) > 0
}

func eventHoverLine(e *models.Event) string {
	title := e.Title
	if strings.TrimSpace(title) == "" {
		title = "No Title"
	}
	org := e.Organizations
	if strings.TrimSpace(org) == "" {
		org = unknownLabel
	}
	return fmt.Sprintf("%s (%s)<br>Org: %s", title, e.DateString(), org)
}

func markerHover(m *Marker, lines []string) string {
	return fmt.Sprintf(
		"<b>%s</b><br>Events at this site: %d<br><br><b>Events:</b><br>%s<br><br><b>Mean Size:</b> %s",
		m.Label, m.Count, strings.Join(lines, "<br><br>"), formatMeanSize(m.MeanSize),
	)
}

func formatMeanSize(v *float64) string {
	if v == nil {
		return "NA"
	}
	return humanize.Comma(int64(*v))
}
