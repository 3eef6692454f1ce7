package models

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for event dates on the wire and in exports.
const DateLayout = "2006-01-02"

// MaxSources is the number of source_N citation columns a dataset row may carry.
const MaxSources = 30

// Event represents one protest or demonstration from the Crowd Counting Consortium dataset.
// All nullable fields use pointers to distinguish between "unreported" and zero.
type Event struct {
	Date                *time.Time `json:"date,omitempty"`
	Lat                 *float64   `json:"lat,omitempty"`
	Lon                 *float64   `json:"lon,omitempty"`
	SizeLow             *float64   `json:"sizeLow,omitempty"`
	SizeHigh            *float64   `json:"sizeHigh,omitempty"`
	SizeMean            *float64   `json:"sizeMean,omitempty"`
	ParticipantInjuries *float64   `json:"participantInjuries,omitempty"`
	PoliceInjuries      *float64   `json:"policeInjuries,omitempty"`
	Arrests             *float64   `json:"arrests,omitempty"`
	ParticipantDeaths   *float64   `json:"participantDeaths,omitempty"`
	PoliceDeaths        *float64   `json:"policeDeaths,omitempty"`
	PropertyDamage      *string    `json:"propertyDamage,omitempty"`
	Title               string     `json:"title"`
	Locality            string     `json:"locality"`
	State               string     `json:"state"`
	ResolvedLocality    string     `json:"resolvedLocality,omitempty"`
	ResolvedState       string     `json:"resolvedState,omitempty"`
	Location            string     `json:"location,omitempty"`
	EventType           string     `json:"eventType,omitempty"`
	Organizations       string     `json:"organizations,omitempty"`
	Participants        string     `json:"participants,omitempty"`
	Targets             string     `json:"targets,omitempty"`
	ClaimsSummary       string     `json:"claimsSummary,omitempty"`
	Notables            string     `json:"notables,omitempty"`
	ParticipantMeasures string     `json:"participantMeasures,omitempty"`
	PoliceMeasures      string     `json:"policeMeasures,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	Sources             []string   `json:"sources,omitempty"`
	ID                  int        `json:"id"`
}

// HasCoordinates reports whether both lat and lon are present.
func (e *Event) HasCoordinates() bool {
	return e.Lat != nil && e.Lon != nil
}

// HasSize reports whether the event has a participant-count estimate.
func (e *Event) HasSize() bool {
	return e.SizeMean != nil
}

// DateString returns the event date as YYYY-MM-DD, or "" when the date is unknown.
func (e *Event) DateString() string {
	if e.Date == nil {
		return ""
	}
	return e.Date.Format(DateLayout)
}

// City returns the locality used for city filtering.
// The resolved locality wins; the raw locality is the fallback.
func (e *Event) City() string {
	if e.ResolvedLocality != "" {
		return e.ResolvedLocality
	}
	return e.Locality
}

// exportColumns is the fixed column order used when serializing events to CSV.
var exportColumns = []string{
	"date", "locality", "state", "location", "title", "event_type",
	"organizations", "participants", "targets", "claims_summary", "notables",
	"size_low", "size_high", "size_mean",
	"participant_measures", "police_measures",
	"participant_injuries", "police_injuries", "arrests",
	"participant_deaths", "police_deaths", "property_damage",
	"notes", "lat", "lon", "resolved_locality", "resolved_state",
}

// ExportHeader returns the CSV header for an export carrying sourceCols citation columns.
func ExportHeader(sourceCols int) []string {
	header := make([]string, 0, len(exportColumns)+sourceCols)
	header = append(header, exportColumns...)
	for i := 1; i <= sourceCols; i++ {
		header = append(header, "source_"+strconv.Itoa(i))
	}
	return header
}

// CSVRecord serializes the event in ExportHeader order. Null values become empty cells.
func (e *Event) CSVRecord(sourceCols int) []string {
	record := []string{
		e.DateString(), e.Locality, e.State, e.Location, e.Title, e.EventType,
		e.Organizations, e.Participants, e.Targets, e.ClaimsSummary, e.Notables,
		formatFloat(e.SizeLow), formatFloat(e.SizeHigh), formatFloat(e.SizeMean),
		e.ParticipantMeasures, e.PoliceMeasures,
		formatFloat(e.ParticipantInjuries), formatFloat(e.PoliceInjuries), formatFloat(e.Arrests),
		formatFloat(e.ParticipantDeaths), formatFloat(e.PoliceDeaths), derefString(e.PropertyDamage),
		e.Notes, formatFloat(e.Lat), formatFloat(e.Lon), e.ResolvedLocality, e.ResolvedState,
	}
	for i := 0; i < sourceCols; i++ {
		if i < len(e.Sources) {
			record = append(record, e.Sources[i])
		} else {
			record = append(record, "")
		}
	}
	return record
}

// HasPropertyDamage reports whether property damage was recorded as non-blank text.
func (e *Event) HasPropertyDamage() bool {
	return e.PropertyDamage != nil && strings.TrimSpace(*e.PropertyDamage) != ""
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
