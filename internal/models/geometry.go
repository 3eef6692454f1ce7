package models

import (
	"encoding/json"
	"fmt"
)

// Point represents a WGS84 map position.
// It serializes as a GeoJSON Point with coordinates in [lon, lat] order.
type Point struct {
	Lat float64
	Lon float64
}

// MarshalJSON implements json.Marshaler for API responses.
// Returns GeoJSON-compliant format for frontend consumption.
func (p Point) MarshalJSON() ([]byte, error) {
	geom := struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}{
		Type:        "Point",
		Coordinates: [2]float64{p.Lon, p.Lat},
	}
	return json.Marshal(geom)
}

// UnmarshalJSON implements json.Unmarshaler for parsing GeoJSON input.
func (p *Point) UnmarshalJSON(data []byte) error {
	var geom struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal point: %w", err)
	}
	if geom.Type != "" && geom.Type != "Point" {
		return fmt.Errorf("expected Point type, got %s", geom.Type)
	}
	if len(geom.Coordinates) != 2 {
		return fmt.Errorf("expected 2 coordinates, got %d", len(geom.Coordinates))
	}
	p.Lon = geom.Coordinates[0]
	p.Lat = geom.Coordinates[1]
	return nil
}

// Valid reports whether the point lies within WGS84 bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}
