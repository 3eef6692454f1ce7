package models

import (
	"encoding/json"
	"testing"
)

// TestPointMarshalJSON verifies GeoJSON output uses [lon, lat] order
func TestPointMarshalJSON(t *testing.T) {
	p := Point{Lat: 30.2672, Lon: -97.7431}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var geom map[string]interface{}
	if err := json.Unmarshal(data, &geom); err != nil {
		t.Fatalf("Marshal did not return valid JSON: %v", err)
	}
	if geom["type"] != "Point" {
		t.Errorf("expected type=Point, got %v", geom["type"])
	}
	coords, ok := geom["coordinates"].([]interface{})
	if !ok || len(coords) != 2 {
		t.Fatalf("expected two coordinates, got %v", geom["coordinates"])
	}
	if coords[0] != -97.7431 || coords[1] != 30.2672 {
		t.Errorf("expected [lon, lat] order, got %v", coords)
	}
}

// TestPointUnmarshalJSON tests parsing GeoJSON input
func TestPointUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
		wantLat   float64
		wantLon   float64
	}{
		{
			name:    "valid point",
			input:   `{"type":"Point","coordinates":[-95.5,30.2]}`,
			wantLat: 30.2,
			wantLon: -95.5,
		},
		{
			name:    "missing type is accepted",
			input:   `{"coordinates":[-95.5,30.2]}`,
			wantLat: 30.2,
			wantLon: -95.5,
		},
		{
			name:      "wrong type",
			input:     `{"type":"Polygon","coordinates":[-95.5,30.2]}`,
			wantError: true,
		},
		{
			name:      "too few coordinates",
			input:     `{"type":"Point","coordinates":[-95.5]}`,
			wantError: true,
		},
		{
			name:      "invalid JSON",
			input:     `{invalid}`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Point
			err := json.Unmarshal([]byte(tt.input), &p)
			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Lat != tt.wantLat || p.Lon != tt.wantLon {
				t.Errorf("got (%f, %f), want (%f, %f)", p.Lat, p.Lon, tt.wantLat, tt.wantLon)
			}
		})
	}
}

func TestPointValid(t *testing.T) {
	if !(Point{Lat: 45, Lon: -120}).Valid() {
		t.Error("expected point to be valid")
	}
	if (Point{Lat: 91, Lon: 0}).Valid() {
		t.Error("expected latitude 91 to be invalid")
	}
	if (Point{Lat: 0, Lon: -181}).Valid() {
		t.Error("expected longitude -181 to be invalid")
	}
}
