package geo

import (
	"math"
	"testing"

	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name      string
		a, b      protocol.Geo
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "zero distance",
			a:         protocol.Geo{Lat: 37.8715, Lon: -122.2730},
			b:         protocol.Geo{Lat: 37.8715, Lon: -122.2730},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "berkeley to sf",
			a:         protocol.Geo{Lat: 37.8715, Lon: -122.2730},
			b:         protocol.Geo{Lat: 37.78, Lon: -122.42},
			wantKm:    16.5,
			tolerance: 1.0,
		},
		{
			name:      "sf to la",
			a:         protocol.Geo{Lat: 37.7749, Lon: -122.4194},
			b:         protocol.Geo{Lat: 34.0522, Lon: -118.2437},
			wantKm:    559,
			tolerance: 5.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %v, want %v ± %v", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := protocol.Geo{Lat: 37.8715, Lon: -122.2730}
	b := protocol.Geo{Lat: 36.0, Lon: -120.0}
	if d1, d2 := HaversineKm(a, b), HaversineKm(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %v vs %v", d1, d2)
	}
}
