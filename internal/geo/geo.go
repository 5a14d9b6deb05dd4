// Package geo provides great-circle distance math for service-radius
// and ETA computation.
package geo

import (
	"math"

	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between a and b in
// kilometers.
func HaversineKm(a, b protocol.Geo) float64 {
	lat1 := a.Lat * math.Pi / 180
	lon1 := a.Lon * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	lon2 := b.Lon * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
