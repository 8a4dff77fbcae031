// Package geo holds the coordinate type shared by the map, the item generator and
// the geocoder, plus the helpers used to scatter test points around a center.
package geo

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether c is a finite latitude/longitude pair inside the usual ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Point returns c as an orb point (x = longitude, y = latitude).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// LatLng returns c as an s2.LatLng, the type the static map renderer expects.
func (c Coordinate) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Lat, c.Lon)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f, %.6f", c.Lat, c.Lon)
}

// RandomScale returns a value uniformly distributed in [-1.0, 1.0].
func RandomScale(rng *rand.Rand) float64 {
	return rng.Float64()*2.0 - 1.0
}

// Scatter offsets center by an independent random amount in [-extent, +extent]
// on each axis.
func Scatter(center Coordinate, extent float64, rng *rand.Rand) Coordinate {
	return Coordinate{
		Lat: center.Lat + extent*RandomScale(rng),
		Lon: center.Lon + extent*RandomScale(rng),
	}
}

// Within reports whether c lies inside the square of half-size extent around center.
func Within(c, center Coordinate, extent float64) bool {
	return math.Abs(c.Lat-center.Lat) <= extent && math.Abs(c.Lon-center.Lon) <= extent
}

// Bound builds an orb.Bound from the four edges of a map viewport.
func Bound(north, south, east, west float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{west, south},
		Max: orb.Point{east, north},
	}
}

// Clamp limits c to the valid latitude and longitude ranges.
func Clamp(c Coordinate) Coordinate {
	return Coordinate{
		Lat: math.Max(-90, math.Min(90, c.Lat)),
		Lon: math.Max(-180, math.Min(180, c.Lon)),
	}
}
