package geo

import (
	"math"

	cluster "github.com/MadAppGang/gocluster"
	"github.com/paulmach/orb"
)

// TileSize is the pixel size of one web mercator tile at zoom 0.
const TileSize = 256

// Project maps c to spherical mercator coordinates in the [0..1] range.
func Project(c Coordinate) (x, y float64) {
	return cluster.MercatorProjection(cluster.GeoCoordinates{Lon: c.Lon, Lat: c.Lat})
}

// Unproject is the inverse of Project.
func Unproject(x, y float64) Coordinate {
	gc := cluster.ReverseMercatorProjection(x, y)
	return Coordinate{Lat: gc.Lat, Lon: gc.Lon}
}

// Viewport returns the region visible in a width x height pixel map centered on
// center at the given zoom.
func Viewport(center Coordinate, zoom float64, width, height int) orb.Bound {
	world := TileSize * math.Pow(2, zoom)
	halfW := float64(width) / 2 / world
	halfH := float64(height) / 2 / world

	x, y := Project(center)
	minX, maxX := clamp01(x-halfW), clamp01(x+halfW)
	minY, maxY := clamp01(y-halfH), clamp01(y+halfH)

	nw := Unproject(minX, minY)
	se := Unproject(maxX, maxY)
	return orb.Bound{
		Min: orb.Point{nw.Lon, se.Lat},
		Max: orb.Point{se.Lon, nw.Lat},
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
