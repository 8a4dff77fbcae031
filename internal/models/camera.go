package models

import (
	"math"

	"clustermap/pkg/geo"
)

const (
	MinZoom = 0
	MaxZoom = 21
)

// Camera is the map viewport: a target coordinate and a zoom level.
type Camera struct {
	Target geo.Coordinate `json:"target"`
	Zoom   float64        `json:"zoom"`
}

func NewCamera(target geo.Coordinate, zoom float64) Camera {
	return Camera{Target: target, Zoom: clampZoom(zoom)}
}

// ZoomedIn returns a camera centered on target, one zoom level closer.
func (c Camera) ZoomedIn(target geo.Coordinate) Camera {
	return NewCamera(target, c.Zoom+1)
}

// ZoomLevel is the integer zoom used for clustering and tile rendering.
func (c Camera) ZoomLevel() int {
	return int(math.Floor(c.Zoom))
}

func clampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return MinZoom
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}
