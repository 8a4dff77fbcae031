package models

import (
	"time"

	"github.com/google/uuid"

	"clustermap/pkg/geo"
	"clustermap/pkg/location"
)

type TapKind string

const (
	TapMap     TapKind = "map"
	TapMarker  TapKind = "marker"
	TapCluster TapKind = "cluster"
)

// TapEvent records one user tap as it flows through the tap pipeline and out to
// the event stream.
type TapEvent struct {
	ID         string            `json:"id"`
	Kind       TapKind           `json:"kind"`
	Coordinate geo.Coordinate    `json:"coordinate"`
	At         time.Time         `json:"at"`
	ItemName   string            `json:"itemName,omitempty"`
	Count      int               `json:"count,omitempty"`
	Nearest    string            `json:"nearest,omitempty"`
	Address    *location.Address `json:"address,omitempty"`
}

func NewTapEvent(kind TapKind, coord geo.Coordinate) *TapEvent {
	return &TapEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Coordinate: coord,
		At:         time.Now().UTC(),
	}
}
