package models

import (
	"encoding/json"

	cluster "github.com/MadAppGang/gocluster"

	"clustermap/pkg/geo"
)

// Item is a point of interest: a position plus a display name.
// It is immutable once constructed; the cluster manager owns the collection.
type Item struct {
	name     string
	position geo.Coordinate
}

func NewItem(name string, position geo.Coordinate) Item {
	return Item{name: name, position: position}
}

func (i Item) Name() string { return i.name }

func (i Item) Position() geo.Coordinate { return i.position }

// GetCoordinates lets the clustering library index the item.
func (i Item) GetCoordinates() cluster.GeoCoordinates {
	return cluster.GeoCoordinates{Lon: i.position.Lon, Lat: i.position.Lat}
}

type itemJSON struct {
	Name     string         `json:"name"`
	Position geo.Coordinate `json:"position"`
}

func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemJSON{Name: i.name, Position: i.position})
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = NewItem(raw.Name, raw.Position)
	return nil
}
