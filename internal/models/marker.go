package models

import (
	"fmt"
	"strconv"
	"strings"

	"clustermap/pkg/geo"
)

// Cluster is one group produced by the clustering algorithm. A cluster of one
// carries the item it stands for.
type Cluster struct {
	ID        int            `json:"id"`
	Position  geo.Coordinate `json:"position"`
	Count     int            `json:"count"`
	ItemIndex int            `json:"itemIndex"`
	Item      *Item          `json:"item,omitempty"`
}

func (c Cluster) IsItem() bool {
	return c.Count == 1 && c.Item != nil
}

// Marker is what the map draws: either a cluster bubble or a single item pin.
type Marker struct {
	ID        string         `json:"id"`
	Position  geo.Coordinate `json:"position"`
	Title     string         `json:"title"`
	Icon      string         `json:"icon"`
	IsCluster bool           `json:"cluster"`
	Count     int            `json:"count"`
	Item      *Item          `json:"-"`
	Cluster   Cluster        `json:"-"`
}

const (
	itemMarkerPrefix    = "item-"
	clusterMarkerPrefix = "cluster-"
)

// ItemMarkerID is the marker id of the item at index.
func ItemMarkerID(index int) string {
	return itemMarkerPrefix + strconv.Itoa(index)
}

// ClusterMarkerID is the marker id of the cluster with the given id.
func ClusterMarkerID(id int) string {
	return clusterMarkerPrefix + strconv.Itoa(id)
}

// ParseMarkerID splits a marker id into its kind and numeric part.
func ParseMarkerID(id string) (isCluster bool, n int, err error) {
	var raw string
	switch {
	case strings.HasPrefix(id, itemMarkerPrefix):
		raw = strings.TrimPrefix(id, itemMarkerPrefix)
	case strings.HasPrefix(id, clusterMarkerPrefix):
		isCluster = true
		raw = strings.TrimPrefix(id, clusterMarkerPrefix)
	default:
		return false, 0, fmt.Errorf("unknown marker id %q", id)
	}
	n, err = strconv.Atoi(raw)
	if err != nil || n < 0 {
		return false, 0, fmt.Errorf("malformed marker id %q", id)
	}
	return isCluster, n, nil
}
