// Package keys builds the object keys used in the map bucket.
package keys

import (
	"fmt"
	"strconv"

	"clustermap/pkg/geo"
)

// Dataset names the item set generated for center, extent and count. seed is
// part of the name when the dataset is reproducible.
func Dataset(center geo.Coordinate, extent float64, count int, seed int64) string {
	name := fmt.Sprintf("%.4f_%.4f_%g_%d", center.Lat, center.Lon, extent, count)
	if seed != 0 {
		name += "_seed-" + strconv.FormatInt(seed, 10)
	}
	return name
}

// Snapshot is the key of the item snapshot of a dataset.
func Snapshot(center geo.Coordinate, extent float64, count int, seed int64) string {
	return "snapshots/" + Dataset(center, extent, count, seed) + ".poi.zst"
}
