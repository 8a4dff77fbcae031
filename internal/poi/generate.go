// Package poi generates the random points of interest the demo map clusters.
package poi

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"clustermap/internal/models"
	"clustermap/pkg/geo"
)

const (
	DefaultCount  = 10000
	DefaultExtent = 0.2
	DefaultZoom   = 10
)

// DefaultCenter is the fixed camera location the items are scattered around.
var DefaultCenter = geo.Coordinate{Lat: -33.8, Lon: 151.2}

// NewRand returns a generator seeded with seed, or with the clock when seed is 0.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// ItemName is the display name of the n-th generated item (1-based).
func ItemName(n int) string {
	return fmt.Sprintf("Item %d", n)
}

// Generate scatters count items uniformly within ±extent degrees of center.
// Items are named "Item 1" through "Item <count>" in order. Positions that fall
// off the globe are clamped to its edge. An invalid center yields no items and a
// negative or non-finite extent puts every item on the center.
func Generate(center geo.Coordinate, extent float64, count int, rng *rand.Rand) []models.Item {
	if count <= 0 || !center.Valid() {
		return nil
	}
	if extent < 0 || math.IsNaN(extent) || math.IsInf(extent, 0) {
		extent = 0
	}
	items := make([]models.Item, count)
	for i := range items {
		items[i] = models.NewItem(ItemName(i+1), geo.Clamp(geo.Scatter(center, extent, rng)))
	}
	return items
}
