package clustering

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/MadAppGang/kdbush"
	"github.com/paulmach/orb"

	"clustermap/internal/models"
	"clustermap/pkg/geo"
)

// ErrNotClustered is returned by queries issued before the first Cluster call.
var ErrNotClustered = errors.New("cluster manager: Cluster has not been called")

// Renderer turns the clusters of one zoom level into map markers. expand lists the
// individual items of a cluster, for renderers that draw small clusters as pins.
type Renderer interface {
	Render(clusters []models.Cluster, zoom int, expand func(models.Cluster) []models.Cluster) []models.Marker
}

// Manager owns the items shown on the map. It delegates grouping to an Algorithm
// and drawing to a Renderer.
type Manager struct {
	mu        sync.RWMutex
	algorithm Algorithm
	renderer  Renderer
	items     []models.Item
	index     *kdbush.KDBush
	clustered bool
}

func NewManager(algorithm Algorithm, renderer Renderer) *Manager {
	return &Manager{algorithm: algorithm, renderer: renderer}
}

// Add queues items for the next Cluster call.
func (m *Manager) Add(items ...models.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
	m.clustered = false
}

// ClearItems drops every item. The map shows nothing until the next Cluster call.
func (m *Manager) ClearItems() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	m.index = nil
	m.clustered = false
}

// Cluster runs one clustering pass over all added items.
func (m *Manager) Cluster() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.algorithm.Build(m.items); err != nil {
		return err
	}
	m.index = nil
	if len(m.items) > 0 {
		points := make([]kdbush.Point, len(m.items))
		for i, item := range m.items {
			x, y := geo.Project(item.Position())
			points[i] = &kdbush.SimplePoint{X: x, Y: y}
		}
		m.index = kdbush.NewBush(points, 64)
	}
	m.clustered = true
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Item returns the item at index.
func (m *Manager) Item(index int) (models.Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index < 0 || index >= len(m.items) {
		return models.Item{}, false
	}
	return m.items[index], true
}

// Clusters returns the groups visible in bounds at zoom.
func (m *Manager) Clusters(bounds orb.Bound, zoom int) ([]models.Cluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.clustered {
		return nil, ErrNotClustered
	}
	clusters, err := m.algorithm.Clusters(bounds, zoom)
	if err != nil {
		return nil, fmt.Errorf("clusters at zoom %d: %w", zoom, err)
	}
	return clusters, nil
}

// Markers renders the groups visible in bounds at zoom.
func (m *Manager) Markers(bounds orb.Bound, zoom int) ([]models.Marker, error) {
	clusters, err := m.Clusters(bounds, zoom)
	if err != nil {
		return nil, err
	}
	return m.renderer.Render(clusters, zoom, m.Expand), nil
}

// Expand lists the items of c as single-item clusters, nearest to the cluster
// center first.
func (m *Manager) Expand(c models.Cluster) []models.Cluster {
	if c.IsItem() {
		return []models.Cluster{c}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.clustered || c.Count <= 0 {
		return nil
	}

	ids := m.algorithm.Members(c.ID)
	x, y := geo.Project(c.Position)
	dist := func(id int) float64 {
		px, py := geo.Project(m.items[id].Position())
		return math.Hypot(px-x, py-y)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return dist(ids[i]) < dist(ids[j])
	})

	result := make([]models.Cluster, 0, len(ids))
	for _, id := range ids {
		if id >= len(m.items) {
			continue
		}
		item := m.items[id]
		result = append(result, models.Cluster{
			ID:        id,
			Position:  item.Position(),
			Count:     1,
			ItemIndex: id,
			Item:      &item,
		})
	}
	return result
}

// Nearest returns the index of the item closest to coord within the tap radius
// of a marker at zoom.
func (m *Manager) Nearest(coord geo.Coordinate, zoom int) (int, bool) {
	ids := m.ItemsNear(coord, zoom)
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// ItemsNear hit-tests coord at zoom and returns the indexes of the items under
// it, nearest first.
func (m *Manager) ItemsNear(coord geo.Coordinate, zoom int) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.index == nil {
		return nil
	}
	return m.nearestLocked(coord, m.algorithm.Radius(zoom)/2)
}

func (m *Manager) nearestLocked(coord geo.Coordinate, radius float64) []int {
	x, y := geo.Project(coord)
	ids := m.index.Within(&kdbush.SimplePoint{X: x, Y: y}, radius)

	dist := func(id int) float64 {
		px, py := m.index.Points[id].Coordinates()
		return math.Hypot(px-x, py-y)
	}
	sort.Slice(ids, func(i, j int) bool {
		di, dj := dist(ids[i]), dist(ids[j])
		if di == dj {
			return ids[i] < ids[j]
		}
		return di < dj
	})
	return ids
}
