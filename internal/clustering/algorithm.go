// Package clustering wires the points of interest into the clustering library
// and hands the resulting groups to a renderer.
package clustering

import (
	"fmt"
	"math"
	"sort"

	cluster "github.com/MadAppGang/gocluster"
	"github.com/MadAppGang/kdbush"
	"github.com/paulmach/orb"

	"clustermap/internal/models"
	"clustermap/pkg/geo"
)

// Algorithm groups items for a zoom level.
type Algorithm interface {
	// Build indexes items for every zoom level. It replaces any previous index.
	Build(items []models.Item) error
	// Clusters returns the groups whose centers fall inside bounds at zoom.
	// Single-item groups carry the index of the item in the slice given to Build.
	Clusters(bounds orb.Bound, zoom int) ([]models.Cluster, error)
	// Radius is the clustering distance at zoom, in [0..1] mercator units.
	Radius(zoom int) float64
	// Members lists the indexes of the items inside the group with id.
	Members(id int) []int
}

// Options tunes the gocluster index.
type Options struct {
	MinZoom   int
	MaxZoom   int
	PointSize int
	TileSize  int
	NodeSize  int
}

// DefaultOptions mirrors the library defaults with the map's 256px tiles.
func DefaultOptions() Options {
	return Options{
		MinZoom:   0,
		MaxZoom:   20,
		PointSize: 40,
		TileSize:  geo.TileSize,
		NodeSize:  64,
	}
}

// GoCluster adapts github.com/MadAppGang/gocluster to Algorithm.
type GoCluster struct {
	opts  Options
	index *cluster.Cluster
	items []models.Item

	// children maps a group id to the ids of the groups one zoom level below
	// that it absorbed. Ids under seed are item indexes.
	children map[int][]int
	seed     int
}

func NewGoCluster(opts Options) *GoCluster {
	if opts.MaxZoom > 21 {
		opts.MaxZoom = 21
	}
	if opts.MinZoom < 0 {
		opts.MinZoom = 0
	}
	if opts.MinZoom > opts.MaxZoom {
		opts.MinZoom = opts.MaxZoom
	}
	return &GoCluster{opts: opts}
}

func (g *GoCluster) Build(items []models.Item) error {
	g.items = items
	g.index = nil
	g.children = nil
	g.seed = 0
	if len(items) == 0 {
		return nil
	}

	c := cluster.NewCluster()
	c.MinZoom = g.opts.MinZoom
	c.MaxZoom = g.opts.MaxZoom
	c.PointSize = g.opts.PointSize
	c.TileSize = g.opts.TileSize
	c.NodeSize = g.opts.NodeSize

	points := make([]cluster.GeoPoint, len(items))
	for i := range items {
		points[i] = items[i]
	}
	if err := c.ClusterPoints(points); err != nil {
		return fmt.Errorf("cluster %d points: %w", len(points), err)
	}
	children, err := links(c)
	if err != nil {
		return fmt.Errorf("cluster %d points: %w", len(points), err)
	}
	g.index = c
	g.children = children
	g.seed = c.ClusterIdxSeed
	return nil
}

// links replays the greedy pass gocluster runs from MaxZoom down to MinZoom and
// records which groups of level z+1 each new group of level z absorbed. A group
// claimed by an earlier seed is never a member of a later one, even when it lies
// inside the later group's radius.
func links(c *cluster.Cluster) (map[int][]int, error) {
	children := make(map[int][]int)
	for z := c.MaxZoom; z >= c.MinZoom; z-- {
		tree, parents := c.Indexes[z+1], c.Indexes[z]
		r := float64(c.PointSize) / float64(c.TileSize*(1<<uint(z)))

		claimed := make([]bool, len(tree.Points))
		next := 0
		for i, p := range tree.Points {
			if claimed[i] {
				continue
			}
			claimed[i] = true

			x, y := p.Coordinates()
			var absorbed []int
			for _, j := range tree.Within(&kdbush.SimplePoint{X: x, Y: y}, r) {
				if !claimed[j] {
					claimed[j] = true
					absorbed = append(absorbed, j)
				}
			}

			if next >= len(parents.Points) {
				return nil, fmt.Errorf("zoom %d: more groups than the library built", z)
			}
			parent := parents.Points[next].(*cluster.ClusterPoint)
			next++
			if len(absorbed) == 0 {
				continue
			}

			ids := make([]int, 0, len(absorbed)+1)
			ids = append(ids, p.(*cluster.ClusterPoint).Id)
			for _, j := range absorbed {
				ids = append(ids, tree.Points[j].(*cluster.ClusterPoint).Id)
			}
			children[parent.Id] = ids
		}
		if next != len(parents.Points) {
			return nil, fmt.Errorf("zoom %d: built %d groups, library has %d", z, next, len(parents.Points))
		}
	}
	return children, nil
}

// boundCorner is a GeoPoint for the corners passed to GetClusters.
type boundCorner cluster.GeoCoordinates

func (b boundCorner) GetCoordinates() cluster.GeoCoordinates {
	return cluster.GeoCoordinates(b)
}

func (g *GoCluster) Clusters(bounds orb.Bound, zoom int) ([]models.Cluster, error) {
	if g.index == nil {
		return nil, nil
	}

	// GetClusters takes its range as (max mercator corner, min mercator corner):
	// east/south first, then west/north.
	maxCorner := boundCorner{Lon: bounds.Max.Lon(), Lat: bounds.Min.Lat()}
	minCorner := boundCorner{Lon: bounds.Min.Lon(), Lat: bounds.Max.Lat()}
	points := g.index.GetClusters(maxCorner, minCorner, zoom)

	result := make([]models.Cluster, 0, len(points))
	for _, p := range points {
		c := models.Cluster{
			ID:        p.Id,
			Position:  geo.Coordinate{Lat: p.Y, Lon: p.X},
			Count:     p.NumPoints,
			ItemIndex: -1,
		}
		if p.NumPoints == 1 && p.Id < len(g.items) {
			item := g.items[p.Id]
			c.ItemIndex = p.Id
			c.Item = &item
			c.Position = item.Position()
		}
		result = append(result, c)
	}
	return result, nil
}

func (g *GoCluster) Radius(zoom int) float64 {
	return float64(g.opts.PointSize) / (float64(g.opts.TileSize) * math.Pow(2, float64(zoom)))
}

func (g *GoCluster) Members(id int) []int {
	if g.index == nil || id < 0 {
		return nil
	}
	if id < g.seed {
		if id >= len(g.items) {
			return nil
		}
		return []int{id}
	}

	var members []int
	pending := append([]int(nil), g.children[id]...)
	for len(pending) > 0 {
		last := len(pending) - 1
		next := pending[last]
		pending = pending[:last]
		if next < g.seed {
			members = append(members, next)
			continue
		}
		pending = append(pending, g.children[next]...)
	}
	sort.Ints(members)
	return members
}
