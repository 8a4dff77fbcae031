// Package render decides how clusters appear on the map and draws the icons and
// map images.
package render

import (
	"fmt"
	"sync"

	"clustermap/internal/models"
)

const (
	// PinIcon is the icon key of single item markers.
	PinIcon = "pin"
	// ClusterIconPrefix prefixes the label in cluster icon keys ("cluster-50+").
	ClusterIconPrefix = "cluster-"
)

// MarkerCustomizer is told about every marker before it is shown.
type MarkerCustomizer interface {
	WillRenderMarker(marker *models.Marker)
}

type Options struct {
	// Clusters smaller than this are drawn as individual pins.
	MinClusterSize int
	// Above this zoom every item is drawn as a pin.
	MaxClusterZoom int
	Bucketer       *Bucketer
}

func DefaultOptions() Options {
	return Options{
		MinClusterSize: 4,
		MaxClusterZoom: 20,
		Bucketer:       DefaultBucketer(),
	}
}

// Renderer turns clusters into markers.
type Renderer struct {
	opts Options

	mu         sync.RWMutex
	customizer MarkerCustomizer
}

func NewRenderer(opts Options) *Renderer {
	if opts.MinClusterSize < 2 {
		opts.MinClusterSize = 2
	}
	if opts.Bucketer == nil {
		opts.Bucketer = DefaultBucketer()
	}
	return &Renderer{opts: opts}
}

func (r *Renderer) SetCustomizer(c MarkerCustomizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customizer = c
}

func (r *Renderer) Bucketer() *Bucketer {
	return r.opts.Bucketer
}

// ShouldRenderAsCluster reports whether c keeps its bubble at zoom.
func (r *Renderer) ShouldRenderAsCluster(c models.Cluster, zoom int) bool {
	return c.Count >= r.opts.MinClusterSize && zoom <= r.opts.MaxClusterZoom
}

// ClusterIcon is the icon key for a cluster of count items.
func (r *Renderer) ClusterIcon(count int) string {
	return ClusterIconPrefix + r.opts.Bucketer.Label(count)
}

func (r *Renderer) Render(clusters []models.Cluster, zoom int, expand func(models.Cluster) []models.Cluster) []models.Marker {
	markers := make([]models.Marker, 0, len(clusters))
	for _, c := range clusters {
		if r.ShouldRenderAsCluster(c, zoom) {
			markers = append(markers, models.Marker{
				ID:        models.ClusterMarkerID(c.ID),
				Position:  c.Position,
				Title:     fmt.Sprintf("%d items", c.Count),
				Icon:      r.ClusterIcon(c.Count),
				IsCluster: true,
				Count:     c.Count,
				Cluster:   c,
			})
			continue
		}

		members := []models.Cluster{c}
		if !c.IsItem() && expand != nil {
			members = expand(c)
		}
		for _, m := range members {
			if !m.IsItem() {
				continue
			}
			markers = append(markers, models.Marker{
				ID:       models.ItemMarkerID(m.ItemIndex),
				Position: m.Position,
				Count:    1,
				Item:     m.Item,
				Cluster:  m,
			})
		}
	}

	r.mu.RLock()
	customizer := r.customizer
	r.mu.RUnlock()
	if customizer != nil {
		for i := range markers {
			customizer.WillRenderMarker(&markers[i])
		}
	}
	return markers
}
