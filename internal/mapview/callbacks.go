package mapview

import (
	"context"
	"fmt"
	"log"

	"clustermap/internal/models"
	"clustermap/internal/render"
	"clustermap/pkg/geo"
)

// DidTapCluster zooms in one level on the tapped cluster.
func (v *View) DidTapCluster(ctx context.Context, cluster models.Cluster) bool {
	v.mu.Lock()
	v.camera = v.camera.ZoomedIn(cluster.Position)
	v.mu.Unlock()

	ev := models.NewTapEvent(models.TapCluster, cluster.Position)
	ev.Count = cluster.Count
	v.process(ctx, ev)
	return false
}

// DidTapAt prints the coordinate and looks up its address in the background.
func (v *View) DidTapAt(ctx context.Context, coord geo.Coordinate) {
	log.Printf("You tapped at %f, %f", coord.Lat, coord.Lon)
	v.process(ctx, models.NewTapEvent(models.TapMap, coord))
}

func (v *View) DidTapMarker(ctx context.Context, marker models.Marker) bool {
	ev := models.NewTapEvent(models.TapMarker, marker.Position)
	if marker.Item != nil {
		log.Printf("Did tap marker for cluster item %s", marker.Item.Name())
		ev.ItemName = marker.Item.Name()
	} else {
		log.Println("Did tap a normal marker")
		ev.Count = marker.Count
	}
	v.process(ctx, ev)
	return false
}

// WillRenderMarker gives item markers the pin icon and the item name.
func (v *View) WillRenderMarker(marker *models.Marker) {
	if marker.Item == nil {
		return
	}
	marker.Icon = render.PinIcon
	marker.Title = marker.Item.Name()
}

// MarkerInfoWindow is the popup of an item marker; clusters have none.
func (v *View) MarkerInfoWindow(marker models.Marker) *InfoWindow {
	if marker.Item == nil {
		return nil
	}
	pos := marker.Item.Position()
	return &InfoWindow{
		Title:   marker.Item.Name(),
		Snippet: fmt.Sprintf("%.5f, %.5f", pos.Lat, pos.Lon),
		Icon:    render.PinIcon,
		Anchor:  pos,
	}
}

// TapMap delivers a tap on empty map space to the map listener. ctx bounds the
// background work the tap starts, so it must outlive the caller when the caller
// returns before that work is done.
func (v *View) TapMap(ctx context.Context, coord geo.Coordinate) error {
	if !coord.Valid() {
		return fmt.Errorf("tap at invalid coordinate %v", coord)
	}
	v.mapListener.DidTapAt(ctx, coord)
	return nil
}

// TapCluster delivers a cluster tap to the cluster listener. Unless the
// listener consumes it, the tap falls through to the cluster's marker.
func (v *View) TapCluster(ctx context.Context, cluster models.Cluster) TapResult {
	marker := models.Marker{
		ID:        models.ClusterMarkerID(cluster.ID),
		Position:  cluster.Position,
		Title:     fmt.Sprintf("%d items", cluster.Count),
		Icon:      v.renderer.ClusterIcon(cluster.Count),
		IsCluster: true,
		Count:     cluster.Count,
		Cluster:   cluster,
	}
	if v.clusterListener.DidTapCluster(ctx, cluster) {
		return TapResult{Marker: marker, Consumed: true, Camera: v.Camera()}
	}
	return v.defaultMarkerTap(marker)
}

// TapMarker delivers a tap on the marker with id. Item markers are found by
// index; cluster markers must be visible in the current viewport.
func (v *View) TapMarker(ctx context.Context, id string) (TapResult, error) {
	marker, err := v.Marker(id)
	if err != nil {
		return TapResult{}, err
	}
	if marker.IsCluster {
		return v.TapCluster(ctx, marker.Cluster), nil
	}
	if v.mapListener.DidTapMarker(ctx, marker) {
		return TapResult{Marker: marker, Consumed: true, Camera: v.Camera()}, nil
	}
	return v.defaultMarkerTap(marker), nil
}

// Marker resolves a marker id.
func (v *View) Marker(id string) (models.Marker, error) {
	isCluster, n, err := models.ParseMarkerID(id)
	if err != nil {
		return models.Marker{}, fmt.Errorf("%w: %v", ErrUnknownMarker, err)
	}
	if !isCluster {
		item, ok := v.manager.Item(n)
		if !ok {
			return models.Marker{}, fmt.Errorf("%w: %s", ErrUnknownMarker, id)
		}
		marker := models.Marker{
			ID:       id,
			Position: item.Position(),
			Count:    1,
			Item:     &item,
			Cluster:  models.Cluster{ID: n, Position: item.Position(), Count: 1, ItemIndex: n, Item: &item},
		}
		v.WillRenderMarker(&marker)
		return marker, nil
	}

	markers, err := v.VisibleMarkers()
	if err != nil {
		return models.Marker{}, err
	}
	for _, m := range markers {
		if m.ID == id {
			return m, nil
		}
	}
	return models.Marker{}, fmt.Errorf("%w: %s is not visible", ErrUnknownMarker, id)
}

// defaultMarkerTap centers the camera on the marker, keeping the zoom, and
// opens its info window.
func (v *View) defaultMarkerTap(marker models.Marker) TapResult {
	v.mu.Lock()
	v.camera = models.NewCamera(marker.Position, v.camera.Zoom)
	cam := v.camera
	v.mu.Unlock()
	return TapResult{Marker: marker, Camera: cam, InfoWindow: v.MarkerInfoWindow(marker)}
}
