package mapview

import (
	"context"

	"clustermap/internal/models"
	"clustermap/pkg/geo"
)

// ClusterTapListener is told about taps on cluster bubbles. Returning true
// consumes the tap; false lets the default handling run.
type ClusterTapListener interface {
	DidTapCluster(ctx context.Context, cluster models.Cluster) bool
}

// MapListener is told about taps on the map and on markers.
type MapListener interface {
	DidTapAt(ctx context.Context, coord geo.Coordinate)
	DidTapMarker(ctx context.Context, marker models.Marker) bool
}

// InfoWindow is the popup shown over a tapped item marker.
type InfoWindow struct {
	Title   string         `json:"title"`
	Snippet string         `json:"snippet"`
	Icon    string         `json:"icon"`
	Anchor  geo.Coordinate `json:"anchor"`
}

// TapResult describes what the map did after a marker or cluster tap.
type TapResult struct {
	Marker     models.Marker `json:"marker"`
	Consumed   bool          `json:"consumed"`
	Camera     models.Camera `json:"camera"`
	InfoWindow *InfoWindow   `json:"infoWindow,omitempty"`
}
