package render

import (
	"fmt"
	"image"
	"image/color"
	"io"

	sm "github.com/flopp/go-staticmaps"
	"github.com/fogleman/gg"

	"clustermap/internal/models"
	"clustermap/internal/style"
)

// MapRenderer draws the camera's view with its markers as a static image.
type MapRenderer struct {
	width, height int
	bucketer      *Bucketer
}

func NewMapRenderer(width, height int, bucketer *Bucketer) *MapRenderer {
	if bucketer == nil {
		bucketer = DefaultBucketer()
	}
	return &MapRenderer{width: width, height: height, bucketer: bucketer}
}

func (r *MapRenderer) Size() (int, int) {
	return r.width, r.height
}

// Render fetches the tiles for camera from the style's tile provider and draws
// markers on top.
func (r *MapRenderer) Render(camera models.Camera, markers []models.Marker, st style.MapStyle) (image.Image, error) {
	ctx := sm.NewContext()
	ctx.SetSize(r.width, r.height)
	ctx.SetCenter(camera.Target.LatLng())
	ctx.SetZoom(camera.ZoomLevel())
	ctx.SetTileProvider(tileProvider(st.TileProvider))

	markerColor, clusterColor := st.Colors()
	for _, m := range markers {
		ctx.AddObject(sm.NewMarker(m.Position.LatLng(), r.markerColor(m, markerColor, clusterColor), r.markerSize(m)))
	}

	img, err := ctx.Render()
	if err != nil {
		return nil, fmt.Errorf("render map at %v zoom %d: %w", camera.Target, camera.ZoomLevel(), err)
	}
	return img, nil
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	return gg.NewContextForImage(img).EncodePNG(w)
}

func (r *MapRenderer) markerColor(m models.Marker, item, cluster color.RGBA) color.Color {
	if !m.IsCluster {
		return item
	}
	if cluster == (color.RGBA{}) {
		return r.bucketer.Color(m.Count)
	}
	return cluster
}

func (r *MapRenderer) markerSize(m models.Marker) float64 {
	if !m.IsCluster {
		return 14
	}
	return 18 + 4*float64(r.bucketer.Index(m.Count)+1)
}

func tileProvider(name string) *sm.TileProvider {
	switch name {
	case "carto-light":
		return sm.NewTileProviderCartoLight()
	case "carto-dark":
		return sm.NewTileProviderCartoDark()
	case "opentopomap":
		return sm.NewTileProviderOpenTopoMap()
	default:
		return sm.NewTileProviderOpenStreetMaps()
	}
}
