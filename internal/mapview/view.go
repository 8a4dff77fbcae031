// Package mapview is the controller behind the map: it owns the camera and the
// style, feeds the generated items to the cluster manager and answers the map's
// tap and render callbacks.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/paulmach/orb"

	"clustermap/internal/clustering"
	"clustermap/internal/enrich"
	"clustermap/internal/models"
	"clustermap/internal/poi"
	"clustermap/internal/render"
	"clustermap/internal/style"
	"clustermap/pkg/geo"
	"clustermap/pkg/location"
)

// ErrUnknownMarker is returned for marker ids that match nothing on the map.
var ErrUnknownMarker = errors.New("unknown marker")

type Config struct {
	Camera     geo.Coordinate
	Zoom       float64
	ItemCount  int
	ItemExtent float64
	Seed       int64
	// StyleSource is a local path or s3://bucket/key. Empty keeps the default style.
	StyleSource string
	// Width and Height are the pixel size of the visible map.
	Width, Height int
}

func DefaultConfig() Config {
	return Config{
		Camera:     poi.DefaultCenter,
		Zoom:       poi.DefaultZoom,
		ItemCount:  poi.DefaultCount,
		ItemExtent: poi.DefaultExtent,
		Width:      800,
		Height:     600,
	}
}

type StyleLoader interface {
	Load(ctx context.Context, source string) (style.MapStyle, error)
}

// Deps are the collaborators of a View. All of them are optional.
type Deps struct {
	Reverser location.Reverser
	Sink     enrich.EventSink
	Styles   StyleLoader
	// Items replaces the generated items, for example with a stored snapshot.
	Items []models.Item
	// Algorithm defaults to a gocluster index with default options.
	Algorithm clustering.Algorithm
	Renderer  *render.Renderer
}

type View struct {
	width, height int

	manager  *clustering.Manager
	renderer *render.Renderer
	taps     *enrich.Pipeline[models.TapEvent]

	clusterListener ClusterTapListener
	mapListener     MapListener

	mu     sync.RWMutex
	camera models.Camera
	style  style.MapStyle

	wg sync.WaitGroup
}

// New builds the map: camera, style, cluster manager and items. ctx bounds the
// initial style load.
func New(ctx context.Context, cfg Config, deps Deps) (*View, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = DefaultConfig().Width, DefaultConfig().Height
	}
	v := &View{
		width:  cfg.Width,
		height: cfg.Height,
		camera: models.NewCamera(cfg.Camera, cfg.Zoom),
		style:  style.Default(),
	}

	if cfg.StyleSource != "" && deps.Styles != nil {
		v.LoadStyle(ctx, deps.Styles, cfg.StyleSource)
	}

	v.renderer = deps.Renderer
	if v.renderer == nil {
		v.renderer = render.NewRenderer(render.DefaultOptions())
	}
	algorithm := deps.Algorithm
	if algorithm == nil {
		algorithm = clustering.NewGoCluster(clustering.DefaultOptions())
	}
	v.manager = clustering.NewManager(algorithm, v.renderer)

	v.clusterListener = v
	v.mapListener = v
	v.renderer.SetCustomizer(v)

	items := deps.Items
	if items == nil {
		items = poi.Generate(cfg.Camera, cfg.ItemExtent, cfg.ItemCount, poi.NewRand(cfg.Seed))
	}
	v.manager.Add(items...)
	if err := v.manager.Cluster(); err != nil {
		return nil, fmt.Errorf("cluster %d items: %w", len(items), err)
	}
	log.Printf("Clustered %d items around %v", v.manager.Len(), cfg.Camera)

	reverser := deps.Reverser
	if reverser == nil {
		reverser = noAddress{}
	}
	v.taps = enrich.NewTapPipeline(reverser, v.manager, func() int { return v.Camera().ZoomLevel() }, deps.Sink)
	return v, nil
}

// Manager exposes the cluster manager, for queries and persistence.
func (v *View) Manager() *clustering.Manager {
	return v.manager
}

func (v *View) Renderer() *render.Renderer {
	return v.renderer
}

func (v *View) Size() (int, int) {
	return v.width, v.height
}

func (v *View) Camera() models.Camera {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.camera
}

// MoveCamera centers the map on target at zoom (clamped).
func (v *View) MoveCamera(target geo.Coordinate, zoom float64) models.Camera {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.camera = models.NewCamera(target, zoom)
	return v.camera
}

func (v *View) Style() style.MapStyle {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.style
}

func (v *View) SetStyle(st style.MapStyle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.style = st
}

// LoadStyle applies the style at source. On failure the error is logged and the
// current style stays in place.
func (v *View) LoadStyle(ctx context.Context, loader StyleLoader, source string) {
	st, err := loader.Load(ctx, source)
	if err != nil {
		log.Printf("Can't load map style from %s: %v", source, err)
		return
	}
	v.SetStyle(st)
	log.Printf("Applied map style %q", st.Name)
}

// Viewport is the area currently visible.
func (v *View) Viewport() orb.Bound {
	cam := v.Camera()
	return geo.Viewport(cam.Target, float64(cam.ZoomLevel()), v.width, v.height)
}

// Markers returns the markers in bounds at zoom.
func (v *View) Markers(bounds orb.Bound, zoom int) ([]models.Marker, error) {
	return v.manager.Markers(bounds, zoom)
}

// VisibleMarkers returns the markers in the current viewport.
func (v *View) VisibleMarkers() ([]models.Marker, error) {
	return v.Markers(v.Viewport(), v.Camera().ZoomLevel())
}

// Wait blocks until the background work of earlier taps has finished.
func (v *View) Wait() {
	v.wg.Wait()
}

func (v *View) process(ctx context.Context, ev *models.TapEvent) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		v.taps.Run(ctx, ev)
	}()
}

type noAddress struct{}

func (noAddress) Reverse(context.Context, geo.Coordinate) (*location.Address, error) {
	return nil, location.ErrNoAddress
}
