// Package api serves the map view over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"clustermap/internal/mapview"
	"clustermap/internal/models"
	"clustermap/internal/render"
	"clustermap/internal/style"
	"clustermap/pkg/geo"
	"clustermap/pkg/location"
)

// MapImager renders the map picture for a camera.
type MapImager interface {
	Render(camera models.Camera, markers []models.Marker, st style.MapStyle) (image.Image, error)
}

// Searcher resolves free-form place names.
type Searcher interface {
	Geocode(ctx context.Context, query string) (*location.Location, error)
}

type Server struct {
	view     *mapview.View
	icons    *render.IconGenerator
	imager   MapImager
	searcher Searcher
}

// NewServer wires the handlers. imager and searcher may be nil; their routes
// then answer 503.
func NewServer(view *mapview.View, icons *render.IconGenerator, imager MapImager, searcher Searcher) *Server {
	return &Server{view: view, icons: icons, imager: imager, searcher: searcher}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "items": s.view.Manager().Len()})
	})

	api := r.Group("/api")
	api.GET("/camera", s.getCamera)
	api.PUT("/camera", s.putCamera)
	api.GET("/clusters", s.getClusters)
	api.POST("/clusters/tap", s.tapCluster)
	api.POST("/tap", s.tapMap)
	api.POST("/markers/:id/tap", s.tapMarker)
	api.GET("/markers/:id/info", s.markerInfo)
	api.GET("/icons/:file", s.icon)
	api.GET("/map.png", s.mapImage)
	api.GET("/style", s.getStyle)
	api.GET("/geocode", s.geocode)
	return r
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type coordinateRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

func (r coordinateRequest) coordinate() (geo.Coordinate, error) {
	if r.Lat == nil || r.Lon == nil {
		return geo.Coordinate{}, errors.New("lat and lon are required")
	}
	coord := geo.Coordinate{Lat: *r.Lat, Lon: *r.Lon}
	if !coord.Valid() {
		return geo.Coordinate{}, fmt.Errorf("coordinate %v out of range", coord)
	}
	return coord, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) getCamera(c *gin.Context) {
	c.JSON(http.StatusOK, s.view.Camera())
}

func (s *Server) putCamera(c *gin.Context) {
	var req struct {
		coordinateRequest
		Zoom *float64 `json:"zoom"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid request: %w", err))
		return
	}
	coord, err := req.coordinate()
	if err != nil {
		badRequest(c, err)
		return
	}
	zoom := s.view.Camera().Zoom
	if req.Zoom != nil {
		zoom = *req.Zoom
	}
	c.JSON(http.StatusOK, s.view.MoveCamera(coord, zoom))
}

// getClusters answers with a GeoJSON FeatureCollection of the markers in the
// requested bounds. Missing bounds or zoom fall back to the camera.
func (s *Server) getClusters(c *gin.Context) {
	zoom := s.view.Camera().ZoomLevel()
	if raw := c.Query("zoom"); raw != "" {
		z, err := strconv.Atoi(raw)
		if err != nil || z < models.MinZoom || z > models.MaxZoom {
			badRequest(c, errors.New("invalid zoom parameter"))
			return
		}
		zoom = z
	}

	bounds, err := boundsFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if bounds == nil {
		bounds = []orb.Bound{s.view.Viewport()}
	}

	var markers []models.Marker
	for _, b := range bounds {
		part, err := s.view.Markers(b, zoom)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		markers = append(markers, part...)
	}
	c.JSON(http.StatusOK, featureCollection(markers))
}

// boundsFromQuery reads the north, south, east and west parameters. A box whose
// west edge lies east of its east edge crosses the antimeridian and is split in
// two.
func boundsFromQuery(c *gin.Context) ([]orb.Bound, error) {
	names := []string{"north", "south", "east", "west"}
	values := make([]float64, len(names))
	present := 0
	for i, name := range names {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid %s parameter", name)
		}
		values[i] = v
		present++
	}
	switch present {
	case 0:
		return nil, nil
	case len(names):
	default:
		return nil, errors.New("north, south, east and west must be given together")
	}

	north, south, east, west := values[0], values[1], values[2], values[3]
	if !(geo.Coordinate{Lat: north, Lon: east}).Valid() || !(geo.Coordinate{Lat: south, Lon: west}).Valid() {
		return nil, errors.New("bounds out of range")
	}
	if north < south {
		return nil, errors.New("north must not be below south")
	}
	if east < west {
		return []orb.Bound{
			geo.Bound(north, south, 180, west),
			geo.Bound(north, south, east, -180),
		}, nil
	}
	return []orb.Bound{geo.Bound(north, south, east, west)}, nil
}

func featureCollection(markers []models.Marker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range markers {
		f := geojson.NewFeature(m.Position.Point())
		f.ID = m.ID
		f.Properties["cluster"] = m.IsCluster
		f.Properties["point_count"] = m.Count
		f.Properties["title"] = m.Title
		f.Properties["icon"] = m.Icon
		fc.Append(f)
	}
	return fc
}

func (s *Server) tapMap(c *gin.Context) {
	var req coordinateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid request: %w", err))
		return
	}
	coord, err := req.coordinate()
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := s.view.TapMap(tapContext(c), coord); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"coordinate": coord})
}

// tapContext keeps the request's values but not its cancellation: tap lookups
// keep running after the response is written.
func tapContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (s *Server) tapCluster(c *gin.Context) {
	var req struct {
		coordinateRequest
		ID    int `json:"id"`
		Count int `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid request: %w", err))
		return
	}
	coord, err := req.coordinate()
	if err != nil {
		badRequest(c, err)
		return
	}
	if req.Count < 2 {
		badRequest(c, errors.New("a cluster holds at least 2 items"))
		return
	}
	res := s.view.TapCluster(tapContext(c), models.Cluster{ID: req.ID, Position: coord, Count: req.Count})
	c.JSON(http.StatusOK, res)
}

func (s *Server) tapMarker(c *gin.Context) {
	res, err := s.view.TapMarker(tapContext(c), c.Param("id"))
	if errors.Is(err, mapview.ErrUnknownMarker) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) markerInfo(c *gin.Context) {
	marker, err := s.view.Marker(c.Param("id"))
	if errors.Is(err, mapview.ErrUnknownMarker) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	win := s.view.MarkerInfoWindow(marker)
	if win == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "marker has no info window"})
		return
	}
	c.JSON(http.StatusOK, win)
}

func (s *Server) icon(c *gin.Context) {
	key, ok := strings.CutSuffix(c.Param("file"), ".png")
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "icons are served as .png"})
		return
	}
	// The pin follows the marker color of the current style.
	if key == render.PinIcon {
		marker, _ := s.view.Style().Colors()
		png, err := s.icons.Pin(marker)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "image/png", png)
		return
	}

	png, err := s.icons.Icon(key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) mapImage(c *gin.Context) {
	if s.imager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "map rendering is disabled"})
		return
	}
	markers, err := s.view.VisibleMarkers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	img, err := s.imager.Render(s.view.Camera(), markers, s.view.Style())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := render.WritePNG(c.Writer, img); err != nil {
		_ = c.Error(err)
	}
}

func (s *Server) getStyle(c *gin.Context) {
	c.JSON(http.StatusOK, s.view.Style())
}

// geocode looks up ?q=. With move=true the camera follows the hit.
func (s *Server) geocode(c *gin.Context) {
	if s.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "geocoding is disabled"})
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		badRequest(c, errors.New("q is required"))
		return
	}
	loc, err := s.searcher.Geocode(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if c.Query("move") == "true" {
		s.view.MoveCamera(loc.Coordinate, s.view.Camera().Zoom)
	}
	c.JSON(http.StatusOK, loc)
}
